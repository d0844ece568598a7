package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
)

// AgentDiscovery scans plugin directories for agent artifacts
type AgentDiscovery struct {
	logger zerolog.Logger
}

// NewAgentDiscovery creates a new discovery instance
func NewAgentDiscovery(logger zerolog.Logger) *AgentDiscovery {
	return &AgentDiscovery{
		logger: logger.With().Str("component", "agent-discovery").Logger(),
	}
}

// ArtifactName returns the file name an agent directory must contain
func ArtifactName(dirName string) string {
	if runtime.GOOS == "windows" {
		return dirName + ".exe"
	}
	return dirName
}

// Discover scans every root for <root>/<name>/<name> artifacts
func (d *AgentDiscovery) Discover(roots []string) []DiscoveredAgent {
	var discovered []DiscoveredAgent

	for _, root := range roots {
		if root == "" {
			continue
		}
		found, err := d.scanDirectory(root)
		if err != nil {
			d.logger.Warn().Err(err).Str("dir", root).Msg("Failed to scan plugin directory")
			continue
		}
		discovered = append(discovered, found...)
	}

	d.logger.Info().Int("count", len(discovered)).Msg("Agent discovery completed")
	return discovered
}

func (d *AgentDiscovery) scanDirectory(root string) ([]DiscoveredAgent, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Debug().Str("dir", root).Msg("Directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}

	var discovered []DiscoveredAgent
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		artifact := filepath.Join(dir, ArtifactName(entry.Name()))

		fi, err := os.Stat(artifact)
		if err != nil || fi.IsDir() {
			d.logger.Debug().Str("dir", dir).Msg("Directory does not contain an agent artifact, skipping")
			continue
		}

		discovered = append(discovered, DiscoveredAgent{
			Name:     entry.Name(),
			Dir:      dir,
			Artifact: artifact,
		})
		d.logger.Debug().Str("name", entry.Name()).Str("artifact", artifact).Msg("Discovered agent")
	}

	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].Name < discovered[j].Name
	})
	return discovered, nil
}
