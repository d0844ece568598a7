package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/agentdesk/internal/tracing"
)

// Turn is one dispatched query as recorded in a transcript
type Turn struct {
	Agent     string    `json:"agent"`
	Query     string    `json:"query"`
	Outcome   string    `json:"outcome"`
	Delegated bool      `json:"delegated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEntry is a turn together with its session id
type TranscriptEntry struct {
	SessionID string `json:"sessionId"`
	Turn      Turn   `json:"turn"`
}

// Transcript persists session turns as JSONL files, one per session
type Transcript struct {
	dir    string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewTranscript creates a transcript store rooted at dir
func NewTranscript(dir string, logger zerolog.Logger) (*Transcript, error) {
	if dir == "" {
		return nil, fmt.Errorf("transcript directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &Transcript{
		dir:    dir,
		logger: logger.With().Str("component", "transcript").Logger(),
	}, nil
}

func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("session id cannot contain '..'")
	}
	if strings.ContainsAny(id, "/\\\x00") {
		return fmt.Errorf("session id cannot contain path separators")
	}
	return nil
}

func (t *Transcript) path(sessionID string) string {
	return filepath.Join(t.dir, sessionID+".jsonl")
}

// Append writes one turn to the session's transcript
func (t *Transcript) Append(ctx context.Context, sessionID string, turn Turn) (err error) {
	_, span := tracing.StartSpan(ctx, "transcript.append",
		attribute.String("session_id", sessionID),
		attribute.String("agent", turn.Agent),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	data, err := json.Marshal(TranscriptEntry{SessionID: sessionID, Turn: turn})
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	file, err := os.OpenFile(t.path(sessionID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write turn: %w", err)
	}
	return nil
}

// Load reads every turn of a session. Corrupted lines are skipped.
func (t *Transcript) Load(sessionID string) ([]Turn, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	file, err := os.Open(t.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []Turn{}, nil
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	turns := []Turn{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry TranscriptEntry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Turn.Query == "" {
			t.logger.Warn().Str("session_id", sessionID).Int("line", lineNum).Msg("Invalid transcript entry, skipping")
			continue
		}
		turns = append(turns, entry.Turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return turns, nil
}

// SessionInfo describes one stored transcript
type SessionInfo struct {
	ID           string
	LastModified time.Time
	Size         int64
}

// List returns stored sessions, most recent first
func (t *Transcript) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read transcript directory: %w", err)
	}

	sessions := []SessionInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, SessionInfo{
			ID:           strings.TrimSuffix(name, ".jsonl"),
			LastModified: info.ModTime(),
			Size:         info.Size(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastModified.After(sessions[j].LastModified)
	})
	return sessions, nil
}

// Prune deletes transcripts not modified within maxAge and returns how many were removed
func (t *Transcript) Prune(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	sessions, err := t.List()
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, s := range sessions {
		if s.LastModified.After(cutoff) {
			continue
		}
		if err := os.Remove(t.path(s.ID)); err != nil && !os.IsNotExist(err) {
			t.logger.Warn().Err(err).Str("session_id", s.ID).Msg("Failed to delete transcript")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		t.logger.Info().Int("deleted", deleted).Msg("Old transcripts pruned")
	}
	return deleted, nil
}
