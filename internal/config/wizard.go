package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard reading answers from in
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run walks through the settings starting from base and returns the edited copy
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== agentdesk configuration ===")
	fmt.Fprintln(w.out)

	cfg := *base
	validator := NewValidator()

	// Agents
	fmt.Fprintln(w.out, "Agents:")
	for {
		answer, err := w.ask("Built-in agents, comma separated", strings.Join(cfg.BuiltinAgents, ","))
		if err != nil {
			return nil, err
		}
		agents := splitList(answer)
		var invalid error
		for _, name := range agents {
			if err := validator.ValidateAgentName(name); err != nil {
				invalid = err
				break
			}
		}
		if invalid != nil {
			fmt.Fprintf(w.out, "Error: %v\n", invalid)
			continue
		}
		cfg.BuiltinAgents = agents
		break
	}

	for {
		answer, err := w.ask("Default agent (- to choose at startup)", cfg.DefaultAgent)
		if err != nil {
			return nil, err
		}
		if answer == "-" {
			answer = ""
		}
		if answer != "" {
			if err := validator.ValidateAgentName(answer); err != nil {
				fmt.Fprintf(w.out, "Error: %v\n", err)
				continue
			}
		}
		cfg.DefaultAgent = answer
		break
	}

	fmt.Fprintln(w.out)

	// Remote channel
	fmt.Fprintln(w.out, "Remote queries:")
	for {
		answer, err := w.ask("Redis address (host:port, - disables)", cfg.Remote.RedisAddr)
		if err != nil {
			return nil, err
		}
		if answer == "-" {
			answer = ""
		}
		if err := validator.ValidateAddress("redis address", answer); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Remote.RedisAddr = answer
		break
	}

	fmt.Fprintln(w.out)

	// Features
	enable, err := w.ask("Offer clipboard content with queries? (y/n)", yesNo(cfg.Features.Clipboard))
	if err != nil {
		return nil, err
	}
	cfg.Features.Clipboard = strings.HasPrefix(strings.ToLower(enable), "y")

	// Log Level
	level, err := w.ask("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return &cfg, nil
}

// ask prints question with its default and returns the answer, or the default when empty
func (w *Wizard) ask(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", question)
	}

	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
