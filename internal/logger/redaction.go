package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// Redactor redacts sensitive information from logs
type Redactor struct {
	patterns []*regexp.Regexp
	// partial rules redact only the value and keep the surrounding key or URL
	partial []partialRule
}

type partialRule struct {
	re   *regexp.Regexp
	repl string
}

// NewRedactor creates a new redactor with default patterns
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// Provider API keys
			regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),

			// Bearer tokens, including Direct Line conversation tokens
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),

			// AWS keys
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
		},
		partial: []partialRule{
			// Credentials embedded in URLs, e.g. redis://:pass@host
			{
				re:   regexp.MustCompile(`([a-z][a-z0-9+.-]*://[^:@/\s]*:)[^@/\s]+@`),
				repl: "${1}" + redacted + "@",
			},
			// key=value pairs and JSON fields
			{
				re:   regexp.MustCompile(`((?i:password|secret|api_key|token)["']?\s*[:=]\s*["']?)[^\s"',}]+`),
				repl: "${1}" + redacted,
			},
		},
	}
}

// AddPattern adds a custom redaction pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact redacts sensitive information from a string
func (r *Redactor) Redact(s string) string {
	result := s
	for _, rule := range r.partial {
		result = rule.re.ReplaceAllString(result, rule.repl)
	}
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, redacted)
	}
	return result
}

// Wrap wraps an io.Writer to redact sensitive information
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{
		writer:   w,
		redactor: r,
	}
}

// redactingWriter is an io.Writer that redacts sensitive information
type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; the redacted text may be shorter or longer
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.writer.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
