package session

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/atotto/clipboard"
)

// previewLimit is the number of characters shown before a clipboard preview is cut
const previewLimit = 150

// Clipboard gives access to the system clipboard
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard is the OS clipboard
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("clipboard is not supported on this system")
	}
	return clipboard.ReadAll()
}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard is not supported on this system")
	}
	return clipboard.WriteAll(text)
}

// augmentWithClipboard offers the clipboard content as extra context for query.
// It returns false when the operator interrupted the offer, which abandons the turn.
func (l *Loop) augmentWithClipboard(ctx context.Context, query string) (string, bool) {
	if !l.opts.ClipboardEnabled || l.opts.Clipboard == nil {
		return query, true
	}

	text, err := l.opts.Clipboard.ReadAll()
	if err != nil {
		l.logger.Debug().Err(err).Msg("Failed to read clipboard")
		return query, true
	}
	text = strings.TrimSpace(text)
	if text == "" || l.state.wasOffered(text) || strings.Contains(query, text) || inCodeBlock(l.state.LastResponse, text) {
		return query, true
	}
	l.state.markOffered(text)

	l.term.Info("Clipboard content:\n" + clipboardPreview(text))
	confirmCtx, cancel := l.opContext(ctx)
	yes, err := l.term.Confirm(confirmCtx, "Include the clipboard content in the query?", false)
	interrupted := confirmCtx.Err() != nil
	cancel()
	if interrupted {
		return query, false
	}
	if err != nil || !yes {
		return query, true
	}
	return query + "\n\n" + text, true
}

// clipboardPreview cuts text at the first whitespace after previewLimit characters
func clipboardPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	for i := previewLimit; i < len(runes); i++ {
		if unicode.IsSpace(runes[i]) {
			return string(runes[:i]) + "…"
		}
	}
	return string(runes[:previewLimit]) + "…"
}

// inCodeBlock reports whether text appears inside a fenced code block of response
func inCodeBlock(response, text string) bool {
	if response == "" || text == "" {
		return false
	}
	for _, block := range codeBlocks(response) {
		if strings.Contains(block, text) {
			return true
		}
	}
	return false
}

// codeBlocks extracts the contents of ``` fenced blocks. An unterminated block runs to the end.
func codeBlocks(markdown string) []string {
	var (
		blocks  []string
		current []string
		inBlock bool
	)
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inBlock {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			inBlock = !inBlock
			continue
		}
		if inBlock {
			current = append(current, line)
		}
	}
	if inBlock && len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}
