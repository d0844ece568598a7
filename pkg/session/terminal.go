package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// ErrNoChoice is returned by Choose when there is nothing to choose from
var ErrNoChoice = errors.New("no options to choose from")

// Terminal is the operator-facing surface of the session
type Terminal interface {
	// ReadLine reads one line. It returns io.EOF when input ends and ctx.Err()
	// when ctx is cancelled first; a cancelled read does not lose the line.
	ReadLine(ctx context.Context, prompt string) (string, error)
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
	Choose(ctx context.Context, title string, options []string) (int, error)

	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

type lineResult struct {
	line string
	err  error
}

// Console is a line-oriented Terminal over a reader and a writer
type Console struct {
	in  io.Reader
	out io.Writer

	startOnce sync.Once
	lines     chan lineResult
	mu        sync.Mutex
	eof       error
}

// NewConsole creates a console. Reading starts on first use.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:    in,
		out:   out,
		lines: make(chan lineResult),
	}
}

func (c *Console) start() {
	c.startOnce.Do(func() {
		go func() {
			reader := bufio.NewReader(c.in)
			for {
				line, err := reader.ReadString('\n')
				if line != "" {
					c.lines <- lineResult{line: strings.TrimRight(line, "\r\n")}
				}
				if err != nil {
					if !errors.Is(err, io.EOF) {
						c.lines <- lineResult{err: err}
					}
					close(c.lines)
					return
				}
			}
		}()
	})
}

func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.start()
	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}

	c.mu.Lock()
	eof := c.eof
	c.mu.Unlock()
	if eof != nil {
		return "", eof
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	case res, ok := <-c.lines:
		if !ok {
			c.mu.Lock()
			c.eof = io.EOF
			c.mu.Unlock()
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (c *Console) Confirm(ctx context.Context, question string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	for {
		answer, err := c.ReadLine(ctx, fmt.Sprintf("%s %s ", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.out, "Please answer y or n.")
	}
}

func (c *Console) Choose(ctx context.Context, title string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, ErrNoChoice
	}

	fmt.Fprintln(c.out, title)
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, opt)
	}
	for {
		answer, err := c.ReadLine(ctx, fmt.Sprintf("Enter a number (1-%d): ", len(options)))
		if err != nil {
			return -1, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintln(c.out, "Invalid choice.")
	}
}

func (c *Console) Info(msg string) {
	fmt.Fprintln(c.out, msg)
}

func (c *Console) Warn(msg string) {
	fmt.Fprintf(c.out, "warning: %s\n", msg)
}

func (c *Console) Error(msg string) {
	fmt.Fprintf(c.out, "error: %s\n", msg)
}
