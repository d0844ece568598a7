package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/agentdesk/internal/observability"
	"github.com/rs/zerolog"
)

// ErrConnectionDropped is delivered once to the consumer when the stream ends
var ErrConnectionDropped = errors.New("connection dropped")

const (
	defaultChunkSize = 4096
	closeAckTimeout  = time.Second
)

// Options configures a Receiver
type Options struct {
	// UserID identifies activities echoed back from the local side
	UserID    string
	Header    http.Header
	Dialer    *websocket.Dialer
	ChunkSize int
	Logger    zerolog.Logger
}

// Receiver is a live handle on one streaming connection
type Receiver struct {
	conn      *websocket.Conn
	queue     *Queue
	userID    string
	chunkSize int
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	wmMu         sync.RWMutex
	watermark    int64
	hasWatermark bool

	finishOnce sync.Once
	closeOnce  sync.Once
}

// Dial connects to url and starts the receive loop
func Dial(ctx context.Context, url string, opts Options) (*Receiver, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to stream (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}

	r := newReceiver(conn, opts)
	go r.receiveLoop()
	return r, nil
}

func newReceiver(conn *websocket.Conn, opts Options) *Receiver {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		conn:      conn,
		queue:     NewQueue(),
		userID:    opts.UserID,
		chunkSize: chunkSize,
		logger:    opts.Logger.With().Str("component", "stream-receiver").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	conn.SetCloseHandler(func(code int, text string) error {
		r.logger.Debug().Int("code", code).Str("reason", text).Msg("Peer closed the stream")
		msg := websocket.FormatCloseMessage(code, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeAckTimeout))
		return nil
	})

	return r
}

// Watermark returns the last watermark seen, if any
func (r *Receiver) Watermark() (int64, bool) {
	r.wmMu.RLock()
	defer r.wmMu.RUnlock()
	return r.watermark, r.hasWatermark
}

// Take returns the next remote activity in arrival order. An error carried by the
// queue is returned instead of data; once drained and completed Take returns ErrExhausted.
func (r *Receiver) Take(ctx context.Context) (Activity, error) {
	item, err := r.queue.Take(ctx)
	if err != nil {
		return Activity{}, err
	}
	if item.Err != nil {
		return Activity{}, item.Err
	}
	return item.Activity, nil
}

// Done is closed when the receive loop has exited
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Close releases the connection and asks the loop to stop without waiting for it
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.cancel()
		err = r.conn.Close()
	})
	return err
}

func (r *Receiver) receiveLoop() {
	defer close(r.done)
	// fallback: whatever path leaves the loop, the consumer sees the drop
	defer r.finish(nil)

	var buf bytes.Buffer
	chunk := make([]byte, r.chunkSize)

	for r.ctx.Err() == nil {
		msgType, reader, err := r.conn.NextReader()
		if err != nil {
			r.handleReadError(err)
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		buf.Reset()
		if err := readFrame(reader, chunk, &buf); err != nil {
			r.handleReadError(err)
			return
		}

		// empty frames keep the connection alive
		if buf.Len() == 0 {
			continue
		}
		r.handleEnvelope(buf.Bytes())
	}
}

// readFrame accumulates chunks until the end of the current message
func readFrame(reader io.Reader, chunk []byte, buf *bytes.Buffer) error {
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (r *Receiver) handleReadError(err error) {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		r.logger.Info().Int("code", closeErr.Code).Msg("Stream closed by peer")
		r.finish(err)
	case r.ctx.Err() != nil:
		r.logger.Debug().Msg("Stream receive loop cancelled")
		r.acknowledgeClose()
		r.finish(r.ctx.Err())
	default:
		r.logger.Warn().Err(err).Msg("Stream receive failed")
		r.finish(err)
	}
}

func (r *Receiver) acknowledgeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeAckTimeout))
}

func (r *Receiver) handleEnvelope(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		r.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Skipping malformed envelope")
		return
	}

	if wm, ok, err := env.WatermarkValue(); err != nil {
		r.logger.Warn().Err(err).Msg("Ignoring watermark")
	} else if ok {
		r.advanceWatermark(wm)
	}

	enqueued, dropped := 0, 0
	for _, activity := range env.Activities {
		if activity.FromSelf(r.userID) {
			dropped++
			continue
		}
		if r.queue.Add(Item{Activity: activity}) {
			enqueued++
		}
	}
	observability.RecordStreamEnvelope(enqueued, dropped)
}

func (r *Receiver) advanceWatermark(wm int64) {
	r.wmMu.Lock()
	defer r.wmMu.Unlock()

	if r.hasWatermark && wm < r.watermark {
		r.logger.Warn().Int64("current", r.watermark).Int64("received", wm).Msg("Watermark went backwards, keeping current")
		return
	}
	r.watermark = wm
	r.hasWatermark = true
}

// finish enqueues the drop sentinel and completes the queue, once
func (r *Receiver) finish(cause error) {
	r.finishOnce.Do(func() {
		dropErr := ErrConnectionDropped
		if cause != nil {
			dropErr = fmt.Errorf("%w: %v", ErrConnectionDropped, cause)
		}
		r.queue.Add(Item{Err: dropErr})
		r.queue.Complete()
		observability.RecordStreamDropped()
	})
}
