package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/agentdesk/internal/observability"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig describes the redis list queries are pushed to
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// RedisChannel consumes queries from a redis list on its own goroutine
type RedisChannel struct {
	client *redis.Client
	queue  string
	wait   time.Duration
	logger zerolog.Logger

	mu         sync.Mutex
	pending    []string
	readCtx    context.Context
	readCancel context.CancelFunc

	ready     chan struct{}
	done      chan struct{}
	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
}

// NewRedisChannel creates a channel. It does not connect until Start.
func NewRedisChannel(cfg RedisConfig, logger zerolog.Logger) (*RedisChannel, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "agentdesk:queries"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &RedisChannel{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		queue:  queue,
		wait:   wait,
		logger: logger.With().Str("component", "remote-channel").Str("queue", queue).Logger(),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	c.readCtx, c.readCancel = context.WithCancel(context.Background())
	return c, nil
}

// Start connects and consumes in the background
func (c *RedisChannel) Start() {
	c.startOnce.Do(func() {
		go c.run()
	})
}

// Ready is closed once the connection attempt finished
func (c *RedisChannel) Ready() <-chan struct{} {
	return c.ready
}

// Connected reports whether the connection attempt succeeded
func (c *RedisChannel) Connected() bool {
	return c.connected.Load()
}

// Poll dequeues a pending query, or returns the current read token
func (c *RedisChannel) Poll() (string, bool, context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) > 0 {
		query := c.pending[0]
		c.pending = c.pending[1:]
		return query, true, c.readCtx
	}
	return "", false, c.readCtx
}

// Publish pushes a query onto the list
func (c *RedisChannel) Publish(ctx context.Context, query string) error {
	if err := c.client.LPush(ctx, c.queue, query).Err(); err != nil {
		return fmt.Errorf("failed to publish query: %w", err)
	}
	return nil
}

// Pending returns the number of queries waiting on the list
func (c *RedisChannel) Pending(ctx context.Context) (int64, error) {
	n, err := c.client.LLen(ctx, c.queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// Close stops consuming and closes the connection
func (c *RedisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.startOnce.Do(func() {
			close(c.ready)
			close(c.done)
		})
		<-c.done
		err = c.client.Close()
	})
	return err
}

func (c *RedisChannel) run() {
	defer close(c.done)

	err := c.client.Ping(c.ctx).Err()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Remote query channel unavailable")
		close(c.ready)
		return
	}
	c.connected.Store(true)
	close(c.ready)
	c.logger.Info().Msg("Remote query channel connected")

	for c.ctx.Err() == nil {
		values, err := c.client.BRPop(c.ctx, c.wait, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if c.ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			c.logger.Warn().Err(err).Msg("Failed to receive remote query")
			select {
			case <-time.After(time.Second):
			case <-c.ctx.Done():
				return
			}
			continue
		}
		if len(values) != 2 {
			continue
		}
		c.deliver(values[1])
	}
}

// deliver queues a query and interrupts any read holding the current token
func (c *RedisChannel) deliver(query string) {
	c.mu.Lock()
	c.pending = append(c.pending, query)
	cancel := c.readCancel
	c.readCtx, c.readCancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	cancel()
	observability.RecordRemoteQuery()
	c.logger.Debug().Int("length", len(query)).Msg("Remote query received")
}
