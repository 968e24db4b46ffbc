package conveyor

import (
	"context"
	"errors"
	"log/slog"
)

// Option configures a Conveyor.
type Option func(*Conveyor) error

// Storer is the minimal store interface held by the Conveyor.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Conveyor is the central coordinator for job processing, lease
// management, scheduling sweeps, and cron repeat jobs.
//
// Create one with New() and functional options. The Conveyor holds
// references to subsystem components via internal interfaces to avoid
// import cycles. Use engine.Build to wire everything together.
type Conveyor struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Conveyor with the given options.
func New(opts ...Option) (*Conveyor, error) {
	c := &Conveyor{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Logger returns the conveyor's logger.
func (c *Conveyor) Logger() *slog.Logger { return c.logger }

// Store returns the conveyor's store.
func (c *Conveyor) Store() Storer { return c.store }

// Config returns a copy of the conveyor's configuration.
func (c *Conveyor) Config() Config { return c.config }

// SetPool sets the worker pool (called by the engine package).
func (c *Conveyor) SetPool(p poolRunner) { c.pool = p }

// SetExtensions sets the extension emitter (called by the engine package).
func (c *Conveyor) SetExtensions(e extensionEmitter) { c.extensions = e }

// Start begins job processing.
func (c *Conveyor) Start(ctx context.Context) error {
	if c.pool == nil {
		return errors.New("conveyor: no worker pool configured, use engine.Build")
	}
	if err := c.pool.Start(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

// Stop gracefully shuts down the conveyor.
func (c *Conveyor) Stop(ctx context.Context) error {
	if c.pool != nil && c.started {
		if err := c.pool.Stop(ctx); err != nil {
			c.logger.Error("pool stop error", "error", err)
		}
	}
	if c.extensions != nil {
		c.extensions.EmitShutdown(ctx)
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent job processors.
func WithConcurrency(n int) Option {
	return func(c *Conveyor) error {
		c.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queues the conveyor will claim jobs from.
func WithQueues(queues []string) Option {
	return func(c *Conveyor) error {
		c.config.Queues = queues
		return nil
	}
}

// WithConfig replaces the entire configuration.
func WithConfig(cfg Config) Option {
	return func(c *Conveyor) error {
		c.config = cfg
		return nil
	}
}

// WithLogger sets the structured logger for the conveyor.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conveyor) error {
		c.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the conveyor.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(c *Conveyor) error {
		c.store = s
		return nil
	}
}
