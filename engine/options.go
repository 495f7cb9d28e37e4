package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrConfig marks an invalid Options value. Configuration errors fail the
// call that introduced them before any worker goroutines start.
var ErrConfig = errors.New("engine: invalid configuration")

// Options tunes the parallel engine. The zero value is not valid; use
// DefaultOptions or NewOptions.
type Options struct {
	// OrderOutput, when set, reassembles batches in descriptor order
	// before they reach Reduce/map, at the cost of running Reduce on a
	// single worker instead of NumThreads.
	OrderOutput bool
	// NumThreads sizes the decode+extract worker pool, and in unordered
	// mode also the reduce+map worker pool.
	NumThreads int
	// BatchSize is the number of descriptors handed to one worker per
	// decode task; the items extracted from those descriptors are passed
	// to Reduce together.
	BatchSize int
	// ChannelBufferSize bounds every inter-stage channel.
	ChannelBufferSize int
	// LogAt reports progress every this many decoded blocks. Must be
	// at least 1000.
	LogAt int
	// Logger receives progress and warning output. Defaults to a text
	// handler on stderr.
	Logger *slog.Logger
}

// DefaultOptions returns conservative defaults: tuned
// for a machine with fast NVMe storage and many cores.
func DefaultOptions() Options {
	return Options{
		OrderOutput:       false,
		NumThreads:        128,
		BatchSize:         10,
		ChannelBufferSize: 100,
		LogAt:             10_000,
		Logger:            slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

// Validate rejects nonsensical configuration before a parse begins.
func (o Options) Validate() error {
	if o.NumThreads <= 0 {
		return fmt.Errorf("%w: num_threads must be > 0, got %d", ErrConfig, o.NumThreads)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be > 0, got %d", ErrConfig, o.BatchSize)
	}
	if o.ChannelBufferSize <= 0 {
		return fmt.Errorf("%w: channel_buffer_size must be > 0, got %d", ErrConfig, o.ChannelBufferSize)
	}
	if o.LogAt < 1000 {
		return fmt.Errorf("%w: log_at must be >= 1000, got %d", ErrConfig, o.LogAt)
	}
	if o.Logger == nil {
		return fmt.Errorf("%w: logger must not be nil", ErrConfig)
	}
	return nil
}

// Option mutates an Options value. Apply with NewOptions.
type Option func(*Options)

// WithOrderOutput enables OrderOutput.
func WithOrderOutput() Option { return func(o *Options) { o.OrderOutput = true } }

// WithNumThreads sets NumThreads.
func WithNumThreads(n int) Option { return func(o *Options) { o.NumThreads = n } }

// WithBatchSize sets BatchSize.
func WithBatchSize(n int) Option { return func(o *Options) { o.BatchSize = n } }

// WithChannelBufferSize sets ChannelBufferSize.
func WithChannelBufferSize(n int) Option { return func(o *Options) { o.ChannelBufferSize = n } }

// WithLogAt sets LogAt.
func WithLogAt(n int) Option { return func(o *Options) { o.LogAt = n } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// NewOptions builds an Options starting from DefaultOptions and applying
// opts in order.
func NewOptions(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
