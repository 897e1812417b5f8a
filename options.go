package block_ring_buffer_go

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MissingKeyPolicy selects how Delete treats a key without a live block.
type MissingKeyPolicy int

const (
	// MissingKeyNotFound makes Delete return ErrNotFound.
	MissingKeyNotFound MissingKeyPolicy = iota

	// MissingKeyIgnore makes Delete succeed without changing anything.
	MissingKeyIgnore
)

func (p MissingKeyPolicy) String() string {
	switch p {
	case MissingKeyNotFound:
		return "not_found"
	case MissingKeyIgnore:
		return "ignore"
	}
	return "unknown"
}

// ParseMissingKeyPolicy parses "not_found" or "ignore". The empty string
// selects the default, MissingKeyNotFound.
func ParseMissingKeyPolicy(s string) (MissingKeyPolicy, error) {
	switch s {
	case "", "not_found":
		return MissingKeyNotFound, nil
	case "ignore":
		return MissingKeyIgnore, nil
	}
	return MissingKeyNotFound, errors.Errorf("unknown missing key policy %q", s)
}

type options struct {
	logger           *zap.Logger
	missingKeyPolicy MissingKeyPolicy
	metrics          bool
}

// Option configures a BufferManager.
type Option func(*options)

// WithLogger sets the logger. Compaction passes are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMissingKeyPolicy sets how Delete treats keys without a live block.
func WithMissingKeyPolicy(policy MissingKeyPolicy) Option {
	return func(o *options) {
		o.missingKeyPolicy = policy
	}
}

// WithMetrics enables or disables compaction metrics. They are enabled by
// default; when disabled Metrics always returns a zero snapshot.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metrics = enabled
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:           zap.NewNop(),
		missingKeyPolicy: MissingKeyNotFound,
		metrics:          true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
