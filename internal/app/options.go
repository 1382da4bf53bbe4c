package app

import (
	"time"

	"go.uber.org/zap"

	"polymer-learn-service/internal/metrics"
)

// Option configures the services in this package.
type Option func(*options)

type options struct {
	now     func() time.Time
	log     *zap.Logger
	metrics *metrics.Metrics
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock allows deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
