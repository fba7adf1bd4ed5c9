// services/options.go
package services

import (
	"context"
	"time"
)

const defaultUnitTimeout = 10 * time.Second

type options struct {
	now     func() time.Time
	metrics *Metrics
	timeout time.Duration
}

// Option customises a service instance.
type Option func(*options)

// WithClock sets the function used to derive timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.now = clock }
}

// WithMetrics records service activity on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithUnitTimeout bounds every unit of work the service starts.
func WithUnitTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, timeout: defaultUnitTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultUnitTimeout
	}
	return o
}

func (o options) unitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}
