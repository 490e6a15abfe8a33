package core

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so monitoring can be driven deterministically.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock. A nil ClockFunc falls back to the current UTC time.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Logger is the structured logging surface used by the engines. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes the outcome and latency of engine operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// AlertGauge receives the number of unresolved alerts per engine after each tick.
type AlertGauge interface {
	SetUnresolvedAlerts(engine string, count int)
}

// IDGenerator produces opaque record identifiers.
type IDGenerator func() string

// DefaultInactivityMonths is how long a patient may go without a visit before
// an inactivity alert is raised.
const DefaultInactivityMonths = 12

type serviceOptions struct {
	clock            Clock
	logger           Logger
	metrics          MetricsRecorder
	newID            IDGenerator
	rand             *rand.Rand
	inactivityMonths int
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:            ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:           noopLogger{},
		metrics:          noopMetrics{},
		newID:            uuid.NewString,
		rand:             rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		inactivityMonths: DefaultInactivityMonths,
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder. A recorder that also
// implements AlertGauge receives unresolved alert counts after each tick.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen IDGenerator) ServiceOption {
	return func(o *serviceOptions) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithRand sets the random source used for prescription numbers.
func WithRand(r *rand.Rand) ServiceOption {
	return func(o *serviceOptions) {
		if r != nil {
			o.rand = r
		}
	}
}

// WithInactivityMonths sets the patient inactivity threshold.
func WithInactivityMonths(months int) ServiceOption {
	return func(o *serviceOptions) {
		if months > 0 {
			o.inactivityMonths = months
		}
	}
}
