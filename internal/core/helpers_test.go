package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"
)

// mapStore is a minimal in-process KVStore for engine tests.
type mapStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	failSet map[string]error
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string][]byte), failSet: make(map[string]error)}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return append([]byte(nil), v...), ok, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSet[key]; err != nil {
		return err
	}
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *mapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

func (s *mapStore) Clear(context.Context) error {
	s.mu.Lock()
	s.values = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

func (s *mapStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var errStoreDown = errors.New("store down")

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func seqIDs() IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%04d", n)
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu     sync.Mutex
	calls  []metricsCall
	gauges map[string]int
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) SetUnresolvedAlerts(engine string, count int) {
	c.mu.Lock()
	if c.gauges == nil {
		c.gauges = make(map[string]int)
	}
	c.gauges[engine] = count
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

var testEpoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc     *Service
	store   *mapStore
	clock   *testClock
	logger  *captureLogger
	metrics *captureMetricsRecorder
}

func newTestEnv(t *testing.T, opts ...ServiceOption) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, newMapStore(), opts...)
}

func newTestEnvWithStore(t *testing.T, store *mapStore, opts ...ServiceOption) *testEnv {
	t.Helper()
	te := &testEnv{
		store:   store,
		clock:   newTestClock(testEpoch),
		logger:  &captureLogger{},
		metrics: &captureMetricsRecorder{},
	}
	base := []ServiceOption{
		WithClock(te.clock),
		WithLogger(te.logger),
		WithMetricsRecorder(te.metrics),
		WithIDGenerator(seqIDs()),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	}
	svc, err := NewService(context.Background(), store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	te.svc = svc
	return te
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
