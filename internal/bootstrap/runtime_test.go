package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/ops"
)

// syncBuffer lets the ops server goroutine log while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type fakeResource struct {
	name   string
	closed *[]string
	err    error
}

func (f fakeResource) Ping(context.Context) error { return nil }

func (f fakeResource) Close() error {
	*f.closed = append(*f.closed, f.name)
	return f.err
}

func newTestRuntime(buf *syncBuffer) *Runtime {
	return &Runtime{
		Kind:   "ledger-test",
		Config: &config.Config{App: config.AppConfig{Env: "dev", OpsPort: "0"}},
		Logger: logger.New(logger.Options{ServiceName: "ledger-test", Output: buf}),
		checks: map[string]ops.Pinger{},
	}
}

func TestCloseReleasesInReverseOrder(t *testing.T) {
	var buf syncBuffer
	rt := newTestRuntime(&buf)
	var closed []string
	rt.track("database", fakeResource{name: "database", closed: &closed}, fakeResource{name: "database", closed: &closed})
	rt.track("redis", fakeResource{name: "redis", closed: &closed}, fakeResource{name: "redis", closed: &closed, err: errors.New("already closed")})

	rt.Close()
	assert.Equal(t, []string{"redis", "database"}, closed)
	assert.Contains(t, buf.String(), "close redis: already closed")
	assert.Len(t, rt.checks, 2)

	rt.Close()
	assert.Len(t, closed, 2, "second close is a no-op")
}

func TestRunTreatsCancellationAsCleanExit(t *testing.T) {
	var buf syncBuffer
	rt := newTestRuntime(&buf)

	err := rt.Run(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ledger-test shutting down")
}

func TestRunReturnsLoopFailure(t *testing.T) {
	var buf syncBuffer
	rt := newTestRuntime(&buf)
	boom := errors.New("subscription deleted")

	err := rt.Run(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, ctx.Done())
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
