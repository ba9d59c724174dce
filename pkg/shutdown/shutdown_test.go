package shutdown

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestManager_ShutsDownInReverseOrder(t *testing.T) {
	m := NewManager(zap.NewNop(), time.Second)
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	m.RegisterCloser("database", closerFunc(func() error { record("database"); return nil }))
	m.RegisterNoErr("publisher", func() { record("publisher") })
	m.Register("http", func(ctx context.Context) error { record("http"); return errors.New("listener busy") })

	errs := m.Shutdown()

	assert.Equal(t, []string{"http", "publisher", "database"}, order)
	require.Len(t, errs, 1)
	assert.EqualError(t, errs["http"], "listener busy")
}

func TestInFlightTracker_WaitsForRequests(t *testing.T) {
	tracker := NewInFlightTracker("http", zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})
	handler := tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))

	go handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tracker.Shutdown(ctx), context.DeadlineExceeded)
	assert.True(t, tracker.IsShuttingDown())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	close(release)
	assert.NoError(t, tracker.Shutdown(context.Background()))
}
