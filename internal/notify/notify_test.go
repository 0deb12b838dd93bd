package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	code  int
	delay time.Duration
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.calls = append(r.calls, req.Method+" "+req.URL.Path)
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	w.WriteHeader(r.code)
	_, _ = w.Write([]byte(`{"id":"nas"}`))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

func TestURL(t *testing.T) {
	n := New("http://sidecar:10000/", "nas_01", 0)
	assert.Equal(t, "http://sidecar:10000/status/sleep/nas_01", n.URL(StatusSleep))
	assert.Equal(t, "http://sidecar:10000/status/wake/nas_01", n.URL(StatusWake))
	assert.Equal(t, DefaultTimeout, n.client.Timeout)
}

func TestPostSuccess(t *testing.T) {
	rec := &recorder{code: http.StatusOK}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	n := New(srv.URL, "nas", time.Second)
	require.NoError(t, n.post(context.Background(), StatusSleep))
	assert.Equal(t, []string{"POST /status/sleep/nas"}, rec.Calls())
}

func TestPostNon2xx(t *testing.T) {
	rec := &recorder{code: http.StatusNotFound}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	err := New(srv.URL, "nas", time.Second).post(context.Background(), StatusWake)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNotification))
	assert.Contains(t, err.Error(), "404")
}

func TestPostTimeout(t *testing.T) {
	rec := &recorder{code: http.StatusOK, delay: 500 * time.Millisecond}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	start := time.Now()
	err := New(srv.URL, "nas", 50*time.Millisecond).post(context.Background(), StatusSleep)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestNotifySwallowsErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	n := New(srv.URL, "nas", 100*time.Millisecond)
	assert.NotPanics(t, func() { n.Notify(context.Background(), StatusSleep) })
}

func TestNotifyIgnoresCancellation(t *testing.T) {
	rec := &recorder{code: http.StatusOK}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(srv.URL, "nas", time.Second).Notify(ctx, StatusWake)
	assert.Equal(t, []string{"POST /status/wake/nas"}, rec.Calls())
}
