package monitor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/action"
	"codeberg.org/znoxx/sleepynas/internal/monitor"
	"codeberg.org/znoxx/sleepynas/internal/notify"
	"codeberg.org/znoxx/sleepynas/internal/probe"
	"codeberg.org/znoxx/sleepynas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stopAfter lets n real samples through and cancels the run before the next one.
type stopAfter struct {
	next   monitor.Sampler
	n      int
	cancel context.CancelFunc
	calls  int
}

func (s *stopAfter) Sample(ctx context.Context) (int64, error) {
	s.calls++
	if s.calls > s.n {
		s.cancel()
	}
	return s.next.Sample(ctx)
}

func realSampler(t *testing.T, rx, tx int) monitor.Sampler {
	t.Helper()

	bin := testutil.SarStub(t, t.TempDir(), "eth0", rx, tx)

	return probe.New(probe.Config{Binary: bin, Window: time.Second, Count: 1, Interface: "eth0"})
}

func TestEndToEndActionOncePerIteration(t *testing.T) {
	const iterations = 3

	counter := filepath.Join(t.TempDir(), "count")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sampler := &stopAfter{next: realSampler(t, 30, 20), n: iterations, cancel: cancel}
	act := action.New("printf x >> "+counter, 0)
	m := monitor.New(monitor.Config{Threshold: 100, Interval: 0}, sampler, act)

	stats, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, iterations, stats.Actions)
	assert.Equal(t, iterations+1, stats.Cycles)

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "xxx", string(data))
}

func TestEndToEndAboveThresholdNeverActs(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "acted")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sampler := &stopAfter{next: realSampler(t, 500, 500), n: 2, cancel: cancel}
	m := monitor.New(monitor.Config{Threshold: 100}, sampler, action.New("touch "+marker, 0))

	stats, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Actions)
	_, err = os.Stat(marker)
	assert.True(t, os.IsNotExist(err))
}

func TestEndToEndSidecarNotifications(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusInternalServerError} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var (
				mu    sync.Mutex
				paths []string
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				paths = append(paths, r.Method+" "+r.URL.Path)
				mu.Unlock()
				w.WriteHeader(code)
			}))
			defer srv.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sampler := &stopAfter{next: realSampler(t, 1, 1), n: 2, cancel: cancel}
			m := monitor.New(monitor.Config{Threshold: 100}, sampler, action.New("true", 0),
				monitor.WithNotifier(notify.New(srv.URL, "nas01", time.Second)),
			)

			stats, err := m.Run(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, stats.Actions)

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []string{
				"POST /status/sleep/nas01",
				"POST /status/wake/nas01",
				"POST /status/sleep/nas01",
				"POST /status/wake/nas01",
			}, paths)
		})
	}
}
