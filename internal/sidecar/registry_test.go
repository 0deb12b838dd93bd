package sidecar

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWaker struct {
	calls atomic.Int32
	err   error
	macs  chan string
}

func (f *fakeWaker) Wake(mac string) error {
	f.calls.Add(1)
	if f.macs != nil {
		f.macs <- mac
	}
	return f.err
}

func TestParseServers(t *testing.T) {
	in := `# id,mac,timeout
nas, 00:11:22:33:44:55, 0
backup,aa:bb:cc:dd:ee:ff,30
`
	servers, err := ParseServers(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, Server{ID: "nas", MAC: "00:11:22:33:44:55", Status: StatusSleep, Timeout: 0}, servers[0])
	assert.Equal(t, "backup", servers[1].ID)
	assert.Equal(t, 30, servers[1].Timeout)
}

func TestParseServersInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing field", "nas,00:11:22:33:44:55\n"},
		{"bad mac", "nas,not-a-mac,10\n"},
		{"bad timeout", "nas,00:11:22:33:44:55,soon\n"},
		{"negative timeout", "nas,00:11:22:33:44:55,-1\n"},
		{"bad id", "nas/1,00:11:22:33:44:55,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseServers(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}

func TestNewRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry([]Server{{ID: "a"}, {ID: "a"}}, &fakeWaker{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestRegistryStatus(t *testing.T) {
	r, err := NewRegistry([]Server{{ID: "nas", MAC: "00:11:22:33:44:55"}}, &fakeWaker{})
	require.NoError(t, err)

	s, err := r.Get("nas")
	require.NoError(t, err)
	assert.Equal(t, StatusSleep, s.Status)

	s, err = r.SetStatus("nas", StatusWake)
	require.NoError(t, err)
	assert.Equal(t, StatusWake, s.Status)

	_, err = r.Get("missing")
	assert.True(t, errors.HasCode(err, errors.ErrServerNotFound))
	_, err = r.SetStatus("missing", StatusSleep)
	assert.True(t, errors.HasCode(err, errors.ErrServerNotFound))
}

func TestRegistryWake(t *testing.T) {
	w := &fakeWaker{}
	r, err := NewRegistry([]Server{{ID: "nas", MAC: "00:11:22:33:44:55"}}, w)
	require.NoError(t, err)

	s, err := r.Wake(context.Background(), "nas")
	require.NoError(t, err)
	assert.Equal(t, StatusWake, s.Status)
	assert.EqualValues(t, 1, w.calls.Load())

	// Already awake: no packet.
	_, err = r.Wake(context.Background(), "nas")
	require.NoError(t, err)
	assert.EqualValues(t, 1, w.calls.Load())
}

func TestRegistryWakeFailure(t *testing.T) {
	w := &fakeWaker{err: stderrors.New("network unreachable")}
	r, err := NewRegistry([]Server{{ID: "nas", MAC: "00:11:22:33:44:55"}}, w)
	require.NoError(t, err)

	_, err = r.Wake(context.Background(), "nas")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrWakeFailed))

	s, err := r.Get("nas")
	require.NoError(t, err)
	assert.Equal(t, StatusError, s.Status)
}

func TestRegistryWakeCollapsesConcurrentCalls(t *testing.T) {
	w := &fakeWaker{macs: make(chan string, 8)}
	r, err := NewRegistry([]Server{{ID: "nas", MAC: "00:11:22:33:44:55", Timeout: 1}}, w)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Wake(context.Background(), "nas")
			assert.NoError(t, err)
			assert.Equal(t, StatusWake, s.Status)
		}()
		if i == 0 {
			select {
			case <-w.macs:
			case <-time.After(time.Second):
				t.Fatal("first wake did not send a packet")
			}
		}
	}
	wg.Wait()

	assert.EqualValues(t, 1, w.calls.Load())
}

func TestRegistryWakeOutlivesCancelledCaller(t *testing.T) {
	const timeout = time.Second

	w := &fakeWaker{macs: make(chan string, 8)}
	r, err := NewRegistry([]Server{{ID: "nas", MAC: "00:11:22:33:44:55", Timeout: 1}}, w)
	require.NoError(t, err)

	start := time.Now()
	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Wake(firstCtx, "nas")
		first <- err
	}()

	select {
	case <-w.macs:
	case <-time.After(time.Second):
		t.Fatal("first wake did not send a packet")
	}

	second := make(chan Server, 1)
	go func() {
		s, err := r.Wake(context.Background(), "nas")
		assert.NoError(t, err)
		second <- s
	}()

	time.Sleep(50 * time.Millisecond)
	cancelFirst()

	select {
	case err := <-first:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	s, err := r.Get("nas")
	require.NoError(t, err)
	assert.Equal(t, StatusSleep, s.Status, "server marked awake before its timeout")

	select {
	case s := <-second:
		assert.Equal(t, StatusWake, s.Status)
		assert.GreaterOrEqual(t, time.Since(start), timeout)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.EqualValues(t, 1, w.calls.Load())
}

func TestRegistryWakeNotFound(t *testing.T) {
	r, err := NewRegistry(nil, &fakeWaker{})
	require.NoError(t, err)

	_, err = r.Wake(context.Background(), "nas")
	assert.True(t, errors.HasCode(err, errors.ErrServerNotFound))
}
