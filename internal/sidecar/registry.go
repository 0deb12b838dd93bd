package sidecar

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/wait"
	"golang.org/x/sync/singleflight"
)

type Status string

const (
	StatusSleep Status = "sleep"
	StatusWake  Status = "wake"
	StatusError Status = "error"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Server is the JSON view of one registered host.
type Server struct {
	ID      string `json:"id"`
	MAC     string `json:"mac"`
	Status  Status `json:"status"`
	Timeout int    `json:"timeout"`
}

// Waker sends the wake-up signal for a MAC address.
type Waker interface {
	Wake(mac string) error
}

// Registry tracks the last reported status of each server. Servers start as sleeping.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*Server
	waker   Waker
	wakes   singleflight.Group
}

func NewRegistry(servers []Server, waker Waker) (*Registry, error) {
	r := &Registry{
		servers: make(map[string]*Server, len(servers)),
		waker:   waker,
	}

	for _, s := range servers {
		if _, dup := r.servers[s.ID]; dup {
			return nil, errors.New().WithData(errors.ErrInvalidConfig, "duplicate server id "+s.ID)
		}
		s := s
		if s.Status == "" {
			s.Status = StatusSleep
		}
		r.servers[s.ID] = &s
	}

	return r, nil
}

// LoadFile reads a CSV registry of "id,mac,timeout" lines.
func LoadFile(path string) ([]Server, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrReadConfig, err).WithData(path)
	}
	defer f.Close()

	return ParseServers(f)
}

// ParseServers parses "id,mac,timeout" records; timeout is in seconds.
func ParseServers(r io.Reader) ([]Server, error) {
	errFactory := errors.New()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	servers := make([]Server, 0, len(records))
	for i, rec := range records {
		line := i + 1
		if len(rec) != 3 {
			return nil, errFactory.WithData(errors.ErrInvalidConfig,
				fmt.Sprintf("line %d: expected id,mac,timeout, got %d fields", line, len(rec)))
		}

		id, mac := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if !idPattern.MatchString(id) {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("line %d: invalid id %q", line, id))
		}
		if _, err := net.ParseMAC(mac); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err).WithData(fmt.Sprintf("line %d", line))
		}
		timeout, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil || timeout < 0 {
			return nil, errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("line %d: invalid timeout %q", line, rec[2]))
		}

		servers = append(servers, Server{ID: id, MAC: mac, Timeout: timeout, Status: StatusSleep})
	}

	return servers, nil
}

// Get returns a snapshot of the server with id.
func (r *Registry) Get(id string) (Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.servers[id]
	if !ok {
		return Server{}, errors.New().New(errors.ErrServerNotFound).WithData(id)
	}

	return *s, nil
}

// SetStatus records a status reported by the server itself.
func (r *Registry) SetStatus(id string, status Status) (Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.servers[id]
	if !ok {
		return Server{}, errors.New().New(errors.ErrServerNotFound).WithData(id)
	}
	s.Status = status

	logger.Info().Str("id", id).Str("status", string(status)).Msg("Server status updated")

	return *s, nil
}

// Wake sends a magic packet to a sleeping server and waits its timeout for it
// to come up. Concurrent wakes of the same server share one attempt.
func (r *Registry) Wake(ctx context.Context, id string) (Server, error) {
	s, err := r.Get(id)
	if err != nil {
		return Server{}, err
	}

	if s.Status != StatusSleep {
		logger.Debug().Str("id", id).Str("status", string(s.Status)).Msg("Server already awake")
		return s, nil
	}

	// The wait is shared by every caller, so no single request may cut it short.
	shared := context.WithoutCancel(ctx)
	results := r.wakes.DoChan(id, func() (interface{}, error) {
		logger.Info().Str("id", id).Str("mac", s.MAC).Msg("Waking server")

		if err := r.waker.Wake(s.MAC); err != nil {
			_, _ = r.SetStatus(id, StatusError)
			return nil, errors.New().Wrap(errors.ErrWakeFailed, err).WithData(id)
		}

		wait.For(shared, time.Duration(s.Timeout)*time.Second)

		return r.SetStatus(id, StatusWake)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return Server{}, res.Err
		}
	case <-ctx.Done():
		logger.Debug().Str("id", id).Msg("Wake request abandoned, wake continues")
		return Server{}, errors.New().Wrap(errors.ErrInternal, ctx.Err()).WithData(id)
	}

	return r.Get(id)
}
