package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
)

const (
	DefaultTimeout = 2 * time.Second
	maxBodyLog     = 4 << 10
)

type Status string

const (
	StatusSleep Status = "sleep"
	StatusWake  Status = "wake"
)

// Notifier reports sleep/wake transitions of this server to the sidecar.
type Notifier struct {
	endpoint string
	serverID string
	client   *http.Client
}

func New(endpoint, serverID string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Notifier{
		endpoint: strings.TrimRight(endpoint, "/"),
		serverID: serverID,
		client:   &http.Client{Timeout: timeout},
	}
}

// URL returns the endpoint a status is posted to.
func (n *Notifier) URL(status Status) string {
	return n.endpoint + "/status/" + url.PathEscape(string(status)) + "/" + url.PathEscape(n.serverID)
}

// Notify posts status and never fails: errors are logged and dropped. It is
// not bound to ctx cancellation so a wake report still goes out during
// shutdown, but it never takes longer than the client timeout.
func (n *Notifier) Notify(ctx context.Context, status Status) {
	if err := n.post(context.WithoutCancel(ctx), status); err != nil {
		logger.Warn().Err(err).Str("status", string(status)).Str("server_id", n.serverID).Msg("Status notification failed")
	}
}

func (n *Notifier) post(ctx context.Context, status Status) error {
	errFactory := errors.New()
	target := n.URL(status)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		return errFactory.Wrap(errors.ErrNotification, err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errFactory.Wrap(errors.ErrNotification, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errFactory.WithData(errors.ErrNotification, struct {
			URL    string
			Status string
			Body   string
		}{target, resp.Status, strings.TrimSpace(string(body))})
	}

	logger.Debug().
		Str("url", target).
		Int("status_code", resp.StatusCode).
		Str("body", string(body)).
		Msg("Status notification sent")

	return nil
}
