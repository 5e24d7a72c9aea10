package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/heartbeat"
)

// Transport names.
const (
	NameProxy  = "proxy"
	NameBeacon = "beacon"
	NameDirect = "direct"
)

// maxBodyBytes caps how much of a response body is kept for logs.
const maxBodyBytes = 4096

// Transport delivers one heartbeat request.
type Transport interface {
	// Name identifies the transport in logs and outcomes.
	Name() string

	// Ready returns nil if the transport can be tried now, otherwise the
	// reason it is skipped.
	Ready() error

	// Send delivers req. It never retries.
	Send(ctx context.Context, req *heartbeat.Request) heartbeat.Outcome
}

// Config holds common transport configuration.
type Config struct {
	// Timeout bounds each attempt.
	// Default: 10s
	Timeout time.Duration

	// Client performs HTTP requests. Default: a client without its own timeout;
	// the per-attempt context deadline applies.
	Client *http.Client

	// QueueSize is the beacon queue capacity.
	// Default: 16
	QueueSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		Client:    &http.Client{},
		QueueSize: 16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Client == nil {
		c.Client = d.Client
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	return c
}

// post sends req's body and headers to url and classifies the answer.
func post(ctx context.Context, cfg Config, name, url string, req *heartbeat.Request) heartbeat.Outcome {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(req.Body))
	if err != nil {
		return heartbeat.Failed(name, errors.WrapWithCode(err, errors.ErrCodeInvalidInput,
			"building "+name+" request", errors.WithTransport(name)))
	}
	for _, h := range req.Headers {
		// net/http derives Content-Length from the request itself.
		if http.CanonicalHeaderKey(h.Name) == heartbeat.HeaderContentLength {
			continue
		}
		hreq.Header.Set(h.Name, h.Value)
	}
	hreq.ContentLength = req.ContentLength()

	resp, err := cfg.Client.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return heartbeat.Failed(name, errors.Wrap(err, name+" request failed", errors.WithTransport(name)))
		}
		return heartbeat.Failed(name, errors.Transport(name, err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(data)
		return heartbeat.Rejected(name, resp.StatusCode, body, errors.Rejected(name, resp.StatusCode, body))
	}
	return heartbeat.Delivered(name, resp.StatusCode)
}
