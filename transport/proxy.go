package transport

import (
	"context"
	stderrors "errors"

	"github.com/vinayprograms/wakabeat/heartbeat"
)

// ErrNoProxy is the skip reason when no proxy URL is configured.
var ErrNoProxy = stderrors.New("no proxy configured")

// Proxy posts heartbeats to a user-configured URL. The URL is read on every
// attempt so a relay started later is picked up.
type Proxy struct {
	cfg Config
	url func() string
}

// NewProxy creates a proxy transport reading its target from url.
func NewProxy(url func() string, cfg Config) *Proxy {
	if url == nil {
		url = func() string { return "" }
	}
	return &Proxy{cfg: cfg.withDefaults(), url: url}
}

// Name implements Transport.
func (p *Proxy) Name() string { return NameProxy }

// URL returns the current target.
func (p *Proxy) URL() string { return p.url() }

// Ready implements Transport.
func (p *Proxy) Ready() error {
	if p.url() == "" {
		return ErrNoProxy
	}
	return nil
}

// Send implements Transport.
func (p *Proxy) Send(ctx context.Context, req *heartbeat.Request) heartbeat.Outcome {
	url := p.url()
	if url == "" {
		return heartbeat.Failed(NameProxy, ErrNoProxy)
	}
	return post(ctx, p.cfg, NameProxy, url, req)
}
