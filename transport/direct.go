package transport

import (
	"context"

	"github.com/vinayprograms/wakabeat/heartbeat"
)

// Direct posts heartbeats to the request's own URL, the WakaTime API.
type Direct struct {
	cfg Config
}

// NewDirect creates a direct transport.
func NewDirect(cfg Config) *Direct {
	return &Direct{cfg: cfg.withDefaults()}
}

// Name implements Transport.
func (d *Direct) Name() string { return NameDirect }

// Ready implements Transport. Direct is always tried.
func (d *Direct) Ready() error { return nil }

// Send implements Transport.
func (d *Direct) Send(ctx context.Context, req *heartbeat.Request) heartbeat.Outcome {
	return post(ctx, d.cfg, NameDirect, req.URL, req)
}
