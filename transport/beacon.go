package transport

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"

	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/logging"
)

// Beacon errors.
var (
	ErrAlreadyStarted    = stderrors.New("beacon already started")
	ErrNotStarted        = stderrors.New("beacon not started")
	ErrBeaconUnsupported = errors.New(errors.ErrCodeUnsupported, "beacon unsupported")
	ErrQueueFull         = stderrors.New("beacon queue full")
)

// Beacon queues heartbeats for a background sender and reports success as
// soon as a request is queued. Delivery is never confirmed to the caller.
type Beacon struct {
	cfg    Config
	logger *logging.Logger

	queue   chan *heartbeat.Request
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started atomic.Bool
}

// NewBeacon creates a beacon. It must be started before use.
func NewBeacon(cfg Config, logger *logging.Logger) *Beacon {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Beacon{
		cfg:    cfg.withDefaults(),
		logger: logger.WithComponent("beacon"),
	}
}

// Name implements Transport.
func (b *Beacon) Name() string { return NameBeacon }

// Ready implements Transport.
func (b *Beacon) Ready() error {
	if !b.started.Load() {
		return ErrBeaconUnsupported
	}
	return nil
}

// Start launches the background sender.
func (b *Beacon) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started.Load() {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.queue = make(chan *heartbeat.Request, b.cfg.QueueSize)
	b.started.Store(true)

	b.wg.Add(1)
	go b.run(ctx, b.queue)
	return nil
}

// Stop cancels in-flight sends and waits for the sender to exit.
// Queued requests that were not sent yet are dropped.
func (b *Beacon) Stop() error {
	b.mu.Lock()
	if !b.started.Load() {
		b.mu.Unlock()
		return ErrNotStarted
	}
	b.started.Store(false)
	b.cancel()
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Send implements Transport.
func (b *Beacon) Send(_ context.Context, req *heartbeat.Request) heartbeat.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started.Load() {
		return heartbeat.Failed(NameBeacon, ErrBeaconUnsupported)
	}
	select {
	case b.queue <- req:
		return heartbeat.Accepted(NameBeacon)
	default:
		return heartbeat.Failed(NameBeacon, errors.Transport(NameBeacon, ErrQueueFull))
	}
}

func (b *Beacon) run(ctx context.Context, queue <-chan *heartbeat.Request) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			out := post(ctx, b.cfg, NameBeacon, req.URL, req)
			switch out.Status {
			case heartbeat.StatusDelivered:
				b.logger.Debug("beacon_delivered", map[string]interface{}{"status": out.Code})
			case heartbeat.StatusRejected:
				b.logger.Rejection(out.Err)
			default:
				b.logger.Debug("beacon_failed", map[string]interface{}{"error": out.String()})
			}
		}
	}
}
