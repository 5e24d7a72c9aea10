package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/vinayprograms/wakabeat/credentials"
	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/notify"
	"github.com/vinayprograms/wakabeat/settings"
	"github.com/vinayprograms/wakabeat/telemetry"
	"github.com/vinayprograms/wakabeat/transport"
)

// Source supplies the settings a dispatch reads. *settings.Store satisfies it.
type Source interface {
	Snapshot() settings.Settings
}

// Config configures a Dispatcher.
type Config struct {
	// Settings is read once per dispatch. Required.
	Settings Source

	// Transports are tried in order. Required.
	Transports []transport.Transport

	// Notifier receives the missing-key notification.
	Notifier notify.Notifier

	// Logger for chain decisions. Default: discard.
	Logger *logging.Logger

	// Tracer for attempt spans. Default: the global tracer.
	Tracer *telemetry.Tracer
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Settings == nil {
		return errors.New(errors.ErrCodeInvalidInput, "dispatch: settings source is required")
	}
	if len(c.Transports) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "dispatch: at least one transport is required")
	}
	return nil
}

// Result is the outcome of one dispatch.
type Result struct {
	// Outcome is the winning attempt, or the last failure.
	Outcome heartbeat.Outcome

	// Request is the request that was attempted; nil if none was built.
	Request *heartbeat.Request

	// Attempts holds every transport that was actually tried, in order.
	Attempts []heartbeat.Outcome
}

// OK reports whether the heartbeat counts as sent.
func (r Result) OK() bool {
	return r.Outcome.OK()
}

// Failed reports whether transports were tried and all of them failed.
func (r Result) Failed() bool {
	return r.Request != nil && !r.Outcome.OK()
}

// Dispatcher runs the transport chain.
type Dispatcher struct {
	settings   Source
	transports []transport.Transport
	notifier   notify.Notifier
	logger     *logging.Logger
	tracer     *telemetry.Tracer
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.GetTracer()
	}
	return &Dispatcher{
		settings:   cfg.Settings,
		transports: append([]transport.Transport(nil), cfg.Transports...),
		notifier:   cfg.Notifier,
		logger:     cfg.Logger.WithComponent("dispatch"),
		tracer:     cfg.Tracer,
	}, nil
}

// Dispatch delivers ev.
func (d *Dispatcher) Dispatch(ctx context.Context, ev heartbeat.Event) Result {
	s := d.settings.Snapshot()
	s.APIKey = strings.TrimSpace(s.APIKey)
	logger := d.logger.WithTraceID(ev.ID)

	if err := credentials.ValidateKey(s.APIKey); err != nil {
		logger.Warn("heartbeat_not_configured", map[string]interface{}{"error": err.Error()})
		d.notifier.Notify(notify.Notification{Title: notify.Title, Body: notify.MsgNoAPIKey, Error: true})
		return Result{Outcome: heartbeat.NotConfigured(err)}
	}

	req, err := heartbeat.NewRequest(ev, heartbeat.Params{
		URL:         s.Endpoint(),
		APIKey:      s.APIKey,
		Project:     s.Project(),
		MachineName: s.MachineName,
	})
	if err != nil {
		err = errors.WrapWithCode(err, errors.ErrCodeInvalidInput, "building heartbeat request")
		logger.Error("heartbeat_build_failed", map[string]interface{}{"error": err.Error()})
		return Result{Outcome: heartbeat.Failed("", err)}
	}

	ctx, span := d.tracer.StartDispatchSpan(ctx, ev)
	result := Result{Request: req}
	logger.Debug("heartbeat_dispatch", map[string]interface{}{"project": s.Project()})

	for _, t := range d.transports {
		if err := ctx.Err(); err != nil {
			result.Outcome = heartbeat.Failed(t.Name(), errors.Wrap(err, "dispatch interrupted"))
			break
		}
		if err := t.Ready(); err != nil {
			logger.TransportSkipped(t.Name(), err.Error())
			continue
		}

		out := d.attempt(ctx, logger, t, req)
		result.Attempts = append(result.Attempts, out)
		result.Outcome = out
		if out.OK() {
			break
		}
	}

	if len(result.Attempts) == 0 && result.Outcome.Status == 0 {
		result.Outcome = heartbeat.Failed("", errors.New(errors.ErrCodeTransport, "no transport available"))
	}
	if !result.Outcome.OK() {
		logger.ChainExhausted(len(result.Attempts))
	}
	d.tracer.EndDispatchSpan(span, result.Outcome, len(result.Attempts))
	return result
}

func (d *Dispatcher) attempt(ctx context.Context, logger *logging.Logger, t transport.Transport, req *heartbeat.Request) heartbeat.Outcome {
	target := req.URL
	if p, ok := t.(interface{ URL() string }); ok {
		target = p.URL()
	}

	logger.TransportAttempt(t.Name(), target)
	ctx, span := d.tracer.StartTransportSpan(ctx, t.Name(), target)
	start := time.Now()

	out := t.Send(ctx, req)

	d.tracer.EndTransportSpan(span, out)
	logger.TransportResult(t.Name(), out.Status.String(), time.Since(start), out.Err)
	if out.Status == heartbeat.StatusRejected {
		logger.Rejection(out.Err)
	}
	return out
}
