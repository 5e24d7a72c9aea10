package plugin

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/wakabeat/dispatch"
	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/fallback"
	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/notify"
	"github.com/vinayprograms/wakabeat/ratelimit"
	"github.com/vinayprograms/wakabeat/relay"
	"github.com/vinayprograms/wakabeat/settings"
	"github.com/vinayprograms/wakabeat/shutdown"
	"github.com/vinayprograms/wakabeat/telemetry"
	"github.com/vinayprograms/wakabeat/transport"
)

// Lifecycle errors.
var (
	ErrAlreadyStarted = stderrors.New("runtime already started")
	ErrNotStarted     = stderrors.New("runtime not started")
)

// Shutdown phases, run in ascending order by Stop.
const (
	PhaseListener     = 10
	PhaseInteractions = 20
	PhaseRelay        = 30
	PhaseBeacon       = 40
	PhaseState        = 50
)

// Host delivers user interactions to the runtime.
type Host interface {
	// RegisterInteractionListener arranges for fn to be called on every
	// qualifying interaction and returns a function that detaches it.
	RegisterInteractionListener(fn func()) (unregister func())
}

// Options configures a Runtime.
type Options struct {
	// Settings holds the live configuration. Required.
	Settings *settings.Store

	// Notifier shows user notifications. Default: log-backed.
	Notifier notify.Notifier

	// Presenter shows the fallback commands. Default: a presenter that only logs.
	Presenter notify.Presenter

	// Logger is the root logger; its level follows the Debug setting.
	Logger *logging.Logger

	// Tracer records dispatch spans. Default: the global tracer.
	Tracer *telemetry.Tracer

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time

	// Cooldown between heartbeats. Default: ratelimit.DefaultCooldown.
	Cooldown time.Duration

	// HTTPClient is shared by the transports and the relay.
	HTTPClient *http.Client
}

// Runtime is the single state object of a running plugin.
type Runtime struct {
	store     *settings.Store
	notifier  notify.Notifier
	presenter notify.Presenter
	logger    *logging.Logger
	clock     func() time.Time

	gate       *ratelimit.Gate
	beacon     *transport.Beacon
	dispatcher *dispatch.Dispatcher
	relay      *relay.Manager

	mu         sync.Mutex
	started    atomic.Bool
	cancel     context.CancelFunc
	unregister func()
	inflight   sync.WaitGroup

	relayMu  sync.Mutex
	relayURL string
}

// New builds a runtime from opts. Nothing runs until Start.
func New(opts Options) (*Runtime, error) {
	if opts.Settings == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "plugin: settings store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.New()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger, false)
	}
	if opts.Presenter == nil {
		opts.Presenter = logPresenter{opts.Logger.WithComponent("fallback")}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	store := opts.Settings
	s := store.Snapshot()
	applyLevel(opts.Logger, s)
	store.Watch(func(s settings.Settings) { applyLevel(opts.Logger, s) })

	tcfg := transport.Config{Timeout: s.AttemptTimeout(), Client: opts.HTTPClient}
	beacon := transport.NewBeacon(tcfg, opts.Logger)
	proxy := transport.NewProxy(func() string {
		return strings.TrimSpace(store.Snapshot().ProxyURL)
	}, tcfg)

	d, err := dispatch.New(dispatch.Config{
		Settings:   store,
		Transports: []transport.Transport{proxy, beacon, transport.NewDirect(tcfg)},
		Notifier:   opts.Notifier,
		Logger:     opts.Logger,
		Tracer:     opts.Tracer,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		store:      store,
		notifier:   opts.Notifier,
		presenter:  opts.Presenter,
		logger:     opts.Logger.WithComponent("plugin"),
		clock:      opts.Clock,
		gate:       ratelimit.NewGateWithClock(opts.Cooldown, opts.Clock),
		beacon:     beacon,
		dispatcher: d,
	}
	rt.relay = relay.NewManager(relay.Config{
		UpstreamURL: s.Endpoint(),
		Timeout:     s.AttemptTimeout(),
		Client:      opts.HTTPClient,
		Logger:      opts.Logger,
	}, opts.Notifier, rt.useRelay)
	return rt, nil
}

// applyLevel makes the logger follow the Debug and LogLevel settings.
func applyLevel(l *logging.Logger, s settings.Settings) {
	if s.Debug {
		l.SetLevel(logging.LevelDebug)
		return
	}
	l.SetLevel(logging.ParseLevel(s.LogLevel))
}

func (r *Runtime) useRelay(url string) {
	r.relayMu.Lock()
	r.relayURL = url
	r.relayMu.Unlock()
	r.store.SetProxyURL(url)
}

// Start attaches the runtime to host and starts background services.
func (r *Runtime) Start(ctx context.Context, host Host) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.Load() {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel

	s := r.store.Snapshot()
	r.logger.Info("plugin_starting", map[string]interface{}{
		"machine": s.MachineName,
		"project": s.Project(),
		"relay":   s.RelayAutoStart,
		"beacon":  s.Beacon,
	})

	if s.Beacon {
		if err := r.beacon.Start(runCtx); err != nil && err != transport.ErrAlreadyStarted {
			r.logger.Warn("beacon_start_failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if s.RelayAutoStart {
		// Failures are already reported as a notification.
		r.relay.Start(runCtx, s.Port())
	}

	if host != nil {
		r.unregister = host.RegisterInteractionListener(func() {
			r.inflight.Add(1)
			go func() {
				defer r.inflight.Done()
				r.HandleInteraction(runCtx)
			}()
		})
	}

	r.started.Store(true)
	return nil
}

// HandleInteraction runs one interaction through the gate and, if allowed,
// the dispatcher.
func (r *Runtime) HandleInteraction(ctx context.Context) heartbeat.Outcome {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("interaction_panic", map[string]interface{}{"error": errors.RecoverPanic(rec).Error()})
		}
	}()

	if !r.gate.Allow() {
		return heartbeat.Throttled()
	}
	at, _ := r.gate.Last()

	res := r.dispatcher.Dispatch(ctx, heartbeat.NewEvent(at))
	if res.Failed() {
		r.notifyFailure(res.Request)
	}
	return res.Outcome
}

func (r *Runtime) notifyFailure(req *heartbeat.Request) {
	r.notifier.Notify(notify.Notification{
		Title: notify.Title,
		Body:  notify.MsgHeartbeatFailed,
		Error: true,
		Action: func() {
			if err := r.presenter.Present(notify.FallbackTitle, fallback.ForRequest(req)); err != nil {
				r.logger.Warn("fallback_present_failed", map[string]interface{}{"error": err.Error()})
			}
		},
	})
}

// Stop detaches from the host and tears everything down.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started.Load() {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.started.Store(false)
	unregister, cancel := r.unregister, r.cancel
	r.unregister, r.cancel = nil, nil
	r.mu.Unlock()

	coord := shutdown.NewCoordinator(shutdown.Config{
		ContinueOnError: true,
		OnProgress: func(hr shutdown.HandlerResult) {
			fields := map[string]interface{}{"step": hr.Name, "duration": hr.Duration.String()}
			if hr.Err != nil {
				fields["error"] = hr.Err.Error()
				r.logger.Warn("shutdown_step_failed", fields)
				return
			}
			r.logger.Debug("shutdown_step", fields)
		},
	})

	coord.RegisterFuncWithPhase("listener", func(context.Context) error {
		if unregister != nil {
			unregister()
		}
		return nil
	}, PhaseListener)

	coord.RegisterFuncWithPhase("interactions", func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			r.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		}
	}, PhaseInteractions)

	coord.RegisterFuncWithPhase("relay", func(ctx context.Context) error {
		if err := r.relay.Stop(ctx); err != nil {
			return err
		}
		r.relayMu.Lock()
		url := r.relayURL
		r.relayURL = ""
		r.relayMu.Unlock()
		if url != "" {
			r.store.Update(func(s *settings.Settings) {
				if s.ProxyURL == url {
					s.ProxyURL = ""
				}
			})
		}
		return nil
	}, PhaseRelay)

	coord.RegisterFuncWithPhase("beacon", func(context.Context) error {
		if err := r.beacon.Stop(); err != nil && err != transport.ErrNotStarted {
			return err
		}
		return nil
	}, PhaseBeacon)

	coord.RegisterFuncWithPhase("state", func(context.Context) error {
		cancel()
		r.gate.Reset()
		return nil
	}, PhaseState)

	_, err := coord.Shutdown(ctx)
	r.logger.Info("plugin_stopped")
	return err
}

// Running reports whether the runtime is started.
func (r *Runtime) Running() bool {
	return r.started.Load()
}

// Settings returns the runtime's settings store.
func (r *Runtime) Settings() *settings.Store {
	return r.store
}

// Relay returns the runtime's relay manager.
func (r *Runtime) Relay() *relay.Manager {
	return r.relay
}

// logPresenter writes the fallback text to the log for hosts without a UI.
type logPresenter struct {
	logger *logging.Logger
}

func (p logPresenter) Present(title, text string) error {
	p.logger.Warn(title + "\n" + text)
	return nil
}
