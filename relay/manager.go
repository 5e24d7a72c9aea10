package relay

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/notify"
)

// ErrAlreadyRunning is returned when a relay is already listening.
var ErrAlreadyRunning = stderrors.New("relay already running")

// Manager owns the runtime's single relay.
type Manager struct {
	cfg      Config
	notifier notify.Notifier
	onStart  func(url string)
	logger   *logging.Logger

	mu     sync.Mutex
	server *Server
}

// NewManager creates a manager. onStart receives the relay URL once it is
// listening; the runtime uses it to set the proxy URL.
func NewManager(cfg Config, notifier notify.Notifier, onStart func(url string)) *Manager {
	cfg = cfg.withDefaults()
	if notifier == nil {
		notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	if onStart == nil {
		onStart = func(string) {}
	}
	return &Manager{
		cfg:      cfg,
		notifier: notifier,
		onStart:  onStart,
		logger:   cfg.Logger.WithComponent("relay"),
	}
}

// Start launches a relay on 127.0.0.1:port. If one is running it is returned
// with ErrAlreadyRunning and nothing changes. A bind failure is reported as
// a notification and returned as a RELAY error.
func (m *Manager) Start(ctx context.Context, port int) (*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return m.server, ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "starting relay")
	}

	srv := NewServer(m.cfg)
	if err := srv.Listen(port); err != nil {
		m.logger.Warn("relay_start_failed", map[string]interface{}{"error": err.Error()})
		m.notifier.Notify(notify.Notification{Title: notify.Title, Body: notify.MsgRelayFailed, Error: true})
		return nil, err
	}
	m.server = srv

	url := srv.URL()
	m.onStart(url)
	m.notifier.Notify(notify.Newf(notify.MsgRelayListening, url))
	return srv, nil
}

// Stop shuts the relay down. Stopping when nothing runs is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	m.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Relay("stopping relay", errors.WithCause(err))
	}
	return nil
}

// Running reports whether a relay is listening.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server != nil
}

// Server returns the running relay, or nil.
func (m *Manager) Server() *Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server
}
