package relay

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/settings"
)

// Path is the only route the relay serves.
const Path = "/heartbeat"

// maxBodyBytes caps an incoming heartbeat body.
const maxBodyBytes = 1 << 20

// Config configures a relay server.
type Config struct {
	// UpstreamURL receives forwarded heartbeats.
	// Default: settings.DefaultAPIURL
	UpstreamURL string

	// Timeout bounds each upstream request.
	// Default: settings.DefaultTimeout
	Timeout time.Duration

	// Client performs upstream requests.
	Client *http.Client

	// Logger for request and upstream logs. Default: discard.
	Logger *logging.Logger
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UpstreamURL: settings.DefaultAPIURL,
		Timeout:     settings.DefaultTimeout,
		Client:      &http.Client{},
		Logger:      logging.Discard(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UpstreamURL == "" {
		c.UpstreamURL = d.UpstreamURL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Client == nil {
		c.Client = d.Client
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// forwarded lists the headers copied to the upstream request.
var forwarded = []string{
	heartbeat.HeaderContentType,
	heartbeat.HeaderAuthorization,
	heartbeat.HeaderMachineName,
}

// Server is one listening relay.
type Server struct {
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	done     chan struct{}
}

// NewServer creates a relay server. It does not listen until Listen.
func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent("relay"),
	}
}

// Handler returns the relay's router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(logging.NewSlog(s.logger), &httplog.Options{
		Level:             slog.LevelDebug,
		Schema:            httplog.SchemaECS.Concise(true),
		LogRequestHeaders: []string{},
	}))

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
	r.Post(Path, s.forward)
	r.Post(Path+"/*", s.forward)
	return r
}

// Listen binds 127.0.0.1:port and starts serving. Port 0 picks a free port.
func (s *Server) Listen(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return errors.Relay("binding relay port", errors.WithCause(err),
			errors.WithMetadata("port", strconv.Itoa(port)))
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("relay_serve_failed", map[string]interface{}{"error": err.Error()})
		}
	}(s.srv, s.done)

	s.logger.Info("relay_listening", map[string]interface{}{
		"addr":     ln.Addr().String(),
		"upstream": s.cfg.UpstreamURL,
	})
	return nil
}

// Port returns the bound port, or 0 if not listening.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// URL returns the heartbeat URL clients should post to.
func (s *Server) URL() string {
	return ProxyURL(s.Port())
}

// ProxyURL returns the relay heartbeat URL for port.
func ProxyURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, Path)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.logger.Info("relay_stopped")
	return err
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, "Not found")
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	up, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UpstreamURL, strings.NewReader(string(body)))
	if err != nil {
		s.fail(w, err)
		return
	}
	for _, name := range forwarded {
		if v := r.Header.Get(name); v != "" {
			up.Header.Set(name, v)
		}
	}
	if up.Header.Get(heartbeat.HeaderContentType) == "" {
		up.Header.Set(heartbeat.HeaderContentType, heartbeat.ContentTypeJSON)
	}
	up.ContentLength = int64(len(body))

	resp, err := s.cfg.Client.Do(up)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("relay_upstream_rejected", map[string]interface{}{"status": resp.StatusCode})
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Warn("relay_upstream_failed", map[string]interface{}{"error": err.Error()})
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, err.Error())
}
