package plugin

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vinayprograms/wakabeat/fallback"
	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/notify"
	"github.com/vinayprograms/wakabeat/settings"
)

// fakeHost hands the registered listener back to the test.
type fakeHost struct {
	mu       sync.Mutex
	listener func()
}

func (h *fakeHost) RegisterInteractionListener(fn func()) func() {
	h.mu.Lock()
	h.listener = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		h.listener = nil
		h.mu.Unlock()
	}
}

func (h *fakeHost) Fire() bool {
	h.mu.Lock()
	fn := h.listener
	h.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func closedURL(t *testing.T) string {
	return "http://127.0.0.1:" + strconv.Itoa(freePort(t)) + "/heartbeat"
}

func newStore(apiURL string) *settings.Store {
	s := settings.Defaults()
	s.APIKey = "waka_abc"
	s.APIURL = apiURL
	s.Beacon = false
	s.RelayAutoStart = false
	return settings.NewStore(s)
}

func newRuntime(t *testing.T, store *settings.Store, rec *notify.Recorder, clock *fakeClock) *Runtime {
	t.Helper()
	rt, err := New(Options{
		Settings:  store,
		Notifier:  rec,
		Presenter: rec,
		Logger:    logging.Discard(),
		Clock:     clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt
}

func TestNew_RequiresSettings(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without settings")
	}
}

func TestHandleInteraction_RateGate(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rec := &notify.Recorder{}
	rt := newRuntime(t, newStore(srv.URL), rec, clock)
	ctx := context.Background()

	if out := rt.HandleInteraction(ctx); out.Status != heartbeat.StatusDelivered {
		t.Fatalf("first interaction = %v", out)
	}

	clock.Advance(119 * time.Second)
	if out := rt.HandleInteraction(ctx); out.Status != heartbeat.StatusThrottled {
		t.Errorf("within cooldown = %v, want throttled", out)
	}

	clock.Advance(time.Second)
	if out := rt.HandleInteraction(ctx); out.Status != heartbeat.StatusDelivered {
		t.Errorf("after cooldown = %v", out)
	}

	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	if len(rec.Notifications()) != 0 {
		t.Errorf("unexpected notifications: %+v", rec.Notifications())
	}
}

func TestHandleInteraction_TotalFailure(t *testing.T) {
	store := newStore(closedURL(t))
	store.SetProxyURL(closedURL(t))

	rec := &notify.Recorder{AutoAct: true}
	rt := newRuntime(t, store, rec, &fakeClock{now: time.Unix(1700000000, 0)})

	out := rt.HandleInteraction(context.Background())
	if out.OK() {
		t.Fatalf("expected failure, got %v", out)
	}

	notes := rec.Notifications()
	if len(notes) != 1 || notes[0].Body != notify.MsgHeartbeatFailed || !notes[0].Error {
		t.Fatalf("notifications = %+v", notes)
	}
	presented := rec.Presented()
	if len(presented) != 1 {
		t.Fatalf("fallback presented %d times, want 1", len(presented))
	}
	for _, label := range []string{fallback.LabelPOSIX, fallback.LabelCmd, fallback.LabelPowerShell} {
		if !strings.Contains(presented[0], label) {
			t.Errorf("fallback missing %q", label)
		}
	}
	if !strings.Contains(presented[0], "Basic waka_abc") {
		t.Error("fallback missing authorization")
	}
}

func TestHandleInteraction_NotConfigured(t *testing.T) {
	store := newStore(closedURL(t))
	store.Update(func(s *settings.Settings) { s.APIKey = "CHANGEME" })

	rec := &notify.Recorder{AutoAct: true}
	rt := newRuntime(t, store, rec, &fakeClock{now: time.Unix(1700000000, 0)})

	out := rt.HandleInteraction(context.Background())
	if out.Status != heartbeat.StatusNotConfigured {
		t.Fatalf("outcome = %v", out)
	}
	notes := rec.Notifications()
	if len(notes) != 1 || notes[0].Body != notify.MsgNoAPIKey {
		t.Errorf("notifications = %+v", notes)
	}
	if len(rec.Presented()) != 0 {
		t.Error("fallback should not be shown for a missing key")
	}
}

func TestRuntime_Lifecycle(t *testing.T) {
	hits := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	port := freePort(t)
	store := newStore(srv.URL)
	store.Update(func(s *settings.Settings) {
		s.RelayAutoStart = true
		s.RelayPort = strconv.Itoa(port)
		s.Beacon = true
	})

	rec := &notify.Recorder{}
	host := &fakeHost{}
	rt := newRuntime(t, store, rec, &fakeClock{now: time.Unix(1700000000, 0)})

	if err := rt.Stop(context.Background()); err != ErrNotStarted {
		t.Errorf("Stop before Start = %v", err)
	}
	if err := rt.Start(context.Background(), host); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rt.Start(context.Background(), host); err != ErrAlreadyStarted {
		t.Errorf("second Start = %v", err)
	}

	want := "http://127.0.0.1:" + strconv.Itoa(port) + "/heartbeat"
	if got := store.Snapshot().ProxyURL; got != want {
		t.Fatalf("proxy url = %q, want %q", got, want)
	}
	if !rt.Relay().Running() {
		t.Fatal("relay should be running")
	}

	// The interaction goes proxy -> relay -> upstream.
	if !host.Fire() {
		t.Fatal("listener not registered")
	}
	select {
	case auth := <-hits:
		if auth != "Basic waka_abc" {
			t.Errorf("authorization = %q", auth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat never reached upstream")
	}

	if err := rt.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rt.Running() || rt.Relay().Running() {
		t.Error("runtime should be fully stopped")
	}
	if host.Fire() {
		t.Error("listener should be unregistered")
	}
	if got := store.Snapshot().ProxyURL; got != "" {
		t.Errorf("proxy url after stop = %q", got)
	}
	if _, ok := rt.gate.Last(); ok {
		t.Error("gate should be reset")
	}

	// A second start cycle works.
	if err := rt.Start(context.Background(), host); err != nil {
		t.Fatalf("restart: %v", err)
	}
	rt.Stop(context.Background())
}

func TestRuntime_DebugFollowsSettings(t *testing.T) {
	store := newStore("https://api.example.com")
	logger := logging.New()
	logger.SetOutput(&strings.Builder{})

	if _, err := New(Options{Settings: store, Logger: logger}); err != nil {
		t.Fatal(err)
	}
	if logger.Level() != logging.LevelInfo {
		t.Errorf("initial level = %v", logger.Level())
	}

	store.Update(func(s *settings.Settings) { s.Debug = true })
	if logger.Level() != logging.LevelDebug {
		t.Errorf("level with debug = %v", logger.Level())
	}

	store.Update(func(s *settings.Settings) {
		s.Debug = false
		s.LogLevel = "warn"
	})
	if logger.Level() != logging.LevelWarn {
		t.Errorf("level after debug off = %v", logger.Level())
	}
}
