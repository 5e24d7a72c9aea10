package dispatch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	werrors "github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/notify"
	"github.com/vinayprograms/wakabeat/settings"
	"github.com/vinayprograms/wakabeat/transport"
)

// fakeTransport records calls and returns a canned outcome.
type fakeTransport struct {
	name  string
	ready error
	out   heartbeat.Outcome
	calls int
}

func (f *fakeTransport) Name() string { return f.name }
func (f *fakeTransport) Ready() error { return f.ready }
func (f *fakeTransport) Send(_ context.Context, _ *heartbeat.Request) heartbeat.Outcome {
	f.calls++
	return f.out
}

func testSettings(key string) *settings.Store {
	s := settings.Defaults()
	s.APIKey = key
	s.MachineName = "desk"
	return settings.NewStore(s)
}

func newDispatcher(t *testing.T, store *settings.Store, rec *notify.Recorder, ts ...transport.Transport) *Dispatcher {
	t.Helper()
	d, err := New(Config{Settings: store, Transports: ts, Notifier: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestConfig_Validate(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without settings")
	}
	if _, err := New(Config{Settings: testSettings("waka_x")}); err == nil {
		t.Error("expected error without transports")
	}
}

func TestDispatch_NotConfigured(t *testing.T) {
	for _, key := range []string{"", "CHANGEME", "abc123", "  "} {
		t.Run(key, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
			}))
			defer srv.Close()

			store := testSettings(key)
			store.Update(func(s *settings.Settings) {
				s.APIURL = srv.URL
				s.ProxyURL = srv.URL
			})
			rec := &notify.Recorder{}
			proxy := transport.NewProxy(func() string { return store.Snapshot().ProxyURL }, transport.DefaultConfig())
			d := newDispatcher(t, store, rec, proxy, transport.NewDirect(transport.DefaultConfig()))

			res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))
			if res.Outcome.Status != heartbeat.StatusNotConfigured {
				t.Fatalf("status = %v, want not_configured", res.Outcome.Status)
			}
			if !werrors.Is(res.Outcome.Err, werrors.ErrCodeNotConfigured) {
				t.Errorf("err = %v", res.Outcome.Err)
			}
			if res.Request != nil || res.Failed() {
				t.Error("no request should be built")
			}
			if hits.Load() != 0 {
				t.Errorf("server hit %d times", hits.Load())
			}
			notes := rec.Notifications()
			if len(notes) != 1 || notes[0].Body != notify.MsgNoAPIKey {
				t.Errorf("notifications = %+v", notes)
			}
		})
	}
}

func TestDispatch_FirstSuccessWins(t *testing.T) {
	proxy := &fakeTransport{name: "proxy", out: heartbeat.Delivered("proxy", 200)}
	beacon := &fakeTransport{name: "beacon", out: heartbeat.Accepted("beacon")}
	direct := &fakeTransport{name: "direct", out: heartbeat.Delivered("direct", 201)}

	d := newDispatcher(t, testSettings("waka_abc"), &notify.Recorder{}, proxy, beacon, direct)
	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))

	if !res.OK() || res.Outcome.Transport != "proxy" {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if beacon.calls != 0 || direct.calls != 0 {
		t.Errorf("beacon/direct calls = %d/%d, want 0/0", beacon.calls, direct.calls)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("attempts = %d", len(res.Attempts))
	}
}

func TestDispatch_TrimsKey(t *testing.T) {
	direct := &fakeTransport{name: "direct", out: heartbeat.Delivered("direct", 201)}
	d := newDispatcher(t, testSettings(" waka_abc\n"), &notify.Recorder{}, direct)

	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))
	if !res.OK() {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if got := res.Request.Header(heartbeat.HeaderAuthorization); got != "Basic waka_abc" {
		t.Errorf("Authorization = %q, want %q", got, "Basic waka_abc")
	}
}

func TestDispatch_FallsThrough(t *testing.T) {
	proxy := &fakeTransport{name: "proxy", out: heartbeat.Rejected("proxy", 502, "bad gateway", errors.New("502"))}
	beacon := &fakeTransport{name: "beacon", ready: transport.ErrBeaconUnsupported}
	direct := &fakeTransport{name: "direct", out: heartbeat.Delivered("direct", 201)}

	d := newDispatcher(t, testSettings("waka_abc"), &notify.Recorder{}, proxy, beacon, direct)
	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))

	if res.Outcome.Transport != "direct" || !res.OK() {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if beacon.calls != 0 {
		t.Error("skipped beacon should not be called")
	}
	if len(res.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(res.Attempts))
	}
}

func TestDispatch_AllFail(t *testing.T) {
	proxy := &fakeTransport{name: "proxy", out: heartbeat.Failed("proxy", errors.New("refused"))}
	direct := &fakeTransport{name: "direct", out: heartbeat.Rejected("direct", 500, "oops", errors.New("500"))}

	rec := &notify.Recorder{}
	d := newDispatcher(t, testSettings("waka_abc"), rec, proxy, direct)
	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))

	if res.OK() || !res.Failed() {
		t.Fatalf("expected failure, got %v", res.Outcome)
	}
	if res.Outcome.Transport != "direct" {
		t.Errorf("final outcome from %q, want direct", res.Outcome.Transport)
	}
	if len(rec.Notifications()) != 0 {
		t.Error("dispatcher should leave failure notifications to the caller")
	}
}

func TestDispatch_NoTransportReady(t *testing.T) {
	beacon := &fakeTransport{name: "beacon", ready: transport.ErrBeaconUnsupported}
	d := newDispatcher(t, testSettings("waka_abc"), &notify.Recorder{}, beacon)

	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))
	if res.OK() || !res.Failed() {
		t.Fatalf("outcome = %v", res.Outcome)
	}
}

// Scenario A: no proxy, beacon unsupported, direct answers 201.
func TestDispatch_ScenarioA(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := testSettings("waka_abc")
	store.Update(func(s *settings.Settings) { s.APIURL = srv.URL })

	rec := &notify.Recorder{}
	d := newDispatcher(t, store, rec,
		transport.NewProxy(func() string { return store.Snapshot().ProxyURL }, transport.DefaultConfig()),
		transport.NewBeacon(transport.DefaultConfig(), nil),
		transport.NewDirect(transport.DefaultConfig()),
	)

	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))
	if res.Outcome.Status != heartbeat.StatusDelivered || res.Outcome.Code != http.StatusCreated {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if len(rec.Notifications()) != 0 {
		t.Errorf("unexpected notifications: %+v", rec.Notifications())
	}
	if got := <-auth; got != "Basic waka_abc" {
		t.Errorf("authorization = %q", got)
	}
}

// Scenario B: proxy points at a closed port, beacon unsupported, direct unreachable.
func TestDispatch_ScenarioB(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closed := "http://" + ln.Addr().String() + "/heartbeat"
	ln.Close()

	store := testSettings("waka_abc")
	store.Update(func(s *settings.Settings) {
		s.ProxyURL = closed
		s.APIURL = closed
	})

	d := newDispatcher(t, store, &notify.Recorder{},
		transport.NewProxy(func() string { return store.Snapshot().ProxyURL }, transport.DefaultConfig()),
		transport.NewBeacon(transport.DefaultConfig(), nil),
		transport.NewDirect(transport.DefaultConfig()),
	)

	res := d.Dispatch(context.Background(), heartbeat.NewEvent(time.Now()))
	if !res.Failed() {
		t.Fatalf("expected total failure, got %v", res.Outcome)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want proxy and direct", len(res.Attempts))
	}
	for _, a := range res.Attempts {
		if a.Status != heartbeat.StatusTransportError {
			t.Errorf("%s: status = %v", a.Transport, a.Status)
		}
	}
}

func TestDispatch_Canceled(t *testing.T) {
	direct := &fakeTransport{name: "direct", out: heartbeat.Delivered("direct", 201)}
	d := newDispatcher(t, testSettings("waka_abc"), &notify.Recorder{}, direct)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Dispatch(ctx, heartbeat.NewEvent(time.Now()))
	if res.OK() {
		t.Fatal("canceled dispatch should not succeed")
	}
	if direct.calls != 0 {
		t.Error("no transport should run after cancel")
	}
	if !werrors.Is(res.Outcome.Err, werrors.ErrCodeCanceled) {
		t.Errorf("err = %v, want CANCELED", res.Outcome.Err)
	}
}
