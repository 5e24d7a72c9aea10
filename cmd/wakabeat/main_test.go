package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("WAKATIME_API_KEY", "")
	t.Setenv("WAKABEAT_API_KEY", "")
	t.Setenv("WAKABEAT_CONFIG", "")
	t.Chdir(home)
}

func TestRun_Usage(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer

	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("no command: exit %d, want 2", code)
	}
	stderr.Reset()
	if code := run([]string{"bogus"}, &stdout, &stderr); code != 2 {
		t.Errorf("unknown command: exit %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), `unknown command "bogus"`) {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_SendNotConfigured(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer

	if code := run([]string{"send"}, &stdout, &stderr); code != 3 {
		t.Errorf("exit %d, want 3", code)
	}
	if !strings.Contains(stderr.String(), "No api key for wakatime is setup.") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_Send(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cfg := filepath.Join(t.TempDir(), "wakabeat.toml")
	content := "api_key = \"waka_abc\"\napi_url = \"" + srv.URL + "\"\n"
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, "send", "-project", "demo"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "delivered via direct (201)") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRun_SendFallback(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	cfg := filepath.Join(t.TempDir(), "wakabeat.toml")
	content := "api_key = \"waka_abc\"\napi_url = \"" + dead + "\"\n"
	if err := os.WriteFile(cfg, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, "send"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "curl -X POST") || !strings.Contains(stdout.String(), "Invoke-RestMethod") {
		t.Errorf("fallback commands missing from stdout:\n%s", stdout.String())
	}
}
