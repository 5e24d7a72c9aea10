package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	wberrors "github.com/vinayprograms/wakabeat/errors"
)

func TestStandardPaths(t *testing.T) {
	paths := StandardPaths()
	if len(paths) < 1 {
		t.Fatal("expected at least one standard path")
	}
	if paths[0] != "credentials.toml" {
		t.Errorf("first path should be credentials.toml, got %s", paths[0])
	}
}

func TestLoadFile(t *testing.T) {
	credPath := filepath.Join(t.TempDir(), "credentials.toml")
	content := `
[wakatime]
api_key = "waka_test123"
`
	os.WriteFile(credPath, []byte(content), 0400)

	creds, err := LoadFile(credPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := creds.APIKey(); got != "waka_test123" {
		t.Errorf("APIKey() = %q, want %q", got, "waka_test123")
	}
}

func TestLoadFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission check not applicable on Windows")
	}

	credPath := filepath.Join(t.TempDir(), "credentials.toml")
	os.WriteFile(credPath, []byte("[wakatime]\napi_key = \"waka_x\"\n"), 0644)

	_, err := LoadFile(credPath)
	if !errors.Is(err, ErrInsecurePermissions) {
		t.Errorf("expected ErrInsecurePermissions, got %v", err)
	}
}

func TestLoadFile_OwnerOnly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission check not applicable on Windows")
	}

	credPath := filepath.Join(t.TempDir(), "credentials.toml")
	os.WriteFile(credPath, []byte("[wakatime]\napi_key = \"waka_x\"\n"), 0600)

	if _, err := LoadFile(credPath); err != nil {
		t.Errorf("0600 should be allowed: %v", err)
	}
}

func TestAPIKey_FallbackToEnv(t *testing.T) {
	t.Setenv(EnvVar, "waka_env")

	var creds *Credentials
	if got := creds.APIKey(); got != "waka_env" {
		t.Errorf("APIKey() = %q, want %q (from env)", got, "waka_env")
	}
}

func TestAPIKey_FileTakesPriority(t *testing.T) {
	t.Setenv(EnvVar, "waka_env")

	creds := &Credentials{WakaTime: &ProviderCreds{APIKey: "waka_file"}}
	if got := creds.APIKey(); got != "waka_file" {
		t.Errorf("APIKey() = %q, want %q", got, "waka_file")
	}
}

func TestAPIKey_FallbackToWakaTimeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(EnvVar, "")
	os.WriteFile(filepath.Join(home, ".wakatime.cfg"), []byte("[settings]\napi_key = waka_cfg\n"), 0600)

	var creds *Credentials
	if got := creds.APIKey(); got != "waka_cfg" {
		t.Errorf("APIKey() = %q, want %q", got, "waka_cfg")
	}
}

func TestReadWakaTimeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".wakatime.cfg")
	content := `
# comment
[settings]
debug = false
api_key = waka_abc

[git]
api_key = not-this-one
`
	os.WriteFile(path, []byte(content), 0600)

	if got := ReadWakaTimeConfig(path, "api_key"); got != "waka_abc" {
		t.Errorf("api_key = %q, want waka_abc", got)
	}
	if got := ReadWakaTimeConfig(path, "missing"); got != "" {
		t.Errorf("missing = %q, want empty", got)
	}
	if got := ReadWakaTimeConfig(filepath.Join(t.TempDir(), "nope"), "api_key"); got != "" {
		t.Errorf("missing file should give empty, got %q", got)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "waka_abc", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"placeholder", "CHANGEME", true},
		{"wrong prefix", "abc_waka", true},
		{"uppercase prefix", "WAKA_abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !wberrors.Is(err, wberrors.ErrCodeNotConfigured) {
				t.Errorf("expected NOT_CONFIGURED, got %v", err)
			}
		})
	}
}

func TestAuthorization(t *testing.T) {
	if got := Authorization("waka_abc"); got != "Basic waka_abc" {
		t.Errorf("Authorization() = %q", got)
	}
}
