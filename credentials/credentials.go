// Package credentials resolves and validates the WakaTime API key.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/wakabeat/errors"
)

const (
	// Placeholder is the default key shipped in settings; it is never valid.
	Placeholder = "CHANGEME"

	// KeyPrefix is required at the start of every WakaTime key.
	KeyPrefix = "waka_"

	// EnvVar is consulted when no credentials file provides a key.
	EnvVar = "WAKATIME_API_KEY"
)

// ErrInsecurePermissions is returned when the credentials file is readable by group or others.
var ErrInsecurePermissions = fmt.Errorf("credentials file has insecure permissions")

// Credentials holds keys loaded from credentials.toml:
//
//	[wakatime]
//	api_key = "waka_..."
type Credentials struct {
	WakaTime *ProviderCreds `toml:"wakatime"`
}

// ProviderCreds holds credentials for a single service.
type ProviderCreds struct {
	APIKey string `toml:"api_key"`
}

// StandardPaths returns the credential file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"credentials.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "wakabeat", "credentials.toml"),
			filepath.Join(home, ".wakabeat", "credentials.toml"),
		)
	}
	return paths
}

// Load loads credentials from the first standard location that exists.
// A missing file is not an error.
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads credentials from a specific file.
// On Unix the file must not be accessible by group or others.
func LoadFile(path string) (*Credentials, error) {
	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("%w: %s has mode %04o (must not be group/world accessible)",
				ErrInsecurePermissions, path, mode)
		}
	}

	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// APIKey returns the key to use.
// Priority: [wakatime] section > WAKATIME_API_KEY > ~/.wakatime.cfg api_key.
func (c *Credentials) APIKey() string {
	if c != nil && c.WakaTime != nil && c.WakaTime.APIKey != "" {
		return c.WakaTime.APIKey
	}
	if key := os.Getenv(EnvVar); key != "" {
		return key
	}
	return ReadWakaTimeConfig(WakaTimeConfigPath(), "api_key")
}

// ValidateKey checks a key the same way the settings form does.
// It returns a NOT_CONFIGURED error describing the first problem found.
func ValidateKey(key string) error {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return errors.NotConfigured("No api key for wakatime is setup.")
	case key == Placeholder:
		return errors.NotConfigured("Invalid Key: Please change the default API Key")
	case !strings.HasPrefix(key, KeyPrefix):
		return errors.NotConfigured("Invalid Key: Key must start with '" + KeyPrefix + "'")
	}
	return nil
}

// Authorization returns the Authorization header value for key.
func Authorization(key string) string {
	return "Basic " + key
}
