// Package settings holds the user-facing configuration of wakabeat.
//
// Values are resolved with precedence: environment (including .env) > TOML
// file > defaults. The API key additionally falls back to the credentials
// package when neither source sets it.
package settings

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/vinayprograms/wakabeat/credentials"
	"github.com/vinayprograms/wakabeat/errors"
	"github.com/vinayprograms/wakabeat/heartbeat"
)

const (
	// DefaultAPIURL is the WakaTime heartbeat endpoint.
	DefaultAPIURL = "https://api.wakatime.com/api/v1/users/current/heartbeats"

	// DefaultProject is reported when no project name is configured.
	DefaultProject = heartbeat.DefaultProject

	// DefaultRelayPort is used when relay_port is empty or unparsable.
	DefaultRelayPort = 9525

	// DefaultTimeout bounds each transport attempt.
	DefaultTimeout = 10 * time.Second

	fallbackMachineName = "Vencord User"
)

// Duration is a time.Duration that decodes from strings like "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Settings is the full plugin configuration.
type Settings struct {
	// APIKey authenticates heartbeats. Must start with "waka_".
	APIKey string `toml:"api_key"`

	// APIURL is where the beacon and direct transports post, and where the relay forwards.
	APIURL string `toml:"api_url"`

	// Debug surfaces dispatch-chain decisions in the log.
	Debug bool `toml:"debug"`

	// LogLevel applies when Debug is off.
	LogLevel string `toml:"log_level"`

	// MachineName is sent as X-Machine-Name when non-empty.
	MachineName string `toml:"machine_name"`

	// ProjectName is reported as the heartbeat project.
	ProjectName string `toml:"project_name"`

	// ProxyURL, when set, is tried before any other transport.
	ProxyURL string `toml:"proxy_url"`

	// RelayAutoStart starts the embedded relay on plugin start.
	RelayAutoStart bool `toml:"relay_auto_start"`

	// RelayPort is the loopback port of the embedded relay.
	RelayPort string `toml:"relay_port"`

	// Beacon enables the fire-and-forget transport.
	Beacon bool `toml:"beacon"`

	// Timeout bounds each transport attempt.
	Timeout Duration `toml:"timeout"`

	Telemetry Telemetry `toml:"telemetry"`
}

// Telemetry configures OTLP trace export. Empty Endpoint disables export.
type Telemetry struct {
	Endpoint    string `toml:"endpoint"`
	Protocol    string `toml:"protocol"`
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
}

// Defaults returns the settings a fresh install starts with.
func Defaults() Settings {
	return Settings{
		APIKey:         credentials.Placeholder,
		APIURL:         DefaultAPIURL,
		LogLevel:       "INFO",
		MachineName:    DefaultMachineName(),
		ProjectName:    DefaultProject,
		RelayAutoStart: true,
		RelayPort:      strconv.Itoa(DefaultRelayPort),
		Beacon:         true,
		Timeout:        Duration(DefaultTimeout),
		Telemetry: Telemetry{
			Protocol:    "http",
			ServiceName: "wakabeat",
		},
	}
}

// DefaultMachineName returns the host name, or a generic label if it cannot be read.
func DefaultMachineName() string {
	info, err := host.Info()
	if err != nil || info == nil || info.Hostname == "" {
		return fallbackMachineName
	}
	return info.Hostname
}

// LoadFile decodes a TOML settings file over the defaults.
func LoadFile(path string) (Settings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return s, errors.WrapWithCode(err, errors.ErrCodeInvalidInput,
			fmt.Sprintf("reading settings %s", path))
	}
	return s, nil
}

// Load resolves settings from path (may be empty), the process environment
// and the credential sources.
func Load(path string) (Settings, error) {
	s, err := LoadFile(path)
	if err != nil {
		return s, err
	}
	ApplyEnv(&s)

	if s.APIKey == "" || s.APIKey == credentials.Placeholder {
		creds, _, err := credentials.Load()
		if err != nil {
			return s, errors.Wrap(err, "loading credentials")
		}
		if key := creds.APIKey(); key != "" {
			s.APIKey = key
		}
	}
	return s, s.Validate()
}

// Project returns the configured project name or the default.
func (s Settings) Project() string {
	if p := strings.TrimSpace(s.ProjectName); p != "" {
		return p
	}
	return DefaultProject
}

// Port returns the relay port, falling back to DefaultRelayPort.
func (s Settings) Port() int {
	p, err := strconv.Atoi(strings.TrimSpace(s.RelayPort))
	if err != nil || p <= 0 || p > 65535 {
		return DefaultRelayPort
	}
	return p
}

// AttemptTimeout returns the per-attempt timeout, falling back to DefaultTimeout.
func (s Settings) AttemptTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(s.Timeout)
}

// Endpoint returns the API URL or the default.
func (s Settings) Endpoint() string {
	if u := strings.TrimSpace(s.APIURL); u != "" {
		return u
	}
	return DefaultAPIURL
}

// Validate checks values that would break the runtime. The API key is not
// checked here: an unusable key is reported per heartbeat, not at startup.
func (s Settings) Validate() error {
	if _, err := parseHTTPURL(s.Endpoint()); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "api_url is invalid", errors.WithCause(err))
	}
	if p := strings.TrimSpace(s.ProxyURL); p != "" {
		if _, err := parseHTTPURL(p); err != nil {
			return errors.New(errors.ErrCodeInvalidInput, "proxy_url is invalid", errors.WithCause(err))
		}
	}
	if s.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative")
	}
	switch s.Telemetry.Protocol {
	case "", "http", "grpc":
	default:
		return errors.Newf(errors.ErrCodeInvalidInput, "telemetry.protocol %q (use http or grpc)", s.Telemetry.Protocol)
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return u, nil
}
