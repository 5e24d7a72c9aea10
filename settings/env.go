package settings

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvAPIKey            = "WAKABEAT_API_KEY"
	EnvAPIURL            = "WAKABEAT_API_URL"
	EnvDebug             = "WAKABEAT_DEBUG"
	EnvLogLevel          = "WAKABEAT_LOG_LEVEL"
	EnvMachineName       = "WAKABEAT_MACHINE_NAME"
	EnvProjectName       = "WAKABEAT_PROJECT"
	EnvProxyURL          = "WAKABEAT_PROXY_URL"
	EnvRelayAutoStart    = "WAKABEAT_RELAY_AUTOSTART"
	EnvRelayPort         = "WAKABEAT_RELAY_PORT"
	EnvBeacon            = "WAKABEAT_BEACON"
	EnvTimeout           = "WAKABEAT_TIMEOUT"
	EnvTelemetryEndpoint = "WAKABEAT_TELEMETRY_ENDPOINT"
)

// LoadEnvFile loads variables from a .env file without overriding ones
// already set. An empty envFile means ".env" in the working directory.
// Returns true if a file was loaded.
func LoadEnvFile(envFile string) (bool, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return false, nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyEnv overlays WAKABEAT_* variables onto s.
func ApplyEnv(s *Settings) {
	s.APIKey = getValue(EnvAPIKey, s.APIKey)
	s.APIURL = getValue(EnvAPIURL, s.APIURL)
	s.Debug = getBool(EnvDebug, s.Debug)
	s.LogLevel = getValue(EnvLogLevel, s.LogLevel)
	s.MachineName = getValue(EnvMachineName, s.MachineName)
	s.ProjectName = getValue(EnvProjectName, s.ProjectName)
	s.ProxyURL = getValue(EnvProxyURL, s.ProxyURL)
	s.RelayAutoStart = getBool(EnvRelayAutoStart, s.RelayAutoStart)
	s.RelayPort = getValue(EnvRelayPort, s.RelayPort)
	s.Beacon = getBool(EnvBeacon, s.Beacon)
	if v := os.Getenv(EnvTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Timeout = Duration(d)
		}
	}
	s.Telemetry.Endpoint = getValue(EnvTelemetryEndpoint, s.Telemetry.Endpoint)
}

func getValue(envKey, current string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return current
}

func getBool(envKey string, current bool) bool {
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return current
}
