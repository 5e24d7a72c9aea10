// Reads keys from the WakaTime CLI config file so users who already have
// wakatime-cli set up need no extra configuration.
package credentials

import (
	"os"
	"path/filepath"
	"strings"
)

// WakaTimeConfigPath returns the path to ~/.wakatime.cfg, or "" if the home
// directory is unknown.
func WakaTimeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wakatime.cfg")
}

// ReadWakaTimeConfig returns the value of key from the [settings] section of
// an INI-style wakatime config. Keys outside any section are also accepted.
// Returns "" when the file or key is missing.
func ReadWakaTimeConfig(path, key string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	section := ""
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "" && section != "settings" {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 && strings.TrimSpace(parts[0]) == key {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
