// Package config resolves runtime settings from the environment and an
// optional YAML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr        = "127.0.0.1:3000"
	defaultRefreshDebounceMS = 500
	defaultRateLimit         = 100
	defaultRateWindowSeconds = 60
	defaultUploadMaxMB       = 100
)

// ResolveRoot returns the content repository root. override (typically a
// command-line flag) wins over CONTENT_ROOT, which wins over the working
// directory. The directory is created when it does not yet exist.
func ResolveRoot(override string) (string, error) {
	dir := strings.TrimSpace(override)
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv("CONTENT_ROOT"))
	}
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}

	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// ListenAddr returns the TCP address the HTTP server should bind to.
func ListenAddr(override string) string {
	if addr := strings.TrimSpace(override); addr != "" {
		return addr
	}
	addr := strings.TrimSpace(os.Getenv("CONTENT_LISTEN_ADDR"))
	if addr == "" {
		return defaultListenAddr
	}
	return addr
}

// RefreshDebounce returns the duration to wait after file-system change
// events before notifying clients.
func RefreshDebounce() time.Duration {
	value := strings.TrimSpace(os.Getenv("CONTENT_REFRESH_DEBOUNCE_MS"))
	if value == "" {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}

	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// ValidateListenAddr ensures the configured listen address is restricted to localhost.
func ValidateListenAddr(addr string) error {
	addr = strings.TrimSpace(strings.ToLower(addr))
	if strings.HasPrefix(addr, "127.0.0.1:") || strings.HasPrefix(addr, "localhost:") || strings.HasPrefix(addr, "[::1]:") {
		return nil
	}
	return errors.New("listen address must bind to localhost for security")
}

// ResolveTokenFile returns the absolute path to the API token file when
// configured. The file is created if it does not already exist. When no file
// is configured the second return value is false and authentication is off.
func ResolveTokenFile() (string, bool, error) {
	path := strings.TrimSpace(os.Getenv("CONTENT_TOKEN_FILE"))
	if path == "" {
		return "", false, nil
	}

	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", false, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", false, err
	}

	if _, err := os.Stat(abs); err != nil {
		if !os.IsNotExist(err) {
			return "", false, err
		}
		file, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return "", false, err
		}
		if err := file.Close(); err != nil {
			return "", false, err
		}
	}
	return abs, true, nil
}

// Settings are the tunables read from the YAML settings file.
type Settings struct {
	RateLimit   int
	RateWindow  time.Duration
	UploadLimit int64
	LogFile     string
}

type settingsYAML struct {
	RateLimit         *int   `yaml:"rate_limit"`
	RateWindowSeconds *int   `yaml:"rate_window_seconds"`
	UploadMaxMB       *int   `yaml:"upload_max_mb"`
	LogFile           string `yaml:"log_file"`
}

// ResolveSettings returns the settings after applying defaults, the YAML file
// named by CONTENT_CONFIG (when set) and environment variable overrides.
// A rate limit of zero disables rate limiting.
func ResolveSettings() (Settings, error) {
	limit := defaultRateLimit
	window := defaultRateWindowSeconds
	uploadMB := defaultUploadMaxMB
	logFile := ""

	if configPath := strings.TrimSpace(os.Getenv("CONTENT_CONFIG")); configPath != "" {
		resolved, err := filepath.Abs(expandHome(configPath))
		if err != nil {
			return Settings{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Settings{}, err
		}
		var file settingsYAML
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", resolved, err)
		}
		if file.RateLimit != nil {
			limit = *file.RateLimit
		}
		if file.RateWindowSeconds != nil {
			window = *file.RateWindowSeconds
		}
		if file.UploadMaxMB != nil {
			uploadMB = *file.UploadMaxMB
		}
		if value := strings.TrimSpace(file.LogFile); value != "" {
			logFile = value
		}
	}

	var err error
	if limit, err = envInt("CONTENT_RATE_LIMIT", limit); err != nil {
		return Settings{}, err
	}
	if window, err = envInt("CONTENT_RATE_WINDOW_SECONDS", window); err != nil {
		return Settings{}, err
	}
	if uploadMB, err = envInt("CONTENT_UPLOAD_MAX_MB", uploadMB); err != nil {
		return Settings{}, err
	}
	if value := strings.TrimSpace(os.Getenv("CONTENT_LOG_FILE")); value != "" {
		logFile = value
	}

	if limit < 0 {
		return Settings{}, fmt.Errorf("rate limit must not be negative, got %d", limit)
	}
	if window <= 0 {
		return Settings{}, fmt.Errorf("rate window must be positive, got %d", window)
	}
	if uploadMB <= 0 {
		return Settings{}, fmt.Errorf("upload limit must be positive, got %d", uploadMB)
	}
	if logFile != "" {
		if logFile, err = filepath.Abs(expandHome(logFile)); err != nil {
			return Settings{}, err
		}
	}

	return Settings{
		RateLimit:   limit,
		RateWindow:  time.Duration(window) * time.Second,
		UploadLimit: int64(uploadMB) << 20,
		LogFile:     logFile,
	}, nil
}

func envInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
