package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Dialer      DialerConfig
	Exploration ExplorationConfig
	Storage     StorageConfig
	Webhook     WebhookConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type DialerConfig struct {
	BaseURL string
	APIKey  string
}

type ExplorationConfig struct {
	MaxIterations int
	CallTimeout   time.Duration
	JobTTL        time.Duration
	SweepInterval time.Duration
}

type StorageConfig struct {
	DataDir    string
	LedgerPath string
}

type WebhookConfig struct {
	Secret string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4800,
		},
		Exploration: ExplorationConfig{
			MaxIterations: 10,
			CallTimeout:   5 * time.Minute,
			JobTTL:        24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			LedgerPath: filepath.Join(dataDir, "ledger.json"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.ivrmap.app) and secrets
// fall back to macOS Keychain (service: ivrmap).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/ivrmap/config.json
// and secrets fall back to $XDG_DATA_HOME/ivrmap/secrets.json.
//
// Environment variables (IVRMAP_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts the platform secret store for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for secrets still unset.
	if cfg.Dialer.APIKey == "" {
		if key, err := kc.Get("ivrmap", "dialer_api_key"); err == nil && key != "" {
			cfg.Dialer.APIKey = key
		}
	}
	if cfg.Server.APIToken == "" {
		if token, err := kc.Get("ivrmap", "api_token"); err == nil && token != "" {
			cfg.Server.APIToken = token
		}
	}
	if cfg.Webhook.Secret == "" {
		if secret, err := kc.Get("ivrmap", "webhook_secret"); err == nil && secret != "" {
			cfg.Webhook.Secret = secret
		}
	}

	if cfg.Dialer.BaseURL == "" {
		msg := "missing required config: dialer base URL. " +
			"Set it via `ivrmap config set dialer.base_url <url>` " +
			"or environment variable IVRMAP_DIALER_BASE_URL"
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
