package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "IVRMAP_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "IVRMAP_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "dialer.base_url", typ: kString, env: "IVRMAP_DIALER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Dialer.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Dialer.BaseURL },
	},
	{
		key: "dialer.api_key", typ: kString, env: "IVRMAP_DIALER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Dialer.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Dialer.APIKey },
	},
	{
		key: "exploration.max_iterations", typ: kInt, env: "IVRMAP_EXPLORATION_MAX_ITERATIONS",
		apply:   func(cfg *Config, v any) { cfg.Exploration.MaxIterations = v.(int) },
		extract: func(cfg Config) any { return cfg.Exploration.MaxIterations },
	},
	{
		key: "exploration.call_timeout", typ: kDuration, env: "IVRMAP_EXPLORATION_CALL_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Exploration.CallTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Exploration.CallTimeout },
	},
	{
		key: "exploration.job_ttl", typ: kDuration, env: "IVRMAP_EXPLORATION_JOB_TTL",
		apply:   func(cfg *Config, v any) { cfg.Exploration.JobTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Exploration.JobTTL },
	},
	{
		key: "exploration.sweep_interval", typ: kDuration, env: "IVRMAP_EXPLORATION_SWEEP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Exploration.SweepInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Exploration.SweepInterval },
	},
	{
		key: "storage.data_dir", typ: kString, env: "IVRMAP_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.ledger_path", typ: kString, env: "IVRMAP_STORAGE_LEDGER_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.LedgerPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.LedgerPath },
	},
	{
		key: "webhook.secret", typ: kString, env: "IVRMAP_WEBHOOK_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Webhook.Secret = v.(string) },
		extract: func(cfg Config) any { return cfg.Webhook.Secret },
	},
	{
		key: "log.level", typ: kString, env: "IVRMAP_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
