package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "SCAN_INTERVAL", "REMINDER_LEAD", "SEND_TIMEOUT",
		"STORE_DRIVER", "BOLTDB_PATH", "REDIS_URL", "DATABASE_URL", "LOG_ENCODING",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scanner.Interval != time.Minute || cfg.Scanner.Lead != 10*time.Minute || cfg.Scanner.SendTimeout != 10*time.Second {
		t.Fatalf("unexpected scanner defaults: %+v", cfg.Scanner)
	}
	if cfg.Store.Driver != DriverBolt || cfg.Store.BoltPath != "./data/tasks.db" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.Telegram.Enabled() {
		t.Fatalf("telegram must be disabled without a token")
	}
	if cfg.Redis.LockEnabled() {
		t.Fatalf("scan lock must be disabled without REDIS_URL")
	}
	if cfg.Database.URL == "" {
		t.Fatalf("database url must be derived from DB_* settings")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SCAN_INTERVAL", "30s")
	t.Setenv("REMINDER_LEAD", "15m")
	t.Setenv("SEND_TIMEOUT", "3")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("TELEGRAM_RATE_LIMIT", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Telegram.Enabled() || cfg.Telegram.RateLimit != 2.5 {
		t.Fatalf("unexpected telegram config: %+v", cfg.Telegram)
	}
	if cfg.Scanner.Interval != 30*time.Second || cfg.Scanner.Lead != 15*time.Minute || cfg.Scanner.SendTimeout != 3*time.Second {
		t.Fatalf("unexpected scanner config: %+v", cfg.Scanner)
	}
	if cfg.Store.Driver != DriverPostgres || !cfg.Redis.LockEnabled() {
		t.Fatalf("unexpected store or redis config: %+v %+v", cfg.Store, cfg.Redis)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SCAN_INTERVAL":       "0s",
		"REMINDER_LEAD":       "-1m",
		"STORE_DRIVER":        "sqlite",
		"LOG_ENCODING":        "xml",
		"TELEGRAM_RATE_BURST": "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}
