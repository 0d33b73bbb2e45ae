package redis

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/steploop/domain/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Address != "localhost:6379" {
		t.Errorf("Address = %s, want localhost:6379", cfg.Address)
	}
	if cfg.DialTimeout != 5*time.Second {
		t.Errorf("DialTimeout = %v, want %v", cfg.DialTimeout, 5*time.Second)
	}
	if cfg.KeyPrefix != "steploop:" {
		t.Errorf("KeyPrefix = %s, want steploop:", cfg.KeyPrefix)
	}
	if cfg.TTL != 0 {
		t.Errorf("TTL = %v, want 0", cfg.TTL)
	}
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(config.RedisConfig{Address: "cache:6380", Password: "pw", DB: 2})
	if cfg.Address != "cache:6380" || cfg.Password != "pw" || cfg.DB != 2 {
		t.Errorf("ConfigFrom() = %+v", cfg)
	}
	if cfg.KeyPrefix != "steploop:" {
		t.Errorf("KeyPrefix = %s, want default steploop:", cfg.KeyPrefix)
	}

	if got := ConfigFrom(config.RedisConfig{}).Address; got != "localhost:6379" {
		t.Errorf("Address = %s, want default", got)
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []ConfigOption{
		WithAddress("redis:6379"),
		WithPassword("secret"),
		WithDB(3),
		WithKeyPrefix("app:"),
		WithTTL(time.Hour),
		WithTimeouts(time.Second, 2*time.Second, 3*time.Second),
	} {
		opt(&cfg)
	}

	if cfg.Address != "redis:6379" || cfg.Password != "secret" || cfg.DB != 3 || cfg.KeyPrefix != "app:" {
		t.Errorf("options not applied: %+v", cfg)
	}
	if cfg.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", cfg.TTL)
	}
	if cfg.DialTimeout != time.Second || cfg.ReadTimeout != 2*time.Second || cfg.WriteTimeout != 3*time.Second {
		t.Errorf("timeouts = %v/%v/%v", cfg.DialTimeout, cfg.ReadTimeout, cfg.WriteTimeout)
	}
}
