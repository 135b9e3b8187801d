package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/spf13/viper"
)

type Config struct {
	StoreDriver string
	DBSource    string
	Port        string
	Env         string

	StrikeAPIKey      string
	StrikeEnvironment string
	StrikeBaseURL     string
	StrikeTimeout     time.Duration

	TargetCurrency string
	RequestExpiry  time.Duration
	SettledStates  []string

	// TrustWebhookFallback enables the degraded mode in which a completed
	// webhook marks an order paid without confirmation from the API.
	TrustWebhookFallback bool

	TokenSecret  []byte
	TokenTTL     time.Duration
	StoreTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_driver", "postgres")
	v.SetDefault("db_source", "")
	v.SetDefault("server_port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("strike_api_key", "")
	v.SetDefault("strike_environment", "production")
	v.SetDefault("strike_base_url", "")
	v.SetDefault("strike_timeout", "30s")
	v.SetDefault("target_currency", "USD")
	v.SetDefault("request_expiry", "300s")
	v.SetDefault("settled_states", strings.Join(domain.DefaultSettledLabels, ","))
	v.SetDefault("trust_webhook_fallback", false)
	v.SetDefault("token_secret", "")
	v.SetDefault("token_ttl", "12h")
	v.SetDefault("store_timeout", "5s")
}

// Load reads configuration from the environment, optionally overlaid on a
// YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		StoreDriver:          strings.ToLower(v.GetString("store_driver")),
		DBSource:             v.GetString("db_source"),
		Port:                 v.GetString("server_port"),
		Env:                  v.GetString("environment"),
		StrikeAPIKey:         v.GetString("strike_api_key"),
		StrikeEnvironment:    strings.ToLower(v.GetString("strike_environment")),
		StrikeBaseURL:        v.GetString("strike_base_url"),
		StrikeTimeout:        v.GetDuration("strike_timeout"),
		TargetCurrency:       strings.ToUpper(v.GetString("target_currency")),
		RequestExpiry:        v.GetDuration("request_expiry"),
		SettledStates:        splitList(v.GetString("settled_states")),
		TrustWebhookFallback: v.GetBool("trust_webhook_fallback"),
		TokenTTL:             v.GetDuration("token_ttl"),
		StoreTimeout:         v.GetDuration("store_timeout"),
	}

	switch cfg.StoreDriver {
	case "postgres", "sqlite":
		if cfg.DBSource == "" {
			return nil, fmt.Errorf("DB_SOURCE environment variable is required for store driver %q", cfg.StoreDriver)
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.StrikeEnvironment {
	case "production", "sandbox":
	default:
		return nil, fmt.Errorf("unknown STRIKE_ENVIRONMENT %q", cfg.StrikeEnvironment)
	}

	if len(cfg.SettledStates) == 0 {
		return nil, fmt.Errorf("SETTLED_STATES must name at least one state")
	}
	if cfg.StrikeTimeout <= 0 || cfg.RequestExpiry <= 0 || cfg.TokenTTL <= 0 || cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("timeouts, expiry and token TTL must be positive")
	}

	secret := v.GetString("token_secret")
	switch {
	case secret != "":
		cfg.TokenSecret = []byte(secret)
	case cfg.Env == "development":
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		cfg.TokenSecret = []byte(hex.EncodeToString(b))
	default:
		return nil, fmt.Errorf("TOKEN_SECRET environment variable is required outside development")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
