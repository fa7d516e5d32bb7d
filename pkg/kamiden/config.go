package kamiden

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

type Config struct {
	// URL is the address of the kamiden gRPC server.
	URL string `env:"KAMIDEN_URL" envDefault:"localhost:9092"`

	// TLS dials with the system certificate pool instead of plaintext.
	TLS bool `env:"KAMIDEN_TLS" envDefault:"false"`

	// ReconnectBackoff is "fixed" or "exponential".
	ReconnectBackoff string `env:"KAMIDEN_RECONNECT_BACKOFF" envDefault:"fixed"`

	ReconnectDelay time.Duration `env:"KAMIDEN_RECONNECT_DELAY" envDefault:"5s"`

	// ReconnectMaxDelay caps exponential backoff.
	ReconnectMaxDelay time.Duration `env:"KAMIDEN_RECONNECT_MAX_DELAY" envDefault:"1m"`

	// ReconnectMaxAttempts is the number of consecutive failed reconnects before giving up. Zero
	// retries forever.
	ReconnectMaxAttempts uint64 `env:"KAMIDEN_RECONNECT_MAX_ATTEMPTS" envDefault:"0"`

	// ReconnectJitter randomizes exponential delays by up to this fraction.
	ReconnectJitter float64 `env:"KAMIDEN_RECONNECT_JITTER" envDefault:"0"`
}

// LoadConfig reads the kamiden client configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse kamiden config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate kamiden config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.URL == "" {
		return eris.New("kamiden URL cannot be empty")
	}
	switch strings.ToLower(cfg.ReconnectBackoff) {
	case "fixed", "exponential":
	default:
		return eris.Errorf("invalid reconnect backoff: %s (must be 'fixed' or 'exponential')", cfg.ReconnectBackoff)
	}
	return cfg.ReconnectPolicy().validate()
}

func (cfg *Config) ReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Exponential: strings.EqualFold(cfg.ReconnectBackoff, "exponential"),
		Delay:       cfg.ReconnectDelay,
		MaxDelay:    cfg.ReconnectMaxDelay,
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Jitter:      cfg.ReconnectJitter,
	}
}
