package kamigaze

import (
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

type Config struct {
	// URL is the address of the kamigaze gRPC server.
	URL string `env:"KAMIGAZE_URL" envDefault:"localhost:9091"`

	// APIKey is sent as per-RPC metadata when set.
	APIKey string `env:"KAMIGAZE_API_KEY"`

	// TLS dials with the system certificate pool instead of plaintext.
	TLS bool `env:"KAMIGAZE_TLS" envDefault:"false"`
}

// LoadConfig reads the kamigaze client configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse kamigaze config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate kamigaze config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.URL == "" {
		return eris.New("kamigaze URL cannot be empty")
	}
	return nil
}
