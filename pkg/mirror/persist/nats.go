package persist

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// NATSConfig holds the connection settings of the JetStream backend.
type NATSConfig struct {
	Name            string `env:"NATS_NAME" envDefault:"kamisync"`
	URL             string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	CredentialsFile string `env:"NATS_CREDENTIALS_FILE"`
}

func (cfg NATSConfig) validate() error {
	if cfg.URL == "" {
		return eris.New("NATS URL is required")
	}
	return nil
}

// natsConn wraps a NATS connection with logging connection handlers.
type natsConn struct {
	*nats.Conn
	log zerolog.Logger
}

func connectNATS(cfg NATSConfig, log zerolog.Logger) (*natsConn, error) {
	if err := cfg.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid NATS config")
	}
	c := &natsConn{log: log}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second * 5),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredentialsFile))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to NATS server")
	}
	c.Conn = conn

	c.log.Info().Str("url", conn.ConnectedUrl()).Str("name", cfg.Name).Msg("Connected to NATS server")
	return c, nil
}

func (c *natsConn) handleDisconnect(nc *nats.Conn, err error) {
	log := c.log.With().Uint64("reconnect_attempts", nc.Reconnects).Logger()
	if err != nil {
		log.Error().Err(err).Msg("Disconnected from NATS with error")
	} else {
		log.Warn().Msg("Disconnected from NATS (no error)")
	}
}

func (c *natsConn) handleReconnect(nc *nats.Conn) {
	c.log.Info().Str("nats_url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
}

func (c *natsConn) handleClosed(nc *nats.Conn) {
	if err := nc.LastError(); err != nil {
		c.log.Warn().Err(err).Msg("NATS connection closed with error")
	} else {
		c.log.Info().Msg("NATS connection closed")
	}
}
