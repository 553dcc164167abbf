// Package config binds the crawler's runtime knobs to command-line flags.
package config

import (
	"errors"

	"dhtcrawler/engine"

	"github.com/spf13/pflag"
)

// Config holds every flag-configurable knob the crawlerd binary exposes.
// It holds a pointer to the engine's own Config so the two never drift out
// of sync on shared defaults.
type Config struct {
	Engine *engine.Config

	// SinkDir is the directory saved metadata .torrent-equivalent blobs
	// are written to.
	SinkDir string

	// MetricsAddr is the address the /metrics HTTP endpoint listens on.
	MetricsAddr string

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string

	// LogJSON switches structured JSON logging on instead of text.
	LogJSON bool
}

// New returns a Config with the same defaults engine.NewConfig uses, plus
// the ambient flags unique to the binary.
func New() *Config {
	return &Config{
		Engine:      engine.NewConfig(),
		SinkDir:     "./torrents",
		MetricsAddr: ":9191",
		LogLevel:    "info",
		LogJSON:     false,
	}
}

// BindFlags registers every Config field onto fs. The flags write straight
// into c's fields, so the parsed values are in place once fs.Parse returns.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Engine.ListenAddr, "listen", c.Engine.ListenAddr, "UDP address to bind the DHT socket on (host:port)")
	fs.StringSliceVar(&c.Engine.BootstrapNodes, "bootstrap", c.Engine.BootstrapNodes, "bootstrap router addresses, host:port")
	fs.DurationVar(&c.Engine.DigInterval, "dig-interval", c.Engine.DigInterval, "interval between outbound find_node digs")
	fs.DurationVar(&c.Engine.TokenTTL, "token-ttl", c.Engine.TokenTTL, "how long issued get_peers tokens stay valid")
	fs.BoolVar(&c.Engine.EnableUTP, "enable-utp", c.Engine.EnableUTP, "race µTP alongside TCP when fetching metadata")

	fs.StringVar(&c.SinkDir, "sink-dir", c.SinkDir, "directory saved metadata is written to")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "address the Prometheus /metrics endpoint listens on")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "logrus level: debug, info, warn, error")
	fs.BoolVar(&c.LogJSON, "log-json", c.LogJSON, "emit structured JSON logs instead of text")
}

// Validate reports whether the config is sane enough to run with.
func (c *Config) Validate() error {
	if c.Engine.DigInterval <= 0 {
		return errors.New("dig-interval must be positive")
	}
	if c.Engine.TokenTTL <= 0 {
		return errors.New("token-ttl must be positive")
	}
	return nil
}
