package engine

import "time"

// CandidatePoolCap bounds the dig loop's pool of "nodes we might still want
// to find_node toward," matching the scale the original crawler runs at.
const CandidatePoolCap = 160000

// Config configures a crawling Engine. Use NewConfig for sane defaults.
type Config struct {
	// ListenAddr is the UDP address to bind, host:port. Empty host binds
	// all interfaces; port 0 picks one at random.
	ListenAddr string

	// BootstrapNodes are host:port router addresses queried once at
	// startup to seed the routing table and candidate pool.
	BootstrapNodes []string

	// DigInterval is how often the dig loop fires an outbound find_node
	// at a candidate, generalizing a crawl across the id space.
	DigInterval time.Duration

	// TokenTTL bounds how long a get_peers token remains valid for a
	// matching announce_peer.
	TokenTTL time.Duration

	// EnableUTP toggles µTP as a fetch transport alongside TCP. Default
	// off per the project's own open-question resolution.
	EnableUTP bool
}

// NewConfig returns a Config populated with the engine's defaults.
func NewConfig() *Config {
	return &Config{
		ListenAddr: ":0",
		BootstrapNodes: []string{
			"router.bittorrent.com:6881",
			"dht.transmissionbt.com:6881",
			"router.utorrent.com:6881",
		},
		DigInterval: 100 * time.Millisecond,
		TokenTTL:    10 * time.Minute,
		EnableUTP:   false,
	}
}
