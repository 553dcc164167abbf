// Package engine drives the crawler's DHT participation: it never answers
// honestly (every find_node/get_peers response it gives out is empty or a
// trickle of nodes from its own table, never real peer data), but it
// listens to everything the swarm sends it and reports the interesting
// bits — info_hashes being searched for and announced — on an event
// channel.
package engine

import (
	"math/rand"
	"net"
	"time"

	"dhtcrawler/krpc"
	"dhtcrawler/routingtable"
	"dhtcrawler/searcher"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Metrics is the subset of counters the engine publishes to, satisfied by
// the metrics package's Prometheus-backed implementation (or left nil in
// tests).
type Metrics interface {
	IncSent(method string)
	IncRecv(method string)
	IncDupe(method string)
	SetRoutingTableSize(n int)
	SetCandidatePoolSize(n int)
	IncSelfPromotion()
}

// Engine is a single DHT participant. Its exported methods other than
// Events/Close are not safe to call concurrently with Run — they exist
// for tests and for a debug HTTP surface that marshals requests onto
// Engine's own loop via channels, the way the teacher's server.go does.
type Engine struct {
	cfg  *Config
	self krpc.ID

	transport *krpc.Transport
	rt        *routingtable.RoutingTable
	searchers *searcher.Registry
	tokens    *tokenStore
	candidates *candidatePool

	log     logrus.FieldLogger
	metrics Metrics

	Events chan DhtEvent

	txnCounter    uint32
	pendingProbes map[string]probe

	stop chan struct{}
}

// probe tracks an outstanding health-check find_node fired at a routing
// table incumbent that lost a coin flip to a candidate.
type probe struct {
	incumbent krpc.ID
	candidate krpc.Node
	at        time.Time
}

// probeTimeout is how long a health-check find_node is given to answer
// before the incumbent is considered dead and evicted.
const probeTimeout = 5 * time.Second

// New builds an Engine bound to cfg.ListenAddr. It does not start
// listening or bootstrapping — call Run for that.
func New(cfg *Config, log logrus.FieldLogger, metrics Metrics) (*Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	transport, err := krpc.Listen(cfg.ListenAddr)
	if err != nil {
		return nil, errors.Wrap(err, "engine: open transport")
	}
	self := krpc.RandomID()
	e := &Engine{
		cfg:        cfg,
		self:       self,
		transport:  transport,
		searchers:  searcher.NewRegistry(log),
		tokens:     newTokenStore(cfg.TokenTTL),
		candidates: newCandidatePool(rand.Intn),
		log:        log.WithField("component", "engine"),
		metrics:    metrics,
		Events:        make(chan DhtEvent, 256),
		pendingProbes: make(map[string]probe),
		stop:          make(chan struct{}),
	}
	e.rt = routingtable.New(self, e.healthCheckProbe)
	return e, nil
}

// SelfID returns the engine's own node id.
func (e *Engine) SelfID() krpc.ID { return e.self }

// LocalAddr returns the bound UDP address.
func (e *Engine) LocalAddr() net.Addr { return e.transport.LocalAddr() }

// RoutingTable exposes the table for metrics scraping and tests.
func (e *Engine) RoutingTable() *routingtable.RoutingTable { return e.rt }

// CachedPeers returns peers already seen for infoHash by a prior or
// ongoing search, without waiting on a fresh lookup to converge.
func (e *Engine) CachedPeers(infoHash krpc.ID) []krpc.Peer {
	return e.searchers.Peers.Get(infoHash)
}

// healthCheckProbe implements routingtable.ProbeFunc: fire a find_node at
// the incumbent and replace it only if it never answers. Since the engine
// loop is single-threaded, this schedules the probe by sending the query
// immediately and relying on the normal response-handling path (via
// pendingProbes) to call Touch or Replace once the outcome is known.
func (e *Engine) healthCheckProbe(incumbent routingtable.Entry, candidate krpc.Node) {
	txn := e.nextTxn()
	e.pendingProbes[string(txn)] = probe{incumbent: incumbent.Node.ID, candidate: candidate, at: time.Now()}
	e.sendQuery(krpc.Query{Txn: txn, Method: krpc.MethodFindNode, From: e.self, Target: incumbent.Node.ID}, incumbent.Node.Addr())
	if e.metrics != nil {
		e.metrics.IncSent(krpc.MethodFindNode)
	}
}
