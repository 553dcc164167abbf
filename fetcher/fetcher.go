// Package fetcher orchestrates turning a harvested info_hash into saved
// metadata: it watches the engine's event stream, kicks off DHT searches
// for info_hashes it hasn't seen, and once a search surfaces peers, races
// a handful of them over TCP (and optionally µTP) to pull the info dict.
package fetcher

import (
	"net"
	"sync"
	"time"

	"dhtcrawler/engine"
	"dhtcrawler/krpc"
	"dhtcrawler/peerwire"
	"dhtcrawler/sink"
	"dhtcrawler/utp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BatchSize is the maximum number of peers raced against each other for
// a single info_hash at a time.
const BatchSize = 20

// BatchTimeout bounds how long a single batch of peer races is allowed to
// run before being abandoned.
const BatchTimeout = 60 * time.Second

// Metrics is the subset of counters the fetcher publishes to.
type Metrics interface {
	IncMetadataFetch(result string)
	IncUTPSession(state string)
}

// Orchestrator ties the engine's event stream to peerwire fetch attempts
// and a Sink.
type Orchestrator struct {
	eng       *engine.Engine
	sink      sink.Sink
	self      krpc.ID
	enableUTP bool
	metrics   Metrics
	log       logrus.FieldLogger

	inFlight *inFlightSet
	stop     chan struct{}
}

// New builds an Orchestrator. metrics may be nil.
func New(eng *engine.Engine, sk sink.Sink, self krpc.ID, enableUTP bool, metrics Metrics, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		eng:       eng,
		sink:      sk,
		self:      self,
		enableUTP: enableUTP,
		metrics:   metrics,
		log:       log.WithField("component", "fetcher"),
		inFlight:  newInFlightSet(),
		stop:      make(chan struct{}),
	}
}

// Run consumes the engine's event stream until Close is called. It's
// meant to run in its own goroutine, same as Engine.Run.
func (o *Orchestrator) Run() {
	for {
		select {
		case <-o.stop:
			return
		case ev, ok := <-o.eng.Events:
			if !ok {
				return
			}
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) Close() {
	select {
	case <-o.stop:
	default:
		close(o.stop)
	}
}

func (o *Orchestrator) handle(ev engine.DhtEvent) {
	switch ev.Kind {
	case engine.EventGetPeers, engine.EventAnnouncePeer:
		o.maybeStartSearch(ev.InfoHash)
		if ev.Kind == engine.EventAnnouncePeer && len(ev.Peers) > 0 {
			go o.tryBatch(ev.InfoHash, ev.Peers)
		}
	case engine.EventPeersFound:
		go o.tryBatch(ev.InfoHash, ev.Peers)
	}
}

func (o *Orchestrator) maybeStartSearch(infoHash krpc.ID) {
	if o.inFlight.Contains(infoHash) {
		return
	}
	if o.sink != nil {
		if exists, err := o.sink.Exists(infoHash); err != nil {
			o.log.WithError(err).Warn("sink.Exists failed, proceeding as if unseen")
		} else if exists {
			return
		}
	}
	if !o.inFlight.Add(infoHash) {
		return
	}
	if cached := o.eng.CachedPeers(infoHash); len(cached) > 0 {
		go o.tryBatch(infoHash, cached)
		return
	}
	o.eng.StartSearch(infoHash)
}

// tryBatch races up to BatchSize peers against each other for infoHash
// and saves the first successful fetch. It always removes infoHash from
// the in-flight set before returning, win or lose.
func (o *Orchestrator) tryBatch(infoHash krpc.ID, peers []krpc.Peer) {
	defer o.inFlight.Remove(infoHash)

	if len(peers) > BatchSize {
		peers = peers[:BatchSize]
	}

	type attempt struct {
		result *peerwire.Result
		err    error
	}
	results := make(chan attempt, len(peers)*2)
	var wg sync.WaitGroup

	for _, p := range peers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.fetchTCP(infoHash, p)
			results <- attempt{res, err}
		}()
		if o.enableUTP {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := o.fetchUTP(infoHash, p)
				results <- attempt{res, err}
			}()
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	timeout := time.NewTimer(BatchTimeout)
	defer timeout.Stop()

	for {
		select {
		case a, ok := <-results:
			if !ok {
				if o.metrics != nil {
					o.metrics.IncMetadataFetch("failure")
				}
				return
			}
			if a.err != nil {
				continue
			}
			o.save(a.result)
			return
		case <-timeout.C:
			if o.metrics != nil {
				o.metrics.IncMetadataFetch("timeout")
			}
			return
		}
	}
}

func (o *Orchestrator) save(res *peerwire.Result) {
	if o.metrics != nil {
		o.metrics.IncMetadataFetch("success")
	}
	if o.sink == nil {
		return
	}
	if err := o.sink.Save(res.InfoHash, res.Raw); err != nil {
		o.log.WithError(err).WithField("info_hash", res.InfoHash.String()).Warn("sink.Save failed")
	}
}

func (o *Orchestrator) fetchTCP(infoHash krpc.ID, p krpc.Peer) (*peerwire.Result, error) {
	session := uuid.NewString()
	log := o.log.WithField("session", session).WithField("transport", "tcp")
	c, err := peerwire.DialTCP(p.Addr())
	if err != nil {
		log.WithError(err).Debug("tcp dial failed")
		return nil, err
	}
	res, err := peerwire.Fetch(c, infoHash, o.self)
	if err != nil {
		log.WithError(err).Debug("tcp fetch failed")
	}
	return res, err
}

func (o *Orchestrator) fetchUTP(infoHash krpc.ID, p krpc.Peer) (*peerwire.Result, error) {
	session := uuid.NewString()
	log := o.log.WithField("session", session).WithField("transport", "utp")
	c, err := utp.Dial(&net.UDPAddr{IP: p.Host, Port: int(p.Port)})
	if err != nil {
		log.WithError(err).Debug("utp dial failed")
		if o.metrics != nil {
			o.metrics.IncUTPSession("timed_out")
		}
		return nil, err
	}
	res, err := peerwire.Fetch(c, infoHash, o.self)
	if o.metrics != nil {
		if err != nil {
			o.metrics.IncUTPSession("reset")
		} else {
			o.metrics.IncUTPSession("connected")
		}
	}
	if err != nil {
		log.WithError(err).Debug("utp fetch failed")
	}
	return res, err
}
