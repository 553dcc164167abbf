package engine

import (
	"dhtcrawler/krpc"

	"github.com/sirupsen/logrus"
)

// searchFanout is how many not-yet-queried nodes of a searcher get a
// get_peers query each round (picked in no particular order), and how many
// of the routing table's closest nodes seed a fresh search.
const searchFanout = 16

// StartSearch begins (or joins, if already running) an iterative
// get_peers lookup for infoHash. The caller — typically the fetcher
// orchestrator reacting to an EventGetPeers/EventAnnouncePeer — doesn't
// need to drive the rounds itself; the engine's own ticker does that.
func (e *Engine) StartSearch(infoHash krpc.ID) {
	seed := e.rt.Closest(infoHash, searchFanout)
	_, started := e.searchers.Start(infoHash, seed)
	if started {
		e.log.WithFields(logrus.Fields{"info_hash": infoHash.String(), "seed": len(seed)}).Debug("search started")
	}
}

// driveSearches fires the next round of get_peers queries for every live
// searcher and retires any whose stagnation budget has run out. Called
// from a ticker in Run.
func (e *Engine) driveSearches() {
	for _, s := range e.searchers.All() {
		pending := s.Pending(searchFanout)
		for _, n := range pending {
			txn := buildTxn(txnKindSearch, s.ID)
			e.sendQuery(krpc.Query{Txn: txn, Method: krpc.MethodGetPeers, From: e.self, InfoHash: s.InfoHash}, n.Addr())
			s.MarkContacted(n.ID)
			if e.metrics != nil {
				e.metrics.IncSent(krpc.MethodGetPeers)
			}
		}
		_, left := s.EndRound()
		if left <= 0 {
			e.searchers.Terminate(s)
		}
	}
}
