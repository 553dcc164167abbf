package engine

import "dhtcrawler/krpc"

// EventKind identifies the observation an Engine is publishing about
// traffic it has seen, for consumers like the fetcher orchestrator that
// don't want to be wired directly into the KRPC dispatch code.
type EventKind int

const (
	// EventGetPeers fires whenever an inbound get_peers query names an
	// info_hash — the crawler's primary harvest signal.
	EventGetPeers EventKind = iota
	// EventAnnouncePeer fires whenever an inbound announce_peer names an
	// info_hash and a port we can trust (real, or implied from the UDP
	// source address).
	EventAnnouncePeer
	// EventPeersFound fires when one of our own get_peers searchers
	// receives a response carrying a "values" peer list.
	EventPeersFound
)

// DhtEvent is published on Engine.Events for every interesting thing the
// engine observes, replacing the teacher's direct-callback style with a
// channel a consumer can range over independently of the engine's own
// goroutine.
type DhtEvent struct {
	Kind     EventKind
	InfoHash krpc.ID
	Peers    []krpc.Peer // EventAnnouncePeer (single peer), EventPeersFound (batch)
	From     krpc.Node
}
