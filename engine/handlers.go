package engine

import (
	"net"

	"dhtcrawler/krpc"
)

// txnKindEngine marks a transaction as one the engine itself owns
// (bootstrap, dig loop, health-check probe): the counter in bytes [1:5]
// is looked up in pendingProbes, or simply discarded if it belongs to an
// untracked dig/bootstrap query.
const txnKindEngine = 0

// txnKindSearch marks a transaction as belonging to a live searcher: the
// counter in bytes [1:5] is the searcher's registry id.
const txnKindSearch = 1

func (e *Engine) handleQuery(q *krpc.Query, from *net.UDPAddr) {
	node := krpc.Node{ID: q.From, Host: from.IP, Port: uint16(from.Port)}
	e.rt.Insert(node)
	e.candidates.Add(node)

	switch q.Method {
	case krpc.MethodPing:
		if e.metrics != nil {
			e.metrics.IncRecv(krpc.MethodPing)
		}
		e.replyPing(q, from)
	case krpc.MethodFindNode:
		if e.metrics != nil {
			e.metrics.IncRecv(krpc.MethodFindNode)
		}
		e.replyFindNode(q, from)
	case krpc.MethodGetPeers:
		if e.metrics != nil {
			e.metrics.IncRecv(krpc.MethodGetPeers)
		}
		e.publish(DhtEvent{Kind: EventGetPeers, InfoHash: q.InfoHash, From: node})
		e.replyGetPeers(q, from)
	case krpc.MethodAnnouncePeer:
		if e.metrics != nil {
			e.metrics.IncRecv(krpc.MethodAnnouncePeer)
		}
		e.handleAnnounce(q, from, node)
	}

	e.followUp(from)
}

// followUp sends one find_node(random_target) back at whoever just sent
// us a query, piggybacking routing-table growth on all inbound traffic
// instead of only on queries we initiate ourselves.
func (e *Engine) followUp(to *net.UDPAddr) {
	txn := e.nextTxn()
	target := krpc.RandomID()
	e.sendQuery(krpc.Query{Txn: txn, Method: krpc.MethodFindNode, From: e.self, Target: target}, to)
	if e.metrics != nil {
		e.metrics.IncSent(krpc.MethodFindNode)
	}
}

func (e *Engine) replyPing(q *krpc.Query, to *net.UDPAddr) {
	e.send(krpc.EncodeResponse(q.Txn, e.self, krpc.Response{}, false, false), to)
}

func (e *Engine) replyFindNode(q *krpc.Query, to *net.UDPAddr) {
	nodes := e.rt.Closest(q.Target, 8)
	e.send(krpc.EncodeResponse(q.Txn, e.self, krpc.Response{Nodes: nodes}, true, false), to)
}

// replyGetPeers never hands back real peer contacts — the crawler's whole
// point is to observe, not to participate honestly — so it always answers
// with the closest nodes it knows of plus a fresh token, exactly what a
// real node with no peers cached for this info_hash would send back.
func (e *Engine) replyGetPeers(q *krpc.Query, to *net.UDPAddr) {
	nodes := e.rt.Closest(q.InfoHash, 8)
	token := e.tokens.Issue(to.String())
	e.send(krpc.EncodeResponse(q.Txn, e.self, krpc.Response{Nodes: nodes, Token: token}, true, false), to)
}

func (e *Engine) handleAnnounce(q *krpc.Query, from *net.UDPAddr, node krpc.Node) {
	e.send(krpc.EncodeResponse(q.Txn, e.self, krpc.Response{}, false, false), from)
	if !e.tokens.Valid(from.String(), q.Token) {
		return
	}
	port := q.Port
	if q.ImpliedPort {
		port = uint16(from.Port)
	}
	peer := krpc.Peer{Host: from.IP, Port: port}
	e.publish(DhtEvent{Kind: EventAnnouncePeer, InfoHash: q.InfoHash, Peers: []krpc.Peer{peer}, From: node})
}

func (e *Engine) handleResponse(r *krpc.Response, from *net.UDPAddr) {
	node := krpc.Node{ID: r.From, Host: from.IP, Port: uint16(from.Port)}
	e.rt.Insert(node)

	kind, counter, ok := splitTxn(r.Txn)
	if !ok {
		// Unrecognized shape (e.g. a reply to a query we never sent, or
		// from before a restart) — still worth harvesting the nodes.
		e.mergeDiscovered(r.Nodes)
		return
	}
	switch kind {
	case txnKindSearch:
		e.handleSearchResponse(counter, r, node)
	case txnKindEngine:
		if p, ok := e.pendingProbes[string(r.Txn)]; ok {
			delete(e.pendingProbes, string(r.Txn))
			e.rt.Touch(p.incumbent)
		}
		e.mergeDiscovered(r.Nodes)
	}
}

func (e *Engine) mergeDiscovered(nodes []krpc.Node) {
	for _, n := range nodes {
		e.rt.Insert(n)
		e.candidates.Add(n)
	}
}

func (e *Engine) handleSearchResponse(searcherID uint32, r *krpc.Response, from krpc.Node) {
	s, ok := e.searchers.Lookup(searcherID)
	if !ok {
		e.mergeDiscovered(r.Nodes)
		return
	}
	s.AddNodes(r.Nodes)
	e.mergeDiscovered(r.Nodes)
	if len(r.Peers) > 0 {
		s.AddPeers(r.Peers)
		e.searchers.Peers.Add(s.InfoHash, r.Peers)
		e.publish(DhtEvent{Kind: EventPeersFound, InfoHash: s.InfoHash, Peers: r.Peers, From: from})
	}
}

func (e *Engine) publish(ev DhtEvent) {
	select {
	case e.Events <- ev:
	default:
		e.log.Warn("events channel full, dropping event")
	}
}

func (e *Engine) send(b []byte, to *net.UDPAddr) {
	if err := e.transport.Send(b, to); err != nil {
		e.log.WithError(err).WithField("addr", to.String()).Debug("send reply failed")
	}
}

func splitTxn(txn []byte) (kind byte, counter uint32, ok bool) {
	if len(txn) != 5 {
		return 0, 0, false
	}
	return txn[0], uint32(txn[1])<<24 | uint32(txn[2])<<16 | uint32(txn[3])<<8 | uint32(txn[4]), true
}

func buildTxn(kind byte, counter uint32) []byte {
	return []byte{kind, byte(counter >> 24), byte(counter >> 16), byte(counter >> 8), byte(counter)}
}
