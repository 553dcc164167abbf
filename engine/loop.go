package engine

import (
	"net"
	"time"

	"dhtcrawler/krpc"
)

// Run bootstraps against cfg.BootstrapNodes and then blocks, servicing
// inbound packets, the dig loop, and periodic sweeps until Close is
// called. It is meant to be run in its own goroutine, mirroring the
// teacher's single event loop owning all mutable engine state.
func (e *Engine) Run() error {
	e.bootstrap()

	digTicker := time.NewTicker(e.cfg.DigInterval)
	defer digTicker.Stop()
	probeTicker := time.NewTicker(time.Second)
	defer probeTicker.Stop()
	tokenTicker := time.NewTicker(time.Minute)
	defer tokenTicker.Stop()
	searchTicker := time.NewTicker(2 * time.Second)
	defer searchTicker.Stop()

	packets := make(chan krpc.Packet, 64)
	recvErrs := make(chan error, 1)
	go e.recvLoop(packets, recvErrs)

	for {
		select {
		case <-e.stop:
			return nil
		case err := <-recvErrs:
			return err
		case pkt := <-packets:
			e.handlePacket(pkt)
			e.transport.Release(pkt)
		case <-digTicker.C:
			e.dig()
		case <-probeTicker.C:
			e.sweepProbes()
		case <-tokenTicker.C:
			e.tokens.Sweep()
		case <-searchTicker.C:
			e.driveSearches()
		}
		if e.metrics != nil {
			e.metrics.SetRoutingTableSize(e.rt.Len())
			e.metrics.SetCandidatePoolSize(e.candidates.Len())
		}
	}
}

// Close stops Run and releases the socket.
func (e *Engine) Close() error {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
	e.searchers.Close()
	return e.transport.Close()
}

func (e *Engine) recvLoop(out chan<- krpc.Packet, errs chan<- error) {
	for {
		pkt, err := e.transport.Recv()
		if err != nil {
			select {
			case errs <- err:
			default:
			}
			return
		}
		select {
		case out <- pkt:
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) bootstrap() {
	for _, addr := range e.cfg.BootstrapNodes {
		udpAddr, err := net.ResolveUDPAddr("udp4", addr)
		if err != nil {
			e.log.WithError(err).WithField("addr", addr).Warn("bootstrap: could not resolve router")
			continue
		}
		txn := e.nextTxn()
		e.sendQuery(krpc.Query{Txn: txn, Method: krpc.MethodFindNode, From: e.self, Target: e.self}, udpAddr)
		if e.metrics != nil {
			e.metrics.IncSent(krpc.MethodFindNode)
		}
	}
}

// dig fires one outbound find_node at the next candidate in the pool,
// generalizing the crawl across the id space. Targets a random id rather
// than our own so the candidate's reply surfaces a diverse slice of its
// table instead of always the neighborhood around us.
func (e *Engine) dig() {
	node, ok := e.candidates.Take()
	if !ok {
		return
	}
	txn := e.nextTxn()
	target := krpc.RandomID()
	e.sendQuery(krpc.Query{Txn: txn, Method: krpc.MethodFindNode, From: e.self, Target: target}, node.Addr())
	if e.metrics != nil {
		e.metrics.IncSent(krpc.MethodFindNode)
	}
}

func (e *Engine) sweepProbes() {
	now := time.Now()
	for txn, p := range e.pendingProbes {
		if now.Sub(p.at) < probeTimeout {
			continue
		}
		delete(e.pendingProbes, txn)
		e.rt.Replace(p.incumbent, p.candidate)
		e.candidates.Add(p.candidate)
	}
}

func (e *Engine) nextTxn() []byte {
	e.txnCounter++
	return buildTxn(txnKindEngine, e.txnCounter)
}

func (e *Engine) sendQuery(q krpc.Query, to *net.UDPAddr) {
	if err := e.transport.Send(krpc.EncodeQuery(q), to); err != nil {
		e.log.WithError(err).WithField("addr", to.String()).Debug("send query failed")
	}
}

func (e *Engine) handlePacket(pkt krpc.Packet) {
	msg, err := krpc.Decode(pkt.Payload)
	if err != nil {
		e.log.WithError(err).WithField("from", pkt.From.String()).Debug("dropping malformed packet")
		return
	}
	switch m := msg.(type) {
	case *krpc.Query:
		e.handleQuery(m, pkt.From)
	case *krpc.Response:
		e.handleResponse(m, pkt.From)
	case *krpc.ErrorReply:
		e.log.WithField("from", pkt.From.String()).WithField("code", m.Code).Debug("received error reply")
	}
}
