package utp

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"
)

// State is one of the five µTP connection states from BEP-29. This
// package only ever drives the subset an active opener needs —
// UNKNOWN, SYN_SENT, CONNECTED, DISCONNECTED — but SYN_RECV exists for
// completeness and symmetry with the reference state machine.
type State int

const (
	StateUnknown State = iota
	StateSynSent
	StateSynRecv
	StateConnected
	StateDisconnected
)

// DialTimeout bounds how long Dial waits for the peer's ST_STATE
// acknowledging our ST_SYN.
const DialTimeout = 3 * time.Second

// Conn is one µTP connection, always the actively-opening side: the
// crawler only ever reaches out to peers, it never accepts inbound µTP,
// so there is no listener half of this package.
type Conn struct {
	sock *net.UDPConn

	mu         sync.Mutex
	state      State
	seqNr      uint16
	ackNr      uint16
	connIDRecv uint16
	connIDSend uint16

	connected chan struct{}
	incoming  chan []byte
	readBuf   []byte
	closed    chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial opens a µTP connection to addr, blocking until the peer
// acknowledges the handshake or DialTimeout elapses.
func Dial(addr *net.UDPAddr) (*Conn, error) {
	sock, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("utp: dial: %w", err)
	}
	connIDRecv := randConnID()
	c := &Conn{
		sock:       sock,
		state:      StateSynSent,
		seqNr:      2, // 1 was consumed by the SYN itself
		connIDRecv: connIDRecv,
		connIDSend: connIDRecv + 1,
		connected:  make(chan struct{}),
		incoming:   make(chan []byte, 64),
		closed:     make(chan struct{}),
	}

	syn := Packet{
		Type:       TypeSyn,
		Version:    Version,
		ConnID:     connIDRecv,
		Timestamp:  nowMicros(),
		WindowSize: 0xf000,
		SeqNr:      1,
		Extensions: []extension{{Type: 2, Data: make([]byte, 8)}},
	}
	if _, err := sock.Write(Encode(syn)); err != nil {
		sock.Close()
		return nil, fmt.Errorf("utp: send syn: %w", err)
	}

	go c.readLoop()

	select {
	case <-c.connected:
		return c, nil
	case <-time.After(DialTimeout):
		c.Close()
		return nil, fmt.Errorf("utp: dial %s: timed out waiting for ST_STATE", addr)
	case <-c.closed:
		return nil, c.err
	}
}

func (c *Conn) readLoop() {
	buf := make([]byte, 4096)
	for {
		c.sock.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := c.sock.Read(buf)
		if err != nil {
			c.fail(fmt.Errorf("utp: read: %w", err))
			return
		}
		pkt, err := Decode(buf[:n])
		if err != nil {
			c.fail(err)
			return
		}
		c.handle(pkt)
	}
}

func (c *Conn) handle(pkt Packet) {
	c.mu.Lock()
	c.ackNr = pkt.SeqNr
	state := c.state
	c.mu.Unlock()

	switch pkt.Type {
	case TypeState:
		if state == StateSynSent {
			c.mu.Lock()
			c.state = StateConnected
			c.mu.Unlock()
			close(c.connected)
		}
	case TypeData:
		c.sendState()
		select {
		case c.incoming <- pkt.Data:
		case <-c.closed:
		}
	case TypeReset:
		c.fail(fmt.Errorf("utp: connection reset by peer"))
	case TypeFin:
		c.sendFin()
		c.fail(nil)
	}
}

func (c *Conn) sendState() {
	c.mu.Lock()
	pkt := Packet{
		Type:       TypeState,
		Version:    Version,
		ConnID:     c.connIDSend,
		Timestamp:  nowMicros(),
		TimestampDiff: tmsDiff(),
		WindowSize: 0xf000,
		SeqNr:      c.seqNr,
		AckNr:      c.ackNr,
	}
	c.mu.Unlock()
	c.sock.Write(Encode(pkt))
}

func (c *Conn) sendFin() {
	c.mu.Lock()
	pkt := Packet{
		Type:          TypeFin,
		Version:       Version,
		ConnID:        c.connIDSend,
		Timestamp:     nowMicros(),
		TimestampDiff: tmsDiff(),
		WindowSize:    0xf000,
		SeqNr:         c.seqNr,
		AckNr:         c.ackNr,
	}
	c.mu.Unlock()
	c.sock.Write(Encode(pkt))
}

// Write sends a single ST_DATA packet carrying b whole — no fragmentation,
// no retransmission. The caller (peerwire) frames its own messages with
// length prefixes, so packet boundaries carry no meaning: one peer-wire
// message can span several packets (writeExtended writes its length prefix
// and its body with separate Write calls).
func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return 0, fmt.Errorf("utp: write before connected")
	}
	pkt := Packet{
		Type:          TypeData,
		Version:       Version,
		ConnID:        c.connIDSend,
		Timestamp:     nowMicros(),
		TimestampDiff: tmsDiff(),
		WindowSize:    0xf000,
		SeqNr:         c.seqNr,
		AckNr:         c.ackNr,
		Data:          b,
	}
	c.seqNr++
	c.mu.Unlock()
	if _, err := c.sock.Write(Encode(pkt)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Read implements io.Reader over the sequence of received ST_DATA
// payloads, so callers (peerwire's buffered framer) can treat a Conn like
// any other stream. If p is shorter than the next queued payload, the
// remainder is held back for the following Read call.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	leftover := c.readBuf
	c.mu.Unlock()
	if len(leftover) == 0 {
		select {
		case b := <-c.incoming:
			leftover = b
		case <-c.closed:
			if c.err != nil {
				return 0, c.err
			}
			return 0, io.EOF
		}
	}
	n := copy(p, leftover)
	c.mu.Lock()
	c.readBuf = leftover[n:]
	c.mu.Unlock()
	return n, nil
}

func (c *Conn) fail(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.closed)
	})
}

// Close sends ST_FIN (if connected) and releases the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	state := c.state
	c.state = StateDisconnected
	c.mu.Unlock()
	if state == StateConnected {
		c.sendFin()
	}
	c.fail(nil)
	return c.sock.Close()
}

// tmsDiff mirrors get_tms_diff in the reference implementation: a
// jittered timestamp-difference value. µTP uses this for delay-based
// congestion control, which this package deliberately doesn't implement;
// the field is populated only so peers that do inspect it see plausible
// data.
func tmsDiff() uint32 {
	return nowMicros() + uint32(rand.Intn(10000))
}
