package krpc

import (
	"net"

	"dhtcrawler/arena"

	"github.com/pkg/errors"
)

// MaxDatagramSize is the size of each receive buffer, and so the largest
// UDP payload Recv returns; longer datagrams are truncated by the read.
// Send does not check the size of what it writes.
const MaxDatagramSize = 4096

// Packet is a received datagram paired with its source address. Payload is
// backed by an arena block and must be returned via Transport.Release once
// the caller is done decoding it.
type Packet struct {
	Payload []byte
	From    *net.UDPAddr
}

// Transport is a UDP socket that reuses a small pool of read buffers
// instead of allocating one per datagram, the same arena idiom the teacher
// uses for its packet-reading hot path.
type Transport struct {
	conn  *net.UDPConn
	blocks arena.Arena
}

// Listen opens a UDP socket on addr (host:port, host may be empty for
// all interfaces).
func Listen(addr string) (*Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve udp addr %q", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen udp %q", addr)
	}
	return &Transport{
		conn:   conn,
		blocks: arena.NewArena(MaxDatagramSize, 256),
	}, nil
}

func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

func (t *Transport) Close() error { return t.conn.Close() }

// Send writes the already-encoded b as a single datagram. b is not retained.
func (t *Transport) Send(b []byte, to *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(b, to)
	return err
}

// Recv blocks for the next datagram. The returned Packet.Payload must be
// released with Release when the caller no longer needs it.
func (t *Transport) Recv() (Packet, error) {
	buf := t.blocks.Pop()
	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		t.blocks.Push(buf)
		return Packet{}, err
	}
	return Packet{Payload: buf[:n], From: from}, nil
}

// Release returns a packet's buffer to the arena. Callers must not touch
// Payload after calling this.
func (t *Transport) Release(p Packet) {
	t.blocks.Push(p.Payload)
}
