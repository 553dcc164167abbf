// Package krpc implements the KRPC wire protocol (BEP-5): the bencoded
// query/response/error messages exchanged over UDP between DHT nodes, the
// compact node/peer list encodings, and the UDP transport that frames them.
package krpc

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"net"
)

// IDLen is the width, in bytes, of both node ids and info_hashes — they
// share one 160-bit identifier space.
const IDLen = 20

// ID is a 20-byte identifier: a NodeId or an InfoHash, interchangeably.
type ID [IDLen]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// Bytes returns the identifier as a freshly allocated slice.
func (id ID) Bytes() []byte {
	b := make([]byte, IDLen)
	copy(b, id[:])
	return b
}

// IDFromBytes copies b (which must be exactly IDLen bytes) into an ID.
func IDFromBytes(b []byte) (ID, bool) {
	var id ID
	if len(b) != IDLen {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

// IDFromHex decodes a 40-character hex string, the form info_hashes are
// usually quoted in (magnet links, torrent clients' UIs), into an ID.
func IDFromHex(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != IDLen {
		return id, fmt.Errorf("krpc: expected %d-byte id, got %d", IDLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// RandomID generates a cryptographically random 160-bit identifier, used
// both for the local node id at startup and for dig-loop lookup targets.
func RandomID() ID {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand on any supported platform does not fail in practice;
		// degrade to a zero id rather than panic the caller.
		return id
	}
	return id
}

// XOR returns the Kademlia distance between two identifiers.
func XOR(a, b ID) ID {
	var out ID
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Less reports whether a is lexicographically smaller than b, the tie
// breaker used when sorting nodes of equal XOR distance.
func (id ID) Less(other ID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// BucketIndex returns floor(log2(distance)), or 0 when distance is zero —
// the position of the highest set bit in a 160-bit big-endian value.
func BucketIndex(distance ID) int {
	for i := 0; i < IDLen; i++ {
		if distance[i] == 0 {
			continue
		}
		// Byte i holds the highest set bit. Bit position within the byte,
		// counted from the LSB, plus the bits contributed by bytes after it.
		highBit := bits.Len8(distance[i]) - 1
		return (IDLen-1-i)*8 + highBit
	}
	return 0
}

// Node is a DHT participant: its claimed id and UDP address.
type Node struct {
	ID   ID
	Host net.IP
	Port uint16
}

func (n Node) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: n.Host, Port: int(n.Port)}
}

func (n Node) Equal(o Node) bool {
	return n.ID == o.ID && n.Host.Equal(o.Host) && n.Port == o.Port
}

// Peer is a BitTorrent peer contact: no node id, just an address.
type Peer struct {
	Host net.IP
	Port uint16
}

func (p Peer) Addr() *net.TCPAddr {
	return &net.TCPAddr{IP: p.Host, Port: int(p.Port)}
}

func packAddr(ip net.IP, port uint16) []byte {
	out := make([]byte, 6)
	v4 := ip.To4()
	copy(out[:4], v4)
	binary.BigEndian.PutUint16(out[4:], port)
	return out
}
