// Package utp implements just enough of BEP-29 (Micro Transport Protocol)
// to carry a single BitTorrent peer-wire metadata exchange over UDP: no
// retransmission, no reordering, no congestion window. A dropped packet
// is a dropped session, same as spec.md requires.
package utp

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"
)

// Type is a µTP packet's ST_* type nibble.
type Type uint8

const (
	TypeData  Type = 0
	TypeFin   Type = 1
	TypeState Type = 2
	TypeReset Type = 3
	TypeSyn   Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeData:
		return "ST_DATA"
	case TypeFin:
		return "ST_FIN"
	case TypeState:
		return "ST_STATE"
	case TypeReset:
		return "ST_RESET"
	case TypeSyn:
		return "ST_SYN"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Version is the only µTP protocol version this package speaks.
const Version = 1

// headerLen is the fixed 20-byte µTP header size (BEP-29), before any
// extensions or payload.
const headerLen = 20

// Packet is a decoded µTP packet.
type Packet struct {
	Type           Type
	Version        uint8
	ConnID         uint16
	Timestamp      uint32
	TimestampDiff  uint32
	WindowSize     uint32
	SeqNr          uint16
	AckNr          uint16
	Extensions     []extension
	Data           []byte
}

type extension struct {
	Type byte
	Data []byte
}

// Encode serializes p into its wire form.
func Encode(p Packet) []byte {
	buf := make([]byte, headerLen)
	firstExt := byte(0)
	if len(p.Extensions) > 0 {
		firstExt = p.Extensions[0].Type
	}
	buf[0] = byte(p.Type)<<4 | (p.Version & 0x0f)
	buf[1] = firstExt
	binary.BigEndian.PutUint16(buf[2:4], p.ConnID)
	binary.BigEndian.PutUint32(buf[4:8], p.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], p.TimestampDiff)
	binary.BigEndian.PutUint32(buf[12:16], p.WindowSize)
	binary.BigEndian.PutUint16(buf[16:18], p.SeqNr)
	binary.BigEndian.PutUint16(buf[18:20], p.AckNr)

	for i, ext := range p.Extensions {
		next := byte(0)
		if i+1 < len(p.Extensions) {
			next = p.Extensions[i+1].Type
		}
		buf = append(buf, next, byte(len(ext.Data)))
		buf = append(buf, ext.Data...)
	}
	buf = append(buf, p.Data...)
	return buf
}

// Decode parses a raw datagram into a Packet.
func Decode(b []byte) (Packet, error) {
	if len(b) < headerLen {
		return Packet{}, fmt.Errorf("utp: short packet (%d bytes)", len(b))
	}
	p := Packet{
		Type:          Type(b[0] >> 4),
		Version:       b[0] & 0x0f,
		ConnID:        binary.BigEndian.Uint16(b[2:4]),
		Timestamp:     binary.BigEndian.Uint32(b[4:8]),
		TimestampDiff: binary.BigEndian.Uint32(b[8:12]),
		WindowSize:    binary.BigEndian.Uint32(b[12:16]),
		SeqNr:         binary.BigEndian.Uint16(b[16:18]),
		AckNr:         binary.BigEndian.Uint16(b[18:20]),
	}
	if p.Type > TypeSyn {
		return Packet{}, fmt.Errorf("utp: unknown packet type %d", b[0]>>4)
	}
	rest := b[headerLen:]
	nextExt := b[1]
	for nextExt != 0 {
		if len(rest) < 2 {
			return Packet{}, fmt.Errorf("utp: truncated extension header")
		}
		extType := nextExt
		followingExt := rest[0]
		extLen := int(rest[1])
		rest = rest[2:]
		if len(rest) < extLen {
			return Packet{}, fmt.Errorf("utp: truncated extension data")
		}
		p.Extensions = append(p.Extensions, extension{Type: extType, Data: rest[:extLen]})
		rest = rest[extLen:]
		nextExt = followingExt
	}
	p.Data = rest
	return p, nil
}

// nowMicros returns the current time in microseconds, truncated to 32
// bits — the same scale get_tms uses in the reference implementation.
func nowMicros() uint32 {
	return uint32(time.Now().UnixMicro() & 0xffffffff)
}

// randConnID returns a random 16-bit connection id, as the reference
// implementation's randrange(0xffff) does for a fresh SYN.
func randConnID() uint16 {
	return uint16(rand.Intn(0xffff))
}
