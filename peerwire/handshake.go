// Package peerwire implements the minimum slice of the BitTorrent peer
// wire protocol (BEP-3) needed to pull a torrent's info dictionary
// straight from a peer: the handshake, BEP-10 extension negotiation, and
// BEP-9 ut_metadata piece exchange. It never requests piece data.
package peerwire

import (
	"bytes"
	"fmt"
	"io"

	"dhtcrawler/krpc"
)

const protocolName = "BitTorrent protocol"

// handshakeLen is the fixed size of the BEP-3 handshake: 1 + 19 + 8 + 20 + 20.
const handshakeLen = 68

// reservedExtended holds the reserved-byte flag (BEP-10) advertising extension
// protocol support — byte 5 of the 8 reserved bytes, bit 0x10.
var reservedExtended = [8]byte{0, 0, 0, 0, 0, 0x10, 0, 0}

// Handshake is the decoded 68-byte peer wire handshake.
type Handshake struct {
	InfoHash krpc.ID
	PeerID   krpc.ID
	Extended bool
}

// sendHandshake writes our half of the handshake, always advertising
// BEP-10 extension support since that's the only reason this package
// opens a connection at all.
func sendHandshake(w io.Writer, infoHash, selfID krpc.ID) error {
	var buf bytes.Buffer
	buf.WriteByte(byte(len(protocolName)))
	buf.WriteString(protocolName)
	buf.Write(reservedExtended[:])
	buf.Write(infoHash[:])
	buf.Write(selfID[:])
	_, err := w.Write(buf.Bytes())
	return err
}

// readHandshake reads and validates the peer's half of the handshake.
func readHandshake(r io.Reader) (Handshake, error) {
	buf := make([]byte, handshakeLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Handshake{}, fmt.Errorf("peerwire: read handshake: %w", err)
	}
	if int(buf[0]) != len(protocolName) || string(buf[1:1+len(protocolName)]) != protocolName {
		return Handshake{}, fmt.Errorf("peerwire: unexpected protocol identifier")
	}
	var hs Handshake
	copy(hs.InfoHash[:], buf[28:48])
	copy(hs.PeerID[:], buf[48:68])
	hs.Extended = buf[25]&0x10 != 0
	return hs, nil
}
