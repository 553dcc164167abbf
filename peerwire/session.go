package peerwire

import (
	"fmt"
	"io"
	"net"
	"time"

	"dhtcrawler/bencode"
	"dhtcrawler/krpc"
)

// ConnectTimeout bounds the initial TCP dial; µTP has its own handshake
// timeout (utp.DialTimeout).
const ConnectTimeout = 1 * time.Second

// pieceRequestDelay mirrors the reference implementation's sleep(0.05)
// between piece requests — a small, deliberate pause so a peer's own
// request queue doesn't see a burst it decides to throttle.
const pieceRequestDelay = 50 * time.Millisecond

// conn is the minimal stream interface this package needs, satisfied by
// both *net.TCPConn and *utp.Conn.
type conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Result is a successfully fetched torrent info dictionary.
type Result struct {
	InfoHash krpc.ID
	Raw      []byte        // the raw bencoded info dict
	Info     bencode.Value // the parsed dict
}

// DialTCP opens a TCP peer wire connection with ConnectTimeout.
func DialTCP(addr *net.TCPAddr) (net.Conn, error) {
	return net.DialTimeout("tcp", addr.String(), ConnectTimeout)
}

// Fetch runs the full handshake / extension-negotiation / piece-request
// exchange over an already-connected conn (TCP or µTP) and returns the
// verified info dictionary. It fails fast and closes c on any protocol
// violation or stall — there is no retry inside a single session, per the
// project's own resolution of that open question.
func Fetch(c conn, infoHash, self krpc.ID) (*Result, error) {
	defer c.Close()

	if err := sendHandshake(c, infoHash, self); err != nil {
		return nil, fmt.Errorf("peerwire: send handshake: %w", err)
	}
	peerHS, err := readHandshake(c)
	if err != nil {
		return nil, err
	}
	if peerHS.InfoHash != infoHash {
		return nil, fmt.Errorf("peerwire: peer echoed a different info_hash")
	}
	if !peerHS.Extended {
		return nil, fmt.Errorf("peerwire: peer does not support BEP-10 extensions")
	}
	if err := sendExtendedHandshake(c); err != nil {
		return nil, fmt.Errorf("peerwire: send extended handshake: %w", err)
	}

	var peerExt peerExtendedHandshake
	var assembler *metadataAssembler
	nextPiece := 0

	for {
		frame, err := readFrame(c)
		if err != nil {
			return nil, err
		}
		if frame == nil {
			continue // keep-alive
		}
		if len(frame) == 0 || frame[0] != 20 {
			continue // not an extended message; ignore (e.g. bitfield, have)
		}
		extMsgID := frame[1]
		body := frame[2:]

		if extMsgID == extendedHandshakeMsgID {
			peerExt, err = parseExtendedHandshake(body)
			if err != nil {
				return nil, fmt.Errorf("peerwire: parse extended handshake: %w", err)
			}
			if peerExt.MetadataSize == 0 || peerExt.UTMetadataID == 0 {
				return nil, fmt.Errorf("peerwire: peer did not advertise ut_metadata")
			}
			assembler = newMetadataAssembler(peerExt.MetadataSize)
			if err := sendMetadataRequest(c, peerExt.UTMetadataID, nextPiece); err != nil {
				return nil, err
			}
			nextPiece++
			continue
		}
		if assembler == nil {
			continue // piece data before the handshake? ignore and keep reading
		}
		got, err := assembler.handleData(body)
		if err != nil {
			return nil, err
		}
		if !got {
			continue
		}
		if assembler.complete() {
			raw, err := assembler.assemble(infoHash)
			if err != nil {
				return nil, err
			}
			info, err := bencode.Unmarshal(raw)
			if err != nil {
				return nil, fmt.Errorf("peerwire: assembled metadata is not valid bencode: %w", err)
			}
			return &Result{InfoHash: infoHash, Raw: raw, Info: info}, nil
		}
		time.Sleep(pieceRequestDelay)
		if err := sendMetadataRequest(c, peerExt.UTMetadataID, nextPiece); err != nil {
			return nil, err
		}
		nextPiece++
	}
}
