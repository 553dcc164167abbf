package peerwire

import (
	"crypto/sha1"
	"fmt"
	"sort"

	"dhtcrawler/bencode"
)

const metadataPieceSize = 16 * 1024

const (
	utMetadataRequest = 0
	utMetadataData    = 1
	utMetadataReject  = 2
)

func sendMetadataRequest(w interface{ Write([]byte) (int, error) }, extMsgID byte, piece int) error {
	payload := bencode.Marshal(bencode.NewDict(map[string]bencode.Value{
		"msg_type": bencode.Int(utMetadataRequest),
		"piece":    bencode.Int(int64(piece)),
	}))
	return writeExtended(w, extMsgID, payload)
}

// metadataAssembler accumulates ut_metadata DATA pieces and validates the
// final blob against the info_hash once every piece has arrived.
type metadataAssembler struct {
	totalSize int64
	pieces    map[int][]byte
}

func newMetadataAssembler(totalSize int64) *metadataAssembler {
	return &metadataAssembler{totalSize: totalSize, pieces: make(map[int][]byte)}
}

func (a *metadataAssembler) numPieces() int {
	return int((a.totalSize + metadataPieceSize - 1) / metadataPieceSize)
}

// handleData parses a ut_metadata message body (bencoded dict followed by
// raw piece bytes for msg_type=1) and records the piece if it's a DATA
// message. Returns ok=false for REQUEST/REJECT messages, which this
// package, as a pure fetcher, never needs to act on beyond ignoring them.
func (a *metadataAssembler) handleData(body []byte) (ok bool, err error) {
	v, consumed, err := bencode.DecodePrefix(body)
	if err != nil {
		return false, fmt.Errorf("peerwire: ut_metadata message: %w", err)
	}
	msgType, _ := v.GetInt("msg_type")
	if msgType != utMetadataData {
		return false, nil
	}
	piece, _ := v.GetInt("piece")
	a.pieces[int(piece)] = body[consumed:]
	return true, nil
}

func (a *metadataAssembler) complete() bool {
	return len(a.pieces) >= a.numPieces()
}

// assemble concatenates pieces in order and verifies the result hashes to
// infoHash, per BEP-9's integrity requirement.
func (a *metadataAssembler) assemble(infoHash [20]byte) ([]byte, error) {
	keys := make([]int, 0, len(a.pieces))
	for k := range a.pieces {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	buf := make([]byte, 0, a.totalSize)
	for _, k := range keys {
		buf = append(buf, a.pieces[k]...)
	}
	sum := sha1.Sum(buf)
	if sum != infoHash {
		return nil, fmt.Errorf("peerwire: metadata sha1 mismatch")
	}
	return buf, nil
}
