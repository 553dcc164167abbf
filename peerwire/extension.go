package peerwire

import "dhtcrawler/bencode"

// extendedHandshakeMsgID is the reserved extended-message id (0) used for
// the BEP-10 handshake itself, as opposed to the ids negotiated in its
// "m" dict for specific extensions.
const extendedHandshakeMsgID = 0

// clientVersion is the "v" string sent in our extended handshake —
// deliberately the same UA the original crawler used, since some peers
// are pickier about talking to unfamiliar clients than others.
const clientVersion = "uTorrent 3.2.3"

// sendExtendedHandshake writes our half of the BEP-10 handshake: advertise
// support for ut_metadata at local id 1, request reqq=255 queued
// requests (we never actually queue that many, but real clients do and
// some peers are stricter than necessary about this field being present).
func sendExtendedHandshake(w interface{ Write([]byte) (int, error) }) error {
	payload := bencode.Marshal(bencode.NewDict(map[string]bencode.Value{
		"m":     bencode.NewDict(map[string]bencode.Value{"ut_metadata": bencode.Int(1)}),
		"v":     bencode.Str(clientVersion),
		"reqq":  bencode.Int(255),
		"e":     bencode.Int(0),
	}))
	return writeExtended(w, extendedHandshakeMsgID, payload)
}

// peerExtendedHandshake is what we learn from the peer's own extended
// handshake: whether it supports ut_metadata, which local id it uses for
// it, and how large the full metadata blob is.
type peerExtendedHandshake struct {
	UTMetadataID byte
	MetadataSize int64
}

func parseExtendedHandshake(body []byte) (peerExtendedHandshake, error) {
	v, err := bencode.Unmarshal(body)
	if err != nil {
		return peerExtendedHandshake{}, err
	}
	var out peerExtendedHandshake
	if size, ok := v.GetInt("metadata_size"); ok {
		out.MetadataSize = size
	}
	if m, ok := v.Get("m"); ok {
		if id, ok := m.GetInt("ut_metadata"); ok {
			out.UTMetadataID = byte(id)
		}
	}
	return out, nil
}
