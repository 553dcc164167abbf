package peerwire

import (
	"crypto/sha1"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"dhtcrawler/bencode"
	"dhtcrawler/krpc"

	"github.com/stretchr/testify/require"
)

// fakePeer is a minimal hand-rolled implementation of the other side of
// the exchange: handshake, BEP-10 handshake, and ut_metadata DATA
// responses for a small info dict, enough to drive Fetch end to end
// without a real BitTorrent client.
func fakePeer(t *testing.T, c net.Conn, infoHash krpc.ID, info []byte) {
	t.Helper()

	hs := make([]byte, handshakeLen)
	_, err := readAll(c, hs)
	require.NoError(t, err)
	require.Equal(t, byte(len(protocolName)), hs[0])

	peerID := krpc.RandomID()
	require.NoError(t, sendHandshake(c, infoHash, peerID))

	frame := readOneFrame(t, c)
	require.Equal(t, byte(20), frame[0])
	require.Equal(t, byte(extendedHandshakeMsgID), frame[1])

	handshakeReply := bencode.Marshal(bencode.NewDict(map[string]bencode.Value{
		"m":             bencode.NewDict(map[string]bencode.Value{"ut_metadata": bencode.Int(5)}),
		"metadata_size": bencode.Int(int64(len(info))),
	}))
	require.NoError(t, writeExtended(c, extendedHandshakeMsgID, handshakeReply))

	numPieces := (len(info) + metadataPieceSize - 1) / metadataPieceSize
	for i := 0; i < numPieces; i++ {
		reqFrame := readOneFrame(t, c)
		require.Equal(t, byte(5), reqFrame[1])

		start := i * metadataPieceSize
		end := start + metadataPieceSize
		if end > len(info) {
			end = len(info)
		}
		dataMsg := bencode.Marshal(bencode.NewDict(map[string]bencode.Value{
			"msg_type":   bencode.Int(utMetadataData),
			"piece":      bencode.Int(int64(i)),
			"total_size": bencode.Int(int64(len(info))),
		}))
		payload := append(dataMsg, info[start:end]...)
		require.NoError(t, writeExtended(c, 5, payload))
	}
}

func readAll(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func readOneFrame(t *testing.T, c net.Conn) []byte {
	t.Helper()
	var lenBuf [4]byte
	_, err := readAll(c, lenBuf[:])
	require.NoError(t, err)
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	_, err = readAll(c, buf)
	require.NoError(t, err)
	return buf
}

func TestFetchRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	info := bencode.Marshal(bencode.NewDict(map[string]bencode.Value{
		"name":         bencode.Str("ubuntu.iso"),
		"piece length": bencode.Int(262144),
	}))
	var infoHash krpc.ID
	sum := sha1.Sum(info)
	copy(infoHash[:], sum[:])

	self := krpc.RandomID()
	done := make(chan *Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := Fetch(client, infoHash, self)
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	fakePeer(t, server, infoHash, info)

	select {
	case res := <-done:
		require.Equal(t, info, res.Raw)
	case err := <-errCh:
		t.Fatalf("Fetch failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not complete in time")
	}
}
