package krpc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketIndexZeroDistance(t *testing.T) {
	var a, b ID
	require.Equal(t, 0, BucketIndex(XOR(a, b)))
}

func TestBucketIndexHighestBit(t *testing.T) {
	var a, b ID
	b[0] = 0x80 // differs in the top bit of the first byte
	require.Equal(t, 159, BucketIndex(XOR(a, b)))

	var c, d ID
	d[19] = 0x01 // differs in the bottom bit of the last byte
	require.Equal(t, 0, BucketIndex(XOR(c, d)))
}

func TestIDFromHexRoundTrip(t *testing.T) {
	want := RandomID()
	got, err := IDFromHex(want.String())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestIDFromHexRejectsWrongLength(t *testing.T) {
	_, err := IDFromHex("abcd")
	require.Error(t, err)
}

func TestCompactNodeRoundTrip(t *testing.T) {
	nodes := []Node{
		{ID: RandomID(), Host: net.IPv4(1, 2, 3, 4), Port: 6881},
		{ID: RandomID(), Host: net.IPv4(5, 6, 7, 8), Port: 51413},
	}
	enc := EncodeNodes(nodes)
	require.Len(t, enc, 26*2)
	dec, err := DecodeNodes(enc)
	require.NoError(t, err)
	require.Len(t, dec, 2)
	for i := range nodes {
		require.Equal(t, nodes[i].ID, dec[i].ID)
		require.True(t, nodes[i].Host.Equal(dec[i].Host))
		require.Equal(t, nodes[i].Port, dec[i].Port)
	}
}

func TestCompactPeersDropsPrivilegedPorts(t *testing.T) {
	peers := []Peer{
		{Host: net.IPv4(1, 1, 1, 1), Port: 80},
		{Host: net.IPv4(2, 2, 2, 2), Port: 6881},
	}
	enc := EncodePeers(peers)
	require.Len(t, enc, 1)
	dec := DecodePeers(enc)
	require.Len(t, dec, 1)
	require.Equal(t, uint16(6881), dec[0].Port)
}

func TestCompactNodesDropsPrivilegedPorts(t *testing.T) {
	lowPort := Node{ID: RandomID(), Host: net.IPv4(1, 1, 1, 1), Port: 80}
	okPort := Node{ID: RandomID(), Host: net.IPv4(2, 2, 2, 2), Port: 6881}
	enc := EncodeNodes([]Node{lowPort, okPort})
	require.Len(t, enc, 26*2)
	dec, err := DecodeNodes(enc)
	require.NoError(t, err)
	require.Len(t, dec, 1)
	require.Equal(t, okPort.ID, dec[0].ID)
	require.Equal(t, uint16(6881), dec[0].Port)
}

func TestQueryEncodeDecodeGetPeers(t *testing.T) {
	q := Query{
		Txn:      []byte("aa"),
		Method:   MethodGetPeers,
		From:     RandomID(),
		InfoHash: RandomID(),
	}
	raw := EncodeQuery(q)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(*Query)
	require.True(t, ok)
	require.Equal(t, q.Method, got.Method)
	require.Equal(t, q.From, got.From)
	require.Equal(t, q.InfoHash, got.InfoHash)
}

func TestResponseEncodeDecodeWithValues(t *testing.T) {
	self := RandomID()
	resp := Response{
		Peers: []Peer{{Host: net.IPv4(9, 9, 9, 9), Port: 6881}},
		Token: []byte("tok1"),
	}
	raw := EncodeResponse([]byte("bb"), self, resp, false, true)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(*Response)
	require.True(t, ok)
	require.Equal(t, self, got.From)
	require.Len(t, got.Peers, 1)
	require.Equal(t, []byte("tok1"), got.Token)
}

func TestDecodeMalformedMissingTxn(t *testing.T) {
	_, err := Decode([]byte("d1:yi1ee"))
	require.Error(t, err)
}

func TestErrorReplyRoundTrip(t *testing.T) {
	raw := EncodeError([]byte("cc"), ErrCodeServer, "Server Error")
	decoded, err := Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(*ErrorReply)
	require.True(t, ok)
	require.Equal(t, int64(ErrCodeServer), got.Code)
	require.Equal(t, "Server Error", got.Message)
}
