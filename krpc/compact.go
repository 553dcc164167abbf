package krpc

import "net"

// EncodeNodes packs nodes into the compact "nodes" string format: 20 bytes
// of id followed by 4 bytes of IPv4 address and 2 bytes of port, repeated.
func EncodeNodes(nodes []Node) []byte {
	out := make([]byte, 0, len(nodes)*26)
	for _, n := range nodes {
		out = append(out, n.ID[:]...)
		out = append(out, packAddr(n.Host, n.Port)...)
	}
	return out
}

// DecodeNodes unpacks a compact "nodes" string, dropping any record
// advertising a sub-1024 port the same way DecodePeers does — a real DHT
// node doesn't bind a privileged port, so such a record is almost
// certainly spoofed garbage. Input whose length is not a multiple of 26 is
// rejected as a whole: no nodes are returned, only an ErrMalformed error.
func DecodeNodes(b []byte) ([]Node, error) {
	if len(b)%26 != 0 {
		return nil, malformedf("compact nodes length %d not a multiple of 26", len(b))
	}
	nodes := make([]Node, 0, len(b)/26)
	for i := 0; i+26 <= len(b); i += 26 {
		port := uint16(b[i+24])<<8 | uint16(b[i+25])
		if port < 1024 {
			continue
		}
		var id ID
		copy(id[:], b[i:i+20])
		ip := make(net.IP, 4)
		copy(ip, b[i+20:i+24])
		nodes = append(nodes, Node{ID: id, Host: ip, Port: port})
	}
	return nodes, nil
}

// EncodePeers packs peers into the compact "values" list entries: 4 bytes
// IPv4 address, 2 bytes port. Peers behind a port below 1024 are dropped —
// real BitTorrent clients don't bind privileged ports, so such an entry is
// almost certainly spoofed garbage rather than a real seed.
func EncodePeers(peers []Peer) [][]byte {
	out := make([][]byte, 0, len(peers))
	for _, p := range peers {
		if p.Port < 1024 {
			continue
		}
		out = append(out, packAddr(p.Host, p.Port))
	}
	return out
}

// DecodePeers unpacks a list of compact 6-byte peer entries, silently
// dropping any of the wrong length or with a sub-1024 port.
func DecodePeers(values [][]byte) []Peer {
	peers := make([]Peer, 0, len(values))
	for _, v := range values {
		if len(v) != 6 {
			continue
		}
		ip := make(net.IP, 4)
		copy(ip, v[0:4])
		port := uint16(v[4])<<8 | uint16(v[5])
		if port < 1024 {
			continue
		}
		peers = append(peers, Peer{Host: ip, Port: port})
	}
	return peers
}
