package krpc

import (
	"dhtcrawler/bencode"
)

// Method names as they appear on the wire in the query dict's "q" field.
const (
	MethodPing         = "ping"
	MethodFindNode     = "find_node"
	MethodGetPeers     = "get_peers"
	MethodAnnouncePeer = "announce_peer"
)

// Query is a decoded KRPC query message (y="q").
type Query struct {
	Txn    []byte
	Method string
	From   ID // the "id" argument: the querying node's claimed id

	// Only the fields used by Method are populated.
	Target      ID     // find_node
	InfoHash    ID     // get_peers, announce_peer
	Port        uint16 // announce_peer
	ImpliedPort bool   // announce_peer
	Token       []byte // announce_peer
}

// Response is a decoded KRPC response message (y="r").
type Response struct {
	Txn  []byte
	From ID

	Nodes []Node // find_node, get_peers (when no values)
	Peers []Peer // get_peers (when values present)
	Token []byte // get_peers
}

// ErrorReply is a decoded KRPC error message (y="e").
type ErrorReply struct {
	Txn     []byte
	Code    int64
	Message string
}

// EncodeQuery builds the bencoded datagram for a query.
func EncodeQuery(q Query) []byte {
	args := map[string]bencode.Value{"id": bencode.Bytes(q.From.Bytes())}
	switch q.Method {
	case MethodFindNode:
		args["target"] = bencode.Bytes(q.Target.Bytes())
	case MethodGetPeers:
		args["info_hash"] = bencode.Bytes(q.InfoHash.Bytes())
	case MethodAnnouncePeer:
		args["info_hash"] = bencode.Bytes(q.InfoHash.Bytes())
		args["port"] = bencode.Int(int64(q.Port))
		args["token"] = bencode.Bytes(q.Token)
		if q.ImpliedPort {
			args["implied_port"] = bencode.Int(1)
		}
	}
	dict := map[string]bencode.Value{
		"t": bencode.Bytes(q.Txn),
		"y": bencode.Str("q"),
		"q": bencode.Str(q.Method),
		"a": bencode.NewDict(args),
	}
	return bencode.Marshal(bencode.NewDict(dict))
}

// EncodeResponse builds the bencoded datagram for a find_node/get_peers/
// ping/announce_peer reply. Only the relevant fields of r are consulted by
// the caller — callers build exactly the shape the originating query
// requires.
func EncodeResponse(txn []byte, selfID ID, r Response, withNodes, withPeers bool) []byte {
	rv := map[string]bencode.Value{"id": bencode.Bytes(selfID.Bytes())}
	if withNodes {
		rv["nodes"] = bencode.Bytes(EncodeNodes(r.Nodes))
	}
	if withPeers {
		vals := make([]bencode.Value, 0, len(r.Peers))
		for _, pk := range EncodePeers(r.Peers) {
			vals = append(vals, bencode.Bytes(pk))
		}
		rv["values"] = bencode.List(vals...)
	}
	if r.Token != nil {
		rv["token"] = bencode.Bytes(r.Token)
	}
	dict := map[string]bencode.Value{
		"t": bencode.Bytes(txn),
		"y": bencode.Str("r"),
		"r": bencode.NewDict(rv),
	}
	return bencode.Marshal(bencode.NewDict(dict))
}

// EncodeError builds the bencoded datagram for a KRPC error reply.
func EncodeError(txn []byte, code int64, message string) []byte {
	dict := map[string]bencode.Value{
		"t": bencode.Bytes(txn),
		"y": bencode.Str("e"),
		"e": bencode.List(bencode.Int(code), bencode.Str(message)),
	}
	return bencode.Marshal(bencode.NewDict(dict))
}

// Decode parses a raw datagram into one of *Query, *Response, or
// *ErrorReply. Any shape violation is reported as krpc.ErrMalformed — the
// caller's job is to drop the packet and move on, per spec.
func Decode(b []byte) (interface{}, error) {
	top, err := bencode.Unmarshal(b)
	if err != nil {
		return nil, malformedf("%v", err)
	}
	if top.Kind != bencode.KindDict {
		return nil, malformedf("top-level value is not a dict")
	}
	txn, ok := top.GetBytes("t")
	if !ok {
		return nil, malformedf("missing transaction id")
	}
	y, ok := top.GetBytes("y")
	if !ok {
		return nil, malformedf("missing message type")
	}
	switch string(y) {
	case "q":
		return decodeQuery(txn, top)
	case "r":
		return decodeResponse(txn, top)
	case "e":
		return decodeErrorReply(txn, top)
	default:
		return nil, malformedf("unknown message type %q", y)
	}
}

func decodeQuery(txn []byte, top bencode.Value) (*Query, error) {
	methodB, ok := top.GetBytes("q")
	if !ok {
		return nil, malformedf("query missing method")
	}
	a, ok := top.Get("a")
	if !ok || a.Kind != bencode.KindDict {
		return nil, malformedf("query missing args")
	}
	idB, ok := a.GetBytes("id")
	if !ok {
		return nil, malformedf("query args missing id")
	}
	from, ok := IDFromBytes(idB)
	if !ok {
		return nil, malformedf("query id wrong length")
	}
	q := &Query{Txn: txn, Method: string(methodB), From: from}
	switch q.Method {
	case MethodFindNode:
		t, ok := a.GetBytes("target")
		if !ok {
			return nil, malformedf("find_node missing target")
		}
		target, ok := IDFromBytes(t)
		if !ok {
			return nil, malformedf("find_node target wrong length")
		}
		q.Target = target
	case MethodGetPeers:
		ih, ok := a.GetBytes("info_hash")
		if !ok {
			return nil, malformedf("get_peers missing info_hash")
		}
		infoHash, ok := IDFromBytes(ih)
		if !ok {
			return nil, malformedf("get_peers info_hash wrong length")
		}
		q.InfoHash = infoHash
	case MethodAnnouncePeer:
		ih, ok := a.GetBytes("info_hash")
		if !ok {
			return nil, malformedf("announce_peer missing info_hash")
		}
		infoHash, ok := IDFromBytes(ih)
		if !ok {
			return nil, malformedf("announce_peer info_hash wrong length")
		}
		q.InfoHash = infoHash
		port, ok := a.GetInt("port")
		if !ok {
			return nil, malformedf("announce_peer missing port")
		}
		q.Port = uint16(port)
		if token, ok := a.GetBytes("token"); ok {
			q.Token = token
		}
		if impl, ok := a.GetInt("implied_port"); ok && impl != 0 {
			q.ImpliedPort = true
		}
	case MethodPing:
		// no further args
	default:
		return nil, malformedf("unknown query method %q", q.Method)
	}
	return q, nil
}

func decodeResponse(txn []byte, top bencode.Value) (*Response, error) {
	r, ok := top.Get("r")
	if !ok || r.Kind != bencode.KindDict {
		return nil, malformedf("response missing r")
	}
	idB, ok := r.GetBytes("id")
	if !ok {
		return nil, malformedf("response missing id")
	}
	from, ok := IDFromBytes(idB)
	if !ok {
		return nil, malformedf("response id wrong length")
	}
	resp := &Response{Txn: txn, From: from}
	if nodesB, ok := r.GetBytes("nodes"); ok {
		nodes, err := DecodeNodes(nodesB)
		if err != nil {
			return nil, err
		}
		resp.Nodes = nodes
	}
	if valuesV, ok := r.Get("values"); ok {
		if valuesV.Kind != bencode.KindList {
			return nil, malformedf("response values is not a list")
		}
		raw := make([][]byte, 0, len(valuesV.List))
		for _, v := range valuesV.List {
			if v.Kind != bencode.KindBytes {
				continue
			}
			raw = append(raw, v.Str)
		}
		resp.Peers = DecodePeers(raw)
	}
	if tok, ok := r.GetBytes("token"); ok {
		resp.Token = tok
	}
	return resp, nil
}

func decodeErrorReply(txn []byte, top bencode.Value) (*ErrorReply, error) {
	e, ok := top.Get("e")
	if !ok || e.Kind != bencode.KindList || len(e.List) != 2 {
		return nil, malformedf("error message missing [code, message]")
	}
	code, ok := e.List[0].Int, e.List[0].Kind == bencode.KindInt
	if !ok {
		return nil, malformedf("error code not an integer")
	}
	if e.List[1].Kind != bencode.KindBytes {
		return nil, malformedf("error message not a string")
	}
	return &ErrorReply{Txn: txn, Code: code, Message: string(e.List[1].Str)}, nil
}
