// Package bencode implements the bencoding format used by the BitTorrent
// DHT (KRPC) and peer wire (BEP-9/10) protocols.
//
// Unlike the general-purpose bencode libraries in the wild, this decoder
// is deliberately strict: it rejects non-minimal integers and duplicate or
// out-of-order dictionary keys instead of silently accepting them, because
// the crawler treats any violation as a malformed, possibly adversarial,
// packet.
package bencode

import (
	"bytes"
	"fmt"
	"sort"
)

// Kind identifies the dynamic type carried by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindBytes
	KindList
	KindDict
)

// ErrMalformed is returned (possibly wrapped) for any input that does not
// conform to the bencode grammar, including structurally valid-looking
// input that violates the crawler's stricter canonical-form rules.
var ErrMalformed = fmt.Errorf("bencode: malformed input")

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Value is a dynamically typed bencode tree: exactly one of the four
// standard bencode kinds. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	Int  int64
	Str  []byte
	List []Value
	Dict map[string]Value
	// Keys preserves the lexicographic key order a Dict was decoded with
	// (which, for well-formed input, is the only order it could have had).
	Keys []string
}

func Int(i int64) Value   { return Value{Kind: KindInt, Int: i} }
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Str: b} }
func Str(s string) Value  { return Value{Kind: KindBytes, Str: []byte(s)} }
func List(v ...Value) Value {
	return Value{Kind: KindList, List: v}
}

// NewDict builds a Dict value, sorting the keys for canonical emission.
func NewDict(m map[string]Value) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Value{Kind: KindDict, Dict: m, Keys: keys}
}

// Get returns the value of key k in a Dict, or the zero Value and false.
func (v Value) Get(k string) (Value, bool) {
	if v.Kind != KindDict {
		return Value{}, false
	}
	x, ok := v.Dict[k]
	return x, ok
}

// GetBytes is a convenience accessor for a dict's byte-string field.
func (v Value) GetBytes(k string) ([]byte, bool) {
	x, ok := v.Get(k)
	if !ok || x.Kind != KindBytes {
		return nil, false
	}
	return x.Str, true
}

// GetInt is a convenience accessor for a dict's integer field.
func (v Value) GetInt(k string) (int64, bool) {
	x, ok := v.Get(k)
	if !ok || x.Kind != KindInt {
		return 0, false
	}
	return x.Int, true
}

// Marshal encodes v in canonical bencode form: dict keys sorted
// lexicographically, integers in minimal decimal form.
func Marshal(v Value) []byte {
	var buf bytes.Buffer
	marshal(&buf, v)
	return buf.Bytes()
}

func marshal(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindInt:
		fmt.Fprintf(buf, "i%de", v.Int)
	case KindBytes:
		fmt.Fprintf(buf, "%d:", len(v.Str))
		buf.Write(v.Str)
	case KindList:
		buf.WriteByte('l')
		for _, e := range v.List {
			marshal(buf, e)
		}
		buf.WriteByte('e')
	case KindDict:
		buf.WriteByte('d')
		keys := v.Keys
		if keys == nil {
			keys = make([]string, 0, len(v.Dict))
			for k := range v.Dict {
				keys = append(keys, k)
			}
			sort.Strings(keys)
		}
		for _, k := range keys {
			fmt.Fprintf(buf, "%d:", len(k))
			buf.WriteString(k)
			marshal(buf, v.Dict[k])
		}
		buf.WriteByte('e')
	}
}

// Unmarshal decodes a single bencode value from b, requiring the entire
// slice to be consumed. It fails on truncated input, non-minimal
// integers, and dictionaries whose keys are duplicated or not emitted in
// lexicographic order.
func Unmarshal(b []byte) (Value, error) {
	v, rest, err := decode(b)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, malformed("trailing %d bytes after top-level value", len(rest))
	}
	return v, nil
}

// DecodePrefix decodes a single value from the start of b and returns how
// many bytes it consumed, leaving the rest (e.g. a raw metadata piece
// appended after a bencoded dict, as BEP-9 does) untouched. Unlike
// Unmarshal, trailing bytes are not an error.
func DecodePrefix(b []byte) (Value, int, error) {
	v, rest, err := decode(b)
	if err != nil {
		return Value{}, 0, err
	}
	return v, len(b) - len(rest), nil
}

func decode(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, malformed("unexpected end of input")
	}
	switch {
	case b[0] == 'i':
		return decodeInt(b)
	case b[0] == 'l':
		return decodeList(b)
	case b[0] == 'd':
		return decodeDict(b)
	case b[0] >= '0' && b[0] <= '9':
		return decodeBytes(b)
	default:
		return Value{}, nil, malformed("unexpected tag byte %q", b[0])
	}
}

func decodeInt(b []byte) (Value, []byte, error) {
	end := bytes.IndexByte(b, 'e')
	if end < 0 {
		return Value{}, nil, malformed("unterminated integer")
	}
	digits := string(b[1:end])
	if digits == "" {
		return Value{}, nil, malformed("empty integer")
	}
	neg := false
	d := digits
	if d[0] == '-' {
		neg = true
		d = d[1:]
	}
	if d == "" || (len(d) > 1 && d[0] == '0') || (neg && d == "0") {
		return Value{}, nil, malformed("non-minimal integer %q", digits)
	}
	var n int64
	for _, c := range d {
		if c < '0' || c > '9' {
			return Value{}, nil, malformed("invalid integer %q", digits)
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return Int(n), b[end+1:], nil
}

func decodeBytes(b []byte) (Value, []byte, error) {
	colon := bytes.IndexByte(b, ':')
	if colon < 0 {
		return Value{}, nil, malformed("unterminated string length")
	}
	lenDigits := string(b[:colon])
	if lenDigits == "" || (len(lenDigits) > 1 && lenDigits[0] == '0') {
		return Value{}, nil, malformed("non-minimal string length %q", lenDigits)
	}
	var n int
	for _, c := range lenDigits {
		if c < '0' || c > '9' {
			return Value{}, nil, malformed("invalid string length %q", lenDigits)
		}
		n = n*10 + int(c-'0')
	}
	rest := b[colon+1:]
	if len(rest) < n {
		return Value{}, nil, malformed("truncated string: want %d bytes, have %d", n, len(rest))
	}
	return Bytes(rest[:n]), rest[n:], nil
}

func decodeList(b []byte) (Value, []byte, error) {
	rest := b[1:]
	items := []Value{}
	for {
		if len(rest) == 0 {
			return Value{}, nil, malformed("unterminated list")
		}
		if rest[0] == 'e' {
			return Value{Kind: KindList, List: items}, rest[1:], nil
		}
		v, r, err := decode(rest)
		if err != nil {
			return Value{}, nil, err
		}
		items = append(items, v)
		rest = r
	}
}

func decodeDict(b []byte) (Value, []byte, error) {
	rest := b[1:]
	m := map[string]Value{}
	keys := []string{}
	for {
		if len(rest) == 0 {
			return Value{}, nil, malformed("unterminated dict")
		}
		if rest[0] == 'e' {
			return Value{Kind: KindDict, Dict: m, Keys: keys}, rest[1:], nil
		}
		kv, r, err := decodeBytes(rest)
		if err != nil {
			return Value{}, nil, malformed("dict key: %v", err)
		}
		key := string(kv.Str)
		if _, dup := m[key]; dup {
			return Value{}, nil, malformed("duplicate dict key %q", key)
		}
		if len(keys) > 0 && key <= keys[len(keys)-1] {
			return Value{}, nil, malformed("out-of-order dict key %q", key)
		}
		val, r2, err := decode(r)
		if err != nil {
			return Value{}, nil, err
		}
		m[key] = val
		keys = append(keys, key)
		rest = r2
	}
}
