package peerwire

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// StallTimeout is how long a single read is allowed to block before the
// session is declared dead, per spec's "fail fast, don't guess" stance on
// a stalled peer.
const StallTimeout = 3 * time.Second

// readFrame reads one length-prefixed peer wire message: a 4-byte
// big-endian length followed by that many bytes (0 bytes means a
// keep-alive, returned as a nil, non-error frame). It's bounded by
// StallTimeout regardless of which transport (TCP or µTP) is underneath,
// since neither of this package's two Conn types exposes a uniform
// deadline API.
func readFrame(r io.Reader) ([]byte, error) {
	type result struct {
		b   []byte
		err error
	}
	out := make(chan result, 1)
	go func() {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			out <- result{nil, fmt.Errorf("peerwire: read length prefix: %w", err)}
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0 {
			out <- result{nil, nil} // keep-alive
			return
		}
		if n > 1<<20 {
			out <- result{nil, fmt.Errorf("peerwire: message too large (%d bytes)", n)}
			return
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			out <- result{nil, fmt.Errorf("peerwire: read message body: %w", err)}
			return
		}
		out <- result{buf, nil}
	}()

	select {
	case res := <-out:
		return res.b, res.err
	case <-time.After(StallTimeout):
		return nil, fmt.Errorf("peerwire: stalled waiting for a message (%s)", StallTimeout)
	}
}

// writeExtended frames and writes an extended message (BEP-10): byte 20,
// then the extension message id, then the bencoded payload.
func writeExtended(w io.Writer, extMsgID byte, payload []byte) error {
	body := append([]byte{20, extMsgID}, payload...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
