package krpc

import "fmt"

// ErrMalformed marks a datagram or compact-list payload that did not
// conform to KRPC's wire shapes. The engine treats it as a single dropped
// packet, never as cause to tear down the socket.
var ErrMalformed = fmt.Errorf("krpc: malformed message")

func malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// ProtocolError is the shape of a KRPC `y:"e"` reply: a two-element list
// of [code, message].
type ProtocolError struct {
	Code    int64
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("krpc error %d: %s", e.Code, e.Message)
}

// Standard KRPC error codes (BEP-5 §"Errors").
const (
	ErrCodeGeneric     = 201
	ErrCodeServer      = 202
	ErrCodeProtocol    = 203
	ErrCodeMethUnknown = 204
)
