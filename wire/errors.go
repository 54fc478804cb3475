package wire

import "fmt"

// ProtocolErrorType classifies codec and framing violations.
type ProtocolErrorType int

const (
	ProtocolErrorCodec ProtocolErrorType = iota
	ProtocolErrorOversize
	ProtocolErrorBadVersion
	ProtocolErrorBadTag
	ProtocolErrorMissingField
)

// ProtocolError is returned for malformed or oversized envelopes. Routing
// failures are never errors; they travel as resultValid=false responses.
type ProtocolError struct {
	Type    ProtocolErrorType
	Message string
}

func (e *ProtocolError) Error() string {
	switch e.Type {
	case ProtocolErrorCodec:
		return fmt.Sprintf("codec error: %s", e.Message)
	case ProtocolErrorOversize:
		return fmt.Sprintf("envelope too large: %s", e.Message)
	case ProtocolErrorBadVersion:
		return fmt.Sprintf("bad protocol version: %s", e.Message)
	case ProtocolErrorBadTag:
		return fmt.Sprintf("bad envelope tag: %s", e.Message)
	case ProtocolErrorMissingField:
		return fmt.Sprintf("missing envelope field: %s", e.Message)
	default:
		return fmt.Sprintf("protocol error: %s", e.Message)
	}
}

func codecErr(format string, args ...any) *ProtocolError {
	return &ProtocolError{Type: ProtocolErrorCodec, Message: fmt.Sprintf(format, args...)}
}
