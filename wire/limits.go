package wire

// Default maximum envelope size (1 MB). Envelopes carry command arguments,
// not bulk payloads; anything bigger is almost certainly a caller bug.
const DefaultMaxEnvelope int = 1_048_576

// Hard limit on envelope size (16 MB) - prevents a corrupt length prefix
// from allocating unbounded buffers.
const MaxEnvelopeHardLimit int = 16_777_216

// Limits bounds envelope framing on a port.
type Limits struct {
	MaxEnvelope int `cbor:"max_envelope"`
}

// DefaultLimits returns the default framing limits.
func DefaultLimits() Limits {
	return Limits{MaxEnvelope: DefaultMaxEnvelope}
}
