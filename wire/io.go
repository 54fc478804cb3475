package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// EnvelopeReader reads length-prefixed CBOR envelopes from a stream.
type EnvelopeReader struct {
	reader io.Reader
	limits Limits
}

// NewEnvelopeReader creates a new EnvelopeReader with default limits.
func NewEnvelopeReader(r io.Reader) *EnvelopeReader {
	return &EnvelopeReader{
		reader: r,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the reader's limits.
func (er *EnvelopeReader) SetLimits(limits Limits) {
	er.limits = limits
}

// ReadEnvelope reads a single envelope from the stream.
func (er *EnvelopeReader) ReadEnvelope() (*Envelope, error) {
	// 4-byte length prefix (big-endian)
	var lengthBuf [4]byte
	if _, err := io.ReadFull(er.reader, lengthBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])

	if int(length) > er.limits.MaxEnvelope {
		return nil, &ProtocolError{Type: ProtocolErrorOversize,
			Message: fmt.Sprintf("envelope size %d exceeds limit %d", length, er.limits.MaxEnvelope)}
	}
	if int(length) > MaxEnvelopeHardLimit {
		return nil, &ProtocolError{Type: ProtocolErrorOversize,
			Message: fmt.Sprintf("envelope size %d exceeds hard limit %d", length, MaxEnvelopeHardLimit)}
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(er.reader, buf); err != nil {
		return nil, err
	}

	return Decode(buf)
}

// EnvelopeWriter writes length-prefixed CBOR envelopes to a stream.
type EnvelopeWriter struct {
	writer io.Writer
	limits Limits
}

// NewEnvelopeWriter creates a new EnvelopeWriter with default limits.
func NewEnvelopeWriter(w io.Writer) *EnvelopeWriter {
	return &EnvelopeWriter{
		writer: w,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the writer's limits.
func (ew *EnvelopeWriter) SetLimits(limits Limits) {
	ew.limits = limits
}

// WriteEnvelope writes a single envelope to the stream.
func (ew *EnvelopeWriter) WriteEnvelope(env *Envelope) error {
	buf, err := Encode(env)
	if err != nil {
		return err
	}

	if len(buf) > ew.limits.MaxEnvelope {
		return &ProtocolError{Type: ProtocolErrorOversize,
			Message: fmt.Sprintf("encoded envelope size %d exceeds limit %d", len(buf), ew.limits.MaxEnvelope)}
	}
	if len(buf) > MaxEnvelopeHardLimit {
		return &ProtocolError{Type: ProtocolErrorOversize,
			Message: fmt.Sprintf("encoded envelope size %d exceeds hard limit %d", len(buf), MaxEnvelopeHardLimit)}
	}

	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(buf)))
	if _, err := ew.writer.Write(lengthBuf[:]); err != nil {
		return err
	}
	if _, err := ew.writer.Write(buf); err != nil {
		return err
	}

	return nil
}
