package ctmp

import "encoding/binary"

const (
	// Magic is the first byte of every CTMP message.
	Magic byte = 0xCC

	// HeaderSize is the fixed wire header length in bytes.
	HeaderSize = 8

	// OptionSensitive marks a frame whose checksum must verify.
	OptionSensitive byte = 0x40

	// MaxPayloadLen is the largest length the 16-bit length field can declare.
	MaxPayloadLen = int(^uint16(0))
)

const checksumOffset = 4

// Header is the fixed wire header.
type Header struct {
	Options  byte
	Length   uint16
	Checksum uint16
}

// Sensitive reports whether the checksum option bit is set.
func (h Header) Sensitive() bool {
	return h.Options&OptionSensitive != 0
}

// ReservedOptions returns the option bits outside the defined set.
func (h Header) ReservedOptions() byte {
	return h.Options &^ OptionSensitive
}

// Frame is one complete wire message. Raw holds the exact bytes received
// (header plus payload) so the relay can retransmit them unmodified.
type Frame struct {
	Header Header
	Raw    []byte
}

// Payload returns the message body following the fixed header.
func (f Frame) Payload() []byte {
	return f.Raw[HeaderSize:]
}

// Limits constrains decoder memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: MaxPayloadLen,
	}
}

// DecodeHeader parses the fixed header and checks the magic byte.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrInvalidHeaderLen
	}
	if b[0] != Magic {
		return Header{}, ErrInvalidMagic
	}
	return Header{
		Options:  b[1],
		Length:   binary.BigEndian.Uint16(b[2:4]),
		Checksum: binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

// EncodeHeader renders the fixed header with zeroed padding bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = Magic
	buf[1] = h.Options
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint16(buf[4:6], h.Checksum)
	return buf
}

// EncodeFrame builds one complete wire message. Sensitive frames get the
// checksum stamped into the header; other frames carry a zero field.
func EncodeFrame(options byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	raw := make([]byte, 0, HeaderSize+len(payload))
	raw = append(raw, EncodeHeader(Header{
		Options: options,
		Length:  uint16(len(payload)),
	})...)
	raw = append(raw, payload...)
	if options&OptionSensitive != 0 {
		binary.BigEndian.PutUint16(raw[checksumOffset:checksumOffset+2], Checksum(raw))
	}
	return raw, nil
}
