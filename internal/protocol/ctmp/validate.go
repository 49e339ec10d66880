package ctmp

// DropReason classifies a complete frame that failed validation but left
// framing intact, so decoding may resume at the next header.
type DropReason int

const (
	DropNone DropReason = iota
	DropReservedOptions
	DropChecksumMismatch
)

func (r DropReason) String() string {
	switch r {
	case DropNone:
		return "none"
	case DropReservedOptions:
		return "reserved_options"
	case DropChecksumMismatch:
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}

// Validate classifies one complete candidate message whose framing already
// passed the magic and length checks. DropNone means the frame is valid.
func Validate(h Header, raw []byte) DropReason {
	if h.ReservedOptions() != 0 {
		return DropReservedOptions
	}
	if h.Sensitive() && !VerifyChecksum(raw, h.Checksum) {
		return DropChecksumMismatch
	}
	return DropNone
}
