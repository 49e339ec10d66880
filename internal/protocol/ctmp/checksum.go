package ctmp

// checksumSubstitute replaces the checksum field while summing, so the
// transmitted value never feeds back into its own computation.
const checksumSubstitute uint16 = 0xCCCC

// Checksum computes the 16-bit one's-complement sum over a complete wire
// message (header plus payload) taken as big-endian words. An odd trailing
// byte is padded with a zero low byte.
func Checksum(message []byte) uint16 {
	var sum uint32
	for i := 0; i < len(message); i += 2 {
		var word uint16
		if i == checksumOffset {
			word = checksumSubstitute
		} else {
			word = uint16(message[i]) << 8
			if i+1 < len(message) {
				word |= uint16(message[i+1])
			}
		}
		sum += uint32(word)
		for sum > 0xFFFF {
			sum = (sum & 0xFFFF) + (sum >> 16)
		}
	}
	return ^uint16(sum)
}

// VerifyChecksum reports whether the transmitted checksum matches the
// message contents.
func VerifyChecksum(message []byte, transmitted uint16) bool {
	return Checksum(message) == transmitted
}
