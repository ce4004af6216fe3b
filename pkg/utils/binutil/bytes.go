package binutil

func ParseUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func WriteUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// ParseUintVar decodes an n-byte big-endian unsigned integer, n <= 8.
// Multical register magnitudes carry their width in a per-field length
// indicator instead of a fixed layout.
func ParseUintVar(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
