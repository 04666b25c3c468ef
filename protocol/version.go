package protocol

// Version selects which generation of the Redis serialization protocol
// governs decoding. It changes how ambiguous frames are interpreted
// (the RESP2 -1 nil encodings) and which sigils are legal; command
// encoding is identical under both.
type Version int

const (
	RESP2 Version = 2
	RESP3 Version = 3
)

func (v Version) String() string {
	switch v {
	case RESP2:
		return "RESP2"
	case RESP3:
		return "RESP3"
	default:
		return "RESP?"
	}
}

// Valid reports whether v is a protocol version this package speaks.
func (v Version) Valid() bool {
	return v == RESP2 || v == RESP3
}
