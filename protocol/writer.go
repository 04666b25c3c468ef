package protocol

import "strconv"

var (
	Terminal = []byte("\r\n")
)

// AppendCommand encodes cmd in the RESP multi-bulk form and appends
// the bytes to dst, returning the extended slice. This is the only
// wire form this package ever emits; RESP3 negotiation changes replies,
// not command framing.
//
// Encoding never fails for a well-formed command. A command with zero
// arguments is a caller contract violation (documented, not defended
// against).
func AppendCommand(dst []byte, cmd Command) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(len(cmd.args)), 10)
	dst = append(dst, Terminal...)

	for _, arg := range cmd.args {
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(arg)), 10)
		dst = append(dst, Terminal...)
		dst = append(dst, arg...)
		dst = append(dst, Terminal...)
	}

	return dst
}

// EncodeCommand encodes a single command into a fresh byte slice.
func EncodeCommand(cmd Command) []byte {
	return AppendCommand(nil, cmd)
}

// EncodePipeline encodes several commands back to back into one write.
// Replies come back in submission order, so the caller can pair them
// up by position.
func EncodePipeline(cmds ...Command) []byte {
	var dst []byte
	for _, cmd := range cmds {
		dst = AppendCommand(dst, cmd)
	}
	return dst
}
