package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Limits bound how much memory a single frame may demand before the
// decoder gives up on the stream. The Redis protocol itself imposes no
// ceilings, so these are safety limits, not protocol requirements; a
// frame that exceeds one is treated as an ErrProtocol, never silently
// truncated.
type Limits struct {
	// MaxBulkLen is the largest accepted bulk string payload in bytes.
	MaxBulkLen int

	// MaxAggregateLen is the largest accepted element count for an
	// array, map, set or push frame.
	MaxAggregateLen int

	// MaxDepth is the deepest accepted aggregate nesting.
	MaxDepth int
}

// Default safety limits. The bulk ceiling matches the proto-max-bulk-len
// default of the servers this package talks to.
const (
	DefaultMaxBulkLen      = 512 << 20
	DefaultMaxAggregateLen = 1 << 20
	DefaultMaxDepth        = 64

	// Line-terminated frames are headers and scalars; nothing legal
	// comes anywhere near this long.
	maxLineLen = 64 << 10
)

func DefaultLimits() Limits {
	return Limits{
		MaxBulkLen:      DefaultMaxBulkLen,
		MaxAggregateLen: DefaultMaxAggregateLen,
		MaxDepth:        DefaultMaxDepth,
	}
}

// errIncomplete unwinds a partially received frame back to the decode
// entry points, where it turns into "zero frames, zero consumed".
// It never escapes this package.
var errIncomplete = errors.New("incomplete frame")

func protoErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// Decode parses the first complete frame in buf under the given
// protocol version. It returns the parsed reply and the number of
// bytes consumed. If buf holds only a truncated frame, Decode returns
// (Reply{}, 0, nil): collect more bytes and call again with the longer
// buffer.
func Decode(buf []byte, ver Version) (Reply, int, error) {
	return DecodeWithLimits(buf, ver, DefaultLimits())
}

// DecodeWithLimits is Decode with caller-chosen safety limits.
func DecodeWithLimits(buf []byte, ver Version, limits Limits) (Reply, int, error) {
	reply, next, err := decodeFrame(buf, 0, ver, &limits, 0)
	if err != nil {
		if errors.Is(err, errIncomplete) {
			return Reply{}, 0, nil
		}
		return Reply{}, 0, err
	}
	return reply, next, nil
}

// DecodeAll parses as many complete frames as buf contains, stopping
// cleanly at a truncated trailing frame. It returns the parsed replies
// and the number of bytes consumed; the caller must re-supply the
// unconsumed tail together with the next read.
//
// On a protocol error the replies decoded before the bad frame are
// still returned alongside the error.
func DecodeAll(buf []byte, ver Version) ([]Reply, int, error) {
	return DecodeAllWithLimits(buf, ver, DefaultLimits())
}

// DecodeAllWithLimits is DecodeAll with caller-chosen safety limits.
func DecodeAllWithLimits(buf []byte, ver Version, limits Limits) ([]Reply, int, error) {
	var replies []Reply
	pos := 0

	for pos < len(buf) {
		reply, next, err := decodeFrame(buf, pos, ver, &limits, 0)
		if err != nil {
			if errors.Is(err, errIncomplete) {
				return replies, pos, nil
			}
			return replies, pos, err
		}
		replies = append(replies, reply)
		pos = next
	}

	return replies, pos, nil
}

// decodeFrame parses one frame starting at pos and returns it together
// with the offset of the first byte after it.
func decodeFrame(buf []byte, pos int, ver Version, lim *Limits, depth int) (Reply, int, error) {
	if depth > lim.MaxDepth {
		return Reply{}, 0, protoErrorf("aggregate nesting exceeds %d levels", lim.MaxDepth)
	}
	if pos >= len(buf) {
		return Reply{}, 0, errIncomplete
	}

	sigil := buf[pos]

	line, next, err := readFrameLine(buf, pos)
	if err != nil {
		return Reply{}, 0, err
	}
	content := line[1:]

	switch sigil {
	case '+':
		return Reply{Type: TypeSimpleString, Str: string(content)}, next, nil

	case '-':
		if len(content) == 0 {
			return Reply{}, 0, protoErrorf("empty error reply")
		}
		return Reply{Type: TypeError, Err: NewServerError(string(content))}, next, nil

	case ':':
		n, err := parseInteger(content)
		if err != nil {
			return Reply{}, 0, err
		}
		return Reply{Type: TypeInteger, Int: n}, next, nil

	case '_':
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
		if len(content) != 0 {
			return Reply{}, 0, protoErrorf("null frame carries payload %q", content)
		}
		return Reply{Type: TypeNull}, next, nil

	case '#':
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
		switch {
		case len(content) == 1 && content[0] == 't':
			return Reply{Type: TypeBoolean, Bool: true}, next, nil
		case len(content) == 1 && content[0] == 'f':
			return Reply{Type: TypeBoolean, Bool: false}, next, nil
		default:
			return Reply{}, 0, protoErrorf("boolean frame %q is neither #t nor #f", content)
		}

	case ',':
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
		f, err := strconv.ParseFloat(string(content), 64)
		if err != nil {
			return Reply{}, 0, protoErrorf("bad double %q", content)
		}
		return Reply{Type: TypeDouble, Float: f}, next, nil

	case '(':
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
		if !validBigNumber(content) {
			return Reply{}, 0, protoErrorf("bad big number %q", content)
		}
		return Reply{Type: TypeBigNumber, Str: string(content)}, next, nil

	case '$', '!', '=':
		return decodeBlob(buf, next, sigil, content, ver, lim)

	case '*', '%', '~', '>':
		return decodeAggregate(buf, next, sigil, content, ver, lim, depth)

	case '|':
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
		return decodeAttribute(buf, next, content, ver, lim, depth)

	default:
		return Reply{}, 0, protoErrorf("unknown type sigil %q", sigil)
	}
}

// decodeBlob parses the length-prefixed frames: bulk strings ($), bulk
// errors (!) and verbatim strings (=). The header line has already
// been consumed; next points at the payload.
func decodeBlob(buf []byte, next int, sigil byte, content []byte, ver Version, lim *Limits) (Reply, int, error) {
	if sigil != '$' {
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
	}

	size, err := parseInteger(content)
	if err != nil {
		return Reply{}, 0, err
	}

	if size == -1 {
		// The RESP2 nil bulk string. RESP3 retired it for `_`.
		if sigil != '$' || ver != RESP2 {
			return Reply{}, 0, protoErrorf("%c-1 is not a legal %s frame", sigil, ver)
		}
		return Reply{Type: TypeBulkString, Bulk: nil}, next, nil
	}
	if size < 0 {
		return Reply{}, 0, protoErrorf("negative blob length %d", size)
	}
	if size > int64(lim.MaxBulkLen) {
		return Reply{}, 0, protoErrorf("blob length %d exceeds limit %d", size, lim.MaxBulkLen)
	}

	end := next + int(size) + len(Terminal)
	if end > len(buf) {
		return Reply{}, 0, errIncomplete
	}
	if buf[end-2] != '\r' || buf[end-1] != '\n' {
		return Reply{}, 0, protoErrorf("blob payload is not CRLF terminated")
	}

	// Copy out of the caller's buffer: replies own their bytes so the
	// read buffer can be reused or compacted underneath them.
	body := make([]byte, size)
	copy(body, buf[next:next+int(size)])

	switch sigil {
	case '$':
		return Reply{Type: TypeBulkString, Bulk: body}, end, nil

	case '!':
		if len(body) == 0 {
			return Reply{}, 0, protoErrorf("empty bulk error")
		}
		return Reply{Type: TypeBulkError, Err: NewServerError(string(body))}, end, nil

	default: // '='
		// Format tag is exactly three bytes, colon separated: "txt:...".
		if len(body) < 4 || body[3] != ':' {
			return Reply{}, 0, protoErrorf("verbatim string is missing its format tag")
		}
		return Reply{Type: TypeVerbatim, Str: string(body[:3]), Bulk: body[4:]}, end, nil
	}
}

// decodeAggregate parses the counted frames: arrays (*), maps (%),
// sets (~) and pushes (>), recursing for each element.
func decodeAggregate(buf []byte, next int, sigil byte, content []byte, ver Version, lim *Limits, depth int) (Reply, int, error) {
	if sigil != '*' {
		if err := requireRESP3(ver, sigil); err != nil {
			return Reply{}, 0, err
		}
	}

	count, err := parseInteger(content)
	if err != nil {
		return Reply{}, 0, err
	}

	if count == -1 {
		// The RESP2 nil array.
		if sigil != '*' || ver != RESP2 {
			return Reply{}, 0, protoErrorf("%c-1 is not a legal %s frame", sigil, ver)
		}
		return Reply{Type: TypeArray, Elems: nil}, next, nil
	}
	if count < 0 {
		return Reply{}, 0, protoErrorf("negative aggregate count %d", count)
	}
	if count > int64(lim.MaxAggregateLen) {
		return Reply{}, 0, protoErrorf("aggregate count %d exceeds limit %d", count, lim.MaxAggregateLen)
	}

	elems := int(count)
	if sigil == '%' {
		// Maps frame their element count in pairs.
		elems *= 2
	}

	children := make([]Reply, 0, capHint(elems))
	pos := next
	for i := 0; i < elems; i++ {
		child, np, err := decodeFrame(buf, pos, ver, lim, depth+1)
		if err != nil {
			return Reply{}, 0, err
		}
		children = append(children, child)
		pos = np
	}

	var t ReplyType
	switch sigil {
	case '*':
		t = TypeArray
	case '%':
		t = TypeMap
	case '~':
		t = TypeSet
	default: // '>'
		t = TypePush
	}
	return Reply{Type: t, Elems: children}, pos, nil
}

// decodeAttribute parses an attribute map and attaches it to the frame
// that follows. Attributes are side-channel metadata; they are never
// yielded as standalone replies.
func decodeAttribute(buf []byte, next int, content []byte, ver Version, lim *Limits, depth int) (Reply, int, error) {
	count, err := parseInteger(content)
	if err != nil {
		return Reply{}, 0, err
	}
	if count < 0 {
		return Reply{}, 0, protoErrorf("negative attribute count %d", count)
	}
	if count > int64(lim.MaxAggregateLen) {
		return Reply{}, 0, protoErrorf("attribute count %d exceeds limit %d", count, lim.MaxAggregateLen)
	}

	elems := int(count) * 2
	children := make([]Reply, 0, capHint(elems))
	pos := next
	for i := 0; i < elems; i++ {
		child, np, err := decodeFrame(buf, pos, ver, lim, depth+1)
		if err != nil {
			return Reply{}, 0, err
		}
		children = append(children, child)
		pos = np
	}
	attr := Reply{Type: TypeMap, Elems: children}

	target, pos, err := decodeFrame(buf, pos, ver, lim, depth+1)
	if err != nil {
		return Reply{}, 0, err
	}
	if target.Attr == nil {
		target.Attr = &attr
	}
	return target, pos, nil
}

// readFrameLine finds the CRLF-terminated line starting at pos and
// returns it without the terminator. A missing terminator means the
// frame is still in flight, unless the line has already grown past any
// legal header length.
func readFrameLine(buf []byte, pos int) ([]byte, int, error) {
	i := bytes.IndexByte(buf[pos:], '\n')
	if i < 0 {
		if len(buf)-pos > maxLineLen {
			return nil, 0, protoErrorf("unterminated line exceeds %d bytes", maxLineLen)
		}
		return nil, 0, errIncomplete
	}
	if i > maxLineLen {
		return nil, 0, protoErrorf("line exceeds %d bytes", maxLineLen)
	}
	if i < 1 || buf[pos+i-1] != '\r' {
		return nil, 0, protoErrorf("line terminated by bare LF")
	}
	return buf[pos : pos+i-1], pos + i + 1, nil
}

func parseInteger(content []byte) (int64, error) {
	n, err := strconv.ParseInt(string(content), 10, 64)
	if err != nil {
		return 0, protoErrorf("bad integer %q", content)
	}
	return n, nil
}

func requireRESP3(ver Version, sigil byte) error {
	if ver != RESP3 {
		return protoErrorf("RESP3 sigil %q on a %s connection", sigil, ver)
	}
	return nil
}

func validBigNumber(content []byte) bool {
	if len(content) > 0 && (content[0] == '+' || content[0] == '-') {
		content = content[1:]
	}
	if len(content) == 0 {
		return false
	}
	for _, c := range content {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// capHint bounds slice preallocation so a lying aggregate header can't
// force a huge allocation before the payload shows up.
func capHint(n int) int {
	const max = 1024
	if n > max {
		return max
	}
	return n
}
