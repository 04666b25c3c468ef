package protocol

import "errors"

// Decoder is a convenience wrapper around DecodeAll that owns the
// unconsumed tail between feeds. Feed it chunks exactly as they come
// off the transport, in any fragmentation, and pull complete replies
// out with Next.
//
// A Decoder is not safe for concurrent use; it belongs to whoever owns
// the connection's read side.
type Decoder struct {
	version Version
	limits  Limits
	buf     []byte
	pos     int
}

func NewDecoder(version Version) *Decoder {
	return &Decoder{
		version: version,
		limits:  DefaultLimits(),
	}
}

// SetLimits replaces the safety limits. Must be called before any
// bytes are fed.
func (d *Decoder) SetLimits(limits Limits) {
	d.limits = limits
}

func (d *Decoder) Version() Version {
	return d.version
}

// Feed appends received bytes to the decode buffer. The chunk is
// copied; the caller may reuse p immediately.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete reply, if the buffered bytes contain
// one. ok is false when more bytes are needed. A non-nil error is an
// ErrProtocol: the stream is desynchronized and the connection is no
// longer usable.
func (d *Decoder) Next() (reply Reply, ok bool, err error) {
	if d.pos >= len(d.buf) {
		d.buf = d.buf[:0]
		d.pos = 0
		return Reply{}, false, nil
	}

	reply, next, err := decodeFrame(d.buf, d.pos, d.version, &d.limits, 0)
	if err != nil {
		if errors.Is(err, errIncomplete) {
			d.compact()
			return Reply{}, false, nil
		}
		return Reply{}, false, err
	}

	d.pos = next
	if d.pos == len(d.buf) {
		d.buf = d.buf[:0]
		d.pos = 0
	}
	return reply, true, nil
}

// Buffered returns how many fed bytes are still waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.pos
}

// compact moves the unconsumed tail to the front of the buffer so the
// consumed prefix can be reused by the next Feed.
func (d *Decoder) compact() {
	if d.pos == 0 {
		return
	}
	d.buf = append(d.buf[:0], d.buf[d.pos:]...)
	d.pos = 0
}
