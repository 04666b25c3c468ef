package protocol

// This package implements encoding and decoding for the Redis
// serialization protocol (RESP), generations 2 and 3.
//
// It is deliberately sans-IO: nothing in here touches a socket or a
// file descriptor. Commands are encoded into byte slices which the
// caller hands to whatever transport it owns, and received bytes are
// fed back in and parsed into Reply values. This keeps the protocol
// logic pure and lets the same code drive blocking sockets, event
// loops, or tests with hand-crafted byte sequences.
//
// - `Command` - An ordered list of binary-safe arguments. Argument 0
//               is the command name (e.g. 'GET').
// - `Reply`   - A parsed server reply. One tagged value covering every
//               RESP2 and RESP3 reply shape.
// - `Decoder` - An incremental parser. Feed it arbitrary chunks of
//               received bytes and pull complete replies out; partial
//               frames stay buffered until more bytes arrive.
//
// === Command encoding
//
// Commands are always sent in the RESP multi-bulk form, for both RESP2
// and RESP3 servers (RESP3 changes the reply side only):
//
//   ```
//     *<argc>\r\n
//     $<len(arg0)>\r\n<arg0>\r\n
//     $<len(arg1)>\r\n<arg1>\r\n
//     ...
//   ```
//
// Argument bytes are opaque. Lengths count raw bytes, so values may
// contain \r\n or any other byte sequence.
//
// === Reply decoding
//
// The first byte of a frame is a type sigil:
//
//   RESP2: + - : $ *
//   RESP3: _ # , ( ! = % ~ > |
//
// Line types run to the first \r\n. Length-prefixed types ($ ! =) read
// a decimal byte count and then exactly that many bytes. Aggregates
// (* % ~ >) read a decimal element count and recurse. Attribute frames
// (|) are parsed like maps and attached to the frame that follows them
// rather than surfaced on their own.
//
// Under RESP2 a $-1 or *-1 header denotes a nil value. RESP3 retires
// that encoding in favour of the dedicated _ sigil; a -1 length under
// RESP3 is a protocol error, as is any RESP3 sigil arriving on a
// connection negotiated down to RESP2.
//
// Decoding is a pure function of (buffer, version). A truncated frame
// is never an error: the decoder reports how many bytes it consumed
// and the caller re-supplies the unconsumed tail with the next read.
