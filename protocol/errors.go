package protocol

import (
	"errors"
	"strings"
)

var (
	// ErrProtocol marks bytes that cannot be a legal RESP frame: an
	// unknown sigil, a non-decimal length, a missing terminator, or a
	// frame that blows past the configured safety limits. A connection
	// that produced one is desynchronized and must be discarded.
	ErrProtocol = errors.New("respio: protocol error")

	// ErrInvalidArgType is returned when building a command from an
	// argument type that has no byte representation.
	ErrInvalidArgType = errors.New("respio: invalid command argument type")
)

// ServerError is a well-formed error reply from the server (a '-' or
// '!' frame). Unlike ErrProtocol it says nothing about the health of
// the connection: the stream is still in sync and the connection
// remains usable.
//
// Kind is the leading error code when the server provides one, e.g.
// "ERR", "WRONGTYPE", "NOAUTH", "MOVED". Message is always non-empty.
type ServerError struct {
	Kind    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return e.Kind + " " + e.Message
}

// NewServerError splits a raw error line into its code and message.
// Redis error codes are a leading run of uppercase letters ("ERR wrong
// number of arguments..."); lines without one keep an empty Kind.
func NewServerError(line string) *ServerError {
	code, rest, ok := splitErrorCode(line)
	if !ok {
		return &ServerError{Message: line}
	}
	return &ServerError{Kind: code, Message: rest}
}

func splitErrorCode(line string) (code, rest string, ok bool) {
	i := strings.IndexByte(line, ' ')
	if i <= 0 {
		return "", "", false
	}
	for _, r := range line[:i] {
		if r < 'A' || r > 'Z' {
			return "", "", false
		}
	}
	return line[:i], line[i+1:], true
}
