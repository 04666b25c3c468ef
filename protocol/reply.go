package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// ReplyType tags which shape a Reply carries. The values are the wire
// sigils, which makes protocol traces and switch statements line up.
type ReplyType byte

const (
	TypeSimpleString ReplyType = '+'
	TypeError        ReplyType = '-'
	TypeInteger      ReplyType = ':'
	TypeBulkString   ReplyType = '$'
	TypeArray        ReplyType = '*'

	// RESP3 only.
	TypeNull      ReplyType = '_'
	TypeBoolean   ReplyType = '#'
	TypeDouble    ReplyType = ','
	TypeBigNumber ReplyType = '('
	TypeBulkError ReplyType = '!'
	TypeVerbatim  ReplyType = '='
	TypeMap       ReplyType = '%'
	TypeSet       ReplyType = '~'
	TypePush      ReplyType = '>'
)

func (t ReplyType) String() string {
	switch t {
	case TypeSimpleString:
		return "simple-string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		return "bulk-string"
	case TypeArray:
		return "array"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeDouble:
		return "double"
	case TypeBigNumber:
		return "big-number"
	case TypeBulkError:
		return "bulk-error"
	case TypeVerbatim:
		return "verbatim-string"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypePush:
		return "push"
	default:
		return fmt.Sprintf("unknown(%q)", byte(t))
	}
}

// Reply is one parsed server reply. Exactly one shape is active,
// selected by Type:
//
//   TypeSimpleString            Str
//   TypeError, TypeBulkError    Err
//   TypeInteger                 Int
//   TypeBulkString              Bulk (nil for a RESP2 $-1)
//   TypeArray, TypeSet, TypePush  Elems (nil for a RESP2 *-1)
//   TypeNull                    nothing
//   TypeBoolean                 Bool
//   TypeDouble                  Float
//   TypeBigNumber               Str (arbitrary-precision decimal text)
//   TypeVerbatim                Str (three-letter format tag), Bulk (body)
//   TypeMap                     Elems, flattened key/value pairs
//
// Attr, when non-nil, is the RESP3 attribute map (a TypeMap reply)
// that the server attached to this reply as side-channel metadata.
type Reply struct {
	Type  ReplyType
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Bulk  []byte
	Elems []Reply
	Err   *ServerError
	Attr  *Reply
}

// IsNil reports whether the reply is a nil value: the RESP3 null, a
// RESP2 nil bulk string ($-1) or a RESP2 nil array (*-1). A nil reply
// is distinguishable from an empty string or empty array.
func (r Reply) IsNil() bool {
	switch r.Type {
	case TypeNull:
		return true
	case TypeBulkString:
		return r.Bulk == nil
	case TypeArray:
		return r.Elems == nil
	default:
		return false
	}
}

// ErrorOrNil returns the server error carried by this reply, or nil if
// it is not an error reply.
func (r Reply) ErrorOrNil() error {
	if r.Type == TypeError || r.Type == TypeBulkError {
		return r.Err
	}
	return nil
}

// IsOK reports whether the reply is the +OK status most write commands
// acknowledge with.
func (r Reply) IsOK() bool {
	return r.Type == TypeSimpleString && r.Str == "OK"
}

var errWrongShape = errors.New("respio: reply has the wrong shape")

func shapeError(want string, got ReplyType) error {
	return fmt.Errorf("%w: want %s, got %s", errWrongShape, want, got)
}

// Text unwraps any string-like reply into a Go string.
func (r Reply) Text() (string, error) {
	switch r.Type {
	case TypeSimpleString, TypeBigNumber:
		return r.Str, nil
	case TypeBulkString, TypeVerbatim:
		return string(r.Bulk), nil
	default:
		return "", shapeError("string", r.Type)
	}
}

// Bytes unwraps a bulk or verbatim reply into its raw bytes.
func (r Reply) Bytes() ([]byte, error) {
	switch r.Type {
	case TypeBulkString, TypeVerbatim:
		return r.Bulk, nil
	case TypeSimpleString:
		return []byte(r.Str), nil
	default:
		return nil, shapeError("bytes", r.Type)
	}
}

// Int64 unwraps an integer reply. Bulk strings holding decimal text
// also unwrap, matching how Redis returns numbers from scripts and
// string commands.
func (r Reply) Int64() (int64, error) {
	switch r.Type {
	case TypeInteger:
		return r.Int, nil
	case TypeBulkString:
		n, err := strconv.ParseInt(string(r.Bulk), 10, 64)
		if err != nil {
			return 0, shapeError("integer", r.Type)
		}
		return n, nil
	default:
		return 0, shapeError("integer", r.Type)
	}
}

// Float64 unwraps a double reply, or parses one out of a bulk string
// the way RESP2 servers report floats.
func (r Reply) Float64() (float64, error) {
	switch r.Type {
	case TypeDouble:
		return r.Float, nil
	case TypeInteger:
		return float64(r.Int), nil
	case TypeBulkString:
		f, err := strconv.ParseFloat(string(r.Bulk), 64)
		if err != nil {
			return 0, shapeError("double", r.Type)
		}
		return f, nil
	default:
		return 0, shapeError("double", r.Type)
	}
}

// Boolean unwraps a RESP3 boolean, or the 0/1 integer RESP2 servers
// use in its place.
func (r Reply) Boolean() (bool, error) {
	switch r.Type {
	case TypeBoolean:
		return r.Bool, nil
	case TypeInteger:
		return r.Int != 0, nil
	default:
		return false, shapeError("boolean", r.Type)
	}
}

// Slice unwraps an array, set or push reply into its elements.
func (r Reply) Slice() ([]Reply, error) {
	switch r.Type {
	case TypeArray, TypeSet, TypePush:
		return r.Elems, nil
	default:
		return nil, shapeError("array", r.Type)
	}
}

// StringMap unwraps a map reply into Go map form. RESP2 servers return
// maps as flat arrays of alternating keys and values, so those unwrap
// too.
func (r Reply) StringMap() (map[string]string, error) {
	switch r.Type {
	case TypeMap, TypeArray:
	default:
		return nil, shapeError("map", r.Type)
	}
	if len(r.Elems)%2 != 0 {
		return nil, shapeError("map", r.Type)
	}

	out := make(map[string]string, len(r.Elems)/2)
	for i := 0; i < len(r.Elems); i += 2 {
		k, err := r.Elems[i].Text()
		if err != nil {
			return nil, err
		}
		v, err := r.Elems[i+1].Text()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
