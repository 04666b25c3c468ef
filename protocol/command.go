package protocol

import (
	"fmt"
	"strconv"
)

// Command is an ordered sequence of binary-safe byte strings. Argument
// 0 is the command name. A Command is immutable once built; encoding
// it is a pure function of its contents.
type Command struct {
	args [][]byte
}

// NewCommand builds a command from a name and a list of arguments.
// Arguments may be []byte, string, or any of the numeric types Redis
// understands; anything else fails with ErrInvalidArgType.
func NewCommand(name string, args ...interface{}) (Command, error) {
	out := make([][]byte, 0, len(args)+1)
	out = append(out, []byte(name))

	for i, arg := range args {
		b, err := encodeArg(arg)
		if err != nil {
			return Command{}, fmt.Errorf("argument %d of '%s': %w", i, name, err)
		}
		out = append(out, b)
	}

	return Command{args: out}, nil
}

// NewCommandBytes builds a command from pre-encoded arguments. The
// slices are retained as-is; callers must not mutate them afterwards.
// An empty argument list is a caller contract violation and is not
// defended against here.
func NewCommandBytes(args ...[]byte) Command {
	return Command{args: args}
}

// NewCommandStrings builds a command from string arguments, argument 0
// being the command name.
func NewCommandStrings(args ...string) Command {
	out := make([][]byte, len(args))
	for i, arg := range args {
		out[i] = []byte(arg)
	}
	return Command{args: out}
}

// Name returns the command name (argument 0), or "" for the zero value.
func (c Command) Name() string {
	if len(c.args) == 0 {
		return ""
	}
	return string(c.args[0])
}

// Len returns the number of arguments, including the command name.
func (c Command) Len() int {
	return len(c.args)
}

// Args returns the raw argument list. The caller must treat it as
// read-only.
func (c Command) Args() [][]byte {
	return c.args
}

func (c Command) String() string {
	return c.Name()
}

func encodeArg(arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidArgType, arg)
	}
}
