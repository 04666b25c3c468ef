// Package render turns decoded replies into JSON documents for human
// consumption, chiefly the send command's output.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/luma/respio/protocol"
)

// JSON renders a reply as a JSON object of the form
//
//	{"type": "map", "value": {...}}
//
// with an "attributes" object alongside when the server attached one.
func JSON(reply protocol.Reply) ([]byte, error) {
	doc := []byte(`{}`)

	doc, err := sjson.SetBytes(doc, "type", reply.Type.String())
	if err != nil {
		return nil, err
	}

	doc, err = setValue(doc, "value", reply)
	if err != nil {
		return nil, err
	}

	if reply.Attr != nil {
		doc, err = setValue(doc, "attributes", *reply.Attr)
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func setValue(doc []byte, path string, r protocol.Reply) ([]byte, error) {
	switch r.Type {
	case protocol.TypeSimpleString:
		return sjson.SetBytes(doc, path, r.Str)

	case protocol.TypeBulkString, protocol.TypeVerbatim:
		if r.Bulk == nil {
			return sjson.SetBytes(doc, path, nil)
		}
		return sjson.SetBytes(doc, path, string(r.Bulk))

	case protocol.TypeBigNumber:
		return sjson.SetBytes(doc, path, r.Str)

	case protocol.TypeInteger:
		return sjson.SetBytes(doc, path, r.Int)

	case protocol.TypeDouble:
		return sjson.SetBytes(doc, path, r.Float)

	case protocol.TypeBoolean:
		return sjson.SetBytes(doc, path, r.Bool)

	case protocol.TypeNull:
		return sjson.SetBytes(doc, path, nil)

	case protocol.TypeError, protocol.TypeBulkError:
		doc, err := sjson.SetBytes(doc, path+".kind", r.Err.Kind)
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(doc, path+".message", r.Err.Message)

	case protocol.TypeArray, protocol.TypeSet, protocol.TypePush:
		if r.Elems == nil {
			return sjson.SetBytes(doc, path, nil)
		}
		doc, err := sjson.SetRawBytes(doc, path, []byte(`[]`))
		if err != nil {
			return nil, err
		}
		for i, elem := range r.Elems {
			doc, err = setValue(doc, path+"."+strconv.Itoa(i), elem)
			if err != nil {
				return nil, err
			}
		}
		return doc, nil

	case protocol.TypeMap:
		doc, err := sjson.SetRawBytes(doc, path, []byte(`{}`))
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(r.Elems); i += 2 {
			key, kerr := r.Elems[i].Text()
			if kerr != nil {
				key = fmt.Sprintf("%v", r.Elems[i])
			}
			doc, err = setValue(doc, path+"."+escapeKey(key), r.Elems[i+1])
			if err != nil {
				return nil, err
			}
		}
		return doc, nil

	default:
		return nil, fmt.Errorf("render: unhandled reply type %s", r.Type)
	}
}

// escapeKey protects sjson path metacharacters in map keys.
func escapeKey(key string) string {
	replacer := strings.NewReplacer(
		".", `\.`,
		"*", `\*`,
		"?", `\?`,
		"|", `\|`,
		"#", `\#`,
		"@", `\@`,
	)
	return replacer.Replace(key)
}
