package record

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes a record to msgpack.
func Marshal(rec Record) ([]byte, error) {
	return msgpack.Marshal(rec)
}

// Unmarshal decodes a msgpack payload back into a record, normalizing
// the decoded shapes so the adapter can walk them: nested maps become
// records and integers widen to int64.
func Unmarshal(data []byte) (Record, error) {
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	v, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	return v.(Record), nil
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		out := Record{}
		for k, item := range x {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := Record{}
		for k, item := range x {
			name, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("record: non-string map key %v (%T)", k, k)
			}
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[name] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case float32:
		return float64(x), nil
	default:
		return v, nil
	}
}
