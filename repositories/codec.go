package repositories

import (
	"chat-sync/contract"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// encodeFields serializes a document as a protobuf Struct.
// Struct has no timestamp type: times are stored as RFC 3339 strings,
// which the room decoder reads back.
func encodeFields(fields contract.Fields) ([]byte, error) {
	normalized, err := normalize(fields)
	if err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(normalized.(map[string]any))
	if err != nil {
		return nil, fmt.Errorf("document encoding failed: %w", err)
	}
	return proto.Marshal(st)
}

func decodeFields(bytes []byte) (contract.Fields, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(bytes, &st); err != nil {
		return nil, fmt.Errorf("document decoding failed: %w", err)
	}
	return st.AsMap(), nil
}

// sameValue compares two document values the way they would be stored.
func sameValue(a, b any) bool {
	na, err := normalize(a)
	if err != nil {
		return false
	}
	nb, err := normalize(b)
	if err != nil {
		return false
	}
	va, err := structpb.NewValue(na)
	if err != nil {
		return false
	}
	vb, err := structpb.NewValue(nb)
	if err != nil {
		return false
	}
	return proto.Equal(va, vb)
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return t.String(), nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return v, nil
	}
}
