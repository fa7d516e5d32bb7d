package decode

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Record is a decoded component value keyed by schema field name. Field values are one of
// int64, string, bool, []any, or Unknown.
type Record map[string]any

// Unknown is a value decoded without a schema. Raw is the lowercase hex of the undecoded bytes.
type Unknown struct {
	Raw string
}

const unknownJSONKey = "$unknown"

func (u Unknown) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{unknownJSONKey: u.Raw})
}

func (u *Unknown) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return eris.Wrap(err, "failed to unmarshal unknown value")
	}
	raw, ok := m[unknownJSONKey]
	if !ok {
		return eris.Errorf("missing %s key", unknownJSONKey)
	}
	u.Raw = raw
	return nil
}

// Degraded reports whether any field of the record was decoded without a schema.
func (r Record) Degraded() bool {
	for _, v := range r {
		if _, ok := v.(Unknown); ok {
			return true
		}
	}
	return false
}

// Normalize restores the canonical field types of a record that went through a generic JSON
// decoder with UseNumber: json.Number becomes int64 and {"$unknown": raw} becomes Unknown.
func Normalize(r Record) (Record, error) {
	out := make(Record, len(r))
	for k, v := range r {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, eris.Wrapf(err, "field %s", k)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, eris.Wrapf(err, "number %s out of range", t)
		}
		return n, nil
	case float64:
		return int64(t), nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case map[string]any:
		raw, ok := t[unknownJSONKey].(string)
		if !ok || len(t) != 1 {
			return nil, eris.New("unexpected object in record")
		}
		return Unknown{Raw: raw}, nil
	default:
		return v, nil
	}
}
