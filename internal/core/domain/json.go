package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// PointFields lists the fields a point declares, in the order they are reported.
var PointFields = []string{"name", "address", "intro", "center", "tags", "webLink", "phone", "webName"}

func isPointField(key string) bool {
	for _, f := range PointFields {
		if f == key {
			return true
		}
	}
	return false
}

type dataPointAlias DataPoint

// MarshalJSON writes the declared fields followed by any extra keys in sorted order.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	base, err := EncodeJSON(dataPointAlias(p), "")
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		if !isPointField(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, k := range keys {
		kb, err := EncodeJSON(k, "")
		if err != nil {
			return nil, err
		}
		vb, err := EncodeJSON(p.Extra[k], "")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the declared fields and keeps every other key in Extra.
// Only exact key matches populate the declared fields.
func (p *DataPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	declared := make(map[string]json.RawMessage, len(PointFields))
	var alias dataPointAlias
	for k, v := range raw {
		if isPointField(k) {
			declared[k] = v
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]any)
		}
		alias.Extra[k] = val
	}

	fields, err := json.Marshal(declared)
	if err != nil {
		return err
	}
	extra := alias.Extra
	if err := json.Unmarshal(fields, &alias); err != nil {
		return err
	}
	alias.Extra = extra
	if len(alias.Tags) == 0 {
		alias.Tags = nil
	}

	*p = DataPoint(alias)
	return nil
}

// EncodeJSON encodes v as UTF-8 JSON without escaping HTML or non-ASCII characters.
// A non-empty indent produces indented output.
func EncodeJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
