package tracer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Var is one named value in an ordered mapping.
type Var struct {
	Name  string
	Value any
}

// Vars is a JSON object that keeps insertion order. Encoded dicts and the
// args/set/prev payloads use it so documents list names in binding order.
type Vars []Var

// Get returns the value stored under name.
func (v Vars) Get(name string) (any, bool) {
	for _, x := range v {
		if x.Name == name {
			return x.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under name in place, or appends it.
func (v *Vars) Set(name string, value any) {
	for i := range *v {
		if (*v)[i].Name == name {
			(*v)[i].Value = value
			return
		}
	}
	*v = append(*v, Var{Name: name, Value: value})
}

// Names lists the keys in order.
func (v Vars) Names() []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = x.Name
	}
	return out
}

// Map converts v, and any nested Vars, into plain maps.
func (v Vars) Map() map[string]any {
	out := make(map[string]any, len(v))
	for _, x := range v {
		out[x.Name] = plain(x.Value)
	}
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case Vars:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	}
	return v
}

func (v Vars) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, x := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshal(x.Name)
		if err != nil {
			return nil, err
		}
		val, err := marshal(x.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", x.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v *Vars) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	val, err := decodeValue(dec)
	if err != nil {
		return err
	}
	obj, ok := val.(Vars)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", val)
	}
	*v = obj
	return nil
}

// decodeValue reads one JSON value. Objects become Vars, integral numbers
// int64 and other numbers float64.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Vars{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return t.Float64()
	}
	return tok, nil
}

// marshal is json.Marshal without HTML escaping, so reprs such as
// "<function f>" stay readable.
func marshal(v any) ([]byte, error) {
	return encodeIndent(v, "")
}

// encodeIndent renders v as JSON without HTML escaping, indented when
// indent is non-empty.
func encodeIndent(v any, indent string) ([]byte, error) {
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

// FormatValue renders an encoded value as compact JSON for display.
func FormatValue(v any) string {
	b, err := marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
