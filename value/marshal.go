package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON renders Null as JSON null.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON renders Bool as a JSON boolean.
func (b Bool) MarshalJSON() ([]byte, error) { return json.Marshal(bool(b)) }

// MarshalJSON renders Int as a JSON number.
func (i Int) MarshalJSON() ([]byte, error) { return json.Marshal(int64(i)) }

// MarshalJSON renders Float as a JSON number.
func (f Float) MarshalJSON() ([]byte, error) { return json.Marshal(float64(f)) }

// MarshalJSON renders String as a JSON string.
func (s String) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

// MarshalJSON renders Array as a JSON array, recursing into elements.
func (a *Array) MarshalJSON() ([]byte, error) {
	if a == nil || a.Elems == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range a.Elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := Marshal(elem)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON renders Object as a JSON object, preserving insertion order
// (§3: "Object key order is preserved through skeleton→patch→
// reconstruction"), which encoding/json's map support cannot do on its own.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyData, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyData)
		buf.WriteByte(':')
		v, _ := o.Get(k)
		data, err := Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal serialises any Value to canonical JSON, dispatching on its
// concrete type the way the teacher's content.Content.MarshalJSON dispatches
// on each Item's concrete type.
func Marshal(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	switch vv := v.(type) {
	case Null:
		return vv.MarshalJSON()
	case Bool:
		return vv.MarshalJSON()
	case Int:
		return vv.MarshalJSON()
	case Float:
		return vv.MarshalJSON()
	case String:
		return vv.MarshalJSON()
	case *Array:
		return vv.MarshalJSON()
	case *Object:
		return vv.MarshalJSON()
	default:
		return nil, fmt.Errorf("value: cannot marshal unknown Value type %T", v)
	}
}

// Unmarshal parses raw JSON into a Value tree, preserving object key order
// by walking json.Decoder tokens directly rather than round-tripping
// through map[string]any (which would lose it). Integers that fit in an i64
// decode as Int; any other JSON number decodes as Float (§9 "Numeric
// semantics").
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("value: invalid JSON: %w", err)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return NewFloat(f)
	case json.Delim:
		switch t {
		case '[':
			var elems []Value
			for dec.More() {
				elem, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				elems = append(elems, elem)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return &Array{Elems: elems}, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return nil, fmt.Errorf("unsupported token type %T", tok)
	}
}
