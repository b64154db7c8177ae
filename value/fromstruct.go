package value

import (
	"fmt"
	"reflect"
	"strings"
)

// FromGoValue converts an arbitrary Go value into a value.Value tree by
// reflection, honoring `json` struct tags for field naming and omitempty —
// a convenience for building a source document without hand-assembling
// Object/Array nodes. Adapted from the teacher's reflect-driven struct
// walk (tools/schema.go's fieldTypeToJSONSchema/generateObjectSchema,
// which derives a JSON Schema from a Go type the same way); here the walk
// produces a Value instead of a schema.
func FromGoValue(v any) (Value, error) {
	if v == nil {
		return Null{}, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) (Value, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null{}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int(int64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null{}, nil
		}
		elems := make([]Value, rv.Len())
		for i := range elems {
			elem, err := fromReflect(rv.Index(i))
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return &Array{Elems: elems}, nil
	case reflect.Map:
		if rv.IsNil() {
			return Null{}, nil
		}
		out := NewObject()
		keys := rv.MapKeys()
		for _, k := range keys {
			if k.Kind() != reflect.String {
				return nil, fmt.Errorf("value: map key type %s unsupported, want string", k.Kind())
			}
			val, err := fromReflect(rv.MapIndex(k))
			if err != nil {
				return nil, err
			}
			out.Set(k.String(), val)
		}
		return out, nil
	case reflect.Struct:
		return structToObject(rv)
	default:
		return nil, fmt.Errorf("value: unsupported Go type %s", rv.Kind())
	}
}

func structToObject(rv reflect.Value) (Value, error) {
	out := NewObject()
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		parts := strings.Split(jsonTag, ",")
		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}
		omitempty := len(parts) > 1 && parts[1] == "omitempty"

		fv := rv.Field(i)
		if omitempty && fv.IsZero() {
			continue
		}
		val, err := fromReflect(fv)
		if err != nil {
			return nil, fmt.Errorf("value: field %q: %w", field.Name, err)
		}
		out.Set(name, val)
	}
	return out, nil
}
