// Package skeleton implements the PJS skeleton generator (C3): a
// structurally isomorphic, value-empty shadow of a source value (§4.3).
package skeleton

import (
	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/value"
)

// Config controls which arrays are streamed rather than placeholder-filled
// in place (§4.4: "An array may appear as length-zero if marked 'streamed
// array'").
type Config struct {
	// ArrayStreamThreshold (T_arr): arrays longer than this become `[]` in
	// the skeleton and are chunk-streamed by the planner instead.
	ArrayStreamThreshold int
}

// DefaultConfig mirrors the planner's default T_arr (§6.5).
func DefaultConfig() Config {
	return Config{ArrayStreamThreshold: 100}
}

// Generate produces the value-empty shadow of v: every scalar leaf becomes
// its type-preserving placeholder, while structure (object keys/order,
// array lengths) is preserved (§4.3), except for arrays over the stream
// threshold, which collapse to an empty placeholder array (§4.4). It
// enforces policy's MaxDepth/MaxArrayElements/MaxObjectKeys at every
// recursion point (§4.9), alongside pjs.OpenProducer's upfront CheckValue.
func Generate(v value.Value, cfg Config, policy admission.Policy) (value.Value, error) {
	return generate(v, cfg, policy, 0)
}

func generate(v value.Value, cfg Config, policy admission.Policy, depth int) (value.Value, error) {
	if err := policy.CheckDepth(depth); err != nil {
		return nil, err
	}
	switch node := v.(type) {
	case nil:
		return value.Null{}, nil
	case value.Null:
		return value.Null{}, nil
	case value.Bool:
		return value.Bool(false), nil
	case value.Int:
		return value.Int(0), nil
	case value.Float:
		return value.Float(0), nil
	case value.String:
		return value.String(""), nil
	case *value.Array:
		threshold := cfg.ArrayStreamThreshold
		if threshold <= 0 {
			threshold = 100
		}
		if len(node.Elems) > threshold {
			return value.NewArray(), nil
		}
		if err := policy.CheckArrayElements(len(node.Elems)); err != nil {
			return nil, err
		}
		elems := make([]value.Value, len(node.Elems))
		for i, e := range node.Elems {
			child, err := generate(e, cfg, policy, depth+1)
			if err != nil {
				return nil, err
			}
			elems[i] = child
		}
		return &value.Array{Elems: elems}, nil
	case *value.Object:
		if err := policy.CheckObjectKeys(node.Len()); err != nil {
			return nil, err
		}
		out := value.NewObject()
		for _, k := range node.Keys() {
			child, _ := node.Get(k)
			generated, err := generate(child, cfg, policy, depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(k, generated)
		}
		return out, nil
	default:
		return value.Null{}, nil
	}
}

// IsStreamed reports whether, under cfg, v would be shortened to an empty
// placeholder array rather than kept at full length. The planner does not
// call it; plan.walk applies the same length-over-threshold test itself.
func IsStreamed(v value.Value, cfg Config) bool {
	arr, ok := v.(*value.Array)
	if !ok {
		return false
	}
	threshold := cfg.ArrayStreamThreshold
	if threshold <= 0 {
		threshold = 100
	}
	return len(arr.Elems) > threshold
}
