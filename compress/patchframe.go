package compress

import (
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/value"
)

// DecodePatchFrame reverses the compression plan.Build applied before
// packing f, expanding its @encoding-tagged op values back into their plain
// form against budget and resetting Encoding to raw so reconstruct.Apply
// never walks a compressed payload (§4.6, §8 property 8, seed scenario S5).
// It is a no-op for frames carrying EncodingRaw (or no encoding at all).
func DecodePatchFrame(f *frame.PatchFrame, budget *Budget) error {
	switch f.Encoding {
	case "", frame.EncodingRaw:
		return nil
	case frame.EncodingDelta:
		return decodeDeltaFrame(f, budget)
	case frame.EncodingRLE:
		return decodeRLEFrame(f, budget)
	case frame.EncodingDict:
		return decodeDictFrame(f, budget)
	default:
		return &UnknownEncoding{Name: string(f.Encoding)}
	}
}

// decodeDeltaFrame handles both shapes Build can produce: a single
// ArrayMetadata chunk op whose value is the delta-encoded array, or an
// ops-bucket frame with one delta-encoded int per op (same order, same
// paths).
func decodeDeltaFrame(f *frame.PatchFrame, budget *Budget) error {
	if f.ArrayMetadata != nil {
		if len(f.Patches) != 1 {
			return &UnknownEncoding{Name: string(f.Encoding)}
		}
		deltas, err := intsFromArray(f.Patches[0].Value)
		if err != nil {
			return err
		}
		decoded, err := DecodeDelta(deltas, budget)
		if err != nil {
			return err
		}
		f.Patches[0].Value = &value.Array{Elems: intsToValues(decoded)}
		f.Encoding = frame.EncodingRaw
		return nil
	}

	deltas := make([]int64, len(f.Patches))
	for i, op := range f.Patches {
		iv, ok := op.Value.(value.Int)
		if !ok {
			return &UnknownEncoding{Name: string(f.Encoding)}
		}
		deltas[i] = int64(iv)
	}
	decoded, err := DecodeDelta(deltas, budget)
	if err != nil {
		return err
	}
	for i := range f.Patches {
		f.Patches[i].Value = value.Int(decoded[i])
	}
	f.Encoding = frame.EncodingRaw
	return nil
}

// decodeRLEFrame only arises from emitStreamedArray chunks (§4.6): Build
// never applies RLE to the per-path ops bucket.
func decodeRLEFrame(f *frame.PatchFrame, budget *Budget) error {
	if f.ArrayMetadata == nil || len(f.Patches) != 1 {
		return &UnknownEncoding{Name: string(f.Encoding)}
	}
	arr, ok := f.Patches[0].Value.(*value.Array)
	if !ok {
		return &UnknownEncoding{Name: string(f.Encoding)}
	}
	runs := make([]Run, len(arr.Elems))
	for i, pair := range arr.Elems {
		p, ok := pair.(*value.Array)
		if !ok || len(p.Elems) != 2 {
			return &UnknownEncoding{Name: string(f.Encoding)}
		}
		count, ok := p.Elems[1].(value.Int)
		if !ok {
			return &UnknownEncoding{Name: string(f.Encoding)}
		}
		runs[i] = Run{Value: p.Elems[0], Count: int(count)}
	}
	decoded, err := DecodeRLE(runs, budget)
	if err != nil {
		return err
	}
	f.Patches[0].Value = &value.Array{Elems: decoded}
	f.Encoding = frame.EncodingRaw
	return nil
}

func decodeDictFrame(f *frame.PatchFrame, budget *Budget) error {
	if f.ArrayMetadata != nil {
		if len(f.Patches) != 1 {
			return &UnknownEncoding{Name: string(f.Encoding)}
		}
		ids, err := idsFromArray(f.Patches[0].Value)
		if err != nil {
			return err
		}
		decoded, err := DecodeDictionary(DictionaryEncoded{Dictionary: f.Dictionary, IDs: ids}, budget)
		if err != nil {
			return err
		}
		f.Patches[0].Value = &value.Array{Elems: stringsToValues(decoded)}
		f.Encoding = frame.EncodingRaw
		f.Dictionary = nil
		return nil
	}

	ids := make([]int, len(f.Patches))
	for i, op := range f.Patches {
		iv, ok := op.Value.(value.Int)
		if !ok {
			return &UnknownEncoding{Name: string(f.Encoding)}
		}
		ids[i] = int(iv)
	}
	decoded, err := DecodeDictionary(DictionaryEncoded{Dictionary: f.Dictionary, IDs: ids}, budget)
	if err != nil {
		return err
	}
	for i, s := range decoded {
		f.Patches[i].Value = value.String(s)
	}
	f.Encoding = frame.EncodingRaw
	f.Dictionary = nil
	return nil
}

func intsFromArray(v value.Value) ([]int64, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return nil, &UnknownEncoding{Name: "delta"}
	}
	out := make([]int64, len(arr.Elems))
	for i, e := range arr.Elems {
		iv, ok := e.(value.Int)
		if !ok {
			return nil, &UnknownEncoding{Name: "delta"}
		}
		out[i] = int64(iv)
	}
	return out, nil
}

func idsFromArray(v value.Value) ([]int, error) {
	arr, ok := v.(*value.Array)
	if !ok {
		return nil, &UnknownEncoding{Name: "dict"}
	}
	out := make([]int, len(arr.Elems))
	for i, e := range arr.Elems {
		iv, ok := e.(value.Int)
		if !ok {
			return nil, &UnknownEncoding{Name: "dict"}
		}
		out[i] = int(iv)
	}
	return out, nil
}

func intsToValues(ints []int64) []value.Value {
	out := make([]value.Value, len(ints))
	for i, n := range ints {
		out[i] = value.Int(n)
	}
	return out
}

func stringsToValues(strs []string) []value.Value {
	out := make([]value.Value, len(strs))
	for i, s := range strs {
		out[i] = value.String(s)
	}
	return out
}
