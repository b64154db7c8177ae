package compress

import "github.com/pjsproto/pjs/value"

// Run is one `(value, run_length)` pair (§4.6, §6.1). Run length never
// exceeds MaxRLECount; a longer run splits into multiple Runs.
type Run struct {
	Value value.Value
	Count int
}

// EncodeRLE collapses repeated scalar values into runs, splitting any run
// that would exceed MaxRLECount (§4.6: "Excess splits into multiple runs").
func EncodeRLE(values []value.Value) []Run {
	var runs []Run
	for _, v := range values {
		if len(runs) > 0 && runs[len(runs)-1].Count < MaxRLECount && value.Equal(runs[len(runs)-1].Value, v) {
			runs[len(runs)-1].Count++
			continue
		}
		runs = append(runs, Run{Value: v, Count: 1})
	}
	return runs
}

// DecodeRLE expands runs back into a flat value sequence, rejecting any run
// whose declared count would blow the anti-bomb caps (§4.6, §8 property 8,
// seed scenario S5).
func DecodeRLE(runs []Run, b *Budget) ([]value.Value, error) {
	var out []value.Value
	for _, r := range runs {
		if r.Count <= 0 || r.Count > MaxRLECount {
			return nil, &BombSuspected{Cap: "rle_count", Wanted: int64(r.Count), Limit: MaxRLECount}
		}
		size := value.Sizeof(r.Value) * int64(r.Count)
		if err := b.reserve(size, "rle"); err != nil {
			return nil, err
		}
		for i := 0; i < r.Count; i++ {
			out = append(out, r.Value)
		}
	}
	return out, nil
}
