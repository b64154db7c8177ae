package compress

// EncodeDelta encodes successive differences of a monotone or near-monotone
// i64 sequence using checked arithmetic (§4.6, §9 "checked i64 arithmetic").
// The first output element is the sequence's first value unchanged.
func EncodeDelta(values []int64) ([]int64, error) {
	if len(values) > MaxDeltaArraySize {
		return nil, &BombSuspected{Cap: "delta_array_size", Wanted: int64(len(values)), Limit: MaxDeltaArraySize}
	}
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]int64, len(values))
	out[0] = values[0]
	prev := values[0]
	for i := 1; i < len(values); i++ {
		d, err := checkedSub(values[i], prev)
		if err != nil {
			return nil, err
		}
		out[i] = d
		prev = values[i]
	}
	return out, nil
}

// DecodeDelta reconstitutes the original sequence by cumulatively summing
// deltas, rejecting overflow and oversized input (§4.6, §8 property 8).
func DecodeDelta(deltas []int64, b *Budget) ([]int64, error) {
	if len(deltas) > MaxDeltaArraySize {
		return nil, &BombSuspected{Cap: "delta_array_size", Wanted: int64(len(deltas)), Limit: MaxDeltaArraySize}
	}
	if len(deltas) == 0 {
		return nil, nil
	}
	if err := b.reserve(int64(len(deltas))*8, "delta"); err != nil {
		return nil, err
	}
	out := make([]int64, len(deltas))
	out[0] = deltas[0]
	for i := 1; i < len(deltas); i++ {
		sum, err := checkedAdd(out[i-1], deltas[i])
		if err != nil {
			return nil, err
		}
		out[i] = sum
	}
	return out, nil
}

func checkedAdd(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, &OverflowError{Op: "add"}
	}
	return sum, nil
}

func checkedSub(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, &OverflowError{Op: "sub"}
	}
	return diff, nil
}
