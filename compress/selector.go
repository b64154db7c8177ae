package compress

import "github.com/pjsproto/pjs/value"

// Select picks the codec expected to compress values best, based on a quick
// structural sketch rather than actually running every codec (§4.6:
// "a selector that picks the codec with best expected ratio on a quick
// sketch, or none").
func Select(values []value.Value) Codec {
	if len(values) < 2 {
		return CodecNone
	}

	allInt := true
	for _, v := range values {
		if _, ok := v.(value.Int); !ok {
			allInt = false
			break
		}
	}
	if allInt {
		return CodecDelta
	}

	repeats := 0
	for i := 1; i < len(values); i++ {
		if value.Equal(values[i-1], values[i]) {
			repeats++
		}
	}
	if repeats*2 >= len(values)-1 {
		return CodecRLE
	}

	strCount, distinct := 0, map[string]bool{}
	for _, v := range values {
		if s, ok := v.(value.String); ok {
			strCount++
			distinct[string(s)] = true
		}
	}
	if strCount == len(values) && len(distinct)*2 < strCount {
		return CodecDictionary
	}

	return CodecNone
}
