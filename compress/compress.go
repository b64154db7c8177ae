// Package compress implements the PJS compression codecs (C6): dictionary,
// delta, and run-length encodings for patch payloads, each bounded by hard,
// non-configurable anti-bomb caps (§4.6).
package compress

import "fmt"

// Anti-bomb caps (§4.6). These are intentionally not part of any Config —
// they are hard limits, never relaxed by a session policy.
const (
	MaxRLECount         = 100_000
	MaxDeltaArraySize   = 1_000_000
	MaxDecompressedSize = 10 << 20 // 10 MiB
)

// OverflowError reports checked arithmetic overflow in the delta codec.
type OverflowError struct {
	Op string
}

func (e *OverflowError) Error() string { return "compress: overflow during " + e.Op }

// BombSuspected reports a decode that would exceed an anti-bomb cap.
type BombSuspected struct {
	Cap    string
	Wanted int64
	Limit  int64
}

func (e *BombSuspected) Error() string {
	return fmt.Sprintf("compress: bomb suspected: %s would need %d, limit %d", e.Cap, e.Wanted, e.Limit)
}

// UnknownEncoding reports a decode request naming an unrecognised codec.
type UnknownEncoding struct {
	Name string
}

func (e *UnknownEncoding) Error() string { return "compress: unknown encoding " + e.Name }

// Codec names the three interchangeable compression codecs plus "off" (no
// compression) and "auto" (pick per payload with Select) (§4.6, §6.5
// `compression` option).
type Codec string

const (
	CodecNone       Codec = "off"
	CodecDictionary Codec = "dict"
	CodecDelta      Codec = "delta"
	CodecRLE        Codec = "rle"
	CodecAuto       Codec = "auto"
)

// Budget tracks cumulative decompressed bytes across a single frame's
// decode so no combination of RLE/delta/dictionary expansion can exceed
// MaxDecompressedSize (§4.6, §8 property 8).
type Budget struct {
	used  int64
	limit int64
}

func NewBudget(limit int64) *Budget {
	if limit <= 0 || limit > MaxDecompressedSize {
		limit = MaxDecompressedSize
	}
	return &Budget{limit: limit}
}

func (b *Budget) reserve(n int64, cap string) error {
	if b.used+n > b.limit {
		return &BombSuspected{Cap: cap, Wanted: b.used + n, Limit: b.limit}
	}
	b.used += n
	return nil
}
