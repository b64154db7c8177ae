package compress

// DMax is the default dictionary size bound (§4.6: "Dictionary size bounded
// by D_max").
const DMax = 4096

// DictionaryEncoded is a per-frame string dictionary plus the sequence of
// ids referencing it (§4.6, §6.1 `@dictionary`).
type DictionaryEncoded struct {
	Dictionary []string
	IDs        []int
}

// EncodeDictionary replaces repeated strings with ids into a dictionary no
// larger than dMax (0 uses DMax).
func EncodeDictionary(values []string, dMax int) (DictionaryEncoded, error) {
	if dMax <= 0 {
		dMax = DMax
	}
	index := make(map[string]int, len(values))
	var dict []string
	ids := make([]int, len(values))
	for i, v := range values {
		id, ok := index[v]
		if !ok {
			if len(dict) >= dMax {
				return DictionaryEncoded{}, &BombSuspected{Cap: "dictionary_size", Wanted: int64(len(dict) + 1), Limit: int64(dMax)}
			}
			id = len(dict)
			dict = append(dict, v)
			index[v] = id
		}
		ids[i] = id
	}
	return DictionaryEncoded{Dictionary: dict, IDs: ids}, nil
}

// DecodeDictionary expands ids back into strings, accounting expanded bytes
// against b so a crafted id stream cannot allocate past the decompressed
// size cap (§4.6, §8 property 8).
func DecodeDictionary(enc DictionaryEncoded, b *Budget) ([]string, error) {
	out := make([]string, len(enc.IDs))
	for i, id := range enc.IDs {
		if id < 0 || id >= len(enc.Dictionary) {
			return nil, &BombSuspected{Cap: "dictionary_id", Wanted: int64(id), Limit: int64(len(enc.Dictionary) - 1)}
		}
		s := enc.Dictionary[id]
		if err := b.reserve(int64(len(s)), "dictionary"); err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
