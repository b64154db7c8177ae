package value

// Get resolves path against root, returning (value, true) if it addresses an
// existing location, or (nil, false) otherwise (§4.1: get(path) -> Option).
func Get(root Value, p Path) (Value, bool) {
	cur := root
	for _, seg := range p {
		switch node := cur.(type) {
		case *Object:
			v, ok := node.Get(seg.Key)
			if !ok {
				return nil, false
			}
			cur = v
		case *Array:
			if seg.Index < 0 || seg.Index >= len(node.Elems) {
				return nil, false
			}
			cur = node.Elems[seg.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// resolveParent walks all but the last segment of p, returning the parent
// node and the final segment. An empty path has no parent.
func resolveParent(root Value, p Path) (Value, Segment, bool) {
	if len(p) == 0 {
		return nil, Segment{}, false
	}
	parentPath, last, _ := p.Parent()
	parent, ok := Get(root, parentPath)
	if !ok {
		return nil, Segment{}, false
	}
	return parent, last, true
}

// Set replaces the value addressed by p. If p is the root path, *root is
// replaced entirely. Object keys are created if missing; array indices must
// already be in range (use Append to grow an array) — §4.1's low-level
// contract; the reconstructor layers its own richer create-on-miss
// semantics (§4.7) on top of these primitives.
func Set(root *Value, p Path, v Value) error {
	if len(p) == 0 {
		*root = v
		return nil
	}
	parent, last, ok := resolveParent(*root, p)
	if !ok {
		return newPathError(PathErrorNotFound, p, "parent does not exist")
	}
	switch node := parent.(type) {
	case *Object:
		if last.IsIndex {
			return newPathError(PathErrorTypeMismatch, p, "object does not accept index segments")
		}
		node.Set(last.Key, v)
		return nil
	case *Array:
		if !last.IsIndex {
			return newPathError(PathErrorTypeMismatch, p, "array requires an index segment")
		}
		if last.Index < 0 || last.Index >= len(node.Elems) {
			return newPathError(PathErrorOutOfBounds, p, "index out of range")
		}
		node.Elems[last.Index] = v
		return nil
	default:
		return newPathError(PathErrorTypeMismatch, p, "parent is a scalar")
	}
}

// Append pushes v onto the array addressed by p.
func Append(root Value, p Path, v Value) error {
	target, ok := Get(root, p)
	if !ok {
		return newPathError(PathErrorNotFound, p, "array does not exist")
	}
	arr, ok := target.(*Array)
	if !ok {
		return newPathError(PathErrorTypeMismatch, p, "target is not an array")
	}
	arr.Elems = append(arr.Elems, v)
	return nil
}

// Delete removes the entry addressed by p: an object key, or an array
// element (splicing the slice).
func Delete(root Value, p Path) error {
	parent, last, ok := resolveParent(root, p)
	if !ok {
		return newPathError(PathErrorNotFound, p, "parent does not exist")
	}
	switch node := parent.(type) {
	case *Object:
		if !node.Delete(last.Key) {
			return newPathError(PathErrorNotFound, p, "key not present")
		}
		return nil
	case *Array:
		if last.Index < 0 || last.Index >= len(node.Elems) {
			return newPathError(PathErrorOutOfBounds, p, "index out of range")
		}
		node.Elems = append(node.Elems[:last.Index], node.Elems[last.Index+1:]...)
		return nil
	default:
		return newPathError(PathErrorTypeMismatch, p, "parent is a scalar")
	}
}

// Merge shallow-merges src's keys into the object addressed by p, src keys
// overriding, other target keys preserved (§4.7 "merge" semantics, exposed
// here as a C1 primitive; the reconstructor's merge op calls it).
func Merge(root Value, p Path, src *Object) error {
	target, ok := Get(root, p)
	if !ok {
		return newPathError(PathErrorNotFound, p, "target does not exist")
	}
	obj, ok := target.(*Object)
	if !ok {
		return newPathError(PathErrorTypeMismatch, p, "merge target is not an object")
	}
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		obj.Set(k, v)
	}
	return nil
}
