package admission

import "github.com/pjsproto/pjs/value"

// CheckValue walks v depth-first, enforcing MaxDepth and the per-node
// MaxArrayElements/MaxObjectKeys limits at every level it descends into,
// and MaxValueBytes against the whole tree's logical size (§4.9, §8
// property 7: "for |V| > max_value_bytes, session fails with
// SizeExceeded"). pjs.OpenProducer calls this once at session-open time;
// the analyser, skeleton generator, planner, and reconstructor each repeat
// CheckDepth/CheckArrayElements/CheckObjectKeys at their own recursion
// points as defense in depth for callers that walk a value directly.
func (p Policy) CheckValue(v value.Value) error {
	if err := p.CheckValueBytes(value.Sizeof(v)); err != nil {
		return err
	}
	return p.checkNode(v, 0)
}

func (p Policy) checkNode(v value.Value, depth int) error {
	if err := p.CheckDepth(depth); err != nil {
		return err
	}
	switch node := v.(type) {
	case *value.Array:
		if err := p.CheckArrayElements(len(node.Elems)); err != nil {
			return err
		}
		for _, e := range node.Elems {
			if err := p.checkNode(e, depth+1); err != nil {
				return err
			}
		}
	case *value.Object:
		if err := p.CheckObjectKeys(node.Len()); err != nil {
			return err
		}
		for _, k := range node.Keys() {
			child, _ := node.Get(k)
			if err := p.checkNode(child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
