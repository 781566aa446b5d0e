package canon

// AsRawMap renders the tree back into the same raw shape Normalize accepts,
// so that re-normalizing an already-canonical tree is a well-formed
// round-trip (used by idempotence tests and by callers re-feeding a stored
// tree through the pipeline).
func (t *Tree) AsRawMap() map[string]any {
	if t.Empty() {
		return map[string]any{}
	}
	return map[string]any{"root": nodeToRaw(t.Root)}
}

func nodeToRaw(n *Node) map[string]any {
	if n == nil {
		return nil
	}
	raw := map[string]any{
		"role": n.Role,
		"name": n.Name,
		"type": n.Type,
	}
	for k, v := range n.Props {
		raw[k] = v
	}
	if n.Bounds != nil {
		raw["bounds"] = map[string]any{
			"x": n.Bounds.X, "y": n.Bounds.Y,
			"width": n.Bounds.Width, "height": n.Bounds.Height,
		}
	}
	if len(n.Children) > 0 {
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = nodeToRaw(c)
		}
		raw["children"] = children
	}
	return raw
}
