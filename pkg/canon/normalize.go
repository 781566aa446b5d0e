package canon

import "sort"

// Normalize converts a raw capture payload into a canonical Tree. Missing or
// unusable input yields an empty tree. Normalize is pure and total: it never
// fails and the same input always yields the same output.
func Normalize(raw map[string]any) *Tree {
	if raw == nil {
		return &Tree{}
	}
	rootRaw, ok := raw["root"]
	if !ok {
		// no "root" key: the payload itself is treated as the raw node.
		rootRaw = raw
	}
	rootMap, ok := rootRaw.(map[string]any)
	if !ok {
		return &Tree{}
	}
	node := normalizeNode(rootMap)
	if node == nil {
		return &Tree{}
	}
	return &Tree{Root: node}
}

// normalizeNode applies the normalization steps to a single raw node map,
// recursing into children. Returns nil for a nil input (an "omitted"
// child, per the normalizer's omit-null-children rule); an empty map
// yields a node with empty role, name and type.
func normalizeNode(raw map[string]any) *Node {
	if raw == nil {
		return nil
	}

	name := ""
	if v, ok := stringField(raw, "name"); ok {
		name = v
	}
	// alias keys fold into name; name itself takes precedence over aliases
	// when both are present, so aliases only fill in when name is empty.
	if name == "" {
		for _, alias := range aliasOrder {
			if v, ok := stringField(raw, alias); ok && v != "" {
				name = v
				break
			}
		}
	}

	role := ""
	if v, ok := stringField(raw, "role"); ok {
		role = lowerASCII(v)
	}

	typ := ""
	if v, ok := stringField(raw, "type"); ok {
		typ = v
	}

	n := &Node{Role: role, Name: name, Type: typ}

	props := map[string]any{}
	for key := range recognizedProps {
		if transientKeys[key] {
			continue
		}
		if v, ok := raw[key]; ok {
			props[key] = v
		}
	}
	if len(props) > 0 {
		n.Props = props
	}

	if b, ok := raw["bounds"].(map[string]any); ok {
		n.Bounds = &Bounds{
			X:      intField(b, "x"),
			Y:      intField(b, "y"),
			Width:  intField(b, "width"),
			Height: intField(b, "height"),
		}
	}

	rawChildren, _ := raw["children"].([]any)
	children := make([]*Node, 0, len(rawChildren))
	for _, rc := range rawChildren {
		rcMap, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		child := normalizeNode(rcMap)
		if child != nil {
			children = append(children, child)
		}
	}
	sortChildren(children)
	if len(children) > 0 {
		n.Children = children
	}

	return n
}

// sortChildren orders children ascending on (role, name, type), stable for
// equal triples.
func sortChildren(children []*Node) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Type < b.Type
	})
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(raw map[string]any, key string) int {
	v, ok := raw[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
