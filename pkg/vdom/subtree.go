package vdom

// Subtree is a self-contained copy of a node and all of its descendants,
// carried by CREATE and REPLACE patches so an applier needs no further lookups.
type Subtree struct {
	Key      string     `json:"key"`
	Type     string     `json:"type"`
	Props    Props      `json:"props,omitempty"`
	Children []*Subtree `json:"children,omitempty"`
}

// Count returns the number of nodes in the subtree.
func (s *Subtree) Count() int {
	if s == nil {
		return 0
	}
	n := 1
	for _, c := range s.Children {
		n += c.Count()
	}
	return n
}

// Walk calls fn for every node in depth-first pre-order until fn returns false.
func (s *Subtree) Walk(fn func(*Subtree) bool) bool {
	if s == nil {
		return true
	}
	if !fn(s) {
		return false
	}
	for _, c := range s.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Map returns the subtree as nested generic mappings.
func (s *Subtree) Map() map[string]any {
	if s == nil {
		return nil
	}
	props := make(map[string]any, len(s.Props))
	for k, v := range s.Props {
		props[k] = v
	}
	children := make([]any, len(s.Children))
	for i, c := range s.Children {
		children[i] = c.Map()
	}
	return map[string]any{
		"key":      s.Key,
		"type":     s.Type,
		"props":    props,
		"children": children,
	}
}

// Snapshot flattens the subtree back into a Tree.
func (s *Subtree) Snapshot() Tree {
	t := make(Tree, s.Count())
	s.Walk(func(n *Subtree) bool {
		node := Node{Key: n.Key, Type: n.Type, Props: n.Props}
		for _, c := range n.Children {
			node.Children = append(node.Children, c.Key)
		}
		t[n.Key] = node
		return true
	})
	return t
}

// buildSubtree copies key and its descendants out of t.
// t must already be validated so that recursion terminates.
func buildSubtree(t Tree, key string) (*Subtree, error) {
	node := t[key]
	props, err := copyProps(node.Props)
	if err != nil {
		return nil, err
	}
	s := &Subtree{Key: key, Type: node.Type, Props: props}
	if len(node.Children) > 0 {
		s.Children = make([]*Subtree, 0, len(node.Children))
		for _, child := range node.Children {
			c, err := buildSubtree(t, child)
			if err != nil {
				return nil, err
			}
			s.Children = append(s.Children, c)
		}
	}
	return s, nil
}
