package vdom

// Elem describes one node and its children for Build.
type Elem struct {
	Key      string
	Type     string
	Props    Props
	Children []*Elem
}

// Attr sets a single prop on an Elem.
type Attr struct {
	Key   string
	Value any
}

// A creates an Attr.
func A(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// N creates an Elem with the given key and type.
// Arguments can be: nil, Props, Attr, []Attr, *Elem, []*Elem.
func N(key, typ string, args ...any) *Elem {
	s := &Elem{Key: key, Type: typ}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// Ignore nil (allows conditional children)
			continue

		case Props:
			for k, val := range v {
				s.setProp(k, val)
			}

		case Attr:
			if v.Key != "" {
				s.setProp(v.Key, v.Value)
			}

		case []Attr:
			for _, attr := range v {
				if attr.Key != "" {
					s.setProp(attr.Key, attr.Value)
				}
			}

		case *Elem:
			if v != nil {
				s.Children = append(s.Children, v)
			}

		case []*Elem:
			for _, c := range v {
				if c != nil {
					s.Children = append(s.Children, c)
				}
			}
		}
	}

	return s
}

func (s *Elem) setProp(key string, value any) {
	if s.Props == nil {
		s.Props = make(Props)
	}
	s.Props[key] = value
}

// Build flattens elems into a Tree. Later elems with an existing key
// overwrite earlier ones.
func Build(elems ...*Elem) Tree {
	t := make(Tree)
	for _, s := range elems {
		addElem(t, s)
	}
	return t
}

func addElem(t Tree, s *Elem) {
	if s == nil {
		return
	}
	node := Node{Key: s.Key, Type: s.Type, Props: s.Props}
	for _, c := range s.Children {
		node.Children = append(node.Children, c.Key)
		addElem(t, c)
	}
	t[s.Key] = node
}
