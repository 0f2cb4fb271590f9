package stage

import (
	"strings"
)

// Kinded is implemented by stages that report their variant for explain output.
type Kinded interface {
	Kind() string
}

// Tree is the nested, serialisable description of a stage.
type Tree struct {
	Name     string `yaml:"name" json:"name"`
	Kind     string `yaml:"kind" json:"kind"`
	Children []Tree `yaml:"children,omitempty" json:"children,omitempty"`
}

// Describe walks s and returns its structure. Wrappers are transparent.
func Describe(s Stage) Tree {
	for {
		w, ok := s.(Wrapper)
		if !ok {
			break
		}
		s = w.Unwrap()
	}

	t := Tree{Name: s.Name(), Kind: kindOf(s)}
	if c, ok := s.(Composite); ok {
		for _, child := range c.Children() {
			t.Children = append(t.Children, Describe(child))
		}
	}
	return t
}

// Explain renders the stage tree as indented text, one node per line:
//
//	chain [sequential]
//	  scale [leaf]
//	  best [best]
//	    knn [leaf]
//	    tree [leaf]
func Explain(s Stage) string {
	var b strings.Builder
	writeTree(&b, Describe(s), 0)
	return b.String()
}

// Size returns the number of nodes and the depth of the tree.
func (t Tree) Size() (nodes, depth int) {
	nodes = 1
	for _, c := range t.Children {
		n, d := c.Size()
		nodes += n
		depth = max(depth, d)
	}
	return nodes, depth + 1
}

func writeTree(b *strings.Builder, t Tree, indent int) {
	b.WriteString(strings.Repeat("  ", indent))
	b.WriteString(t.Name)
	b.WriteString(" [")
	b.WriteString(t.Kind)
	b.WriteString("]\n")
	for _, c := range t.Children {
		writeTree(b, c, indent+1)
	}
}

func kindOf(s Stage) string {
	if k, ok := s.(Kinded); ok {
		return k.Kind()
	}
	if _, ok := s.(Composite); ok {
		return "composite"
	}
	return "leaf"
}
