package engine

import (
	"strings"

	"gramfuzz/internal/grammar"
)

// Node is one symbol occurrence in a derivation tree. A node is Open until an
// alternative has been chosen for it.
type Node struct {
	Symbol   string
	Alt      int
	Children []*Node

	order       []int
	override    string
	hasOverride bool
	resolved    bool
}

func newOpenNode(symbol string) *Node {
	return &Node{Symbol: symbol, Alt: -1}
}

// Open reports whether no alternative has been chosen yet.
func (n *Node) Open() bool { return n.Alt < 0 }

// Override returns the literal text a hook substituted for this node.
func (n *Node) Override() (string, bool) { return n.override, n.hasOverride }

// Size returns the number of nodes in the subtree.
func (n *Node) Size() int {
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

func (n *Node) childrenResolved() bool {
	for _, c := range n.Children {
		if !c.resolved {
			return false
		}
	}
	return true
}

// nextOrdered returns the index of the unresolved child with the smallest
// rank, or -1.
func (n *Node) nextOrdered() int {
	best := -1
	for i, c := range n.Children {
		if c.resolved {
			continue
		}
		if best < 0 || n.order[i] < n.order[best] {
			best = i
		}
	}
	return best
}

// Render concatenates the tree depth-first. Hook overrides win over the
// template, and open nodes render as their symbol.
func Render(n *Node, g *grammar.Grammar) string {
	var sb strings.Builder
	render(&sb, n, g)
	return sb.String()
}

func render(sb *strings.Builder, n *Node, g *grammar.Grammar) {
	if n.hasOverride {
		sb.WriteString(n.override)
		return
	}
	if n.Open() {
		sb.WriteString(n.Symbol)
		return
	}
	alt := g.Alternatives(n.Symbol)[n.Alt]
	child := 0
	for _, part := range alt.Parts() {
		if !part.IsSymbol() {
			sb.WriteString(part.Literal)
			continue
		}
		render(sb, n.Children[child], g)
		child++
	}
}
