package resolver

import (
	"xdao.co/permtrace/address"
	"xdao.co/permtrace/overrides"
)

// Node is one contract's entry in the ownership graph: the union of
// owner definitions and the set of distinct delay references across
// all of its permissioned functions.
type Node struct {
	Owners []overrides.OwnerDefinition
	Delays []overrides.DelayRef
}

// Graph is a read-only projection of an overrides document used by
// the traversal engine. It holds no references into the document
// past construction and is shareable across branches.
//
// Contracts with zero permissioned functions are present with empty
// entries; this distinguishes "no data" from "not present".
type Graph struct {
	nodes map[string]*Node
	order []address.Address
}

// NewGraph builds the graph in a single pass over the document.
// Non-permissioned functions are ignored.
func NewGraph(doc *overrides.Document) *Graph {
	g := &Graph{nodes: make(map[string]*Node, len(doc.Contracts))}
	for _, c := range doc.Contracts {
		key := c.Address.Key()
		node, ok := g.nodes[key]
		if !ok {
			node = &Node{}
			g.nodes[key] = node
			g.order = append(g.order, c.Address)
		}
		seenDelay := make(map[string]bool, len(node.Delays))
		for _, d := range node.Delays {
			seenDelay[d.Key()] = true
		}
		for _, f := range c.Functions {
			if !f.Permissioned() {
				continue
			}
			for _, def := range f.OwnerDefinitions {
				node.Owners = append(node.Owners, def)
			}
			if f.Delay != nil && !seenDelay[f.Delay.Key()] {
				seenDelay[f.Delay.Key()] = true
				node.Delays = append(node.Delays, *f.Delay)
			}
		}
	}
	return g
}

// Node returns the graph entry for a, if present.
func (g *Graph) Node(a address.Address) (*Node, bool) {
	n, ok := g.nodes[a.Key()]
	return n, ok
}

// Contracts returns the graph's contracts in document order.
func (g *Graph) Contracts() []address.Address {
	return append([]address.Address(nil), g.order...)
}
