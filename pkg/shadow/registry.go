package shadow

import (
	"slices"

	"github.com/go-drift/viewtree/pkg/errors"
)

// Registry maps tags to live shadow nodes and tracks which of them are
// roots. It is the only authority on whether a node exists.
//
// Registry is not safe for concurrent use; the UI manager serializes
// access with its own lock.
type Registry struct {
	nodes map[int]*Node
	roots []int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[int]*Node)}
}

// AddRootNode registers n as a root.
func (r *Registry) AddRootNode(n *Node) error {
	if _, ok := r.nodes[n.tag]; ok {
		return errors.IllegalOperation("shadow.Registry.AddRootNode", n.tag, "tag %d is already registered", n.tag)
	}
	r.nodes[n.tag] = n
	r.roots = append(r.roots, n.tag)
	return nil
}

// RemoveRootNode unregisters the root with tag.
func (r *Registry) RemoveRootNode(tag int) error {
	i := slices.Index(r.roots, tag)
	if i < 0 {
		return errors.IllegalOperation("shadow.Registry.RemoveRootNode", tag, "view with tag %d is not registered as a root view", tag)
	}
	r.roots = slices.Delete(r.roots, i, i+1)
	delete(r.nodes, tag)
	return nil
}

// AddNode registers a non-root node.
func (r *Registry) AddNode(n *Node) error {
	if _, ok := r.nodes[n.tag]; ok {
		return errors.IllegalOperation("shadow.Registry.AddNode", n.tag, "tag %d is already registered", n.tag)
	}
	r.nodes[n.tag] = n
	return nil
}

// RemoveNode unregisters a non-root node.
func (r *Registry) RemoveNode(tag int) error {
	if r.IsRoot(tag) {
		return errors.IllegalOperation("shadow.Registry.RemoveNode", tag, "trying to remove root node %d without using RemoveRootNode", tag)
	}
	if _, ok := r.nodes[tag]; !ok {
		return errors.NotFound("shadow.Registry.RemoveNode", tag)
	}
	delete(r.nodes, tag)
	return nil
}

// Node returns the node for tag or a NotFound error.
func (r *Registry) Node(tag int) (*Node, error) {
	n, ok := r.nodes[tag]
	if !ok {
		return nil, errors.NotFound("shadow.Registry.Node", tag)
	}
	return n, nil
}

// Lookup returns the node for tag, if any.
func (r *Registry) Lookup(tag int) (*Node, bool) {
	n, ok := r.nodes[tag]
	return n, ok
}

// IsRoot reports whether tag is a registered root.
func (r *Registry) IsRoot(tag int) bool {
	return slices.Contains(r.roots, tag)
}

// RootTags returns the root tags in registration order.
func (r *Registry) RootTags() []int {
	return slices.Clone(r.roots)
}

// Len returns the number of live nodes, roots included.
func (r *Registry) Len() int {
	return len(r.nodes)
}
