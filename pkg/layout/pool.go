package layout

// Pool is a free list of layout nodes owned by one engine instance.
// It is not safe for concurrent use.
type Pool struct {
	free []*Node
	max  int

	acquired, reused int
}

// NewPool returns a pool that retains at most max released nodes.
func NewPool(max int) *Pool {
	return &Pool{max: max}
}

// Acquire returns a reset node, reusing a released one when available.
func (p *Pool) Acquire() *Node {
	p.acquired++
	if n := len(p.free); n > 0 {
		node := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.reused++
		return node
	}
	return NewNode()
}

// Release resets node and keeps it for reuse if the pool has room.
// The node must already be detached from the tree.
func (p *Pool) Release(node *Node) {
	if node == nil {
		return
	}
	node.Reset()
	if len(p.free) < p.max {
		p.free = append(p.free, node)
	}
}

// Stats reports how many nodes were handed out and how many of those were reused.
func (p *Pool) Stats() (acquired, reused, idle int) {
	return p.acquired, p.reused, len(p.free)
}
