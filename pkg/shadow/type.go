package shadow

import (
	"sort"
	"sync"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/props"
)

// Type is the capability set shared by every node of one view class.
type Type struct {
	// Name is the view class, e.g. "View".
	Name string
	// Virtual nodes never reach the native tree or the layout tree.
	Virtual bool
	// VirtualAnchor nodes are laid out as a leaf and own a subtree of
	// virtual children (text spans, for instance).
	VirtualAnchor bool
	// HoistsNativeChildren makes the native view a leaf: children are
	// placed next to it in the nearest native parent.
	HoistsNativeChildren bool
	// Measure sizes a self-measuring node. Measured nodes do not add their
	// children to the layout tree.
	Measure func(n *Node, maxWidth, maxHeight float64) (float64, float64)
	// BeforeLayout runs on every updated node before the layout pass.
	BeforeLayout func(n *Node)
	// ExtraUpdates returns data that must reach the native view after
	// layout, such as the text an anchor collected from its spans.
	ExtraUpdates func(n *Node) (any, bool)
	// Props replaces the property table for this class. Build it with
	// LayoutTable().Extend so layout properties keep working.
	Props *props.Table[*Node]
}

// nativeKind returns the native kind of a node of this type.
func (t *Type) nativeKind(layoutOnly bool) NativeKind {
	switch {
	case t.Virtual || layoutOnly:
		return KindNone
	case t.HoistsNativeChildren:
		return KindLeaf
	default:
		return KindParent
	}
}

// TypeRegistry resolves view classes to types.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewTypeRegistry returns a registry holding types.
func NewTypeRegistry(types ...*Type) *TypeRegistry {
	r := &TypeRegistry{types: make(map[string]*Type)}
	for _, t := range types {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a type.
func (r *TypeRegistry) Register(t *Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
}

// Lookup returns the type registered for class.
func (r *TypeRegistry) Lookup(class string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[class]
	if !ok {
		return nil, errors.IllegalOperation("shadow.TypeRegistry.Lookup", errors.NoTag, "no view class named %q", class)
	}
	return t, nil
}

// Names returns the registered classes in sorted order.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
