package native

import (
	"sort"
	"sync"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/props"
)

// ViewManager creates and updates the views of one class.
type ViewManager interface {
	// Name returns the view class handled by the manager.
	Name() string
	// CreateView returns a new, unattached view.
	CreateView(ctx ThemedContext, tag int) View
	// UpdateProperties applies changed properties.
	UpdateProperties(v View, m props.Map) error
	// UpdateExtraData passes data computed by the shadow tree, such as text.
	UpdateExtraData(v View, data any)
	// ReceiveCommand runs an imperative command.
	ReceiveCommand(v View, command string, args []any) error
	// OnDropViewInstance releases resources held for v.
	OnDropViewInstance(v View)
}

// GroupManager manages views that host children.
type GroupManager interface {
	ViewManager
	// NeedsCustomLayoutForChildren reports whether the view positions its
	// children itself, in which case layout updates for them are skipped.
	NeedsCustomLayoutForChildren() bool
}

// Registry resolves view classes to managers.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]ViewManager
}

// NewRegistry returns a registry holding managers.
func NewRegistry(managers ...ViewManager) *Registry {
	r := &Registry{managers: make(map[string]ViewManager)}
	for _, m := range managers {
		r.Register(m)
	}
	return r
}

// Register adds or replaces a manager.
func (r *Registry) Register(m ViewManager) {
	r.mu.Lock()
	r.managers[m.Name()] = m
	r.mu.Unlock()
}

// Lookup returns the manager for class.
func (r *Registry) Lookup(class string) (ViewManager, error) {
	r.mu.RLock()
	m, ok := r.managers[class]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.IllegalOperation("native.Registry.Lookup", errors.NoTag, "no view manager named %q", class)
	}
	return m, nil
}

// Names returns the registered classes in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
