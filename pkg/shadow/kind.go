package shadow

// NativeKind classifies how a node takes part in the native tree.
type NativeKind int

const (
	// KindParent nodes own a native view that hosts their native children.
	KindParent NativeKind = iota
	// KindLeaf nodes own a native view that cannot host children. Their
	// children are hoisted to the nearest KindParent ancestor.
	KindLeaf
	// KindNone nodes have no native view, either because they are virtual
	// or because they were flattened as layout-only.
	KindNone
)

func (k NativeKind) String() string {
	switch k {
	case KindParent:
		return "PARENT"
	case KindLeaf:
		return "LEAF"
	case KindNone:
		return "NONE"
	default:
		return "unknown"
	}
}
