package native

import (
	"fmt"
	"sync"

	"github.com/go-drift/viewtree/pkg/errors"
	"github.com/go-drift/viewtree/pkg/props"
)

// View classes served by DefaultRegistry.
const (
	ClassRoot       = "Root"
	ClassView       = "View"
	ClassScrollView = "ScrollView"
	ClassImage      = "Image"
	ClassText       = "Text"
	ClassTextInput  = "TextInput"
)

// CommandFunc runs one named command on a widget.
type CommandFunc func(w *Widget, args []any) error

// WidgetManager manages leaf widgets through a static property table.
type WidgetManager struct {
	name     string
	table    *props.Table[*Widget]
	commands map[string]CommandFunc
	// OnDrop is called for every dropped widget.
	OnDrop func(*Widget)
}

// NewWidgetManager returns a manager for class using table and commands.
func NewWidgetManager(class string, table *props.Table[*Widget], commands map[string]CommandFunc) *WidgetManager {
	return &WidgetManager{name: class, table: table, commands: commands}
}

// Name implements ViewManager.
func (m *WidgetManager) Name() string { return m.name }

// CreateView implements ViewManager.
func (m *WidgetManager) CreateView(ctx ThemedContext, tag int) View {
	return NewWidget(m.name, tag, ctx)
}

// UpdateProperties implements ViewManager.
func (m *WidgetManager) UpdateProperties(v View, p props.Map) error {
	w, ok := v.(*Widget)
	if !ok {
		return fmt.Errorf("%s cannot update %T", m.name, v)
	}
	w.Props.Merge(p)
	return m.table.Apply(w, p)
}

// UpdateExtraData implements ViewManager. Strings replace the widget text.
func (m *WidgetManager) UpdateExtraData(v View, data any) {
	w, ok := v.(*Widget)
	if !ok {
		return
	}
	w.ExtraData = data
	if s, ok := data.(string); ok {
		w.Text = s
	}
}

// ReceiveCommand implements ViewManager. Every command is recorded on the
// widget; unknown commands do nothing else.
func (m *WidgetManager) ReceiveCommand(v View, command string, args []any) error {
	w, ok := v.(*Widget)
	if !ok {
		return fmt.Errorf("%s cannot run commands on %T", m.name, v)
	}
	w.Commands = append(w.Commands, Command{Name: command, Args: args})
	fn, ok := m.commands[command]
	if !ok {
		errors.Logger().Debug("unhandled view command", "class", m.name, "tag", w.tag, "command", command)
		return nil
	}
	return fn(w, args)
}

// OnDropViewInstance implements ViewManager.
func (m *WidgetManager) OnDropViewInstance(v View) {
	w, ok := v.(*Widget)
	if !ok {
		return
	}
	w.Dropped = true
	if m.OnDrop != nil {
		m.OnDrop(w)
	}
}

// WidgetGroupManager manages widgets that host children.
type WidgetGroupManager struct {
	*WidgetManager
	customLayout bool
}

// NewWidgetGroupManager returns a group manager for class.
func NewWidgetGroupManager(class string, table *props.Table[*Widget], commands map[string]CommandFunc, customLayout bool) *WidgetGroupManager {
	return &WidgetGroupManager{WidgetManager: NewWidgetManager(class, table, commands), customLayout: customLayout}
}

// NeedsCustomLayoutForChildren implements GroupManager.
func (m *WidgetGroupManager) NeedsCustomLayoutForChildren() bool { return m.customLayout }

var (
	_ ViewManager  = (*WidgetManager)(nil)
	_ GroupManager = (*WidgetGroupManager)(nil)
)

// BaseTable returns the property table shared by every built-in widget.
var BaseTable = sync.OnceValue(func() *props.Table[*Widget] {
	return props.NewTable(map[string]props.Setter[*Widget]{
		props.BackgroundColor: props.ColorValue(func(w *Widget, c props.Color) { w.Background = c }),
		props.Opacity:         props.FloatDefault(1, func(w *Widget, v float64) { w.Opacity = v }),
		props.BorderWidth:     props.FloatDefault(0, func(w *Widget, v float64) { w.BorderWidth = v }),
		props.BorderRadius:    props.FloatDefault(0, func(w *Widget, v float64) { w.BorderRadius = v }),
		"borderColor":         props.ColorValue(func(w *Widget, c props.Color) { w.BorderColor = c }),
		props.Overflow:        props.String("visible", func(w *Widget, v string) { w.Overflow = v }),
		"display":             props.String("flex", func(w *Widget, v string) { w.Hidden = v == "none" }),
		"testID":              props.String("", func(w *Widget, v string) { w.TestID = v }),
		"accessibilityLabel":  props.String("", func(w *Widget, v string) { w.Label = v }),
	})
})

func floatArg(args []any, i int) float64 {
	if i >= len(args) {
		return 0
	}
	f, _ := props.ToFloat(args[i])
	return f
}

// DefaultRegistry returns managers for the built-in view classes.
func DefaultRegistry() *Registry {
	base := BaseTable()
	return NewRegistry(
		NewWidgetGroupManager(ClassView, base, nil, false),
		NewWidgetGroupManager(ClassScrollView, base, map[string]CommandFunc{
			"scrollTo": func(w *Widget, args []any) error {
				w.ScrollY = floatArg(args, 1)
				return nil
			},
			"scrollToEnd": func(w *Widget, _ []any) error {
				bottom := 0
				for _, c := range w.children {
					f := c.Frame()
					bottom = max(bottom, f.Y+f.Height)
				}
				w.ScrollY = float64(max(bottom-w.frame.Height, 0))
				return nil
			},
		}, false),
		NewWidgetManager(ClassImage, base.Extend(map[string]props.Setter[*Widget]{
			"source": props.String("", func(w *Widget, v string) { w.Source = v }),
		}), nil),
		NewWidgetManager(ClassText, base, nil),
		NewWidgetManager(ClassTextInput, base.Extend(map[string]props.Setter[*Widget]{
			"text":        props.String("", func(w *Widget, v string) { w.Text = v }),
			"placeholder": props.String("", func(w *Widget, v string) { w.Placeholder = v }),
		}), map[string]CommandFunc{
			"focus": func(w *Widget, _ []any) error { w.Focused = true; return nil },
			"blur":  func(w *Widget, _ []any) error { w.Focused = false; return nil },
			"setText": func(w *Widget, args []any) error {
				if len(args) == 0 {
					return fmt.Errorf("setText needs one argument")
				}
				s, ok := args[0].(string)
				if !ok {
					return fmt.Errorf("setText expects a string, got %T", args[0])
				}
				w.Text = s
				return nil
			},
		}),
	)
}

// NewRootManager returns the manager used for root views.
func NewRootManager() GroupManager {
	return NewWidgetGroupManager(ClassRoot, BaseTable(), nil, false)
}
