package shadow

import (
	"fmt"
	"sync"

	"github.com/go-drift/viewtree/pkg/layout"
	"github.com/go-drift/viewtree/pkg/props"
)

func styleFloat(fn func(*layout.Style, float64)) props.Setter[*Node] {
	return props.Float(func(n *Node, v float64) {
		if n.layout != nil {
			n.layout.UpdateStyle(func(s *layout.Style) { fn(s, v) })
		}
	})
}

func edgeFloat(fn func(*layout.Style, float64)) props.Setter[*Node] {
	return props.FloatDefault(0, func(n *Node, v float64) {
		if n.layout != nil {
			n.layout.UpdateStyle(func(s *layout.Style) { fn(s, v) })
		}
	})
}

func styleEnum[E any](def string, values map[string]E, fn func(*layout.Style, E)) props.Setter[*Node] {
	return func(n *Node, value any) error {
		name := def
		if value != nil {
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("expected string, got %T", value)
			}
			name = s
		}
		v, ok := values[name]
		if !ok {
			return fmt.Errorf("unknown value %q", name)
		}
		if n.layout != nil {
			n.layout.UpdateStyle(func(s *layout.Style) { fn(s, v) })
		}
		return nil
	}
}

var directions = map[string]layout.FlexDirection{
	"column":         layout.Column,
	"column-reverse": layout.Column,
	"row":            layout.Row,
	"row-reverse":    layout.Row,
}

var justifications = map[string]layout.Justify{
	"flex-start":    layout.JustifyStart,
	"center":        layout.JustifyCenter,
	"flex-end":      layout.JustifyEnd,
	"space-between": layout.JustifySpaceBetween,
	"space-around":  layout.JustifySpaceAround,
}

var alignments = map[string]layout.Align{
	"stretch":    layout.AlignStretch,
	"flex-start": layout.AlignStart,
	"center":     layout.AlignCenter,
	"flex-end":   layout.AlignEnd,
}

var selfAlignments = map[string]*layout.Align{
	"auto":       nil,
	"stretch":    ptr(layout.AlignStretch),
	"flex-start": ptr(layout.AlignStart),
	"center":     ptr(layout.AlignCenter),
	"flex-end":   ptr(layout.AlignEnd),
}

var positions = map[string]layout.PositionType{
	"relative": layout.Relative,
	"absolute": layout.Absolute,
}

var displays = map[string]bool{
	"flex": false,
	"none": true,
}

func ptr[T any](v T) *T { return &v }

// LayoutTable returns the property table shared by every shadow node. It
// maps style properties onto the layout node and records onLayout.
var LayoutTable = sync.OnceValue(func() *props.Table[*Node] {
	return props.NewTable(map[string]props.Setter[*Node]{
		"width":     styleFloat(func(s *layout.Style, v float64) { s.Width = v }),
		"height":    styleFloat(func(s *layout.Style, v float64) { s.Height = v }),
		"minWidth":  styleFloat(func(s *layout.Style, v float64) { s.MinWidth = v }),
		"maxWidth":  styleFloat(func(s *layout.Style, v float64) { s.MaxWidth = v }),
		"minHeight": styleFloat(func(s *layout.Style, v float64) { s.MinHeight = v }),
		"maxHeight": styleFloat(func(s *layout.Style, v float64) { s.MaxHeight = v }),
		"left":      styleFloat(func(s *layout.Style, v float64) { s.Left = v }),
		"top":       styleFloat(func(s *layout.Style, v float64) { s.Top = v }),
		"right":     styleFloat(func(s *layout.Style, v float64) { s.Right = v }),
		"bottom":    styleFloat(func(s *layout.Style, v float64) { s.Bottom = v }),

		"flex":       edgeFloat(func(s *layout.Style, v float64) { s.FlexGrow = max(v, 0) }),
		"flexGrow":   edgeFloat(func(s *layout.Style, v float64) { s.FlexGrow = v }),
		"flexShrink": edgeFloat(func(s *layout.Style, v float64) { s.FlexShrink = v }),

		"flexDirection":  styleEnum("column", directions, func(s *layout.Style, v layout.FlexDirection) { s.Direction = v }),
		"justifyContent": styleEnum("flex-start", justifications, func(s *layout.Style, v layout.Justify) { s.Justify = v }),
		"alignItems":     styleEnum("stretch", alignments, func(s *layout.Style, v layout.Align) { s.Align = v }),
		"alignSelf":      styleEnum("auto", selfAlignments, func(s *layout.Style, v *layout.Align) { s.AlignSelf = v }),
		"position":       styleEnum("relative", positions, func(s *layout.Style, v layout.PositionType) { s.Position = v }),
		"display":        styleEnum("flex", displays, func(s *layout.Style, v bool) { s.Hidden = v }),

		"margin": edgeFloat(func(s *layout.Style, v float64) {
			s.Margin = layout.Edges{Left: v, Top: v, Right: v, Bottom: v}
		}),
		"marginHorizontal": edgeFloat(func(s *layout.Style, v float64) { s.Margin.Left, s.Margin.Right = v, v }),
		"marginVertical":   edgeFloat(func(s *layout.Style, v float64) { s.Margin.Top, s.Margin.Bottom = v, v }),
		"marginLeft":       edgeFloat(func(s *layout.Style, v float64) { s.Margin.Left = v }),
		"marginTop":        edgeFloat(func(s *layout.Style, v float64) { s.Margin.Top = v }),
		"marginRight":      edgeFloat(func(s *layout.Style, v float64) { s.Margin.Right = v }),
		"marginBottom":     edgeFloat(func(s *layout.Style, v float64) { s.Margin.Bottom = v }),

		"padding": edgeFloat(func(s *layout.Style, v float64) {
			s.Padding = layout.Edges{Left: v, Top: v, Right: v, Bottom: v}
		}),
		"paddingHorizontal": edgeFloat(func(s *layout.Style, v float64) { s.Padding.Left, s.Padding.Right = v, v }),
		"paddingVertical":   edgeFloat(func(s *layout.Style, v float64) { s.Padding.Top, s.Padding.Bottom = v, v }),
		"paddingLeft":       edgeFloat(func(s *layout.Style, v float64) { s.Padding.Left = v }),
		"paddingTop":        edgeFloat(func(s *layout.Style, v float64) { s.Padding.Top = v }),
		"paddingRight":      edgeFloat(func(s *layout.Style, v float64) { s.Padding.Right = v }),
		"paddingBottom":     edgeFloat(func(s *layout.Style, v float64) { s.Padding.Bottom = v }),

		props.OnLayout: props.Bool(false, func(n *Node, v bool) { n.shouldNotifyOnLayout = v }),
	})
})
