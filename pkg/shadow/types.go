package shadow

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/go-drift/viewtree/pkg/layout"
	"github.com/go-drift/viewtree/pkg/props"
)

// View class names known to the default type registry.
const (
	ClassRoot       = "Root"
	ClassView       = "View"
	ClassScrollView = "ScrollView"
	ClassImage      = "Image"
	ClassText       = "Text"
	ClassRawText    = "RawText"
	ClassTextInput  = "TextInput"
)

// DefaultTypes returns a registry with the built-in view classes.
func DefaultTypes() *TypeRegistry {
	return NewTypeRegistry(
		&Type{Name: ClassRoot},
		&Type{Name: ClassView},
		&Type{Name: ClassScrollView},
		&Type{Name: ClassImage, HoistsNativeChildren: true},
		TextType(),
		&Type{Name: ClassRawText, Virtual: true},
		&Type{Name: ClassTextInput, Measure: measureTextInput, Props: textInputProps()},
	)
}

// TextType returns the Text anchor: a measured leaf whose content comes
// from its virtual RawText children.
func TextType() *Type {
	return &Type{
		Name:          ClassText,
		VirtualAnchor: true,
		Measure:       measureText,
		BeforeLayout: func(n *Node) {
			text := collectText(n)
			if text == n.anchorText {
				return
			}
			n.anchorText = text
			n.anchorTextPending = true
			n.Dirty()
		},
		ExtraUpdates: func(n *Node) (any, bool) {
			if !n.anchorTextPending {
				return nil, false
			}
			n.anchorTextPending = false
			return n.anchorText, true
		},
	}
}

func collectText(n *Node) string {
	var sb strings.Builder
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			sb.WriteString(c.props.String("text", ""))
			walk(c)
			c.MarkUpdateSeen()
		}
	}
	walk(n)
	return sb.String()
}

var textFace = basicfont.Face7x13

func lineHeight() float64 {
	return float64(textFace.Metrics().Height.Ceil())
}

func textWidth(s string) float64 {
	return float64(font.MeasureString(textFace, s).Ceil())
}

// wrapText splits s into lines no wider than maxWidth, breaking at spaces.
// A word wider than maxWidth gets a line of its own.
func wrapText(s string, maxWidth float64) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if !layout.IsUndefined(maxWidth) && textWidth(candidate) > maxWidth {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

func measureText(n *Node, maxWidth, _ float64) (float64, float64) {
	if n.anchorText == "" {
		return 0, 0
	}
	lines := wrapText(n.anchorText, maxWidth)
	w := 0.0
	for _, l := range lines {
		w = max(w, textWidth(l))
	}
	return w, float64(len(lines)) * lineHeight()
}

func measureTextInput(n *Node, maxWidth, _ float64) (float64, float64) {
	text := n.props.String("text", n.props.String("placeholder", ""))
	w := textWidth(text)
	if !layout.IsUndefined(maxWidth) {
		w = min(w, maxWidth)
	}
	return w, lineHeight()
}

func relayout(n *Node, _ any) error {
	n.Dirty()
	return nil
}

func textInputProps() *props.Table[*Node] {
	return LayoutTable().Extend(map[string]props.Setter[*Node]{
		"text":        relayout,
		"placeholder": relayout,
	})
}
