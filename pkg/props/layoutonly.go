package props

// Property names with special meaning for flattening.
const (
	Collapsable     = "collapsable"
	Opacity         = "opacity"
	PointerEvents   = "pointerEvents"
	Overflow        = "overflow"
	BackgroundColor = "backgroundColor"
	BorderRadius    = "borderRadius"
	BorderWidth     = "borderWidth"
	OnLayout        = "onLayout"
)

var layoutOnlyProps = map[string]bool{
	"alignSelf":         true,
	"alignItems":        true,
	"alignContent":      true,
	"collapsable":       true,
	"flex":              true,
	"flexBasis":         true,
	"flexDirection":     true,
	"flexGrow":          true,
	"flexShrink":        true,
	"flexWrap":          true,
	"gap":               true,
	"rowGap":            true,
	"columnGap":         true,
	"justifyContent":    true,
	"display":           true,
	"position":          true,
	"left":              true,
	"top":               true,
	"right":             true,
	"bottom":            true,
	"start":             true,
	"end":               true,
	"width":             true,
	"height":            true,
	"minWidth":          true,
	"maxWidth":          true,
	"minHeight":         true,
	"maxHeight":         true,
	"margin":            true,
	"marginVertical":    true,
	"marginHorizontal":  true,
	"marginLeft":        true,
	"marginRight":       true,
	"marginTop":         true,
	"marginBottom":      true,
	"marginStart":       true,
	"marginEnd":         true,
	"padding":           true,
	"paddingVertical":   true,
	"paddingHorizontal": true,
	"paddingLeft":       true,
	"paddingRight":      true,
	"paddingTop":        true,
	"paddingBottom":     true,
	"paddingStart":      true,
	"paddingEnd":        true,
}

var borderColorProps = map[string]bool{
	"borderColor":       true,
	"borderLeftColor":   true,
	"borderRightColor":  true,
	"borderTopColor":    true,
	"borderBottomColor": true,
}

var borderWidthProps = map[string]bool{
	"borderWidth":       true,
	"borderLeftWidth":   true,
	"borderRightWidth":  true,
	"borderTopWidth":    true,
	"borderBottomWidth": true,
}

// IsLayoutOnly reports whether the value m holds for key affects nothing
// but layout. Some visual properties qualify at their neutral values, such
// as an opacity of 1 or a transparent border.
func IsLayoutOnly(m Map, key string) bool {
	if layoutOnlyProps[key] {
		return true
	}
	switch {
	case key == PointerEvents:
		v := m.String(key, "")
		return v == "auto" || v == "box-none"
	case key == Opacity:
		return m.IsNull(key) || m.Float(key, 0) == 1
	case key == Overflow:
		return m.String(key, "") == "visible"
	case key == BorderRadius:
		// A radius is invisible without a background or a border to clip.
		if c, ok := m.Color(BackgroundColor); ok && c != Transparent {
			return false
		}
		if !m.IsNull(BorderWidth) && m.Float(BorderWidth, 0) != 0 {
			return false
		}
		return true
	case borderColorProps[key]:
		if _, isNumber := ToFloat(m[key]); !isNumber {
			if _, isString := m[key].(string); !isString {
				return false
			}
		}
		c, ok := m.Color(key)
		return ok && c == Transparent
	case borderWidthProps[key]:
		return m.IsNull(key) || m.Float(key, 0) == 0
	}
	return false
}

// IsLayoutOnlyAndCollapsable reports whether a generic container carrying
// the properties in m can be left out of the native tree. A nil map
// qualifies. "collapsable: false" always disqualifies.
func IsLayoutOnlyAndCollapsable(m Map) bool {
	if m == nil {
		return true
	}
	if m.Has(Collapsable) && !m.Bool(Collapsable, true) {
		return false
	}
	for key := range m {
		if !IsLayoutOnly(m, key) {
			return false
		}
	}
	return true
}
