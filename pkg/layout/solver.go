package layout

import "math"

// Solver computes geometry for a tree of layout nodes.
type Solver interface {
	// Calculate lays out root within the available size. Either bound may be
	// Undefined.
	Calculate(root *Node, availWidth, availHeight float64)
}

// FlexSolver lays out nodes with a single-line flexbox subset: row and
// column directions, fixed and content sizes, grow and shrink, margins,
// padding, justify, align and absolute offsets.
type FlexSolver struct{}

var _ Solver = FlexSolver{}

// Calculate implements Solver. A clean root laid out with the same
// available size is left untouched.
func (FlexSolver) Calculate(root *Node, availWidth, availHeight float64) {
	if !root.dirty && root.hasLayout && sameBound(root.lastAvailWidth, availWidth) && sameBound(root.lastAvailHeight, availHeight) {
		return
	}
	root.lastAvailWidth, root.lastAvailHeight = availWidth, availHeight

	s := root.style
	w, h := s.Width, s.Height
	if IsUndefined(w) {
		w = availWidth
	}
	if IsUndefined(h) {
		h = availHeight
	}
	if IsUndefined(w) || IsUndefined(h) {
		cw, ch := contentSize(root, w, h)
		if IsUndefined(w) {
			w = cw
		}
		if IsUndefined(h) {
			h = ch
		}
	}
	w = clamp(w, s.MinWidth, s.MaxWidth)
	h = clamp(h, s.MinHeight, s.MaxHeight)
	place(root, s.Margin.Left, s.Margin.Top, w, h)
}

func sameBound(a, b float64) bool {
	return a == b || (IsUndefined(a) && IsUndefined(b))
}

func clamp(v, lo, hi float64) float64 {
	if !IsUndefined(hi) && v > hi {
		v = hi
	}
	if !IsUndefined(lo) && v < lo {
		v = lo
	}
	return math.Max(v, 0)
}

func isRow(d FlexDirection) bool { return d == Row }

func mainSize(d FlexDirection, w, h float64) float64 {
	if isRow(d) {
		return w
	}
	return h
}

func crossSize(d FlexDirection, w, h float64) float64 {
	if isRow(d) {
		return h
	}
	return w
}

// contentSize returns the size n wants when a dimension is not fixed.
// Fixed dimensions of n's style win over the measured content.
func contentSize(n *Node, maxWidth, maxHeight float64) (float64, float64) {
	s := n.style
	if !IsUndefined(s.Width) {
		maxWidth = s.Width
	}
	if !IsUndefined(s.Height) {
		maxHeight = s.Height
	}
	if n.measure != nil {
		innerW, innerH := maxWidth, maxHeight
		if !IsUndefined(innerW) {
			innerW = math.Max(innerW-s.Padding.Horizontal(), 0)
		}
		if !IsUndefined(innerH) {
			innerH = math.Max(innerH-s.Padding.Vertical(), 0)
		}
		mw, mh := n.measure(n, innerW, innerH)
		w, h := mw+s.Padding.Horizontal(), mh+s.Padding.Vertical()
		if !IsUndefined(s.Width) {
			w = s.Width
		}
		if !IsUndefined(s.Height) {
			h = s.Height
		}
		return clamp(w, s.MinWidth, s.MaxWidth), clamp(h, s.MinHeight, s.MaxHeight)
	}

	var main, cross float64
	innerW, innerH := maxWidth, maxHeight
	if !IsUndefined(innerW) {
		innerW = math.Max(innerW-s.Padding.Horizontal(), 0)
	}
	if !IsUndefined(innerH) {
		innerH = math.Max(innerH-s.Padding.Vertical(), 0)
	}
	for _, c := range n.children {
		cs := c.style
		if cs.Hidden || cs.Position == Absolute {
			continue
		}
		cw, ch := contentSize(c, innerW, innerH)
		cw += cs.Margin.Horizontal()
		ch += cs.Margin.Vertical()
		main += mainSize(s.Direction, cw, ch)
		cross = math.Max(cross, crossSize(s.Direction, cw, ch))
	}
	var w, h float64
	if isRow(s.Direction) {
		w, h = main, cross
	} else {
		w, h = cross, main
	}
	w += s.Padding.Horizontal()
	h += s.Padding.Vertical()
	if !IsUndefined(s.Width) {
		w = s.Width
	}
	if !IsUndefined(s.Height) {
		h = s.Height
	}
	return clamp(w, s.MinWidth, s.MaxWidth), clamp(h, s.MinHeight, s.MaxHeight)
}

type flexItem struct {
	node        *Node
	main, cross float64
}

// place records n's frame and lays out its children inside it.
func place(n *Node, x, y, w, h float64) {
	n.SetLayout(x, y, w, h)
	if n.measure != nil || len(n.children) == 0 {
		return
	}

	s := n.style
	dir := s.Direction
	innerW := math.Max(w-s.Padding.Horizontal(), 0)
	innerH := math.Max(h-s.Padding.Vertical(), 0)
	innerMain := mainSize(dir, innerW, innerH)
	innerCross := crossSize(dir, innerW, innerH)

	var items []flexItem
	used := 0.0
	totalGrow, totalShrink := 0.0, 0.0
	for _, c := range n.children {
		cs := c.style
		if cs.Hidden {
			place(c, 0, 0, 0, 0)
			continue
		}
		if cs.Position == Absolute {
			continue
		}
		cw, ch := contentSize(c, innerW-cs.Margin.Horizontal(), innerH-cs.Margin.Vertical())
		item := flexItem{node: c, main: mainSize(dir, cw, ch), cross: crossSize(dir, cw, ch)}
		align := s.Align
		if cs.AlignSelf != nil {
			align = *cs.AlignSelf
		}
		fixedCross := crossSize(dir, cs.Width, cs.Height)
		if align == AlignStretch && IsUndefined(fixedCross) {
			item.cross = math.Max(innerCross-crossSize(dir, cs.Margin.Horizontal(), cs.Margin.Vertical()), 0)
		}
		items = append(items, item)
		used += item.main + mainSize(dir, cs.Margin.Horizontal(), cs.Margin.Vertical())
		totalGrow += cs.FlexGrow
		totalShrink += cs.FlexShrink * item.main
	}

	free := innerMain - used
	if free > 0 && totalGrow > 0 {
		for i := range items {
			items[i].main += free * items[i].node.style.FlexGrow / totalGrow
		}
		free = 0
	} else if free < 0 && totalShrink > 0 {
		for i := range items {
			cs := items[i].node.style
			items[i].main = math.Max(items[i].main+free*cs.FlexShrink*items[i].main/totalShrink, 0)
		}
		free = 0
	}
	free = math.Max(free, 0)

	lead, between := 0.0, 0.0
	switch s.Justify {
	case JustifyCenter:
		lead = free / 2
	case JustifyEnd:
		lead = free
	case JustifySpaceBetween:
		if len(items) > 1 {
			between = free / float64(len(items)-1)
		}
	case JustifySpaceAround:
		if len(items) > 0 {
			between = free / float64(len(items))
			lead = between / 2
		}
	}

	cursor := lead + mainSize(dir, s.Padding.Left, s.Padding.Top)
	for _, it := range items {
		cs := it.node.style
		mLead := mainSize(dir, cs.Margin.Left, cs.Margin.Top)
		mTrail := mainSize(dir, cs.Margin.Right, cs.Margin.Bottom)
		cLead := crossSize(dir, cs.Margin.Left, cs.Margin.Top)
		cTotal := crossSize(dir, cs.Margin.Horizontal(), cs.Margin.Vertical())

		align := s.Align
		if cs.AlignSelf != nil {
			align = *cs.AlignSelf
		}
		crossOff := crossSize(dir, s.Padding.Left, s.Padding.Top) + cLead
		switch align {
		case AlignCenter:
			crossOff += (innerCross - it.cross - cTotal) / 2
		case AlignEnd:
			crossOff += innerCross - it.cross - cTotal
		}

		mainPos := cursor + mLead
		// Relative offsets shift the box without affecting siblings.
		dx, dy := relativeOffset(cs)
		if isRow(dir) {
			place(it.node, mainPos+dx, crossOff+dy, it.main, it.cross)
		} else {
			place(it.node, crossOff+dx, mainPos+dy, it.cross, it.main)
		}
		cursor = mainPos + it.main + mTrail + between
	}

	for _, c := range n.children {
		cs := c.style
		if cs.Hidden || cs.Position != Absolute {
			continue
		}
		placeAbsolute(c, w, h)
	}
}

func relativeOffset(s Style) (float64, float64) {
	var dx, dy float64
	if !IsUndefined(s.Left) {
		dx = s.Left
	} else if !IsUndefined(s.Right) {
		dx = -s.Right
	}
	if !IsUndefined(s.Top) {
		dy = s.Top
	} else if !IsUndefined(s.Bottom) {
		dy = -s.Bottom
	}
	return dx, dy
}

// placeAbsolute positions c against the border box of its parent.
func placeAbsolute(c *Node, parentW, parentH float64) {
	s := c.style
	w, h := s.Width, s.Height
	if IsUndefined(w) && !IsUndefined(s.Left) && !IsUndefined(s.Right) {
		w = parentW - s.Left - s.Right - s.Margin.Horizontal()
	}
	if IsUndefined(h) && !IsUndefined(s.Top) && !IsUndefined(s.Bottom) {
		h = parentH - s.Top - s.Bottom - s.Margin.Vertical()
	}
	if IsUndefined(w) || IsUndefined(h) {
		cw, ch := contentSize(c, w, h)
		if IsUndefined(w) {
			w = cw
		}
		if IsUndefined(h) {
			h = ch
		}
	}
	w = clamp(w, s.MinWidth, s.MaxWidth)
	h = clamp(h, s.MinHeight, s.MaxHeight)

	x := s.Margin.Left
	switch {
	case !IsUndefined(s.Left):
		x += s.Left
	case !IsUndefined(s.Right):
		x = parentW - s.Right - s.Margin.Right - w
	}
	y := s.Margin.Top
	switch {
	case !IsUndefined(s.Top):
		y += s.Top
	case !IsUndefined(s.Bottom):
		y = parentH - s.Bottom - s.Margin.Bottom - h
	}
	place(c, x, y, w, h)
}
