package engine

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/go-drift/viewtree/pkg/native"
	"github.com/go-drift/viewtree/pkg/props"
)

var (
	wireframeBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	wireframeOutline    = color.RGBA{R: 0x30, G: 0x60, B: 0xd0, A: 0xff}
	wireframeLabel      = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

// Wireframe draws the mounted tree in s: every view is outlined, filled
// with its background color and labeled with its tag, or with its text
// when it has some. The image covers the frame of s.
func Wireframe(s *native.Snapshot) *image.RGBA {
	w, h := max(s.Frame.Width, 1), max(s.Frame.Height, 1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(wireframeBackground), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(wireframeLabel),
		Face: basicfont.Face7x13,
	}
	drawWireframe(img, d, s, -s.Frame.X, -s.Frame.Y)
	return img
}

// drawWireframe paints s at its frame offset by the absolute origin of its
// parent, then its children on top.
func drawWireframe(img *image.RGBA, d *font.Drawer, s *native.Snapshot, originX, originY int) {
	x, y := originX+s.Frame.X, originY+s.Frame.Y
	r := image.Rect(x, y, x+s.Frame.Width, y+s.Frame.Height)

	if s.Background != "" {
		if c, ok := snapshotColor(s.Background); ok && c.Alpha() > 0 {
			cr, cg, cb, ca := c.RGBA()
			fill := color.NRGBA{R: cr, G: cg, B: cb, A: ca}
			draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(fill), image.Point{}, draw.Over)
		}
	}
	strokeRect(img, r, wireframeOutline)

	label := s.Text
	if label == "" {
		label = strconv.Itoa(s.Tag)
	}
	if r.Dx() > 2 && r.Dy() >= basicfont.Face7x13.Height {
		d.Dot = fixed.P(r.Min.X+2, r.Min.Y+basicfont.Face7x13.Ascent)
		d.DrawString(clipLabel(label, r.Dx()-2))
	}

	for _, c := range s.Children {
		drawWireframe(img, d, c, x, y)
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// snapshotColor decodes the packed #aarrggbb form of native.Snapshot.
func snapshotColor(s string) (props.Color, bool) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	return props.Color(n), err == nil
}

// clipLabel shortens s until it fits in width pixels.
func clipLabel(s string, width int) string {
	limit := fixed.I(width)
	for len(s) > 0 && font.MeasureString(basicfont.Face7x13, s) > limit {
		s = s[:len(s)-1]
	}
	return s
}

// EncodeWireframe writes the wireframe of s to w as a PNG.
func EncodeWireframe(w io.Writer, s *native.Snapshot) error {
	return png.Encode(w, Wireframe(s))
}
