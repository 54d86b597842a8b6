package engine

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/viewtree/pkg/native"
)

func TestWireframe(t *testing.T) {
	s := &native.Snapshot{
		Tag:   1,
		Frame: native.Rect{Width: 100, Height: 60},
		Children: []*native.Snapshot{{
			Tag:        2,
			Frame:      native.Rect{X: 10, Y: 10, Width: 50, Height: 40},
			Background: "#ffff0000",
			Children: []*native.Snapshot{{
				Tag:   3,
				Frame: native.Rect{X: 5, Y: 20, Width: 30, Height: 15},
				Text:  "hello",
			}},
		}},
	}

	img := Wireframe(s)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())

	assert.Equal(t, wireframeBackground, img.RGBAAt(90, 55), "outside every child")
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, img.RGBAAt(55, 15), "inside the red view")
	assert.Equal(t, wireframeOutline, img.RGBAAt(10, 30), "left edge of view 2")
	assert.Equal(t, wireframeOutline, img.RGBAAt(15, 44), "bottom-left corner of view 3, offset by its parent")
}

func TestWireframe_EmptyRoot(t *testing.T) {
	img := Wireframe(&native.Snapshot{Tag: 1})
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
}

func TestEncodeWireframe(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeWireframe(&buf, &native.Snapshot{Tag: 1, Frame: native.Rect{Width: 8, Height: 4}}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestSnapshotColor(t *testing.T) {
	c, ok := snapshotColor("#80102030")
	require.True(t, ok)
	assert.Equal(t, uint8(0x80), c.Alpha())

	_, ok = snapshotColor("red")
	assert.False(t, ok)
}

func TestClipLabel(t *testing.T) {
	assert.Equal(t, "hello", clipLabel("hello", 100))
	assert.Equal(t, "he", clipLabel("hello", 14), "basicfont glyphs are 7px wide")
	assert.Empty(t, clipLabel("hello", 3))
}
