package report

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/gogpu/framegraph"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Chart geometry in pixels.
const (
	chartCell   = 48
	chartRow    = 20
	chartMargin = 8
)

var (
	chartBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	chartText       = color.RGBA{0x20, 0x20, 0x20, 0xff}
	chartGrid       = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	chartExternal   = color.RGBA{0x90, 0x90, 0x90, 0xff}
)

// slotColors cycles through distinguishable hues, one per pool slot.
var slotColors = []color.RGBA{
	{0x4e, 0x79, 0xa7, 0xff},
	{0xf2, 0x8e, 0x2b, 0xff},
	{0xe1, 0x57, 0x59, 0xff},
	{0x76, 0xb7, 0xb2, 0xff},
	{0x59, 0xa1, 0x4f, 0xff},
	{0xed, 0xc9, 0x48, 0xff},
	{0xb0, 0x7a, 0xa1, 0xff},
	{0xff, 0x9d, 0xa7, 0xff},
}

// SlotColor returns the bar color used for a pool slot.
func SlotColor(slot int) color.RGBA { return slotColors[slot%len(slotColors)] }

// Chart draws one row per resource and one column per executed pass. A
// bar spans the passes during which the resource is live, colored by the
// pool slot backing it; resources that alias share a color. External and
// Imported resources are gray.
func Chart(cg *framegraph.CompiledGraph) *image.RGBA {
	face := basicfont.Face7x13
	resources := cg.Resources()
	names := cg.Names()

	labelWidth := 0
	for _, id := range resources {
		labelWidth = max(labelWidth, font.MeasureString(face, cg.Label(id)).Ceil())
	}
	left := chartMargin + labelWidth + chartMargin
	top := chartMargin + chartRow
	width := left + max(len(names), 1)*chartCell + chartMargin
	height := top + len(resources)*chartRow + chartMargin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(chartBackground), image.Point{}, draw.Src)

	text := &font.Drawer{Dst: img, Src: image.NewUniform(chartText), Face: face}
	for i, name := range names {
		x := left + i*chartCell
		fill(img, image.Rect(x, top, x+1, height-chartMargin), chartGrid)
		text.Dot = fixed.P(x+2, top-6)
		text.DrawString(clip(face, name, chartCell-4))
	}

	for row, id := range resources {
		y := top + row*chartRow
		text.Dot = fixed.P(chartMargin, y+chartRow-6)
		text.DrawString(cg.Label(id))

		iv, ok := cg.Lifetime(id)
		if !ok {
			continue
		}
		c := chartExternal
		if slot, ok := cg.SlotOf(id); ok {
			c = SlotColor(slot)
		}
		fill(img, image.Rect(left+iv.Start*chartCell+2, y+3, left+iv.End*chartCell-2, y+chartRow-3), c)
	}
	return img
}

// WriteChart encodes Chart(cg) as PNG.
func WriteChart(w io.Writer, cg *framegraph.CompiledGraph) error {
	return png.Encode(w, Chart(cg))
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// clip shortens s until it fits in width pixels.
func clip(face font.Face, s string, width int) string {
	for len(s) > 1 && font.MeasureString(face, s).Ceil() > width {
		s = s[:len(s)-1]
	}
	return s
}
