// Package canvas rasterises scenes for the front ends: a braille dot grid
// for terminals and SVG for the browser.
package canvas

import (
	"math"
	"strings"

	"github.com/unklstewy/santa-scope/pkg/scene"
)

// Layer tags what was drawn into a cell so front ends can colour it.
// Higher layers win when several share a cell.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerLimb
	LayerLand
	LayerFuture
	LayerVisited
	LayerPulse
	LayerMarker
)

// Dot geometry of a braille cell.
const (
	DotsX = 2
	DotsY = 4
)

// brailleBits maps a dot position within a cell to its bit, indexed [x][y].
var brailleBits = [DotsX][DotsY]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// Cell is one rendered terminal cell.
type Cell struct {
	Rune   rune
	Layer  Layer
	Inside bool // cell centre lies on the globe disc
}

// Braille is a dot raster with DotsX x DotsY dots per terminal cell.
// Terminal cells are about twice as tall as wide, so dots are roughly square
// and no aspect correction is applied.
type Braille struct {
	cols, rows int
	mask       []uint8
	layer      []Layer
	inside     []bool
}

// NewBraille creates a raster of cols x rows terminal cells.
func NewBraille(cols, rows int) *Braille {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	n := cols * rows
	return &Braille{
		cols:   cols,
		rows:   rows,
		mask:   make([]uint8, n),
		layer:  make([]Layer, n),
		inside: make([]bool, n),
	}
}

// Size returns the raster size in terminal cells.
func (b *Braille) Size() (int, int) {
	return b.cols, b.rows
}

// Width returns the raster width in dots.
func (b *Braille) Width() int { return b.cols * DotsX }

// Height returns the raster height in dots.
func (b *Braille) Height() int { return b.rows * DotsY }

// Clear resets every cell.
func (b *Braille) Clear() {
	for i := range b.mask {
		b.mask[i] = 0
		b.layer[i] = LayerNone
		b.inside[i] = false
	}
}

// Set turns on the dot at (x, y).
func (b *Braille) Set(x, y int, l Layer) {
	if x < 0 || y < 0 {
		return
	}
	cx, cy := x/DotsX, y/DotsY
	if cx >= b.cols || cy >= b.rows {
		return
	}
	i := cy*b.cols + cx
	b.mask[i] |= brailleBits[x%DotsX][y%DotsY]
	if l > b.layer[i] {
		b.layer[i] = l
	}
}

// Line draws a Bresenham line. When dash > 0 the line alternates dash dots
// on and dash dots off.
func (b *Braille) Line(x0, y0, x1, y1 int, l Layer, dash int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy

	for step := 0; ; step++ {
		if dash <= 0 || (step/dash)%2 == 0 {
			b.Set(x0, y0, l)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Polyline draws connected segments.
func (b *Braille) Polyline(path scene.Path, l Layer, dash int) {
	for i := 1; i < len(path); i++ {
		b.Line(round(path[i-1].X), round(path[i-1].Y), round(path[i].X), round(path[i].Y), l, dash)
	}
}

// Circle draws a circle outline using the midpoint algorithm.
func (b *Braille) Circle(cx, cy, r int, l Layer) {
	if r <= 0 {
		b.Set(cx, cy, l)
		return
	}
	x, y := r, 0
	err := 1 - r
	for x >= y {
		b.Set(cx+x, cy+y, l)
		b.Set(cx+y, cy+x, l)
		b.Set(cx-y, cy+x, l)
		b.Set(cx-x, cy+y, l)
		b.Set(cx-x, cy-y, l)
		b.Set(cx-y, cy-x, l)
		b.Set(cx+y, cy-x, l)
		b.Set(cx+x, cy-y, l)
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

// Disc fills a circle.
func (b *Braille) Disc(cx, cy, r int, l Layer) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				b.Set(cx+dx, cy+dy, l)
			}
		}
	}
}

// MarkInside flags every cell whose centre lies within the disc, given in dots.
func (b *Braille) MarkInside(cx, cy, r float64) {
	for row := 0; row < b.rows; row++ {
		for col := 0; col < b.cols; col++ {
			x := float64(col*DotsX) + DotsX/2.0
			y := float64(row*DotsY) + DotsY/2.0
			dx, dy := x-cx, y-cy
			b.inside[row*b.cols+col] = dx*dx+dy*dy <= r*r
		}
	}
}

// Cell returns the rendered cell at (col, row).
func (b *Braille) Cell(col, row int) Cell {
	if col < 0 || row < 0 || col >= b.cols || row >= b.rows {
		return Cell{Rune: ' '}
	}
	i := row*b.cols + col
	c := Cell{Rune: ' ', Layer: b.layer[i], Inside: b.inside[i]}
	if b.mask[i] != 0 {
		c.Rune = rune(0x2800 + int(b.mask[i]))
	}
	return c
}

// Lines returns the raster as plain text rows.
func (b *Braille) Lines() []string {
	out := make([]string, b.rows)
	var sb strings.Builder
	for row := 0; row < b.rows; row++ {
		sb.Reset()
		for col := 0; col < b.cols; col++ {
			sb.WriteRune(b.Cell(col, row).Rune)
		}
		out[row] = sb.String()
	}
	return out
}

// Draw rasterises a scene. The scene must have been built for a camera
// sized Width() x Height().
func (b *Braille) Draw(sc scene.Scene) {
	b.Clear()
	b.MarkInside(sc.Center.X, sc.Center.Y, sc.Radius)

	b.Circle(round(sc.Center.X), round(sc.Center.Y), round(sc.Radius), LayerLimb)

	for _, p := range sc.Land.Paths {
		b.Polyline(p, LayerLand, 0)
	}
	dash := 0
	if len(sc.Future.Style.Dash) > 0 {
		dash = int(sc.Future.Style.Dash[0])
	}
	for _, p := range sc.Future.Paths {
		b.Polyline(p, LayerFuture, dash)
	}
	for _, p := range sc.Visited.Paths {
		b.Polyline(p, LayerVisited, 0)
	}

	if !sc.Marker.Visible {
		return
	}
	mx, my := round(sc.Marker.Position.X), round(sc.Marker.Position.Y)
	// A dot ring cannot fade, so the tail of the pulse is dropped instead.
	// Radii are halved for the coarser dot grid.
	if sc.Marker.Pulse.Opacity > 0.15 {
		b.Circle(mx, my, round(sc.Marker.Pulse.Radius/2), LayerPulse)
	}
	b.Disc(mx, my, 2, LayerMarker)
}

func round(v float64) int {
	return int(math.Round(v))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
