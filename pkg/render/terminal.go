// pkg/render/terminal.go
package render

import (
	"bufio"
	"io"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MansenC/BarrelShooter/pkg/entity"
)

const (
	glyphWater      = ' '
	glyphBarrel     = 'O'
	glyphHitBarrel  = 'x'
	glyphCannonball = '.'
	glyphCannon     = 'C'
	glyphAim        = '+'
)

// TerminalRenderer draws a top-down ASCII view of the X/Z plane.
type TerminalRenderer struct {
	out       io.Writer
	width     int
	height    int
	buffer    [][]rune
	scale     float64
	centerPos mgl64.Vec2
	ansi      bool
}

// NewTerminalRenderer creates a renderer with the given size in cells. One
// cell covers scale world units.
func NewTerminalRenderer(out io.Writer, width, height int, scale float64) *TerminalRenderer {
	buffer := make([][]rune, height)
	for i := range buffer {
		buffer[i] = make([]rune, width)
	}

	r := &TerminalRenderer{
		out:    out,
		width:  width,
		height: height,
		buffer: buffer,
		scale:  scale,
	}
	r.Clear()
	return r
}

// SetCenter sets the world X/Z position at the middle of the view.
func (r *TerminalRenderer) SetCenter(x, z float64) {
	r.centerPos = mgl64.Vec2{x, z}
}

// SetANSI enables clearing the terminal before each frame.
func (r *TerminalRenderer) SetANSI(enabled bool) {
	r.ansi = enabled
}

// worldToScreen converts world coordinates to screen coordinates
func (r *TerminalRenderer) worldToScreen(pos mgl64.Vec3) (int, int, bool) {
	sx := int(math.Floor((pos.X()-r.centerPos.X())/r.scale + float64(r.width)/2))
	sy := int(math.Floor((pos.Z()-r.centerPos.Y())/r.scale + float64(r.height)/2))
	return sx, sy, sx >= 0 && sx < r.width && sy >= 0 && sy < r.height
}

func (r *TerminalRenderer) plot(pos mgl64.Vec3, glyph rune) {
	if x, y, ok := r.worldToScreen(pos); ok {
		r.buffer[y][x] = glyph
	}
}

// Clear implements entity.Renderer
func (r *TerminalRenderer) Clear() {
	for y := range r.buffer {
		for x := range r.buffer[y] {
			r.buffer[y][x] = glyphWater
		}
	}
}

// Present implements entity.Renderer
func (r *TerminalRenderer) Present() {
	w := bufio.NewWriter(r.out)
	if r.ansi {
		w.WriteString("\033[H\033[2J")
	}

	border := "+" + strings.Repeat("-", r.width) + "+\n"
	w.WriteString(border)
	for y := range r.buffer {
		w.WriteByte('|')
		w.WriteString(string(r.buffer[y]))
		w.WriteString("|\n")
	}
	w.WriteString(border)
	w.Flush()
}

// RenderBarrel implements entity.Renderer
func (r *TerminalRenderer) RenderBarrel(barrel *entity.Barrel) {
	glyph := glyphBarrel
	if barrel.IsHit() {
		glyph = glyphHitBarrel
	}
	r.plot(barrel.GetPose().Position, glyph)
}

// RenderCannonball implements entity.Renderer
func (r *TerminalRenderer) RenderCannonball(ball *entity.Cannonball) {
	r.plot(ball.GetPose().Position, glyphCannonball)
}

// RenderCannon implements entity.Renderer
func (r *TerminalRenderer) RenderCannon(cannon *entity.Cannon) {
	// Aim marker one cell out along the horizontal firing direction.
	dir := cannon.Direction()
	flat := mgl64.Vec3{dir.X(), 0, dir.Z()}
	if flat.Len() > 1e-9 {
		r.plot(cannon.Position.Add(flat.Normalize().Mul(r.scale)), glyphAim)
	}
	r.plot(cannon.Position, glyphCannon)
}
