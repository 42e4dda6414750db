// Package scene is a headless scene graph. It keeps planes and the camera
// in memory and composes a top-down view of the sky on demand.
package scene

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/samirrijal/skycanvas/internal/core/domain"
	"github.com/samirrijal/skycanvas/internal/core/ports"
)

// Stats is a snapshot of the scene's contents.
type Stats struct {
	Visible  int
	Hidden   int
	Disposed int
	Frames   uint64
	Camera   mgl64.Quat
}

// Scene implements ports.Scene and ports.Renderer.
type Scene struct {
	// frameMu is held for a whole batch or frame so the two never interleave.
	frameMu sync.Mutex

	mu       sync.Mutex
	planes   map[*Plane]struct{}
	camera   mgl64.Quat
	frames   uint64
	disposed int

	placeholder image.Image
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		planes:      make(map[*Plane]struct{}),
		camera:      mgl64.QuatIdent(),
		placeholder: Placeholder(64, "no data"),
	}
}

// NewPlane adds a hidden plane of the given edge length.
func (s *Scene) NewPlane(size float64) ports.Plane {
	p := &Plane{scene: s, size: size, opacity: 1}
	s.mu.Lock()
	s.planes[p] = struct{}{}
	s.mu.Unlock()
	return p
}

// SetCameraRotation sets the camera orientation.
func (s *Scene) SetCameraRotation(q mgl64.Quat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = q
}

// Camera returns the camera orientation.
func (s *Scene) Camera() mgl64.Quat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// Batch runs fn with frames held off.
func (s *Scene) Batch(fn func()) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	fn()
}

// Render draws one frame. In a headless scene that is bookkeeping only.
func (s *Scene) Render(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

// Stats returns plane counts and the frame counter.
func (s *Scene) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Disposed: s.disposed, Frames: s.frames, Camera: s.camera}
	for p := range s.planes {
		if p.visibleNow() {
			st.Visible++
		} else {
			st.Hidden++
		}
	}
	return st
}

// Snapshot composes the visible planes as seen from below, looking up,
// into a px×px image covering extent world units around the origin.
// North is up and east is right. Each plane is drawn at its opacity
// times the fade at its center distance.
func (s *Scene) Snapshot(px int, extent float64) *image.RGBA {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	dst := image.NewRGBA(image.Rect(0, 0, px, px))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	scale := float64(px) / extent
	toPixel := func(x, z float64) (int, int) {
		return int(math.Round((x + extent/2) * scale)), int(math.Round((extent/2 - z) * scale))
	}

	for _, p := range s.visiblePlanes() {
		st := p.state()
		half := st.size / 2
		x0, y0 := toPixel(st.pos.X-half, st.pos.Z+half)
		x1, y1 := toPixel(st.pos.X+half, st.pos.Z-half)
		rect := image.Rect(x0, y0, x1, y1)
		if rect.Empty() || !rect.Overlaps(dst.Bounds()) {
			continue
		}

		tex := st.tex
		if tex == nil {
			tex = s.placeholder
		}
		alpha := st.opacity * st.fade.Alpha(math.Hypot(st.pos.X, st.pos.Z))
		mask := image.NewUniform(color.Alpha{A: uint8(math.Round(255 * clamp01(alpha)))})
		opts := &xdraw.Options{SrcMask: mask}
		xdraw.NearestNeighbor.Scale(dst, rect, tex, tex.Bounds(), xdraw.Over, opts)
	}
	return dst
}

func (s *Scene) visiblePlanes() []*Plane {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Plane, 0, len(s.planes))
	for p := range s.planes {
		if p.visibleNow() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Scene) remove(p *Plane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.planes[p]; ok {
		delete(s.planes, p)
		s.disposed++
	}
}

// Plane is one textured quad. Setters are safe from any goroutine.
type Plane struct {
	scene *Scene

	mu       sync.Mutex
	size     float64
	pos      domain.Vec3
	tex      image.Image
	opacity  float64
	fade     domain.Fade
	visible  bool
	disposed bool
}

type planeState struct {
	size    float64
	pos     domain.Vec3
	tex     image.Image
	opacity float64
	fade    domain.Fade
}

func (p *Plane) SetPosition(pos domain.Vec3) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

func (p *Plane) SetTexture(img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tex = img
}

func (p *Plane) SetOpacity(alpha float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opacity = clamp01(alpha)
}

func (p *Plane) SetFade(f domain.Fade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fade = f
}

func (p *Plane) SetVisible(visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = visible && !p.disposed
}

// Dispose removes the plane from its scene. Later calls are no-ops.
func (p *Plane) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.visible = false
	p.tex = nil
	p.mu.Unlock()

	p.scene.remove(p)
}

func (p *Plane) visibleNow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *Plane) state() planeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return planeState{size: p.size, pos: p.pos, tex: p.tex, opacity: p.opacity, fade: p.fade}
}

// Placeholder draws the flat sky-blue tile shown where a texture is
// missing, with a centered label.
func Placeholder(size int, label string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{domain.PlaceholderColor}, image.Point{}, draw.Src)

	if label == "" {
		return img
	}
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{100, 100, 100, 255}),
		Face: face,
	}
	w := d.MeasureString(label).Round()
	h := face.Metrics().Height.Round()
	d.Dot = fixed.Point26_6{
		X: fixed.I((size - w) / 2),
		Y: fixed.I((size + h) / 2),
	}
	d.DrawString(label)
	return img
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
