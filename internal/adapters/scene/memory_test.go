package scene_test

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/samirrijal/skycanvas/internal/adapters/scene"
	"github.com/samirrijal/skycanvas/internal/core/domain"
)

func TestScene_PlaneLifecycle(t *testing.T) {
	s := scene.New()

	a := s.NewPlane(1000)
	b := s.NewPlane(1000)
	if st := s.Stats(); st.Hidden != 2 || st.Visible != 0 {
		t.Fatalf("expected 2 hidden planes, got %+v", st)
	}

	a.SetVisible(true)
	b.Dispose()
	b.Dispose()
	b.SetVisible(true)

	st := s.Stats()
	if st.Visible != 1 || st.Hidden != 0 || st.Disposed != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestScene_BatchHoldsOffFrames(t *testing.T) {
	s := scene.New()
	release := make(chan struct{})
	inBatch := make(chan struct{})

	go s.Batch(func() {
		close(inBatch)
		<-release
	})
	<-inBatch

	rendered := make(chan error, 1)
	go func() { rendered <- s.Render(context.Background()) }()

	select {
	case <-rendered:
		t.Fatal("expected render to wait for the batch")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	if err := <-rendered; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Stats().Frames != 1 {
		t.Errorf("expected 1 frame, got %d", s.Stats().Frames)
	}
}

func TestScene_RenderCancelled(t *testing.T) {
	s := scene.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Render(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestScene_Camera(t *testing.T) {
	s := scene.New()
	q := mgl64.QuatRotate(0.5, mgl64.Vec3{0, 1, 0})
	s.SetCameraRotation(q)
	if !s.Camera().ApproxEqual(q) {
		t.Errorf("expected camera %v, got %v", q, s.Camera())
	}
}

func TestScene_Snapshot(t *testing.T) {
	s := scene.New()

	red := image.NewRGBA(image.Rect(0, 0, 4, 4))
	draw.Draw(red, red.Bounds(), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)

	// Textured plane over the origin.
	p := s.NewPlane(100)
	p.SetTexture(red)
	p.SetFade(domain.Fade{Near: 1000, Far: 2000})
	p.SetVisible(true)

	// Untextured plane to the east.
	q := s.NewPlane(100)
	q.SetPosition(domain.Vec3{X: 100})
	q.SetFade(domain.Fade{Near: 1000, Far: 2000})
	q.SetVisible(true)

	img := s.Snapshot(300, 300)

	if got := img.RGBAAt(150, 150); got.R != 255 || got.G != 0 {
		t.Errorf("expected red at the origin, got %v", got)
	}
	if got := img.RGBAAt(290, 110); got.R != domain.PlaceholderColor.R || got.B != domain.PlaceholderColor.B {
		t.Errorf("expected placeholder colour east of the origin, got %v", got)
	}
	if got := img.RGBAAt(5, 5); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("expected empty sky in the corner, got %v", got)
	}
}

func TestScene_SnapshotFade(t *testing.T) {
	s := scene.New()
	white := image.NewRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(white, white.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// Beyond the far distance the plane is fully faded out.
	p := s.NewPlane(100)
	p.SetTexture(white)
	p.SetPosition(domain.Vec3{X: 0, Z: 1400})
	p.SetFade(domain.Fade{Near: 100, Far: 200})
	p.SetVisible(true)

	img := s.Snapshot(300, 3000)
	if got := img.RGBAAt(150, 10); got.R != 0 {
		t.Errorf("expected faded plane to be invisible, got %v", got)
	}
}

func TestPlaceholder(t *testing.T) {
	img := scene.Placeholder(64, "11/572/747")
	if got := img.RGBAAt(1, 1); got != domain.PlaceholderColor {
		t.Errorf("expected placeholder background, got %v", got)
	}

	plain := scene.Placeholder(8, "")
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if plain.RGBAAt(x, y) != domain.PlaceholderColor {
				t.Fatalf("expected solid placeholder at %d,%d", x, y)
			}
		}
	}
}
