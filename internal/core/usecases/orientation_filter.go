package usecases

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// FilterConfig tunes the adaptive smoothing. Time constants are seconds,
// Window is radians.
type FilterConfig struct {
	SlowTau float64
	BaseTau float64
	Window  float64
	MinDt   float64
}

// DefaultFilterConfig returns the tuning used on phones.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{SlowTau: 0.25, BaseTau: 0.04, Window: 0.25, MinDt: 0.001}
}

// OrientationFilter is an exponential moving average over rotations whose
// time constant shrinks as the raw input moves away from the smoothed one.
// Small jitter is damped heavily; deliberate turns pass through quickly.
type OrientationFilter struct {
	cfg FilterConfig

	mu    sync.Mutex
	state domain.OrientationState
	k     float64
	tau   float64
	alpha float64
}

// NewOrientationFilter creates an uninitialized filter.
func NewOrientationFilter(cfg FilterConfig) *OrientationFilter {
	if cfg.MinDt <= 0 {
		cfg.MinDt = 0.001
	}
	if cfg.Window <= 0 {
		cfg.Window = 0.25
	}
	return &OrientationFilter{cfg: cfg, tau: cfg.SlowTau}
}

// Update folds one raw sample into the smoothed rotation and returns it.
// Zero-length rotations are ignored.
func (f *OrientationFilter) Update(s domain.OrientationSample) mgl64.Quat {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw := s.Rotation
	if l := raw.Len(); l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return f.state.Smoothed
	}
	raw = raw.Normalize()

	if !f.state.Initialized {
		f.state = domain.OrientationState{Smoothed: raw, LastTimestamp: s.Timestamp, Initialized: true}
		f.k, f.tau, f.alpha = 0, f.cfg.SlowTau, 1
		return raw
	}

	dt := s.Timestamp.Sub(f.state.LastTimestamp).Seconds()
	dt = max(dt, f.cfg.MinDt)
	if s.Timestamp.After(f.state.LastTimestamp) {
		f.state.LastTimestamp = s.Timestamp
	}

	// q and -q are the same rotation; steer towards the nearer one.
	if f.state.Smoothed.Dot(raw) < 0 {
		raw = raw.Scale(-1)
	}

	delta := AngularDelta(f.state.Smoothed, raw)
	f.k = clamp01(delta / f.cfg.Window)
	f.tau = f.cfg.SlowTau + (f.cfg.BaseTau-f.cfg.SlowTau)*f.k
	f.alpha = dt / (f.tau + dt)

	f.state.Smoothed = mgl64.QuatSlerp(f.state.Smoothed, raw, f.alpha).Normalize()
	return f.state.Smoothed
}

// State returns the filter's current state.
func (f *OrientationFilter) State() domain.OrientationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// BlendFactor is the responsiveness k of the last update, in [0,1].
func (f *OrientationFilter) BlendFactor() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.k
}

// Tau is the time constant used by the last update.
func (f *OrientationFilter) Tau() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tau
}

// Alpha is the interpolation weight applied by the last update.
func (f *OrientationFilter) Alpha() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alpha
}

// Reset drops the smoothed state; the next sample is taken as-is.
func (f *OrientationFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = domain.OrientationState{}
	f.k, f.tau, f.alpha = 0, f.cfg.SlowTau, 0
}

// AngularDelta is the rotation angle between a and b in radians, in [0, π].
func AngularDelta(a, b mgl64.Quat) float64 {
	dot := math.Abs(a.Normalize().Dot(b.Normalize()))
	return 2 * math.Acos(min(1, dot))
}

// MouseLook turns pointer drags into a camera rotation. There is no
// smoothing: the rotation follows the pointer exactly.
type MouseLook struct {
	sensitivity float64

	mu    sync.Mutex
	yaw   float64
	pitch float64
}

// NewMouseLook creates a mouse look where one pixel of drag turns the
// camera by sensitivity radians.
func NewMouseLook(sensitivity float64) *MouseLook {
	if sensitivity <= 0 {
		sensitivity = 0.005
	}
	return &MouseLook{sensitivity: sensitivity}
}

// Drag applies a pointer movement. Dragging right turns left, dragging
// down looks up, matching a grab-the-sky gesture.
func (m *MouseLook) Drag(dx, dy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yaw += dx * m.sensitivity
	m.pitch = clampPitch(m.pitch + dy*m.sensitivity)
}

// Set replaces yaw and pitch, both in radians.
func (m *MouseLook) Set(yaw, pitch float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.yaw = yaw
	m.pitch = clampPitch(pitch)
}

// Angles returns yaw and pitch in radians.
func (m *MouseLook) Angles() (yaw, pitch float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.yaw, m.pitch
}

// Rotation returns the camera rotation for the current angles.
func (m *MouseLook) Rotation() mgl64.Quat {
	yaw, pitch := m.Angles()
	return domain.YawPitchToQuat(yaw, pitch)
}

// Latest implements ports.OrientationSource.
func (m *MouseLook) Latest() (domain.OrientationSample, bool) {
	return domain.OrientationSample{Rotation: m.Rotation(), Timestamp: time.Now()}, true
}

func clampPitch(p float64) float64 {
	return max(-math.Pi/2, min(math.Pi/2, p))
}
