// Package orientation provides ports.OrientationSource implementations.
package orientation

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/samirrijal/skycanvas/internal/core/domain"
)

// Latest holds the most recent reading pushed by a sensor callback.
type Latest struct {
	mu     sync.Mutex
	sample domain.OrientationSample
	ok     bool
}

// Push stores a reading. A zero timestamp is replaced by the current time.
func (l *Latest) Push(q mgl64.Quat, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sample = domain.OrientationSample{Rotation: q, Timestamp: at}
	l.ok = true
}

// PushEuler stores a W3C device-orientation reading given in degrees.
func (l *Latest) PushEuler(alpha, beta, gamma, screen float64, at time.Time) {
	l.Push(domain.DeviceOrientationToQuat(alpha, beta, gamma, screen), at)
}

// Clear forgets the last reading, e.g. when the sensor is lost.
func (l *Latest) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ok = false
}

// EulerSensor yields raw device-orientation angles in degrees.
type EulerSensor interface {
	Euler() (alpha, beta, gamma float64, at time.Time)
}

// Feed pushes a reading from sensor rate times per second until ctx is
// done, the way a platform sensor callback would.
func (l *Latest) Feed(ctx context.Context, sensor EulerSensor, rate int) {
	if rate <= 0 {
		rate = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			alpha, beta, gamma, at := sensor.Euler()
			l.PushEuler(alpha, beta, gamma, 0, at)
		}
	}
}

// Latest implements ports.OrientationSource.
func (l *Latest) Latest() (domain.OrientationSample, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sample, l.ok
}

// Sweep is a synthetic sensor that turns slowly around the vertical axis
// while looking up at a fixed pitch, with optional jitter. It drives the
// headless viewer when no device is attached.
type Sweep struct {
	RadPerSec float64
	Pitch     float64
	Jitter    float64 // radians, peak
	Start     time.Time
	Now       func() time.Time
}

func (s *Sweep) angles() (yaw float64, at time.Time) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at = now()
	if s.Start.IsZero() {
		s.Start = at
	}
	el := at.Sub(s.Start).Seconds()
	yaw = s.RadPerSec * el
	if s.Jitter != 0 {
		// Two incommensurate tones look like hand tremor.
		yaw += s.Jitter * (math.Sin(el*23) + math.Sin(el*37)) / 2
	}
	return yaw, at
}

// Latest implements ports.OrientationSource.
func (s *Sweep) Latest() (domain.OrientationSample, bool) {
	yaw, at := s.angles()
	return domain.OrientationSample{Rotation: domain.YawPitchToQuat(yaw, s.Pitch), Timestamp: at}, true
}

// Euler implements EulerSensor: the same view expressed as a phone held
// upright, so beta is 90° at the horizon.
func (s *Sweep) Euler() (alpha, beta, gamma float64, at time.Time) {
	yaw, at := s.angles()
	return mgl64.RadToDeg(yaw), 90 + mgl64.RadToDeg(s.Pitch), 0, at
}
