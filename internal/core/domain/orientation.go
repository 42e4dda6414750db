package domain

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// OrientationSample is one raw rotation reading.
type OrientationSample struct {
	Rotation  mgl64.Quat
	Timestamp time.Time
}

// OrientationState is the filter's smoothed value.
type OrientationState struct {
	Smoothed      mgl64.Quat
	LastTimestamp time.Time
	Initialized   bool
}

var (
	// Rotates the device frame so that the camera looks out of the back
	// of the screen instead of down through it.
	screenToCamera = mgl64.QuatRotate(-math.Pi/2, mgl64.Vec3{1, 0, 0})
	zAxis          = mgl64.Vec3{0, 0, 1}
)

// DeviceOrientationToQuat converts W3C device-orientation angles (alpha,
// beta, gamma, degrees) and the screen orientation angle (degrees) into a
// camera rotation.
func DeviceOrientationToQuat(alpha, beta, gamma, screen float64) mgl64.Quat {
	q := mgl64.AnglesToQuat(
		mgl64.DegToRad(alpha),
		mgl64.DegToRad(beta),
		-mgl64.DegToRad(gamma),
		mgl64.YXZ,
	)
	q = q.Mul(screenToCamera)
	q = q.Mul(mgl64.QuatRotate(-mgl64.DegToRad(screen), zAxis))
	return q.Normalize()
}

// YawPitchToQuat builds a rotation from yaw about Y then pitch about X.
func YawPitchToQuat(yaw, pitch float64) mgl64.Quat {
	return mgl64.AnglesToQuat(yaw, pitch, 0, mgl64.YXZ).Normalize()
}
