package domain

import "time"

// Fix is one position reported by a locator.
type Fix struct {
	Point          GeoPoint  `json:"point"`
	AccuracyMeters float64   `json:"accuracy_m"`
	Timestamp      time.Time `json:"timestamp"`
}

// LocateOptions mirrors the platform's single-shot position query.
type LocateOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// TrackingMode is the location tracker's state.
type TrackingMode int

const (
	ModeLive TrackingMode = iota
	ModeOverride
)

func (m TrackingMode) String() string {
	if m == ModeOverride {
		return "override"
	}
	return "live"
}

// LocationState is a snapshot of the tracker. A set Override suspends
// polling.
type LocationState struct {
	Override          *GeoPoint     `json:"override,omitempty"`
	LastKnown         *GeoPoint     `json:"last_known,omitempty"`
	PollInterval      time.Duration `json:"poll_interval"`
	MovementThreshold float64       `json:"movement_threshold_m"`
	Polling           bool          `json:"polling"`
}

// Mode derives the tracking mode from the override.
func (s LocationState) Mode() TrackingMode {
	if s.Override != nil {
		return ModeOverride
	}
	return ModeLive
}
