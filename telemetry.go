package tirelog

import (
	"time"

	"github.com/jd3nn1s/tirelog/tpms"
	"github.com/pkg/errors"
)

// LocationSample is one fix from a location provider, in metric units.
// Negative accuracies and speed mean unknown, as reported by the provider.
type LocationSample struct {
	Latitude           float64 `json:"lat"`
	Longitude          float64 `json:"lon"`
	HorizontalAccuracy float64 `json:"pos_acc_m"`
	Elevation          float64 `json:"elevation_m"`
	VerticalAccuracy   float64 `json:"elevation_acc_m"`
	Speed              float64 `json:"speed_mps"`
	SpeedAccuracy      float64 `json:"speed_acc_mps"`
	Course             float64 `json:"course_deg"`
	CourseAccuracy     float64 `json:"course_acc_deg"`
}

// SpeedKnown reports whether the provider supplied a speed.
func (l LocationSample) SpeedKnown() bool {
	return l.Speed >= 0
}

// clamp maps the provider's negative "unknown" speeds to 0.
func (l LocationSample) clamp() LocationSample {
	if l.Speed < 0 {
		l.Speed = 0
	}
	if l.SpeedAccuracy < 0 {
		l.SpeedAccuracy = 0
	}
	return l
}

// Advertisement is a raw broadcast from the wireless transport.
type Advertisement struct {
	Name    string
	Address string
	Payload []byte
}

// ReadingState tells whether a tire value arrived this cycle, is a
// persisted value from an earlier cycle, or was never seen.
type ReadingState uint8

const (
	Unknown ReadingState = iota
	Stale
	Fresh
)

var readingStateNames = map[ReadingState]string{
	Unknown: "unknown",
	Stale:   "stale",
	Fresh:   "fresh",
}

func (s ReadingState) String() string {
	if n, ok := readingStateNames[s]; ok {
		return n
	}
	return "invalid"
}

func (s ReadingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ReadingState) UnmarshalText(text []byte) error {
	for state, name := range readingStateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return errors.Errorf("unknown reading state %q", text)
}

// Reading is a tire value tagged with its freshness. Value is only
// meaningful when State is not Unknown.
type Reading struct {
	State ReadingState `json:"state"`
	Value float64      `json:"value"`
}

func freshReading(v float64) Reading {
	return Reading{State: Fresh, Value: v}
}

func staleReading(v float64) Reading {
	return Reading{State: Stale, Value: v}
}

// Map converts the value, keeping its state.
func (r Reading) Map(fn func(float64) float64) Reading {
	if r.State == Unknown {
		return r
	}
	return Reading{State: r.State, Value: fn(r.Value)}
}

// Tire is the per-slot part of a Record.
type Tire struct {
	PressureKPa   Reading       `json:"pressure_kpa"`
	TemperatureC  Reading       `json:"temperature_c"`
	SinceLastTick time.Duration `json:"since_last_tick_ns"`
}

func (t Tire) PressurePSI() Reading {
	return t.PressureKPa.Map(kpaToPSI)
}

func (t Tire) TemperatureF() Reading {
	return t.TemperatureC.Map(celsiusToFahrenheit)
}

// HasValue reports whether the slot has ever produced a usable value.
func (t Tire) HasValue() bool {
	return t.PressureKPa.State != Unknown || t.TemperatureC.State != Unknown
}

// Record is the normalized output of one aggregation cycle.
type Record struct {
	Session      string               `json:"session,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
	Location     LocationSample       `json:"location"`
	SpeedUnknown bool                 `json:"speed_unknown"`
	HaveTire     bool                 `json:"have_tire"`
	Tires        [tpms.SlotCount]Tire `json:"tires"`
}

func (r *Record) ElevationFeet() float64 {
	return metersToFeet(r.Location.Elevation)
}

func (r *Record) ElevationAccuracyFeet() float64 {
	return metersToFeet(r.Location.VerticalAccuracy)
}

func (r *Record) SpeedMPH() float64 {
	return mpsToMPH(r.Location.Speed)
}

func (r *Record) SpeedAccuracyMPH() float64 {
	return mpsToMPH(r.Location.SpeedAccuracy)
}
