package tirelog

import (
	"time"

	"github.com/jd3nn1s/tirelog/tpms"
)

// SensorSlot holds the values for one tire position. Zero means absent.
type SensorSlot struct {
	CurrentPressureKPa    float64
	CurrentTemperatureC   float64
	PersistedPressureKPa  float64
	PersistedTemperatureC float64
	LastTickAt            time.Time
}

// State is owned by the event loop and is never shared between goroutines.
type State struct {
	Slots           [tpms.SlotCount]SensorSlot
	Location        LocationSample
	SpeedUnknown    bool
	LatestUpdate    time.Time
	EverSawTireData bool
}

func NewState(now time.Time) *State {
	s := &State{
		LatestUpdate: now,
		// no fix yet
		SpeedUnknown: true,
	}
	for i := range s.Slots {
		s.Slots[i].LastTickAt = now
	}
	return s
}

// ApplyTick stores an accepted reading. Persisted values only move from one
// nonzero value to another.
func (s *State) ApplyTick(tick tpms.Tick, now time.Time) {
	slot := &s.Slots[tick.Slot]
	slot.CurrentPressureKPa = tick.PressureKPa
	slot.CurrentTemperatureC = tick.TemperatureC
	if tick.PressureKPa != 0 {
		slot.PersistedPressureKPa = tick.PressureKPa
	}
	if tick.TemperatureC != 0 {
		slot.PersistedTemperatureC = tick.TemperatureC
	}
	slot.LastTickAt = now
	s.LatestUpdate = now
	s.EverSawTireData = true
}

// ApplyLocation replaces the latest fix.
func (s *State) ApplyLocation(sample LocationSample, now time.Time) {
	s.SpeedUnknown = !sample.SpeedKnown()
	s.Location = sample.clamp()
	s.LatestUpdate = now
}

func (s *State) resetCurrent() {
	for i := range s.Slots {
		s.Slots[i].CurrentPressureKPa = 0
		s.Slots[i].CurrentTemperatureC = 0
	}
}
