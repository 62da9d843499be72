package tirelog

import (
	"math"
	"time"
)

const (
	feetPerMeter = 3.280839895013123
	mphPerMPS    = 2.2369362920544025
	psiPerKPa    = 0.14503773779
	minValidKPa  = 50.0
	maxValidKPa  = 300.0
)

func metersToFeet(m float64) float64 {
	return m * feetPerMeter
}

func mpsToMPH(v float64) float64 {
	return v * mphPerMPS
}

func kpaToPSI(kpa float64) float64 {
	return kpa * psiPerKPa
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func validPressure(kpa float64) bool {
	return kpa >= minValidKPa && kpa < maxValidKPa
}

func validTemperature(c float64) bool {
	return c != 0
}

// Aggregate builds the record for the current cycle and then clears the
// current values of every slot, so each tick appears in exactly one
// record as fresh. Persisted values survive.
func Aggregate(state *State, now time.Time) *Record {
	rec := &Record{
		Timestamp:    state.LatestUpdate,
		Location:     state.Location,
		SpeedUnknown: state.SpeedUnknown,
	}

	for i := range state.Slots {
		slot := &state.Slots[i]
		tire := &rec.Tires[i]

		switch {
		case validPressure(slot.CurrentPressureKPa):
			tire.PressureKPa = freshReading(slot.CurrentPressureKPa)
			rec.HaveTire = true
		case validPressure(slot.PersistedPressureKPa):
			tire.PressureKPa = staleReading(slot.PersistedPressureKPa)
		}

		switch {
		case validTemperature(slot.CurrentTemperatureC):
			tire.TemperatureC = freshReading(slot.CurrentTemperatureC)
			rec.HaveTire = true
		case validTemperature(slot.PersistedTemperatureC):
			tire.TemperatureC = staleReading(slot.PersistedTemperatureC)
		}

		tire.SinceLastTick = time.Duration(math.Abs(float64(now.Sub(slot.LastTickAt))))
	}

	state.resetCurrent()
	return rec
}
