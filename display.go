package tirelog

import (
	"fmt"
	"strings"

	"github.com/jd3nn1s/tirelog/tpms"
)

const (
	pressureWidth    = 9
	temperatureWidth = 9
	elapsedWidth     = 8

	pressurePlaceholder    = "--.--"
	temperaturePlaceholder = "---.-"
	elapsedPlaceholder     = "--.-s"
)

// TireDisplay holds the padded strings for one slot.
type TireDisplay struct {
	Label       string `json:"label"`
	Pressure    string `json:"pressure_psi"`
	Temperature string `json:"temperature_f"`
	Elapsed     string `json:"elapsed"`
}

// Display is the human readable projection of a Record.
type Display struct {
	Timestamp string                      `json:"timestamp"`
	Position  string                      `json:"position"`
	Elevation string                      `json:"elevation"`
	Speed     string                      `json:"speed,omitempty"`
	Course    string                      `json:"course,omitempty"`
	Tires     [tpms.SlotCount]TireDisplay `json:"tires"`
}

// fit right-aligns s in width columns, truncating when too long.
func fit(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return fmt.Sprintf("%*s", width, s)
}

func displayReading(r Reading, placeholder string) string {
	switch r.State {
	case Fresh:
		return fmt.Sprintf("%.2f", r.Value)
	case Stale:
		return fmt.Sprintf("(%.2f)", r.Value)
	}
	return placeholder
}

// Project renders the record for presentation.
func Project(rec *Record) *Display {
	loc := rec.Location
	d := &Display{Timestamp: rec.Timestamp.Format(TimestampLayout)}
	d.Position = fmt.Sprintf("%.4f, %.4f (+/- %d m)",
		loc.Latitude, loc.Longitude, int(loc.HorizontalAccuracy))
	d.Elevation = fmt.Sprintf("Elevation: %.1f ft (+/- %.1f ft)",
		rec.ElevationFeet(), rec.ElevationAccuracyFeet())
	if !rec.SpeedUnknown {
		d.Speed = fmt.Sprintf("Speed: %.1f mph (+/- %.1f mph)", rec.SpeedMPH(), rec.SpeedAccuracyMPH())
		d.Course = fmt.Sprintf("Course: %.1f° (+/- %.1f°)", loc.Course, loc.CourseAccuracy)
	}

	for i, tire := range rec.Tires {
		elapsed := elapsedPlaceholder
		if tire.HasValue() {
			elapsed = fmt.Sprintf("%.1fs", tire.SinceLastTick.Seconds())
		}
		d.Tires[i] = TireDisplay{
			Label:       fmt.Sprintf("TPMS%d", i+1),
			Pressure:    fit(displayReading(tire.PressurePSI(), pressurePlaceholder), pressureWidth),
			Temperature: fit(displayReading(tire.TemperatureF(), temperaturePlaceholder), temperatureWidth),
			Elapsed:     fit(elapsed, elapsedWidth),
		}
	}
	return d
}

// String renders the full screen text.
func (d *Display) String() string {
	var sb strings.Builder
	sb.WriteString(d.Timestamp + "\n\n")
	sb.WriteString(d.Position + "\n")
	sb.WriteString(d.Elevation + "\n")
	if d.Speed != "" {
		sb.WriteString("\n" + d.Speed + "\n" + d.Course + "\n")
	}
	sb.WriteString("\n")
	for _, t := range d.Tires {
		fmt.Fprintf(&sb, "%s: %s psi %s °F %s ago\n", t.Label, t.Pressure, t.Temperature, t.Elapsed)
	}
	return sb.String()
}
