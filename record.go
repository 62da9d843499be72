package tirelog

import (
	"fmt"
	"strconv"

	"github.com/jd3nn1s/tirelog/tpms"
)

// TimestampLayout is used for the first column of every row.
const TimestampLayout = "2006-01-02T15:04:05.000-0700"

var locationColumns = []string{
	"lat", "lon", "pos_acc_m",
	"elevation_m", "elevation_acc_m", "elevation_ft",
	"speed_mps", "speed_acc_mps", "speed_mph",
	"course_deg", "course_acc_deg",
}

// Header is the fixed column layout of the record file.
var Header = buildHeader()

func buildHeader() []string {
	header := []string{"timestamp"}
	header = append(header, locationColumns...)
	header = append(header, "have_tire")
	for _, pos := range tpms.SlotNames {
		prefix := "tire_" + pos + "_"
		header = append(header, prefix+"kpa", prefix+"psi", prefix+"c", prefix+"f")
	}
	return header
}

func rawFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fixedFloat(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// freshOnly renders fresh readings; anything else is an empty column.
func freshOnly(r Reading) string {
	if r.State != Fresh {
		return ""
	}
	return fixedFloat(r.Value)
}

// Row renders the record in Header order.
func (r *Record) Row() []string {
	loc := r.Location
	row := make([]string, 0, len(Header))
	row = append(row,
		r.Timestamp.Format(TimestampLayout),
		rawFloat(loc.Latitude),
		rawFloat(loc.Longitude),
		rawFloat(loc.HorizontalAccuracy),
		rawFloat(loc.Elevation),
		rawFloat(loc.VerticalAccuracy),
		fixedFloat(r.ElevationFeet()),
		rawFloat(loc.Speed),
		rawFloat(loc.SpeedAccuracy),
		fixedFloat(r.SpeedMPH()),
		rawFloat(loc.Course),
		rawFloat(loc.CourseAccuracy),
		strconv.FormatBool(r.HaveTire),
	)
	for _, tire := range r.Tires {
		row = append(row,
			freshOnly(tire.PressureKPa),
			freshOnly(tire.PressurePSI()),
			freshOnly(tire.TemperatureC),
			freshOnly(tire.TemperatureF()),
		)
	}
	return row
}
