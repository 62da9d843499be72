package tirelog

import (
	"context"
	"math"

	"github.com/jd3nn1s/skytraq"
	log "github.com/sirupsen/logrus"
)

const (
	// maximum horizontal dilution of precision, in 0.01 units
	maxHDOP = 500
	// typical user range error, scaled by HDOP for horizontal accuracy
	userRangeErrorM = 5.0
)

// to allow testing
var gpsConnect = func(p string) (GPS, error) {
	return skytraq.Connect(p)
}

type gpsRetryable struct {
	c        GPS
	port     string
	sendChan chan<- LocationFix
}

// NewSkyTraqGPS reads navigation data from a SkyTraq receiver on port.
func NewSkyTraqGPS(port string, sendChan chan<- LocationFix) Retryable {
	return &gpsRetryable{
		port:     port,
		sendChan: sendChan,
	}
}

func (g *gpsRetryable) Open() error {
	c, err := gpsConnect(g.port)
	g.c = c
	return err
}

func (g *gpsRetryable) Close() error {
	if g.c == nil {
		return nil
	}
	return g.c.Close()
}

func (g *gpsRetryable) Start(ctx context.Context) error {
	return g.c.Start(ctx, skytraq.Callbacks{
		SoftwareVersion: func(version skytraq.SoftwareVersion) {
			log.Infof("gps software version: %v", version)
		},
		NavData: g.navDataFn,
	})
}

func (g *gpsRetryable) Name() string {
	return "gps"
}

func (g *gpsRetryable) navDataFn(navData skytraq.NavData) {
	if navData.Fix == skytraq.FixNone {
		log.Warnf("no satellite fix")
		return
	}
	if navData.HDOP > maxHDOP {
		log.WithField("HDOP", navData.HDOP).Warn("poor resolution")
		return
	}
	// velocity is reported in cm/s
	vx := float64(navData.VX) / 100
	vy := float64(navData.VY) / 100
	speed := math.Sqrt(vx*vx + vy*vy)
	course := 0.0
	if speed > 0 {
		course = math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
	}

	sample := LocationSample{
		Latitude:           float64(navData.Latitude) / 1e7,
		Longitude:          float64(navData.Longitude) / 1e7,
		HorizontalAccuracy: float64(navData.HDOP) / 100 * userRangeErrorM,
		Elevation:          float64(navData.Altitude) / 100,
		VerticalAccuracy:   -1,
		Speed:              speed,
		SpeedAccuracy:      -1,
		Course:             course,
		CourseAccuracy:     -1,
	}

	select {
	case g.sendChan <- LocationFix{Sample: sample, At: timeNow()}:
	default:
	}
}
