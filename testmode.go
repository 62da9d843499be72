package tirelog

import (
	"context"
	"fmt"
	"time"

	"github.com/jd3nn1s/tirelog/tpms"
)

var (
	testLocationInterval = time.Millisecond * 50
	testSensorInterval   = time.Second
)

func (tl *TireLog) runTestMode(ctx context.Context) {
	locationInterval, sensorInterval := testLocationInterval, testSensorInterval
	go func() {
		fix := LocationSample{
			Latitude:           40.7128,
			Longitude:          -74.0060,
			HorizontalAccuracy: 5,
			Elevation:          10,
			VerticalAccuracy:   3,
			SpeedAccuracy:      0.5,
			Course:             90,
			CourseAccuracy:     2,
		}
		down := false
		ticker := time.NewTicker(locationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			select {
			case tl.locationChan <- LocationFix{Sample: fix, At: timeNow()}:
			default:
			}

			if down {
				fix.Speed -= 0.5
				fix.Longitude -= 0.00001
				fix.Latitude -= 0.00001
			} else {
				fix.Speed += 0.5
				fix.Longitude += 0.00001
				fix.Latitude += 0.00001
			}

			if fix.Speed <= 0 {
				down = false
			} else if fix.Speed >= 30 {
				down = true
			}
		}
	}()

	for slot := 0; slot < tpms.SlotCount; slot++ {
		go tl.runTestSensor(ctx, slot, sensorInterval)
	}
}

// runTestSensor broadcasts a slowly warming tire, with an all-zero noise
// packet every tenth advertisement.
func (tl *TireLog) runTestSensor(ctx context.Context, slot int, interval time.Duration) {
	name := fmt.Sprintf("TPMS%d_%02X%02X%02X", slot+1, 0xA0+slot, 0x10, 0x20)
	pressure := 220.0 + float64(slot)*5
	temperature := 15.0
	ticker := time.NewTicker(interval + time.Duration(slot)*time.Millisecond*170)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}

		payload := tpms.Encode(pressure, temperature)
		if n%10 == 0 {
			payload = tpms.Encode(0, 0)
		}
		select {
		case tl.advertChan <- Advertisement{Name: name, Payload: payload}:
		default:
		}

		if temperature < 45 {
			temperature += 0.25
			pressure += 0.3
		}
	}
}
