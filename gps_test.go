package tirelog

import (
	"context"
	"sync"
	"testing"

	"github.com/jd3nn1s/skytraq"
	"github.com/stretchr/testify/assert"
)

func TestRunGPS(t *testing.T) {
	tl := NewTireLog(nil)

	origGPSConnect := gpsConnect
	defer func() {
		gpsConnect = origGPSConnect
	}()

	stub := createGPSStub()
	gpsConnect = func(p string) (GPS, error) {
		assert.Equal(t, "/dev/gps", p)
		return stub, nil
	}

	gps := NewSkyTraqGPS("/dev/gps", tl.Locations())

	// close before opening
	assert.NoError(t, gps.Close())
	assert.NoError(t, gps.Open())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		_ = gps.Start(ctx)
		wg.Done()
	}()
	<-stub.startChan

	stub.fnChan <- func() {
		stub.callbacks.SoftwareVersion(skytraq.SoftwareVersion{
			Kernel:   skytraq.Version{1, 2, 3},
			ODM:      skytraq.Version{4, 5, 6},
			Revision: skytraq.Version{7, 8, 9},
		})
	}

	stub.fnChan <- func() {
		stub.callbacks.NavData(skytraq.NavData{
			Fix:       skytraq.Fix3D,
			Latitude:  375000000,
			Longitude: 1220000000,
			Altitude:  1234,
			VX:        300,
			VY:        400,
			HDOP:      120,
		})
	}

	fix := <-tl.locationChan
	assert.InDelta(t, 37.5, fix.Sample.Latitude, 1e-9)
	assert.InDelta(t, 122.0, fix.Sample.Longitude, 1e-9)

	cancel()
	wg.Wait()
}

func TestNavDataFn(t *testing.T) {
	tl := NewTireLog(nil)
	gps := &gpsRetryable{
		sendChan: tl.Locations(),
	}

	navData := skytraq.NavData{
		Fix:            skytraq.FixNone,
		SatelliteCount: 1,
		Latitude:       375000000,
		Longitude:      1220000000,
		Altitude:       1234,
		VX:             300,
		VY:             400,
		VZ:             8,
		HDOP:           120,
	}

	gps.navDataFn(navData)
	assertNoFix(t, tl.locationChan, "unexpected data on channel as there is no fix")

	navData.Fix = skytraq.Fix3D
	gps.navDataFn(navData)
	fix := <-tl.locationChan
	assert.InDelta(t, 37.5, fix.Sample.Latitude, 1e-9)
	assert.InDelta(t, 122.0, fix.Sample.Longitude, 1e-9)
	assert.InDelta(t, 12.34, fix.Sample.Elevation, 1e-9)
	assert.InDelta(t, 5.0, fix.Sample.Speed, 1e-9)
	assert.InDelta(t, 36.86989764584402, fix.Sample.Course, 1e-9)
	assert.InDelta(t, 6.0, fix.Sample.HorizontalAccuracy, 1e-9)
	assert.Equal(t, -1.0, fix.Sample.SpeedAccuracy)

	navData.HDOP = maxHDOP + 1
	gps.navDataFn(navData)
	assertNoFix(t, tl.locationChan, "unexpected data on channel as there is high HDOP")

	// no VY or VX should return 0 course
	navData.HDOP = 0
	navData.VY = 0
	navData.VX = 0
	gps.navDataFn(navData)
	fix = <-tl.locationChan
	assert.Equal(t, float64(0), fix.Sample.Course)
	assert.Equal(t, float64(0), fix.Sample.Speed)
}

func assertNoFix(t *testing.T, ch <-chan LocationFix, msg string) {
	select {
	case <-ch:
		assert.Fail(t, msg)
	default:
	}
}
