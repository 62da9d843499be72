package tirelog

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/stretchr/testify/assert"
)

// sentence adds the leading $ and checksum to an NMEA body.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, sum)
}

type pipePort struct {
	*io.PipeReader
	w      *io.PipeWriter
	closes int32
}

func (p *pipePort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *pipePort) Close() error {
	atomic.AddInt32(&p.closes, 1)
	_ = p.w.Close()
	return p.PipeReader.Close()
}

func TestNMEAHandleLine(t *testing.T) {
	tl := NewTireLog(nil)
	n := NewNMEAGPS("/dev/ttyUSB0", 9600, tl.Locations()).(*nmeaRetryable)

	n.handleLine(sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	assertNoFix(t, tl.locationChan, "GGA should not produce a fix")

	n.handleLine(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	fix := <-tl.locationChan
	assert.InDelta(t, 48.1173, fix.Sample.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, fix.Sample.Longitude, 1e-6)
	assert.InDelta(t, 545.4, fix.Sample.Elevation, 1e-9)
	assert.InDelta(t, 4.5, fix.Sample.HorizontalAccuracy, 1e-9)
	assert.InDelta(t, 22.4*metersPerSecondPerKnot, fix.Sample.Speed, 1e-9)
	assert.InDelta(t, 84.4, fix.Sample.Course, 1e-9)
	assert.Equal(t, -1.0, fix.Sample.VerticalAccuracy)
	assert.Equal(t, -1.0, fix.Sample.CourseAccuracy)

	// GST accuracy takes precedence over HDOP
	n.handleLine(sentence("GPGST,172814.0,0.006,0.023,0.020,273.6,0.030,0.040,0.031"))
	n.handleLine(sentence("GPGGA,123520,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	n.handleLine(sentence("GPRMC,123520,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	fix = <-tl.locationChan
	assert.InDelta(t, math.Hypot(0.030, 0.040), fix.Sample.HorizontalAccuracy, 1e-9)
	assert.InDelta(t, 0.031, fix.Sample.VerticalAccuracy, 1e-9)
}

func TestParseGST(t *testing.T) {
	n := NewNMEAGPS("/dev/ttyUSB0", 9600, nil).(*nmeaRetryable)

	s, err := n.parser.Parse(sentence("GNGST,172814.0,0.006,0.023,0.020,273.6,0.030,0.040,0.031"))
	assert.NoError(t, err)
	m, ok := s.(gst)
	assert.True(t, ok)
	assert.Equal(t, "GN", m.TalkerID())
	assert.Equal(t, 0.006, m.RMS)
	assert.Equal(t, 0.030, m.LatitudeError)
	assert.Equal(t, 0.040, m.LongitudeError)
	assert.Equal(t, 0.031, m.HeightError)

	_, err = n.parser.Parse(sentence("GPGST,172814.0,0.006,0.023,0.020,273.6,0.030"))
	assert.Error(t, err, "missing fields")
	_, err = n.parser.Parse(sentence("GPGST,172814.0,0.006,0.023,0.020,273.6,x,0.040,0.031"))
	assert.Error(t, err)
}

func TestNMEAIgnoresNoise(t *testing.T) {
	tl := NewTireLog(nil)
	n := NewNMEAGPS("/dev/ttyUSB0", 9600, tl.Locations()).(*nmeaRetryable)

	n.handleLine("")
	n.handleLine("garbage")
	n.handleLine("$GPRMC,123519,A,4807.038,N*00")
	// void fix
	n.handleLine(sentence("GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	assertNoFix(t, tl.locationChan, "no fix expected")
}

func TestRunNMEA(t *testing.T) {
	tl := NewTireLog(nil)

	pr, pw := io.Pipe()
	port := &pipePort{PipeReader: pr, w: pw}

	origSerialOpen := serialOpen
	defer func() {
		serialOpen = origSerialOpen
	}()
	serialOpen = func(opts serial.OpenOptions) (SerialPort, error) {
		assert.Equal(t, "/dev/ttyUSB0", opts.PortName)
		assert.Equal(t, uint(9600), opts.BaudRate)
		return port, nil
	}

	n := NewNMEAGPS("/dev/ttyUSB0", 9600, tl.Locations())
	assert.NoError(t, n.Close())
	assert.NoError(t, n.Open())

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	var startErr error
	go func() {
		startErr = n.Start(ctx)
		wg.Done()
	}()

	_, err := io.WriteString(pw, sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	assert.NoError(t, err)
	fix := <-tl.locationChan
	assert.InDelta(t, 48.1173, fix.Sample.Latitude, 1e-6)

	cancel()
	wg.Wait()
	assert.Equal(t, context.Canceled, startErr)

	// the port was already closed to unblock the reader
	assert.NoError(t, n.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&port.closes))
	assert.Error(t, n.Start(context.Background()), "not open")
}
