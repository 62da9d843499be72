package tirelog

import (
	"bufio"
	"context"
	"math"
	"strings"
	"sync"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const metersPerSecondPerKnot = 0.514444

// to allow testing
var serialOpen = func(opts serial.OpenOptions) (SerialPort, error) {
	return serial.Open(opts)
}

// gst is the GNSS pseudorange error statistics sentence, which go-nmea does
// not parse itself.
type gst struct {
	nmea.BaseSentence
	RMS            float64
	LatitudeError  float64
	LongitudeError float64
	HeightError    float64
}

func parseGST(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	p.AssertType("GST")
	m := gst{
		BaseSentence:   s,
		RMS:            p.Float64(1, "range rms"),
		LatitudeError:  p.Float64(5, "latitude error"),
		LongitudeError: p.Float64(6, "longitude error"),
		HeightError:    p.Float64(7, "height error"),
	}
	return m, p.Err()
}

// nmeaRetryable reads NMEA sentences from a serial GPS. RMC sentences
// produce fixes; GGA and GST fill in elevation and accuracy.
type nmeaRetryable struct {
	port     string
	baud     uint
	sendChan chan<- LocationFix
	parser   nmea.SentenceParser

	mu sync.Mutex
	c  SerialPort

	current LocationSample
	haveGST bool
}

func NewNMEAGPS(port string, baud uint, sendChan chan<- LocationFix) Retryable {
	return &nmeaRetryable{
		port:     port,
		baud:     baud,
		sendChan: sendChan,
		parser: nmea.SentenceParser{
			CustomParsers: map[string]nmea.ParserFunc{"GST": parseGST},
		},
		current: unknownAccuracy(),
	}
}

func unknownAccuracy() LocationSample {
	return LocationSample{
		HorizontalAccuracy: -1,
		VerticalAccuracy:   -1,
		SpeedAccuracy:      -1,
		CourseAccuracy:     -1,
	}
}

func (n *nmeaRetryable) Name() string {
	return "nmea"
}

func (n *nmeaRetryable) Open() error {
	c, err := serialOpen(serial.OpenOptions{
		PortName:        n.port,
		BaudRate:        n.baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return errors.Wrapf(err, "unable to open %s", n.port)
	}
	n.mu.Lock()
	n.c = c
	n.mu.Unlock()
	log.WithField("port", n.port).WithField("baud", n.baud).Info("gps serial port opened")
	return nil
}

func (n *nmeaRetryable) Close() error {
	n.mu.Lock()
	c := n.c
	n.c = nil
	n.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

func (n *nmeaRetryable) Start(ctx context.Context) error {
	n.mu.Lock()
	c := n.c
	n.mu.Unlock()
	if c == nil {
		return errors.New("gps serial port not open")
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblock the reader
			if err := n.Close(); err != nil {
				log.WithField("err", err).Warn("unable to close gps serial port")
			}
		case <-done:
		}
	}()

	reader := bufio.NewReader(c)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "gps read")
		}
		n.handleLine(line)
	}
}

func (n *nmeaRetryable) handleLine(line string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return
	}
	sentence, err := n.parser.Parse(line)
	if err != nil {
		log.WithField("err", err).Debug("unable to parse NMEA sentence")
		return
	}

	switch m := sentence.(type) {
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return
		}
		n.current.Elevation = m.Altitude
		if !n.haveGST {
			n.current.HorizontalAccuracy = m.HDOP * userRangeErrorM
		}
	case gst:
		n.haveGST = true
		n.current.HorizontalAccuracy = math.Hypot(m.LatitudeError, m.LongitudeError)
		n.current.VerticalAccuracy = m.HeightError
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			log.Warnf("no satellite fix")
			return
		}
		n.current.Latitude = m.Latitude
		n.current.Longitude = m.Longitude
		n.current.Speed = m.Speed * metersPerSecondPerKnot
		n.current.Course = m.Course

		select {
		case n.sendChan <- LocationFix{Sample: n.current, At: timeNow()}:
		default:
		}
	}
}
