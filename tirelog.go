package tirelog

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jd3nn1s/tirelog/metrics"
	"github.com/jd3nn1s/tirelog/tpms"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const channelBufferSize = 16

// to allow testing
var timeNow = time.Now

// LocationFix is a location sample with the time it was delivered.
type LocationFix struct {
	Sample LocationSample
	At     time.Time
}

// TireLog merges location fixes and sensor advertisements into records on a
// single goroutine. Sources deliver to its channels and never touch State.
type TireLog struct {
	Record *Record

	locationChan chan LocationFix
	advertChan   chan Advertisement

	state      *State
	emitter    *Emitter
	forwarders []namedForwarder
	sources    []Retryable
	scanner    ScanController
	metrics    *metrics.Metrics
	session    string
	testMode   bool
	logRows    bool
}

type namedForwarder struct {
	name string
	fwd  Forwarder
}

func NewTireLog(emitter *Emitter) *TireLog {
	return &TireLog{
		locationChan: make(chan LocationFix, channelBufferSize),
		advertChan:   make(chan Advertisement, channelBufferSize),
		state:        NewState(timeNow()),
		emitter:      emitter,
	}
}

func (tl *TireLog) AddForwarder(name string, fwd Forwarder) {
	tl.forwarders = append(tl.forwarders, namedForwarder{name: name, fwd: fwd})
}

// AddSource registers a source to be run with reconnects by Start.
func (tl *TireLog) AddSource(r Retryable) {
	tl.sources = append(tl.sources, r)
}

// SetScanner registers the transport that is polled every cycle.
func (tl *TireLog) SetScanner(s ScanController) {
	tl.scanner = s
}

func (tl *TireLog) SetMetrics(m *metrics.Metrics) {
	tl.metrics = m
}

func (tl *TireLog) SetSession(id string) {
	tl.session = id
}

func (tl *TireLog) SetTestMode(enabled bool) {
	tl.testMode = enabled
}

// SetLogRows enables a debug log line with the row of every cycle.
func (tl *TireLog) SetLogRows(enabled bool) {
	tl.logRows = enabled
}

// Locations is where location sources deliver fixes.
func (tl *TireLog) Locations() chan<- LocationFix {
	return tl.locationChan
}

// Advertisements is where the scanner delivers raw advertisements.
func (tl *TireLog) Advertisements() chan<- Advertisement {
	return tl.advertChan
}

// Start runs the sources in the background.
func (tl *TireLog) Start(ctx context.Context) {
	if tl.testMode {
		tl.runTestMode(ctx)
		return
	}
	for _, src := range tl.sources {
		go func(src Retryable) {
			if err := retry(ctx, src, tl.metrics); err != nil {
				log.Infof("%s done: %v", src.Name(), err)
			}
		}(src)
	}
}

// Run processes events until ctx is done.
func (tl *TireLog) Run(ctx context.Context) error {
	for {
		changed, err := tl.CheckChannels(ctx)
		if err != nil {
			return err
		}
		if changed {
			tl.TelemetryUpdate()
		}
	}
}

// CheckChannels waits for one event and applies it. It reports whether the
// event produced a new Record.
func (tl *TireLog) CheckChannels(ctx context.Context) (changed bool, err error) {
	select {
	case fix := <-tl.locationChan:
		tl.metrics.LocationFix()
		tl.state.ApplyLocation(fix.Sample, fix.At)
	case adv := <-tl.advertChan:
		if !tl.applyAdvertisement(adv) {
			return false, nil
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}

	now := timeNow()
	tl.Record = Aggregate(tl.state, now)
	tl.Record.Session = tl.session
	for i, tire := range tl.Record.Tires {
		if tire.HasValue() {
			tl.metrics.SinceLastTick(tpms.SlotNames[i], tire.SinceLastTick.Seconds())
		}
	}
	return true, nil
}

func (tl *TireLog) applyAdvertisement(adv Advertisement) bool {
	tl.metrics.Advertisement()
	log.WithFields(log.Fields{
		"name":    adv.Name,
		"address": adv.Address,
		"payload": hex.EncodeToString(adv.Payload),
	}).Debug("advertisement")

	tick, err := tpms.Decode(adv.Payload, adv.Name)
	if err != nil {
		switch errors.Cause(err) {
		case tpms.ErrUnrecognizedSource:
			tl.metrics.Dropped(metrics.ReasonUnrecognized)
		case tpms.ErrMalformedPayload:
			tl.metrics.Dropped(metrics.ReasonMalformed)
			log.WithField("name", adv.Name).Warn(err)
		case tpms.ErrNoisyZeroTick:
			tl.metrics.Dropped(metrics.ReasonZeroTick)
		}
		log.WithField("err", err).Debug("dropping advertisement")
		return false
	}
	tl.metrics.Tick(tpms.SlotNames[tick.Slot])
	tl.state.ApplyTick(tick, timeNow())
	return true
}

// TelemetryUpdate emits the latest record to the sink and forwarders and
// restarts scanning if the transport has gone idle.
func (tl *TireLog) TelemetryUpdate() {
	rec := tl.Record
	if rec == nil {
		return
	}
	if tl.logRows {
		log.Debug(strings.Join(rec.Row(), ","))
	}

	if tl.emitter != nil {
		written, err := tl.emitter.Emit(rec, tl.state.EverSawTireData)
		tl.metrics.Record(written, err)
	}

	for _, f := range tl.forwarders {
		if err := f.fwd.Forward(rec); err != nil {
			tl.metrics.ForwardError(f.name)
			log.WithField("err", err).Errorf("%s: unable to forward record", f.name)
		}
	}

	tl.ensureScanning()
}

func (tl *TireLog) ensureScanning() {
	if tl.scanner == nil {
		return
	}
	if tl.scanner.State() == PoweredOn && !tl.scanner.Scanning() {
		if err := tl.scanner.StartScan(); err != nil {
			log.WithField("err", err).Warn("unable to restart scanning")
		}
	}
}

// EverSawTireData reports whether any sensor reading has been accepted.
func (tl *TireLog) EverSawTireData() bool {
	return tl.state.EverSawTireData
}
