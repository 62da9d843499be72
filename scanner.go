package tirelog

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/jd3nn1s/tirelog/metrics"
	"github.com/jd3nn1s/tirelog/tpms"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// TransportState is the power state reported by the wireless transport.
type TransportState int

const (
	TransportUnknown TransportState = iota
	PoweredOff
	PoweredOn
)

func (s TransportState) String() string {
	switch s {
	case PoweredOff:
		return "poweredOff"
	case PoweredOn:
		return "poweredOn"
	}
	return "unknown"
}

// to allow testing
var bleAdapter = func() BLEAdapter {
	return bluetooth.DefaultAdapter
}

// BLEScanner delivers sensor advertisements from the default Bluetooth
// adapter. It is both a Retryable source and the ScanController polled by
// the event loop.
type BLEScanner struct {
	sendChan chan<- Advertisement
	service  bluetooth.UUID
	metrics  *metrics.Metrics

	mu       sync.Mutex
	adapter  BLEAdapter
	state    TransportState
	scanning bool
	errChan  chan error
}

func NewBLEScanner(sendChan chan<- Advertisement, m *metrics.Metrics) *BLEScanner {
	return &BLEScanner{
		sendChan: sendChan,
		service:  bluetooth.New16BitUUID(tpms.ServiceUUID),
		metrics:  m,
		errChan:  make(chan error, 1),
	}
}

func (s *BLEScanner) Name() string {
	return "ble"
}

func (s *BLEScanner) Open() error {
	adapter := bleAdapter()
	err := adapter.Enable()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter = adapter
	if err != nil {
		s.state = PoweredOff
		return errors.Wrap(err, "unable to enable bluetooth adapter")
	}
	s.state = PoweredOn
	log.WithField("state", s.state).Debug("bluetooth adapter enabled")
	return nil
}

func (s *BLEScanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return nil
	}
	var err error
	if s.scanning {
		err = s.adapter.StopScan()
	}
	s.state = PoweredOff
	return err
}

// Start scans until the scan fails or ctx is done.
func (s *BLEScanner) Start(ctx context.Context) error {
	if err := s.StartScan(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-s.errChan:
		return err
	}
}

func (s *BLEScanner) State() TransportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *BLEScanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// StartScan begins scanning if the adapter is powered on and idle. Calling
// it while a scan is running does nothing.
func (s *BLEScanner) StartScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != PoweredOn || s.scanning {
		return nil
	}
	s.scanning = true
	go s.scan(s.adapter)
	log.Debug("scanning for tire sensors")
	return nil
}

func (s *BLEScanner) scan(adapter BLEAdapter) {
	err := adapter.Scan(s.onScanResult)

	s.mu.Lock()
	s.scanning = false
	s.mu.Unlock()

	if err != nil {
		select {
		case s.errChan <- errors.Wrap(err, "scan failed"):
		default:
		}
	}
}

func (s *BLEScanner) onScanResult(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
	if !result.HasServiceUUID(s.service) {
		return
	}
	s.handle(result.LocalName(), result.Address.String(), result.ManufacturerData())
}

func (s *BLEScanner) handle(name, address string, mfr []bluetooth.ManufacturerDataElement) {
	adv := Advertisement{
		Name:    name,
		Address: address,
	}
	if len(mfr) > 0 {
		adv.Payload = manufacturerPayload(mfr[0])
	}
	select {
	case s.sendChan <- adv:
	default:
		s.metrics.Dropped(metrics.ReasonBackpressure)
	}
}

// manufacturerPayload rebuilds the payload as broadcast, with the company
// identifier in the first two bytes.
func manufacturerPayload(el bluetooth.ManufacturerDataElement) []byte {
	payload := make([]byte, 2+len(el.Data))
	binary.LittleEndian.PutUint16(payload, el.CompanyID)
	copy(payload[2:], el.Data)
	return payload
}
