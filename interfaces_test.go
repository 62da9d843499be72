package tirelog

import (
	"context"
	"sync"

	"github.com/jd3nn1s/skytraq"
	"github.com/jd3nn1s/tirelog/tirecan"
	"tinygo.org/x/bluetooth"
)

type sensorStub struct {
	startChan chan struct{}
	errChan   chan error
	fnChan    chan func()
}

type skytraqStub struct {
	sensorStub
	callbacks skytraq.Callbacks
}

func createSensorStub() *sensorStub {
	ret := sensorStub{
		startChan: make(chan struct{}, 1),
		errChan:   make(chan error),
		fnChan:    make(chan func()),
	}
	return &ret
}

func (s *sensorStub) Close() error {
	return nil
}

func (s *sensorStub) start(ctx context.Context) error {
	select {
	case s.startChan <- struct{}{}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errChan:
			return err
		case fn := <-s.fnChan:
			fn()
		}
	}
}

func createGPSStub() *skytraqStub {
	return &skytraqStub{
		sensorStub: *createSensorStub(),
	}
}

func (k *skytraqStub) Start(ctx context.Context, callbacks skytraq.Callbacks) error {
	k.callbacks = callbacks
	return k.sensorStub.start(ctx)
}

type adapterStub struct {
	mu        sync.Mutex
	enableErr error
	scanCalls int
	stopCalls int
	scanChan  chan struct{}
	stopChan  chan error
}

func createAdapterStub() *adapterStub {
	return &adapterStub{
		scanChan: make(chan struct{}, 4),
		stopChan: make(chan error, 4),
	}
}

func (a *adapterStub) Enable() error {
	return a.enableErr
}

func (a *adapterStub) Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	a.mu.Lock()
	a.scanCalls++
	a.mu.Unlock()
	a.scanChan <- struct{}{}
	return <-a.stopChan
}

func (a *adapterStub) StopScan() error {
	a.mu.Lock()
	a.stopCalls++
	a.mu.Unlock()
	a.stopChan <- nil
	return nil
}

func (a *adapterStub) calls() (scan, stop int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanCalls, a.stopCalls
}

type forwarderStub struct {
	records []*Record
	err     error
}

func (fwd *forwarderStub) Forward(rec *Record) error {
	fwd.records = append(fwd.records, rec)
	return fwd.err
}

type sinkStub struct {
	header    []string
	rows      [][]string
	creates   int
	createErr error
	appendErr error
}

func (s *sinkStub) Create(header []string) error {
	s.creates++
	s.header = header
	return s.createErr
}

func (s *sinkStub) Append(row []string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, row)
	return nil
}

type canBusStub struct {
	sensorStub
	sent    []tirecan.TireFrame
	sendErr error
	closed  bool
}

func createCANBusStub() *canBusStub {
	return &canBusStub{
		sensorStub: *createSensorStub(),
	}
}

func (c *canBusStub) Start(ctx context.Context) error {
	return c.sensorStub.start(ctx)
}

func (c *canBusStub) Close() error {
	c.closed = true
	return nil
}

func (c *canBusStub) SendTire(tf tirecan.TireFrame) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, tf)
	return nil
}
