package tirelog

import (
	"context"
	"sync"

	"github.com/jd3nn1s/tirelog/tirecan"
	"github.com/pkg/errors"
)

// to allow testing
var canBusConnect = func(p string) (CANBus, error) {
	return tirecan.Connect(p)
}

// CANBusRetryable keeps the CAN output bus connected. The connection is
// shared with CANForwarder, which only sends while it is up.
type CANBusRetryable struct {
	portName string

	mu sync.Mutex
	c  CANBus
}

func NewCANBus(portName string) *CANBusRetryable {
	return &CANBusRetryable{portName: portName}
}

func (bus *CANBusRetryable) Open() error {
	c, err := canBusConnect(bus.portName)
	if err != nil {
		return err
	}
	bus.mu.Lock()
	bus.c = c
	bus.mu.Unlock()
	return nil
}

func (bus *CANBusRetryable) Close() error {
	bus.mu.Lock()
	c := bus.c
	bus.c = nil
	bus.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

func (bus *CANBusRetryable) Start(ctx context.Context) error {
	c := bus.CANBus()
	if c == nil {
		return errors.New("canbus not connected")
	}
	return c.Start(ctx)
}

func (bus *CANBusRetryable) Name() string {
	return "canbus"
}

// CANBus returns the current connection, or nil while disconnected.
func (bus *CANBusRetryable) CANBus() CANBus {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return bus.c
}
