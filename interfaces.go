package tirelog

import (
	"context"
	"io"

	"github.com/jd3nn1s/skytraq"
	"github.com/jd3nn1s/tirelog/tirecan"
	"tinygo.org/x/bluetooth"
)

type GPS interface {
	Close() error
	Start(context.Context, skytraq.Callbacks) error
}

type CANBus interface {
	Close() error
	Start(context.Context) error
	SendTire(tirecan.TireFrame) error
}

// BLEAdapter is the part of *bluetooth.Adapter used for scanning.
type BLEAdapter interface {
	Enable() error
	Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// ScanController is polled by the event loop to keep scanning alive.
type ScanController interface {
	State() TransportState
	Scanning() bool
	StartScan() error
}

type Forwarder interface {
	Forward(rec *Record) error
}

// Sink is the durable destination for record rows.
type Sink interface {
	Create(header []string) error
	Append(row []string) error
}

type SerialPort interface {
	io.ReadWriteCloser
}
