package tirecan

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FrameBase is the CAN id of the front left tire. The other slots follow
// in order.
const FrameBase uint32 = 0x110

const frameLength = 6

// Flags describe which values in a TireFrame are usable.
const (
	FlagPressureFresh uint8 = 1 << iota
	FlagPressureStale
	FlagTemperatureFresh
	FlagTemperatureStale
)

// TireFrame is one slot as broadcast on the bus.
//
//	bytes 0-1  pressure, 0.01 psi, unsigned little endian
//	bytes 2-3  temperature, 0.1 °C, signed little endian
//	byte  4    flags
//	byte  5    seconds since the last reading, saturating at 255
type TireFrame struct {
	Slot          int
	PressurePSI   float64
	TemperatureC  float64
	Flags         uint8
	SinceLastTick time.Duration
}

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

type Connection struct {
	bus CANBus
}

// to allow testing
var newBus = func(portName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(portName)
}

func Connect(portName string) (*Connection, error) {
	bus, err := newBus(portName)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		bus: bus,
	}
	return c, nil
}

// Start runs the bus until ctx is done or the bus fails.
func (c *Connection) Start(ctx context.Context) error {
	c.bus.SubscribeFunc(c.handleFrame)
	log.Info("CAN bus opened")

	go func() {
		<-ctx.Done()
		log.Infof("stopping can bus: %v", ctx.Err())
		if err := c.bus.Disconnect(); err != nil {
			log.WithField("err", err).Warn("unable to disconnect canbus after context")
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

func (c *Connection) SendTire(tf TireFrame) error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	frame, err := Encode(tf)
	if err != nil {
		return err
	}
	log.WithField("slot", tf.Slot).
		WithField("flags", tf.Flags).
		Debug("sending tire over canbus")
	return c.bus.Publish(frame)
}

// handleFrame logs tire frames published by other nodes.
func (c *Connection) handleFrame(frame can.Frame) {
	tf, err := Decode(frame)
	if err != nil {
		return
	}
	log.WithField("canID", frame.ID).
		WithField("slot", tf.Slot).
		Debug("received tire frame")
}

func Encode(tf TireFrame) (can.Frame, error) {
	if tf.Slot < 0 || tf.Slot > 3 {
		return can.Frame{}, errors.Errorf("invalid tire slot %d", tf.Slot)
	}
	frame := can.Frame{
		ID:     FrameBase + uint32(tf.Slot),
		Length: frameLength,
	}
	binary.LittleEndian.PutUint16(frame.Data[0:2], uint16(clamp(tf.PressurePSI*100, 0, math.MaxUint16)))
	binary.LittleEndian.PutUint16(frame.Data[2:4], uint16(int16(clamp(tf.TemperatureC*10, math.MinInt16, math.MaxInt16))))
	frame.Data[4] = tf.Flags
	frame.Data[5] = uint8(clamp(tf.SinceLastTick.Seconds(), 0, math.MaxUint8))
	return frame, nil
}

func Decode(frame can.Frame) (TireFrame, error) {
	if frame.ID < FrameBase || frame.ID > FrameBase+3 {
		return TireFrame{}, errors.Errorf("not a tire frame: %#x", frame.ID)
	}
	if frame.Length != frameLength {
		return TireFrame{}, errors.Errorf("incorrect frame size for tire: %v", frame.Length)
	}
	return TireFrame{
		Slot:          int(frame.ID - FrameBase),
		PressurePSI:   float64(binary.LittleEndian.Uint16(frame.Data[0:2])) / 100,
		TemperatureC:  float64(int16(binary.LittleEndian.Uint16(frame.Data[2:4]))) / 10,
		Flags:         frame.Data[4],
		SinceLastTick: time.Duration(frame.Data[5]) * time.Second,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Round(math.Max(lo, math.Min(hi, v)))
}
