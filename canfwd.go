package tirelog

import (
	"time"

	"github.com/jd3nn1s/tirelog/tirecan"
	"github.com/jd3nn1s/tirelog/tpms"
	"github.com/pkg/errors"
)

// CANForwarder broadcasts a frame per tire whenever the slot changes.
type CANForwarder struct {
	canBus *CANBusRetryable
	prev   [tpms.SlotCount]tirecan.TireFrame
	sent   [tpms.SlotCount]bool
}

func NewCANForwarder(bus *CANBusRetryable) *CANForwarder {
	return &CANForwarder{canBus: bus}
}

func (fwd *CANForwarder) Forward(rec *Record) error {
	for i, tire := range rec.Tires {
		tf := tireFrame(i, tire)
		if fwd.sent[i] && fwd.prev[i] == tf {
			continue
		}
		canBus := fwd.canBus.CANBus()
		if canBus == nil {
			return errors.New("canbus is not initialized")
		}
		if err := canBus.SendTire(tf); err != nil {
			return errors.Wrapf(err, "unable to send tire %d to CAN bus", i)
		}
		fwd.prev[i] = tf
		fwd.sent[i] = true
	}
	return nil
}

// tireFrame drops sub-second elapsed time so an idle slot is only resent
// once a second.
func tireFrame(slot int, tire Tire) tirecan.TireFrame {
	tf := tirecan.TireFrame{
		Slot:          slot,
		SinceLastTick: tire.SinceLastTick.Truncate(time.Second),
	}
	switch psi := tire.PressurePSI(); psi.State {
	case Fresh:
		tf.Flags |= tirecan.FlagPressureFresh
		tf.PressurePSI = psi.Value
	case Stale:
		tf.Flags |= tirecan.FlagPressureStale
		tf.PressurePSI = psi.Value
	}
	switch c := tire.TemperatureC; c.State {
	case Fresh:
		tf.Flags |= tirecan.FlagTemperatureFresh
		tf.TemperatureC = c.Value
	case Stale:
		tf.Flags |= tirecan.FlagTemperatureStale
		tf.TemperatureC = c.Value
	}
	return tf
}
