package tpms

import (
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

// SlotCount is the number of sensor positions on the vehicle.
const SlotCount = 4

const (
	offsetPressure    = 8
	offsetTemperature = 12
	minPayloadSize    = 16

	pressureDivisor    = 1000.0
	temperatureDivisor = 100.0
)

// ServiceUUID is the 16-bit service the sensors advertise.
const ServiceUUID uint16 = 0xFBB0

var (
	ErrMalformedPayload   = errors.New("manufacturer payload too short")
	ErrUnrecognizedSource = errors.New("advertisement is not from a known sensor")
	ErrNoisyZeroTick      = errors.New("all-zero sensor reading")
)

// slot prefixes, tested in order
var slotPrefixes = [SlotCount]string{"TPMS1", "TPMS2", "TPMS3", "TPMS4"}

// Tick is one accepted reading from a single advertisement.
type Tick struct {
	Slot         int
	PressureKPa  float64
	TemperatureC float64
}

// SlotNames are the conventional positions for slots 0..3.
var SlotNames = [SlotCount]string{"fl", "fr", "rl", "rr"}

// ResolveSlot maps a broadcast name onto a slot index.
func ResolveSlot(name string) (int, error) {
	for i, prefix := range slotPrefixes {
		if strings.HasPrefix(name, prefix) {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrUnrecognizedSource, "name %q", name)
}

// Values reads the raw pressure (kPa) and temperature (°C) from a manufacturer payload.
func Values(payload []byte) (pressureKPa, temperatureC float64, err error) {
	if len(payload) < minPayloadSize {
		return 0, 0, errors.Wrapf(ErrMalformedPayload, "got %d bytes, need %d", len(payload), minPayloadSize)
	}
	pressure := binary.LittleEndian.Uint32(payload[offsetPressure : offsetPressure+4])
	temperature := binary.LittleEndian.Uint32(payload[offsetTemperature : offsetTemperature+4])
	return float64(pressure) / pressureDivisor, float64(temperature) / temperatureDivisor, nil
}

// Decode resolves the slot and reads the values of an advertisement. All-zero
// readings are rejected with ErrNoisyZeroTick.
func Decode(payload []byte, name string) (Tick, error) {
	slot, err := ResolveSlot(name)
	if err != nil {
		return Tick{}, err
	}
	pressure, temperature, err := Values(payload)
	if err != nil {
		return Tick{}, err
	}
	if pressure == 0 && temperature == 0 {
		return Tick{}, errors.Wrapf(ErrNoisyZeroTick, "slot %d", slot)
	}
	return Tick{
		Slot:         slot,
		PressureKPa:  pressure,
		TemperatureC: temperature,
	}, nil
}

// Encode builds a payload Decode would read back as pressure and temperature.
// It is used by test mode to synthesize advertisements.
func Encode(pressureKPa, temperatureC float64) []byte {
	buf := make([]byte, minPayloadSize+2)
	binary.LittleEndian.PutUint32(buf[offsetPressure:], uint32(pressureKPa*pressureDivisor+0.5))
	binary.LittleEndian.PutUint32(buf[offsetTemperature:], uint32(temperatureC*temperatureDivisor+0.5))
	return buf
}
