package forwarder

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/jd3nn1s/tirelog"
	"github.com/pkg/errors"
)

type Header struct {
	Type uint8
}

const (
	TypeRecord = 1
)

// TirePacket is the wire form of one slot. States use tirelog.ReadingState
// values.
type TirePacket struct {
	PressureKPa       float32
	TemperatureC      float32
	PressureState     uint8
	TemperatureState  uint8
	SinceLastTickMsec uint32
}

type RecordPacket struct {
	TimestampMsec int64

	Latitude           float64
	Longitude          float64
	HorizontalAccuracy float32
	Elevation          float32
	VerticalAccuracy   float32
	Speed              float32
	SpeedAccuracy      float32
	Course             float32
	CourseAccuracy     float32
	SpeedUnknown       uint8
	HaveTire           uint8

	Tires [4]TirePacket
}

var maxRecordSize = int(unsafe.Sizeof(Header{}) + unsafe.Sizeof(RecordPacket{}))

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func NewRecordPacket(rec *tirelog.Record) *RecordPacket {
	loc := rec.Location
	p := &RecordPacket{
		TimestampMsec:      rec.Timestamp.UnixNano() / 1e6,
		Latitude:           loc.Latitude,
		Longitude:          loc.Longitude,
		HorizontalAccuracy: float32(loc.HorizontalAccuracy),
		Elevation:          float32(loc.Elevation),
		VerticalAccuracy:   float32(loc.VerticalAccuracy),
		Speed:              float32(loc.Speed),
		SpeedAccuracy:      float32(loc.SpeedAccuracy),
		Course:             float32(loc.Course),
		CourseAccuracy:     float32(loc.CourseAccuracy),
		SpeedUnknown:       boolByte(rec.SpeedUnknown),
		HaveTire:           boolByte(rec.HaveTire),
	}
	for i, tire := range rec.Tires {
		p.Tires[i] = TirePacket{
			PressureKPa:       float32(tire.PressureKPa.Value),
			TemperatureC:      float32(tire.TemperatureC.Value),
			PressureState:     uint8(tire.PressureKPa.State),
			TemperatureState:  uint8(tire.TemperatureC.State),
			SinceLastTickMsec: uint32(tire.SinceLastTick.Milliseconds()),
		}
	}
	return p
}

// MarshalBinary writes the header followed by the packet, little endian.
func (p *RecordPacket) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, maxRecordSize))
	hdr := Header{
		Type: TypeRecord,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "unable to write packet header")
	}
	if err := binary.Write(buf, binary.LittleEndian, p); err != nil {
		return nil, errors.Wrap(err, "unable to write record packet")
	}
	return buf.Bytes(), nil
}
