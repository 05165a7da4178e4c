package sensord

import "context"

// Source identifies the chip that produced an event.
type Source int16

// Source values follow the numbering of the sensor event schema.
const (
	SourceAndroid    Source = 0
	SourceLSM6DS3    Source = 5
	SourceBMP280     Source = 6
	SourceMMC3416X   Source = 7
	SourceBMX055     Source = 8
	SourceLSM6DS3TRC Source = 10
)

func (s Source) String() string {
	switch s {
	case SourceLSM6DS3:
		return "lsm6ds3"
	case SourceLSM6DS3TRC:
		return "lsm6ds3trc"
	case SourceBMP280:
		return "bmp280"
	case SourceMMC3416X:
		return "mmc3416x"
	case SourceBMX055:
		return "bmx055"
	default:
		return "android"
	}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Android sensor identifiers carried by events.
const (
	SensorGyroUncalibrated    int32 = 5
	TypeGyroscopeUncalibrated int32 = 16
)

const EventVersion int32 = 2

// StatusValid marks a sample the driver considers trustworthy.
const StatusValid int8 = 1

// SensorVector is a three axis measurement.
type SensorVector struct {
	V      [3]float64 `json:"v" yaml:"v"`
	Status int8       `json:"status" yaml:"status"`
}

// Event is a single timestamped measurement. Timestamp is in monotonic nanoseconds.
type Event struct {
	Version          int32         `json:"version" yaml:"version"`
	Sensor           int32         `json:"sensor" yaml:"sensor"`
	Type             int32         `json:"type" yaml:"type"`
	Source           Source        `json:"source" yaml:"source"`
	Timestamp        int64         `json:"timestamp" yaml:"timestamp"`
	GyroUncalibrated *SensorVector `json:"gyroUncalibrated,omitempty" yaml:"gyroUncalibrated,omitempty"`
}

// Sensor is the lifecycle shared by all register-bus sensors.
//
// Implementations are not safe for concurrent use.
type Sensor interface {
	Address() byte
	Init(ctx context.Context) error
	GetEvent(ctx context.Context) (*Event, error)
	GetEventAt(ctx context.Context, ts int64) (*Event, error)
	Shutdown(ctx context.Context) error
}

// InterruptPin prepares the host side of a sensor interrupt line.
type InterruptPin interface {
	Init(ctx context.Context) error
}
