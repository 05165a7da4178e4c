package sensord

import (
	"errors"
	"fmt"
)

var (
	// ErrDataNotReady is returned when a sensor has no fresh sample yet. It is an
	// expected outcome of polling; retry later or wait for the interrupt line.
	ErrDataNotReady = errors.New("data not ready")
	// ErrUnexpectedDevice is matched by *UnexpectedDeviceError.
	ErrUnexpectedDevice = errors.New("unexpected device")
	// ErrBusIO is matched by transport failures.
	ErrBusIO = errors.New("bus i/o error")

	ErrNotInitialized     = errors.New("sensor not initialized")
	ErrAlreadyInitialized = errors.New("sensor already initialized")
	ErrShutdown           = errors.New("sensor is shut down")
)

// UnexpectedDeviceError reports a chip identification byte outside the accepted set.
type UnexpectedDeviceError struct {
	Register byte
	Got      byte
	Valid    []byte
}

func (e *UnexpectedDeviceError) Error() string {
	return fmt.Sprintf("unexpected chip id %#02x in register %#02x (expected one of % #x)", e.Got, e.Register, e.Valid)
}

func (e *UnexpectedDeviceError) Is(target error) bool {
	return target == ErrUnexpectedDevice
}
