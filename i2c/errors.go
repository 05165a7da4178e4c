package i2c

import (
	"fmt"

	"github.com/mklimuk/sensord"
)

// BusError describes a failed register transaction.
type BusError struct {
	Op       string
	Addr     byte
	Register byte
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c %s %#02x/%#02x: %v", e.Op, e.Addr, e.Register, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

func (e *BusError) Is(target error) bool {
	return target == sensord.ErrBusIO
}
