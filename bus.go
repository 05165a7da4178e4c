package sensord

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a raw I2C bus able to talk to any 7-bit address.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// RegisterWrite is a single register assignment used by RegisterBus.Writes.
type RegisterWrite struct {
	Register byte
	Value    byte
}

// RegisterBus is a register-addressed transport bound to a single device address.
//
// Writes applies the assignments one by one in the given order; it is not an
// atomic bus transaction. VerifyChipID reads a single byte from register and
// returns it if it is one of valid, otherwise an *UnexpectedDeviceError.
type RegisterBus interface {
	Address() byte
	Read(ctx context.Context, register byte, count int) ([]byte, error)
	Write(ctx context.Context, register byte, value byte) error
	Writes(ctx context.Context, writes []RegisterWrite) error
	VerifyChipID(ctx context.Context, register byte, valid []byte) (byte, error)
}
