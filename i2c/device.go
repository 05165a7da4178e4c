package i2c

import (
	"context"
	"fmt"
	"slices"

	"github.com/mklimuk/sensord"
)

var _ sensord.RegisterBus = &Device{}

// registerReader is implemented by buses able to combine the register pointer
// write and the data read in one transaction.
type registerReader interface {
	ReadRegister(ctx context.Context, address byte, register byte, buffer []byte) error
}

// Device gives register access to a single device on a raw I2C bus.
//
// Registers are read by writing the register pointer and then reading count
// bytes, relying on the device auto-incrementing the address for bursts.
type Device struct {
	transport sensord.I2CBus
	address   byte
}

func NewDevice(trans sensord.I2CBus, address byte) *Device {
	return &Device{transport: trans, address: address}
}

func (d *Device) Address() byte {
	return d.address
}

func (d *Device) Read(ctx context.Context, register byte, count int) ([]byte, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid read size %d", count)
	}
	buf := make([]byte, count)
	if rr, ok := d.transport.(registerReader); ok {
		if err := rr.ReadRegister(ctx, d.address, register, buf); err != nil {
			return nil, &BusError{Op: "read", Addr: d.address, Register: register, Err: err}
		}
		return buf, nil
	}
	if err := d.transport.WriteToAddr(ctx, d.address, []byte{register}); err != nil {
		return nil, &BusError{Op: "set register pointer", Addr: d.address, Register: register, Err: err}
	}
	if err := d.transport.ReadFromAddr(ctx, d.address, buf); err != nil {
		return nil, &BusError{Op: "read", Addr: d.address, Register: register, Err: err}
	}
	return buf, nil
}

func (d *Device) Write(ctx context.Context, register byte, value byte) error {
	if err := d.transport.WriteToAddr(ctx, d.address, []byte{register, value}); err != nil {
		return &BusError{Op: "write", Addr: d.address, Register: register, Err: err}
	}
	return nil
}

func (d *Device) Writes(ctx context.Context, writes []sensord.RegisterWrite) error {
	for _, w := range writes {
		if err := d.Write(ctx, w.Register, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) VerifyChipID(ctx context.Context, register byte, valid []byte) (byte, error) {
	return verifyChipID(ctx, d, register, valid)
}

type byteReader interface {
	Read(ctx context.Context, register byte, count int) ([]byte, error)
}

func verifyChipID(ctx context.Context, r byteReader, register byte, valid []byte) (byte, error) {
	buf, err := r.Read(ctx, register, 1)
	if err != nil {
		return 0, fmt.Errorf("could not read chip id: %w", err)
	}
	if len(buf) < 1 {
		return 0, fmt.Errorf("empty chip id read from register %#02x", register)
	}
	if !slices.Contains(valid, buf[0]) {
		return 0, &sensord.UnexpectedDeviceError{Register: register, Got: buf[0], Valid: slices.Clone(valid)}
	}
	return buf[0], nil
}
