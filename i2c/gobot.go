package i2c

import (
	"context"
	"fmt"

	"github.com/mklimuk/sensord"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

var _ sensord.RegisterBus = &GobotDevice{}

// GobotDevice gives register access through a gobot I2C connection, e.g. one
// obtained from a board adaptor:
//
//	npi := nanopi.NewNeoAdaptor()
//	_ = npi.I2cBusAdaptor.Connect()
//	conn, _ := npi.GetI2cConnection(0x6A, 0)
//	dev := NewGobotDevice(conn, 0x6A)
type GobotDevice struct {
	conn    gobot.Connection
	address byte
}

func NewGobotDevice(conn gobot.Connection, address byte) *GobotDevice {
	return &GobotDevice{conn: conn, address: address}
}

func (d *GobotDevice) Address() byte {
	return d.address
}

func (d *GobotDevice) Read(ctx context.Context, register byte, count int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid read size %d", count)
	}
	if count == 1 {
		val, err := d.conn.ReadByteData(register)
		if err != nil {
			return nil, &BusError{Op: "read", Addr: d.address, Register: register, Err: err}
		}
		return []byte{val}, nil
	}
	buf := make([]byte, count)
	if err := d.conn.ReadBlockData(register, buf); err != nil {
		return nil, &BusError{Op: "read", Addr: d.address, Register: register, Err: err}
	}
	return buf, nil
}

func (d *GobotDevice) Write(ctx context.Context, register byte, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.conn.WriteByteData(register, value); err != nil {
		return &BusError{Op: "write", Addr: d.address, Register: register, Err: err}
	}
	return nil
}

func (d *GobotDevice) Writes(ctx context.Context, writes []sensord.RegisterWrite) error {
	for _, w := range writes {
		if err := d.Write(ctx, w.Register, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (d *GobotDevice) VerifyChipID(ctx context.Context, register byte, valid []byte) (byte, error) {
	return verifyChipID(ctx, d, register, valid)
}

func (d *GobotDevice) Close() error {
	return d.conn.Close()
}
