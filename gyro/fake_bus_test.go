package gyro

import (
	"context"
	"errors"
	"slices"

	"github.com/mklimuk/sensord"
	"github.com/mklimuk/sensord/i2c"
)

var errNack = errors.New("nack")

type readOp struct {
	register byte
	count    int
}

// fakeBus is an in-memory register file implementing sensord.RegisterBus.
type fakeBus struct {
	regs      [256]byte
	reads     []readOp
	writes    []sensord.RegisterWrite
	failRead  map[byte]bool
	failWrite map[byte]bool
	// emptyRead registers answer with no data and no error
	emptyRead map[byte]bool
	// data overrides the content of the output registers when set
	data func(regs *[256]byte) [6]byte
}

func newFakeBus(chipID byte) *fakeBus {
	b := &fakeBus{failRead: map[byte]bool{}, failWrite: map[byte]bool{}, emptyRead: map[byte]bool{}}
	b.regs[regWhoAmI] = chipID
	return b
}

func (b *fakeBus) Address() byte {
	return DefaultAddress
}

func (b *fakeBus) Read(ctx context.Context, register byte, count int) ([]byte, error) {
	b.reads = append(b.reads, readOp{register: register, count: count})
	if b.failRead[register] {
		return nil, &i2c.BusError{Op: "read", Addr: DefaultAddress, Register: register, Err: errNack}
	}
	if b.emptyRead[register] {
		return []byte{}, nil
	}
	if register == regOutXLG && b.data != nil {
		data := b.data(&b.regs)
		return slices.Clone(data[:count]), nil
	}
	out := make([]byte, count)
	copy(out, b.regs[int(register):])
	return out, nil
}

func (b *fakeBus) Write(ctx context.Context, register byte, value byte) error {
	if b.failWrite[register] {
		return &i2c.BusError{Op: "write", Addr: DefaultAddress, Register: register, Err: errNack}
	}
	b.writes = append(b.writes, sensord.RegisterWrite{Register: register, Value: value})
	b.regs[register] = value
	return nil
}

func (b *fakeBus) Writes(ctx context.Context, writes []sensord.RegisterWrite) error {
	for _, w := range writes {
		if err := b.Write(ctx, w.Register, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (b *fakeBus) VerifyChipID(ctx context.Context, register byte, valid []byte) (byte, error) {
	buf, err := b.Read(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(valid, buf[0]) {
		return 0, &sensord.UnexpectedDeviceError{Register: register, Got: buf[0], Valid: valid}
	}
	return buf[0], nil
}

func (b *fakeBus) readCount(register byte) int {
	n := 0
	for _, r := range b.reads {
		if r.register == register {
			n++
		}
	}
	return n
}

// setRaw stores little-endian counts in the output registers.
func (b *fakeBus) setRaw(x, y, z int16) {
	for i, v := range []int16{x, y, z} {
		b.regs[int(regOutXLG)+2*i] = byte(uint16(v))
		b.regs[int(regOutXLG)+2*i+1] = byte(uint16(v) >> 8)
	}
}

type fakePin struct {
	calls int
	err   error
}

func (p *fakePin) Init(ctx context.Context) error {
	p.calls++
	return p.err
}
