package gyro

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/mklimuk/sensord"
)

var _ sensord.RegisterBus = &MockLSM6DS3Bus{}

// RateBehaviorFunc returns the simulated angular rate in dps for the chip
// x, y and z axes.
type RateBehaviorFunc func(ctx context.Context) ([3]float64, error)

// mockSelfTestDps is the output shift applied while self-test is enabled.
const mockSelfTestDps = 400

// MockLSM6DS3Bus simulates the gyroscope register file of an LSM6DS3 so the
// driver can run without hardware. Data is ready whenever the gyroscope is
// not powered down, output registers follow the configured full scale, and
// the self-test bits shift the output.
//
// Example usage:
//
//	// still device
//	bus := NewMockLSM6DS3Bus(MockChipLSM6DS3, nil)
//
//	// constant yaw rate of 90 dps
//	bus := NewMockLSM6DS3Bus(MockChipLSM6DS3, func(ctx context.Context) ([3]float64, error) {
//		return [3]float64{0, 0, 90}, nil
//	})
type MockLSM6DS3Bus struct {
	mx       sync.Mutex
	regs     [256]byte
	behavior RateBehaviorFunc
}

// Chip identifiers accepted by NewMockLSM6DS3Bus.
const (
	MockChipLSM6DS3    = chipIDLSM6DS3
	MockChipLSM6DS3TRC = chipIDLSM6DS3TRC
)

func NewMockLSM6DS3Bus(chipID byte, behavior RateBehaviorFunc) *MockLSM6DS3Bus {
	if behavior == nil {
		behavior = func(ctx context.Context) ([3]float64, error) { return [3]float64{}, nil }
	}
	m := &MockLSM6DS3Bus{behavior: behavior}
	m.regs[regWhoAmI] = chipID
	return m
}

func (m *MockLSM6DS3Bus) Address() byte {
	return DefaultAddress
}

func (m *MockLSM6DS3Bus) Read(ctx context.Context, register byte, count int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	powered := m.regs[regCtrl2G]&odrMask != byte(ODRPowerDown)
	switch register {
	case regStatus:
		m.regs[regStatus] = 0
		if powered {
			m.regs[regStatus] = statusGDA
		}
	case regOutXLG:
		if powered {
			if err := m.sample(ctx); err != nil {
				return nil, err
			}
		}
	}
	out := make([]byte, count)
	copy(out, m.regs[int(register):])
	return out, nil
}

// sample converts the behavior output to counts at the current full scale.
func (m *MockLSM6DS3Bus) sample(ctx context.Context) error {
	rate, err := m.behavior(ctx)
	if err != nil {
		return err
	}
	switch SelfTestMode(m.regs[regCtrl5C] & selfTestMask) {
	case SelfTestPositive:
		for i := range rate {
			rate[i] += mockSelfTestDps
		}
	case SelfTestNegative:
		for i := range rate {
			rate[i] -= mockSelfTestDps
		}
	}
	sens := fullScaleOf(m.regs[regCtrl2G]).Sensitivity()
	for i, dps := range rate {
		counts := math.Round(dps * 1000 / sens)
		v := uint16(int16(max(math.MinInt16, min(math.MaxInt16, counts))))
		m.regs[int(regOutXLG)+2*i] = byte(v)
		m.regs[int(regOutXLG)+2*i+1] = byte(v >> 8)
	}
	return nil
}

func (m *MockLSM6DS3Bus) Write(ctx context.Context, register byte, value byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	m.regs[register] = value
	return nil
}

func (m *MockLSM6DS3Bus) Writes(ctx context.Context, writes []sensord.RegisterWrite) error {
	for _, w := range writes {
		if err := m.Write(ctx, w.Register, w.Value); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockLSM6DS3Bus) VerifyChipID(ctx context.Context, register byte, valid []byte) (byte, error) {
	buf, err := m.Read(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	if !slices.Contains(valid, buf[0]) {
		return 0, &sensord.UnexpectedDeviceError{Register: register, Got: buf[0], Valid: valid}
	}
	return buf[0], nil
}

// Register returns the current value of a simulated register.
func (m *MockLSM6DS3Bus) Register(register byte) byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.regs[register]
}

func fullScaleOf(ctrl2 byte) FullScale {
	if ctrl2&byte(FS125dps) != 0 {
		return FS125dps
	}
	return FullScale(ctrl2 & byte(FS2000dps))
}
