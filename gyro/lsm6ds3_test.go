package gyro

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensord"
)

func newReadyGyro(t *testing.T, bus *fakeBus, opts ...LSM6DS3Opt) *LSM6DS3 {
	t.Helper()
	g := NewLSM6DS3(bus, opts...)
	require.NoError(t, g.Init(context.Background()))
	return g
}

func TestLSM6DS3_InitResolvesSource(t *testing.T) {
	tests := []struct {
		chipID   byte
		expected sensord.Source
	}{
		{0x69, sensord.SourceLSM6DS3},
		{0x6A, sensord.SourceLSM6DS3TRC},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%#02x", tt.chipID), func(t *testing.T) {
			bus := newFakeBus(tt.chipID)
			g := newReadyGyro(t, bus)
			assert.Equal(t, tt.expected, g.Source())
			assert.Equal(t, StateReady, g.State())
		})
	}
}

func TestLSM6DS3_InitRejectsUnknownChip(t *testing.T) {
	for id := 0; id < 256; id++ {
		if id == 0x69 || id == 0x6A {
			continue
		}
		bus := newFakeBus(byte(id))
		pin := &fakePin{}
		g := NewLSM6DS3(bus, WithInterrupt(pin))

		err := g.Init(context.Background())
		require.ErrorIs(t, err, sensord.ErrUnexpectedDevice, "chip id %#02x", id)
		assert.Empty(t, bus.writes, "chip id %#02x", id)
		assert.Zero(t, pin.calls)
		assert.Equal(t, StateUninitialized, g.State())
	}
}

func TestLSM6DS3_InitSequence(t *testing.T) {
	bus := newFakeBus(0x69)
	bus.regs[regInt1Ctrl] = 0b1000_0001
	pin := &fakePin{}
	newReadyGyro(t, bus, WithInterrupt(pin))

	assert.Equal(t, 1, pin.calls)
	assert.Equal(t, []sensord.RegisterWrite{
		{Register: regCtrl2G, Value: 0x40},
		{Register: regDrdyPulseCfgG, Value: 0x80},
		{Register: regInt1Ctrl, Value: 0b1000_0011},
	}, bus.writes)
}

func TestLSM6DS3_InitFullScaleOption(t *testing.T) {
	bus := newFakeBus(0x6A)
	newReadyGyro(t, bus, WithOutputDataRate(ODR208Hz), WithFullScale(FS2000dps))
	assert.Equal(t, byte(0x5C), bus.regs[regCtrl2G])
}

func TestLSM6DS3_InitInterruptPinError(t *testing.T) {
	bus := newFakeBus(0x69)
	pin := &fakePin{err: fmt.Errorf("gpio busy")}
	g := NewLSM6DS3(bus, WithInterrupt(pin))

	err := g.Init(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pin.err)
	assert.Empty(t, bus.writes)
	assert.Equal(t, StateUninitialized, g.State())
}

func TestLSM6DS3_InitBusErrorRollsBack(t *testing.T) {
	bus := newFakeBus(0x69)
	bus.regs[regCtrl2G] = 0x03
	bus.failWrite[regInt1Ctrl] = true
	g := NewLSM6DS3(bus)

	err := g.Init(context.Background())
	require.ErrorIs(t, err, sensord.ErrBusIO)
	assert.ErrorIs(t, err, errNack)
	assert.Equal(t, StateUninitialized, g.State())
	// gyroscope stopped again, full scale kept
	assert.Equal(t, byte(0x00), bus.regs[regCtrl2G]&odrMask)

	_, err = g.GetEvent(context.Background())
	assert.ErrorIs(t, err, sensord.ErrNotInitialized)

	// transient failure: init can be retried
	bus.failWrite[regInt1Ctrl] = false
	require.NoError(t, g.Init(context.Background()))
	assert.Equal(t, StateReady, g.State())
}

func TestLSM6DS3_InitChipIDReadError(t *testing.T) {
	bus := newFakeBus(0x69)
	bus.failRead[regWhoAmI] = true
	g := NewLSM6DS3(bus)

	err := g.Init(context.Background())
	assert.ErrorIs(t, err, sensord.ErrBusIO)
	assert.NotErrorIs(t, err, sensord.ErrUnexpectedDevice)
	assert.Empty(t, bus.writes)
}

func TestLSM6DS3_StateMachine(t *testing.T) {
	ctx := context.Background()
	bus := newFakeBus(0x69)
	g := NewLSM6DS3(bus)

	_, err := g.GetEvent(ctx)
	assert.ErrorIs(t, err, sensord.ErrNotInitialized)

	require.NoError(t, g.Init(ctx))
	assert.ErrorIs(t, g.Init(ctx), sensord.ErrAlreadyInitialized)

	require.NoError(t, g.Shutdown(ctx))
	assert.Equal(t, StateShutdown, g.State())
	assert.ErrorIs(t, g.Init(ctx), sensord.ErrShutdown)
	_, err = g.GetEventAt(ctx, 1)
	assert.ErrorIs(t, err, sensord.ErrShutdown)
}

func TestLSM6DS3_InterruptEnableDisablePreservesBits(t *testing.T) {
	for _, initial := range []byte{0x00, 0b1000_0001, 0b0111_1101, 0xFD} {
		t.Run(hex.EncodeToString([]byte{initial}), func(t *testing.T) {
			bus := newFakeBus(0x6A)
			bus.regs[regInt1Ctrl] = initial
			g := newReadyGyro(t, bus)
			assert.Equal(t, initial|int1DrdyG, bus.regs[regInt1Ctrl])

			require.NoError(t, g.Shutdown(context.Background()))
			assert.Equal(t, initial, bus.regs[regInt1Ctrl])
		})
	}
}

func TestLSM6DS3_PowerDownClearsOnlyRateBits(t *testing.T) {
	for v := 0; v < 256; v++ {
		bus := newFakeBus(0x69)
		g := newReadyGyro(t, bus)
		bus.regs[regCtrl2G] = byte(v)

		require.NoError(t, g.Shutdown(context.Background()))
		assert.Equal(t, byte(v)&0x0F, bus.regs[regCtrl2G], "CTRL2_G %#02x", v)
	}
}

func TestLSM6DS3_ShutdownBestEffort(t *testing.T) {
	bus := newFakeBus(0x69)
	g := newReadyGyro(t, bus)
	bus.failRead[regInt1Ctrl] = true

	err := g.Shutdown(context.Background())
	require.ErrorIs(t, err, sensord.ErrBusIO)
	assert.Equal(t, StateShutdown, g.State())
	// power down still attempted
	assert.Equal(t, byte(0x00), bus.regs[regCtrl2G]&odrMask)

	writes := len(bus.writes)
	assert.NoError(t, g.Shutdown(context.Background()))
	assert.Len(t, bus.writes, writes)
}

func TestLSM6DS3_ShutdownUninitialized(t *testing.T) {
	bus := newFakeBus(0x69)
	g := NewLSM6DS3(bus)

	require.NoError(t, g.Shutdown(context.Background()))
	assert.Equal(t, StateShutdown, g.State())
	assert.Empty(t, bus.reads)
	assert.Empty(t, bus.writes)
}

func TestParse16bit(t *testing.T) {
	tests := []struct {
		given    []byte
		expected int16
	}{
		{[]byte{0x00, 0x00}, 0},
		{[]byte{0x00, 0x80}, math.MinInt16},
		{[]byte{0xFF, 0x7F}, math.MaxInt16},
		{[]byte{0xFF, 0xFF}, -1},
		{[]byte{0x34, 0x12}, 0x1234},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, parse16bit(test.given[0], test.given[1]))
		})
	}
}

func TestRawToRadians(t *testing.T) {
	tests := []struct {
		raw      int16
		fs       FullScale
		expected float64
	}{
		{0, FS250dps, 0},
		{1000, FS250dps, 8.75 * math.Pi / 180},
		{-1000, FS250dps, -8.75 * math.Pi / 180},
		{math.MaxInt16, FS250dps, 32767 * 0.00875 * math.Pi / 180},
		{1000, FS2000dps, 70.0 * math.Pi / 180},
		{1000, FS125dps, 4.375 * math.Pi / 180},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%s", tt.raw, tt.fs), func(t *testing.T) {
			assert.InDelta(t, tt.expected, rawToRadians(tt.raw, tt.fs.Sensitivity()), 1e-12)
		})
	}
}

func TestLSM6DS3_GetEventNotReady(t *testing.T) {
	bus := newFakeBus(0x69)
	g := newReadyGyro(t, bus)
	bus.regs[regStatus] = 0b1111_1101

	ev, err := g.GetEvent(context.Background())
	assert.Nil(t, ev)
	require.ErrorIs(t, err, sensord.ErrDataNotReady)
	assert.NotErrorIs(t, err, sensord.ErrBusIO)
	assert.Zero(t, bus.readCount(regOutXLG))
}

func TestLSM6DS3_GetEventZero(t *testing.T) {
	bus := newFakeBus(0x6A)
	g := newReadyGyro(t, bus)
	bus.regs[regStatus] = 0b00000010

	ev, err := g.GetEventAt(context.Background(), 1234)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ev.Version)
	assert.Equal(t, sensord.SensorGyroUncalibrated, ev.Sensor)
	assert.Equal(t, sensord.TypeGyroscopeUncalibrated, ev.Type)
	assert.Equal(t, sensord.SourceLSM6DS3TRC, ev.Source)
	assert.Equal(t, int64(1234), ev.Timestamp)
	require.NotNil(t, ev.GyroUncalibrated)
	assert.Equal(t, [3]float64{0, 0, 0}, ev.GyroUncalibrated.V)
	assert.Equal(t, sensord.StatusValid, ev.GyroUncalibrated.Status)
	assert.Equal(t, []readOp{{regStatus, 1}, {regOutXLG, 6}}, bus.reads[len(bus.reads)-2:])
}

func TestLSM6DS3_GetEventAxisRemap(t *testing.T) {
	bus := newFakeBus(0x69)
	g := newReadyGyro(t, bus)
	bus.regs[regStatus] = statusGDA
	bus.setRaw(100, -200, 300)

	ev, err := g.GetEventAt(context.Background(), 1)
	require.NoError(t, err)
	scale := 8.75 / 1000.0 * math.Pi / 180.0
	assert.InDelta(t, -200*scale, ev.GyroUncalibrated.V[0], 1e-12)
	assert.InDelta(t, -100*scale, ev.GyroUncalibrated.V[1], 1e-12)
	assert.InDelta(t, 300*scale, ev.GyroUncalibrated.V[2], 1e-12)
}

func TestLSM6DS3_GetEventUsesClock(t *testing.T) {
	bus := newFakeBus(0x69)
	clock := sensord.ClockFunc(func() int64 { return 987654321 })
	g := newReadyGyro(t, bus, WithClock(clock))
	bus.regs[regStatus] = statusGDA

	ev, err := g.GetEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(987654321), ev.Timestamp)
}

func TestLSM6DS3_GetEventBusError(t *testing.T) {
	bus := newFakeBus(0x69)
	g := newReadyGyro(t, bus)
	bus.regs[regStatus] = statusGDA
	bus.failRead[regOutXLG] = true

	_, err := g.GetEvent(context.Background())
	assert.ErrorIs(t, err, sensord.ErrBusIO)
	assert.NotErrorIs(t, err, sensord.ErrDataNotReady)
	assert.Equal(t, StateReady, g.State())
}

func TestLSM6DS3_PollRetriesUntilReady(t *testing.T) {
	bus := newFakeBus(0x69)
	g := newReadyGyro(t, bus)
	attempts := 0
	bus.data = func(regs *[256]byte) [6]byte {
		return [6]byte{0xE8, 0x03, 0, 0, 0, 0}
	}
	// status becomes ready on the third poll
	g.bus = &statusSequence{fakeBus: bus, ready: func() bool {
		attempts++
		return attempts >= 3
	}}

	ev, err := sensord.Poll(context.Background(), g, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.InDelta(t, -1000*8.75/1000.0*math.Pi/180.0, ev.GyroUncalibrated.V[1], 1e-12)
	assert.Equal(t, 1, bus.readCount(regOutXLG))
}

// statusSequence reports data-ready according to ready.
type statusSequence struct {
	*fakeBus
	ready func() bool
}

func (s *statusSequence) Read(ctx context.Context, register byte, count int) ([]byte, error) {
	if register == regStatus {
		s.reads = append(s.reads, readOp{register: register, count: count})
		if s.ready() {
			return []byte{statusGDA}, nil
		}
		return []byte{0}, nil
	}
	return s.fakeBus.Read(ctx, register, count)
}

func TestLSM6DS3_EmptyRegisterRead(t *testing.T) {
	ctx := context.Background()

	t.Run("status", func(t *testing.T) {
		bus := newFakeBus(0x69)
		g := newReadyGyro(t, bus)
		bus.emptyRead[regStatus] = true
		_, err := g.GetEvent(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sensord.ErrDataNotReady)
		assert.Zero(t, bus.readCount(regOutXLG))
	})

	t.Run("interrupt enable", func(t *testing.T) {
		bus := newFakeBus(0x69)
		bus.emptyRead[regInt1Ctrl] = true
		g := NewLSM6DS3(bus)
		assert.Error(t, g.Init(ctx))
		assert.Equal(t, StateUninitialized, g.State())
	})

	t.Run("shutdown", func(t *testing.T) {
		bus := newFakeBus(0x69)
		g := newReadyGyro(t, bus)
		bus.emptyRead[regInt1Ctrl] = true
		bus.emptyRead[regCtrl2G] = true
		assert.Error(t, g.Shutdown(ctx))
		assert.Equal(t, StateShutdown, g.State())
	})

	t.Run("self-test configuration", func(t *testing.T) {
		bus := newFakeBus(0x69)
		g := newReadyGyro(t, bus)
		writes := len(bus.writes)
		bus.emptyRead[regCtrl2G] = true
		_, err := g.SelfTest(ctx, SelfTestPositive)
		assert.Error(t, err)
		assert.Len(t, bus.writes, writes)
	})
}
