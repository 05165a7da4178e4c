package gyro

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mklimuk/sensord"
)

var _ sensord.Sensor = &LSM6DS3{}

// State is the driver lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateShutdown:
		return "shutdown"
	default:
		return "uninitialized"
	}
}

type LSM6DS3Opts struct {
	ODR       OutputDataRate
	FullScale FullScale
	// Interrupt is initialized after chip identification and before the
	// device is configured. Optional.
	Interrupt sensord.InterruptPin
	Clock     sensord.Clock
	Logger    *slog.Logger
	// SettleDelay is waited after every self-test reconfiguration.
	SettleDelay time.Duration
	// PollInterval is used by the self-test while waiting for fresh samples.
	PollInterval time.Duration
}

type LSM6DS3Opt func(*LSM6DS3Opts)

func WithOutputDataRate(odr OutputDataRate) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.ODR = odr
	}
}

func WithFullScale(fs FullScale) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.FullScale = fs
	}
}

func WithInterrupt(pin sensord.InterruptPin) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.Interrupt = pin
	}
}

func WithClock(clock sensord.Clock) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.Clock = clock
	}
}

func WithLogger(logger *slog.Logger) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.Logger = logger
	}
}

func WithSettleDelay(delay time.Duration) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.SettleDelay = delay
	}
}

func WithPollInterval(interval time.Duration) LSM6DS3Opt {
	return func(o *LSM6DS3Opts) {
		o.PollInterval = interval
	}
}

// LSM6DS3 is the gyroscope half of an ST LSM6DS3 or LSM6DS3TR-C IMU.
// Typical usage:
//
//	g := NewLSM6DS3(i2c.NewDevice(bus, DefaultAddress))
//	if err := g.Init(ctx); err != nil { ... }
//	defer g.Shutdown(ctx)
//	ev, err := g.GetEvent(ctx) // sensord.ErrDataNotReady until the first sample
//
// The accelerometer shares the chip and its interrupt lines, so interrupt and
// power registers are always updated with read-modify-write.
//
// LSM6DS3 does no locking; callers must serialize access.
type LSM6DS3 struct {
	bus    sensord.RegisterBus
	config LSM6DS3Opts
	state  State
	source sensord.Source
}

func NewLSM6DS3(bus sensord.RegisterBus, opts ...LSM6DS3Opt) *LSM6DS3 {
	config := LSM6DS3Opts{
		ODR:          ODR104Hz,
		FullScale:    FS250dps,
		Clock:        sensord.MonotonicClock,
		SettleDelay:  100 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &LSM6DS3{bus: bus, config: config}
}

func (g *LSM6DS3) Address() byte {
	return g.bus.Address()
}

func (g *LSM6DS3) State() State {
	return g.state
}

// Source is the chip variant detected by Init.
func (g *LSM6DS3) Source() sensord.Source {
	return g.source
}

// Init identifies the chip, starts the gyroscope and routes data-ready to INT1.
// On failure the driver stays uninitialized and Init may be called again.
func (g *LSM6DS3) Init(ctx context.Context) error {
	switch g.state {
	case StateReady:
		return sensord.ErrAlreadyInitialized
	case StateShutdown:
		return sensord.ErrShutdown
	}
	chipID, err := g.bus.VerifyChipID(ctx, regWhoAmI, validChipIDs)
	if err != nil {
		return fmt.Errorf("lsm6ds3: chip identification failed: %w", err)
	}
	source := sensord.SourceLSM6DS3
	if chipID == chipIDLSM6DS3TRC {
		source = sensord.SourceLSM6DS3TRC
	}

	if g.config.Interrupt != nil {
		if err := g.config.Interrupt.Init(ctx); err != nil {
			return fmt.Errorf("lsm6ds3: could not init interrupt pin: %w", err)
		}
	}

	// CTRL2_G must be programmed before the data-ready configuration
	err = g.bus.Writes(ctx, []sensord.RegisterWrite{
		{Register: regCtrl2G, Value: byte(g.config.ODR) | byte(g.config.FullScale)},
		{Register: regDrdyPulseCfgG, Value: drdyPulsed},
	})
	if err != nil {
		g.abortInit(ctx)
		return fmt.Errorf("lsm6ds3: could not configure gyroscope: %w", err)
	}

	err = g.updateRegister(ctx, regInt1Ctrl, int1DrdyG, 0)
	if err != nil {
		g.abortInit(ctx)
		return fmt.Errorf("lsm6ds3: could not enable data-ready interrupt: %w", err)
	}

	g.source = source
	g.state = StateReady
	g.config.Logger.Debug("lsm6ds3 initialized",
		"source", source, "odr", g.config.ODR, "full_scale", g.config.FullScale)
	return nil
}

// abortInit stops the gyroscope after a partially applied configuration.
func (g *LSM6DS3) abortInit(ctx context.Context) {
	if err := g.powerDown(ctx); err != nil {
		g.config.Logger.Warn("lsm6ds3: could not power down after failed init", "error", err)
	}
}

// GetEvent reads one sample stamped with the configured clock.
func (g *LSM6DS3) GetEvent(ctx context.Context) (*sensord.Event, error) {
	return g.getEvent(ctx, g.config.Clock.Nanotime)
}

// GetEventAt reads one sample stamped with ts.
func (g *LSM6DS3) GetEventAt(ctx context.Context, ts int64) (*sensord.Event, error) {
	return g.getEvent(ctx, func() int64 { return ts })
}

func (g *LSM6DS3) getEvent(ctx context.Context, now func() int64) (*sensord.Event, error) {
	if err := g.checkReady(); err != nil {
		return nil, err
	}
	raw, err := g.readRaw(ctx)
	if err != nil {
		return nil, err
	}
	sens := g.config.FullScale.Sensitivity()
	x := rawToRadians(raw[0], sens)
	y := rawToRadians(raw[1], sens)
	z := rawToRadians(raw[2], sens)

	return &sensord.Event{
		Version:   sensord.EventVersion,
		Sensor:    sensord.SensorGyroUncalibrated,
		Type:      sensord.TypeGyroscopeUncalibrated,
		Source:    g.source,
		Timestamp: now(),
		GyroUncalibrated: &sensord.SensorVector{
			// chip axes rotated to the device frame
			V:      [3]float64{y, -x, z},
			Status: sensord.StatusValid,
		},
	}, nil
}

// Shutdown disables the data-ready interrupt and powers the gyroscope down.
// Both steps are attempted; failures are logged and returned, but the driver
// is shut down either way and further calls are no-ops.
func (g *LSM6DS3) Shutdown(ctx context.Context) error {
	prev := g.state
	g.state = StateShutdown
	if prev != StateReady {
		return nil
	}
	var errs []error
	if err := g.updateRegister(ctx, regInt1Ctrl, 0, int1DrdyG); err != nil {
		errs = append(errs, fmt.Errorf("lsm6ds3: could not disable data-ready interrupt: %w", err))
	}
	if err := g.powerDown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("lsm6ds3: could not power down: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		g.config.Logger.Warn("lsm6ds3 shutdown incomplete", "error", err)
		return err
	}
	g.config.Logger.Debug("lsm6ds3 shut down")
	return nil
}

func (g *LSM6DS3) checkReady() error {
	switch g.state {
	case StateUninitialized:
		return sensord.ErrNotInitialized
	case StateShutdown:
		return sensord.ErrShutdown
	}
	return nil
}

// readRaw returns chip-frame X, Y, Z counts. The data registers are only read
// once STATUS_REG reports a new sample.
func (g *LSM6DS3) readRaw(ctx context.Context) ([3]int16, error) {
	var raw [3]int16
	status, err := g.readByte(ctx, regStatus)
	if err != nil {
		return raw, fmt.Errorf("lsm6ds3: could not read status: %w", err)
	}
	if status&statusGDA == 0 {
		return raw, sensord.ErrDataNotReady
	}
	buf, err := g.bus.Read(ctx, regOutXLG, 6)
	if err != nil {
		return raw, fmt.Errorf("lsm6ds3: could not read angular rate: %w", err)
	}
	if len(buf) < 6 {
		return raw, fmt.Errorf("lsm6ds3: short angular rate read: %d bytes", len(buf))
	}
	raw[0] = parse16bit(buf[0], buf[1])
	raw[1] = parse16bit(buf[2], buf[3])
	raw[2] = parse16bit(buf[4], buf[5])
	return raw, nil
}

// powerDown clears ODR_G keeping the full-scale bits.
func (g *LSM6DS3) powerDown(ctx context.Context) error {
	return g.updateRegister(ctx, regCtrl2G, 0, odrMask)
}

// updateRegister clears then sets the given bits leaving the rest untouched.
func (g *LSM6DS3) updateRegister(ctx context.Context, register, set, clear byte) error {
	val, err := g.readByte(ctx, register)
	if err != nil {
		return err
	}
	return g.bus.Write(ctx, register, val&^clear|set)
}

func (g *LSM6DS3) readByte(ctx context.Context, register byte) (byte, error) {
	buf, err := g.bus.Read(ctx, register, 1)
	if err != nil {
		return 0, err
	}
	if len(buf) < 1 {
		return 0, fmt.Errorf("lsm6ds3: empty read of register %#02x", register)
	}
	return buf[0], nil
}

func parse16bit(lsb, msb byte) int16 {
	return int16(binary.LittleEndian.Uint16([]byte{lsb, msb}))
}

// rawToRadians converts counts to rad/s given the sensitivity in mdps/LSB.
func rawToRadians(raw int16, sensitivity float64) float64 {
	dps := float64(raw) * sensitivity / 1000.0
	return dps * math.Pi / 180.0
}
