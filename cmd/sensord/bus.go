package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/sensord"
	"github.com/mklimuk/sensord/adapter"
	"github.com/mklimuk/sensord/config"
	"github.com/mklimuk/sensord/gpio"
	"github.com/mklimuk/sensord/gyro"
	"github.com/mklimuk/sensord/i2c"
	"github.com/mklimuk/sensord/snsctx"
)

// mcp2221InterruptPin selects the bridge GP1 line as the interrupt input.
const mcp2221InterruptPin = "GP1"

// station bundles an opened bus, the gyroscope and its optional edge source.
type station struct {
	gyro *gyro.LSM6DS3
	// edge is set when INT1 is wired to a host GPIO
	edge  *gpio.Pin
	close func() error
}

func (s *station) Close() error {
	if s.edge != nil {
		if err := s.edge.Halt(); err != nil {
			slog.Warn("could not halt interrupt pin", "pin", s.edge, "error", err)
		}
	}
	return s.close()
}

func openStation(ctx context.Context, cfg config.Config, opts ...gyro.LSM6DS3Opt) (*station, error) {
	var (
		bus     sensord.RegisterBus
		pin     sensord.InterruptPin
		release func() error
	)
	switch cfg.Bus.Adapter {
	case config.AdapterPeriph:
		generic, err := i2c.NewGenericBus(cfg.Bus.Device)
		if err != nil {
			return nil, err
		}
		bus = i2c.NewDevice(generic, cfg.Bus.Address)
		release = generic.Close
	case config.AdapterMCP2221:
		bridge := adapter.NewMCP2221()
		bus = i2c.NewDevice(bridge, cfg.Bus.Address)
		if cfg.Gyro.InterruptPin == mcp2221InterruptPin {
			pin = bridge
		}
		release = func() error { return bridge.Release(context.WithoutCancel(ctx)) }
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		conn, err := npi.GetI2cConnection(int(cfg.Bus.Address), cfg.Bus.Number)
		if err != nil {
			_ = npi.I2cBusAdaptor.Finalize()
			return nil, fmt.Errorf("could not open i2c connection: %w", err)
		}
		dev := i2c.NewGobotDevice(conn, cfg.Bus.Address)
		bus = dev
		release = func() error { return errors.Join(dev.Close(), npi.I2cBusAdaptor.Finalize()) }
	case config.AdapterMock:
		bus = gyro.NewMockLSM6DS3Bus(gyro.MockChipLSM6DS3, nil)
		release = func() error { return nil }
	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Bus.Adapter)
	}

	st := &station{close: release}
	if pin == nil && cfg.Gyro.InterruptPin != "" && cfg.Gyro.InterruptPin != mcp2221InterruptPin {
		st.edge = gpio.NewPin(cfg.Gyro.InterruptPin)
		pin = st.edge
	}

	odr, err := cfg.Gyro.OutputDataRate()
	if err != nil {
		_ = release()
		return nil, err
	}
	fs, err := cfg.Gyro.Scale()
	if err != nil {
		_ = release()
		return nil, err
	}
	all := []gyro.LSM6DS3Opt{
		gyro.WithOutputDataRate(odr),
		gyro.WithFullScale(fs),
		gyro.WithPollInterval(cfg.Gyro.PollInterval),
		gyro.WithLogger(snsctx.Logger(ctx)),
	}
	if pin != nil {
		all = append(all, gyro.WithInterrupt(pin))
	}
	st.gyro = gyro.NewLSM6DS3(bus, append(all, opts...)...)
	return st, nil
}
