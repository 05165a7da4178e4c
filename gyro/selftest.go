package gyro

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mklimuk/sensord"
)

// number of samples averaged per self-test phase (after one discarded sample)
const selfTestSamples = 5

// SelfTestResult holds the outcome of a gyroscope self-test.
type SelfTestResult struct {
	Mode SelfTestMode `yaml:"mode"`
	// DeltaMdps is the absolute output change per chip axis in mdps.
	DeltaMdps [3]float64 `yaml:"delta_mdps"`
	Passed    bool       `yaml:"passed"`
}

// WithinSelfTestLimits reports whether an output change in mdps lies inside
// the datasheet self-test window, bounds included.
func WithinSelfTestLimits(mdps float64) bool {
	return mdps >= selfTestMinMdps && mdps <= selfTestMaxMdps
}

// SetSelfTestMode changes ST_G in CTRL5_C keeping the other control bits.
func (g *LSM6DS3) SetSelfTestMode(ctx context.Context, mode SelfTestMode) error {
	if err := g.checkReady(); err != nil {
		return err
	}
	if err := g.updateRegister(ctx, regCtrl5C, byte(mode), selfTestMask); err != nil {
		return fmt.Errorf("lsm6ds3: could not set %s self-test mode: %w", mode, err)
	}
	return nil
}

// SelfTest applies the electrostatic self-test stimulus and checks the output
// change on every axis. The device must be still during the test. Normal mode
// and the previous CTRL2_G value are restored before returning.
func (g *LSM6DS3) SelfTest(ctx context.Context, mode SelfTestMode) (res *SelfTestResult, err error) {
	if err := g.checkReady(); err != nil {
		return nil, err
	}
	if mode != SelfTestPositive && mode != SelfTestNegative {
		return nil, fmt.Errorf("lsm6ds3: invalid self-test mode %s", mode)
	}
	saved, err := g.readByte(ctx, regCtrl2G)
	if err != nil {
		return nil, fmt.Errorf("lsm6ds3: could not read gyroscope configuration: %w", err)
	}
	defer func() {
		restoreCtx := context.WithoutCancel(ctx)
		rerr := errors.Join(
			g.updateRegister(restoreCtx, regCtrl5C, byte(SelfTestNormal), selfTestMask),
			g.bus.Write(restoreCtx, regCtrl2G, saved),
		)
		if rerr != nil {
			res = nil
			err = errors.Join(err, fmt.Errorf("lsm6ds3: could not restore configuration after self-test: %w", rerr))
		}
	}()

	// limits are given for 2000 dps full scale
	err = g.bus.Write(ctx, regCtrl2G, byte(ODR208Hz)|byte(FS2000dps))
	if err != nil {
		return nil, fmt.Errorf("lsm6ds3: could not configure self-test range: %w", err)
	}
	if err := sleep(ctx, g.config.SettleDelay); err != nil {
		return nil, err
	}
	base, err := g.averageRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("lsm6ds3: could not sample normal output: %w", err)
	}

	if err := g.updateRegister(ctx, regCtrl5C, byte(mode), selfTestMask); err != nil {
		return nil, fmt.Errorf("lsm6ds3: could not enable self-test: %w", err)
	}
	if err := sleep(ctx, g.config.SettleDelay); err != nil {
		return nil, err
	}
	stimulated, err := g.averageRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("lsm6ds3: could not sample self-test output: %w", err)
	}

	res = &SelfTestResult{Mode: mode, Passed: true}
	for i := range res.DeltaMdps {
		res.DeltaMdps[i] = math.Abs(stimulated[i]-base[i]) * FS2000dps.Sensitivity()
		if !WithinSelfTestLimits(res.DeltaMdps[i]) {
			res.Passed = false
		}
	}
	g.config.Logger.Debug("lsm6ds3 self-test done", "mode", mode, "delta_mdps", res.DeltaMdps, "passed", res.Passed)
	return res, nil
}

// averageRaw discards the first sample after a configuration change and
// averages the following ones.
func (g *LSM6DS3) averageRaw(ctx context.Context) ([3]float64, error) {
	var sum [3]float64
	if _, err := g.pollRaw(ctx); err != nil {
		return sum, err
	}
	for range selfTestSamples {
		raw, err := g.pollRaw(ctx)
		if err != nil {
			return sum, err
		}
		for i := range raw {
			sum[i] += float64(raw[i])
		}
	}
	for i := range sum {
		sum[i] /= selfTestSamples
	}
	return sum, nil
}

func (g *LSM6DS3) pollRaw(ctx context.Context) ([3]int16, error) {
	for {
		raw, err := g.readRaw(ctx)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, sensord.ErrDataNotReady) {
			return raw, err
		}
		if err := sleep(ctx, g.config.PollInterval); err != nil {
			return raw, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
