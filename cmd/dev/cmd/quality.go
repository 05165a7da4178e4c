package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"

	"github.com/mklimuk/sensord/config"
)

// Environment read by the hardware tests in cmd/sensord.
const (
	EnvIntegration = "TEST_INTEGRATION_ENABLED"
	EnvConfig      = "SENSORD_CONFIG"
	EnvSelfTest    = "SENSORD_SELFTEST"
)

func TestCmd() *cobra.Command {
	return stepCmd("test", "Run unit tests for all packages", test.Test)
}

func LintCmd() *cobra.Command {
	return stepCmd("lint", "Run golangci-lint", test.Lint)
}

func stepCmd(use, short string, step func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := step(); err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			return nil
		},
	}
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run the hardware tests against an attached LSM6DS3",
		Long: `Runs the test suite with ` + EnvIntegration + ` set, which enables the
hardware tests of cmd/sensord: they open the configured adapter, initialize the
gyroscope, poll samples and shut it down. The self-test needs a still device and
only runs with --selftest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}
			selfTest, err := cmd.Flags().GetBool("selftest")
			if err != nil {
				return fmt.Errorf("could not get selftest flag: %w", err)
			}
			env, err := integrationEnv(path, selfTest)
			if err != nil {
				return err
			}
			for k, v := range env {
				if err := os.Setenv(k, v); err != nil {
					return fmt.Errorf("could not set %s: %w", k, err)
				}
				slog.Debug("integration environment", "key", k, "value", v)
			}
			if err := test.Integ(); err != nil {
				return fmt.Errorf("integration tests failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("config", "", "sensord.yaml describing the bus under test (defaults when empty)")
	cmd.Flags().Bool("selftest", false, "also run the gyroscope self-test")
	return cmd
}

// integrationEnv validates the hardware config and returns the variables the
// tests expect. Test binaries run from their package directory, so the config
// path is made absolute.
func integrationEnv(path string, selfTest bool) (map[string]string, error) {
	env := map[string]string{EnvIntegration: "1"}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("could not resolve config path: %w", err)
		}
		if _, err := config.Load(abs); err != nil {
			return nil, err
		}
		env[EnvConfig] = abs
	}
	if selfTest {
		env[EnvSelfTest] = "1"
	}
	return env, nil
}
