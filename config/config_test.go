package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensord/gyro"
)

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadOptional_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  adapter: ftdi\n"), 0o600))
	_, err := LoadOptional(path)
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensord.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  adapter: mcp2221
  address: 0x6B
gyro:
  odr: 12.5
  full_scale: 2000
  interrupt_pin: GPIO17
  poll_interval: 2ms
mqtt:
  broker: tcp://localhost:1883
  qos: 1
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AdapterMCP2221, cfg.Bus.Adapter)
	assert.Equal(t, byte(0x6B), cfg.Bus.Address)
	assert.Equal(t, "GPIO17", cfg.Gyro.InterruptPin)
	assert.Equal(t, 2*time.Millisecond, cfg.Gyro.PollInterval)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "sensord", cfg.MQTT.ClientID)

	odr, err := cfg.Gyro.OutputDataRate()
	require.NoError(t, err)
	assert.Equal(t, gyro.ODR12_5Hz, odr)
	fs, err := cfg.Gyro.Scale()
	require.NoError(t, err)
	assert.Equal(t, gyro.FS2000dps, fs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"adapter", func(c *Config) { c.Bus.Adapter = "ftdi" }},
		{"address", func(c *Config) { c.Bus.Address = 0x80 }},
		{"odr", func(c *Config) { c.Gyro.ODR = 100 }},
		{"full scale", func(c *Config) { c.Gyro.FullScale = 4000 }},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gyro:\n  full_scale: 3000\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
