package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensord/gyro"
	"github.com/mklimuk/sensord/mqtt"
)

const (
	AdapterPeriph  = "periph"
	AdapterMCP2221 = "mcp2221"
	AdapterNanoPi  = "nanopi"
	// AdapterMock simulates a still LSM6DS3 without hardware.
	AdapterMock = "mock"
)

// Config holds sensord settings. Zero values are replaced by defaults on Load.
type Config struct {
	Bus  Bus  `yaml:"bus"`
	Gyro Gyro `yaml:"gyro"`
	MQTT MQTT `yaml:"mqtt"`
}

type Bus struct {
	// Adapter is one of periph, mcp2221, nanopi or mock.
	Adapter string `yaml:"adapter"`
	// Device is the periph bus name, e.g. "/dev/i2c-1" or "1".
	Device string `yaml:"device"`
	// Number is the gobot bus number.
	Number  int  `yaml:"number"`
	Address byte `yaml:"address"`
}

type Gyro struct {
	// ODR in Hz
	ODR float64 `yaml:"odr"`
	// FullScale in dps
	FullScale int `yaml:"full_scale"`
	// InterruptPin is the host GPIO wired to INT1, e.g. "GPIO17". Optional.
	InterruptPin string        `yaml:"interrupt_pin"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

func Default() Config {
	return Config{
		Bus: Bus{
			Adapter: AdapterPeriph,
			Address: gyro.DefaultAddress,
		},
		Gyro: Gyro{
			ODR:          104,
			FullScale:    250,
			PollInterval: 5 * time.Millisecond,
		},
		MQTT: MQTT{
			ClientID: "sensord",
			Topic:    mqtt.DefaultTopic,
		},
	}
}

// Load reads a YAML file on top of the defaults. The file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load for a path nobody asked for explicitly: a missing file
// yields the defaults.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c Config) Validate() error {
	switch c.Bus.Adapter {
	case AdapterPeriph, AdapterMCP2221, AdapterNanoPi, AdapterMock:
	default:
		return fmt.Errorf("unknown adapter %q", c.Bus.Adapter)
	}
	if c.Bus.Address == 0 || c.Bus.Address > 0x7F {
		return fmt.Errorf("invalid i2c address %#02x", c.Bus.Address)
	}
	if _, err := c.Gyro.OutputDataRate(); err != nil {
		return err
	}
	if _, err := c.Gyro.Scale(); err != nil {
		return err
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d", c.MQTT.QoS)
	}
	return nil
}

func (g Gyro) OutputDataRate() (gyro.OutputDataRate, error) {
	switch g.ODR {
	case 12.5:
		return gyro.ODR12_5Hz, nil
	case 26:
		return gyro.ODR26Hz, nil
	case 52:
		return gyro.ODR52Hz, nil
	case 104:
		return gyro.ODR104Hz, nil
	case 208:
		return gyro.ODR208Hz, nil
	case 416:
		return gyro.ODR416Hz, nil
	case 833:
		return gyro.ODR833Hz, nil
	case 1660:
		return gyro.ODR1660Hz, nil
	}
	return 0, fmt.Errorf("unsupported output data rate %gHz", g.ODR)
}

func (g Gyro) Scale() (gyro.FullScale, error) {
	switch g.FullScale {
	case 125:
		return gyro.FS125dps, nil
	case 250:
		return gyro.FS250dps, nil
	case 500:
		return gyro.FS500dps, nil
	case 1000:
		return gyro.FS1000dps, nil
	case 2000:
		return gyro.FS2000dps, nil
	}
	return 0, fmt.Errorf("unsupported full scale %ddps", g.FullScale)
}
