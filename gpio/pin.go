package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/sensord"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var _ sensord.InterruptPin = &Pin{}

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Pin is a host GPIO line wired to a sensor interrupt output, e.g. "GPIO17".
type Pin struct {
	name string
	pull gpio.Pull
	pin  gpio.PinIO
}

type PinOpt func(*Pin)

// WithPull sets the input bias. Defaults to pull-down for active-high interrupts.
func WithPull(pull gpio.Pull) PinOpt {
	return func(p *Pin) {
		p.pull = pull
	}
}

func NewPin(name string, opts ...PinOpt) *Pin {
	p := &Pin{name: name, pull: gpio.PullDown}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init configures the line as an input with rising edge detection.
func (p *Pin) Init(ctx context.Context) error {
	if err := hostInit(); err != nil {
		return fmt.Errorf("could not init host: %w", err)
	}
	pin := gpioreg.ByName(p.name)
	if pin == nil {
		return fmt.Errorf("gpio pin %q not found", p.name)
	}
	if err := pin.In(p.pull, gpio.RisingEdge); err != nil {
		return fmt.Errorf("could not configure gpio pin %q: %w", p.name, err)
	}
	p.pin = pin
	return nil
}

// WaitForEdge blocks until a rising edge or timeout. ctx is only checked
// before waiting; keep timeout short when cancellation matters.
func (p *Pin) WaitForEdge(ctx context.Context, timeout time.Duration) (bool, error) {
	if p.pin == nil {
		return false, fmt.Errorf("gpio pin %q not initialized", p.name)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.pin.WaitForEdge(timeout), nil
}

func (p *Pin) String() string {
	return p.name
}

// Halt stops edge detection.
func (p *Pin) Halt() error {
	if p.pin == nil {
		return nil
	}
	return p.pin.In(gpio.PullNoChange, gpio.NoEdge)
}
