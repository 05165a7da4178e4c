package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensord"
	"github.com/mklimuk/sensord/cmd/sensord/console"
	"github.com/mklimuk/sensord/gyro"
	"github.com/mklimuk/sensord/mqtt"
	"github.com/mklimuk/sensord/ws"
)

const edgeTimeout = 100 * time.Millisecond

var gyroCmd = cli.Command{
	Name:    "gyro",
	Aliases: []string{"g"},
	Usage:   "LSM6DS3 gyroscope commands",
	Subcommands: cli.Commands{
		&gyroReadCmd,
		&gyroStreamCmd,
		&gyroSelfTestCmd,
	},
}

var outputFlag = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Value:   "text",
	Usage:   "output format: text or yaml",
}

var gyroReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read a single angular rate sample",
	Flags: []cli.Flag{
		outputFlag,
		&cli.DurationFlag{
			Name:  "timeout",
			Value: time.Second,
		},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		st, err := openStation(ctx, loadedConfig(c))
		if err != nil {
			return console.ExitErr(console.ExitFailure, "bus initialization error", err)
		}
		defer closeStation(st)
		if err := st.gyro.Init(ctx); err != nil {
			return console.ExitErr(console.ExitFailure, "gyroscope initialization error", err)
		}
		defer shutdownGyro(ctx, st.gyro)

		readCtx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
		defer cancel()
		ev, err := sensord.Poll(readCtx, st.gyro, loadedConfig(c).Gyro.PollInterval)
		if err != nil {
			return console.ExitErr(console.ExitFailure, "error reading gyroscope", err)
		}
		return printEvent(c.String("output"), ev)
	},
}

var gyroStreamCmd = cli.Command{
	Name:  "stream",
	Usage: "sample continuously, optionally publishing to a mqtt broker",
	Flags: []cli.Flag{
		outputFlag,
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "stop after n samples, 0 streams until interrupted",
		},
		&cli.StringFlag{
			Name:  "mqtt-broker",
			Usage: "broker url, e.g. tcp://localhost:1883 (overrides config)",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "serve samples to websocket clients on this address, e.g. :8080",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "do not print samples",
		},
	},
	Action: func(c *cli.Context) error {
		cfg := loadedConfig(c)
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker := cfg.MQTT.Broker
		if c.IsSet("mqtt-broker") {
			broker = c.String("mqtt-broker")
		}
		var sinks []eventSink
		if broker != "" {
			pub, err := mqtt.Connect(ctx, broker, cfg.MQTT.ClientID,
				mqtt.WithTopic(cfg.MQTT.Topic), mqtt.WithQoS(cfg.MQTT.QoS))
			if err != nil {
				return console.ExitErr(console.ExitFailure, "mqtt error", err)
			}
			defer pub.Close()
			sinks = append(sinks, pub)
			console.PInfof(console.PictoCheck, "publishing to %s on %s", console.White(cfg.MQTT.Topic), console.White(broker))
		}

		st, err := openStation(ctx, cfg)
		if err != nil {
			return console.ExitErr(console.ExitFailure, "bus initialization error", err)
		}
		defer closeStation(st)
		if err := st.gyro.Init(ctx); err != nil {
			return console.ExitErr(console.ExitFailure, "gyroscope initialization error", err)
		}
		defer shutdownGyro(context.WithoutCancel(ctx), st.gyro)
		if addr := c.String("listen"); addr != "" {
			hub := ws.NewHub()
			// the driver is not safe for concurrent use, so status is fixed at start
			status := map[string]any{
				"source":     st.gyro.Source().String(),
				"odr":        cfg.Gyro.ODR,
				"full_scale": cfg.Gyro.FullScale,
			}
			srv, err := ws.Listen(addr, hub, func() any { return status })
			if err != nil {
				return console.ExitErr(console.ExitFailure, "websocket server error", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Warn("websocket server shutdown error", "error", err)
				}
			}()
			sinks = append(sinks, hub)
			console.PInfof(console.PictoCheck, "serving samples on ws://%s/events", console.White(srv.Addr()))
		}
		if st.edge != nil {
			console.PInfof(console.PictoPin, "waiting for data-ready on %s", console.White(st.edge))
		}

		count := c.Int("count")
		for n := 0; count == 0 || n < count; n++ {
			ev, err := nextEvent(ctx, st, cfg.Gyro.PollInterval)
			if errors.Is(err, context.Canceled) {
				break
			}
			if err != nil {
				return console.ExitErr(console.ExitFailure, "error reading gyroscope", err)
			}
			if !c.Bool("quiet") {
				if err := printEvent(c.String("output"), ev); err != nil {
					return err
				}
			}
			for _, sink := range sinks {
				if err := sink.Publish(ctx, ev); err != nil {
					slog.Warn("could not publish sample", "error", err)
				}
			}
		}
		console.PInfof(console.PictoStop, "stream stopped")
		return nil
	},
}

type eventSink interface {
	Publish(ctx context.Context, ev *sensord.Event) error
}

// nextEvent waits for the data-ready edge when one is wired and falls back to
// status polling otherwise.
func nextEvent(ctx context.Context, st *station, interval time.Duration) (*sensord.Event, error) {
	if st.edge != nil {
		for {
			ok, err := st.edge.WaitForEdge(ctx, edgeTimeout)
			if err != nil {
				return nil, err
			}
			if ok {
				break
			}
			slog.Debug("no data-ready edge", "pin", st.edge, "timeout", edgeTimeout)
		}
	}
	return sensord.Poll(ctx, st.gyro, interval)
}

var gyroSelfTestCmd = cli.Command{
	Name:    "selftest",
	Aliases: []string{"st"},
	Usage:   "run the positive and negative electrostatic self-test",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("the device must stay still during the test, continue?")
			if err != nil {
				return console.ExitErr(console.ExitFailure, "prompt error", err)
			}
			if answer != console.Yes {
				return nil
			}
		}
		st, err := openStation(ctx, loadedConfig(c))
		if err != nil {
			return console.ExitErr(console.ExitFailure, "bus initialization error", err)
		}
		defer closeStation(st)
		if err := st.gyro.Init(ctx); err != nil {
			return console.ExitErr(console.ExitFailure, "gyroscope initialization error", err)
		}
		defer shutdownGyro(ctx, st.gyro)

		passed := true
		for _, mode := range []gyro.SelfTestMode{gyro.SelfTestPositive, gyro.SelfTestNegative} {
			res, err := st.gyro.SelfTest(ctx, mode)
			if err != nil {
				return console.ExitErr(console.ExitFailure, "self-test error", err)
			}
			console.PInfof(console.PictoGyro, "%s %s x=%.0f y=%.0f z=%.0f mdps",
				console.White(mode), console.PassFail(res.Passed),
				res.DeltaMdps[0], res.DeltaMdps[1], res.DeltaMdps[2])
			passed = passed && res.Passed
		}
		if !passed {
			return console.Exit(console.ExitSelfTest, "self-test failed")
		}
		console.PInfof(console.PictoCheck, "%s self-test passed", console.White(st.gyro.Source()))
		return nil
	},
}

func printEvent(format string, ev *sensord.Event) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(console.Writer())
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(ev); err != nil {
			return console.ExitErr(console.ExitFailure, "encoding error", err)
		}
	default:
		v := ev.GyroUncalibrated.V
		console.PInfof(console.PictoGyro, "%d %s x=%s y=%s z=%s rad/s", ev.Timestamp, ev.Source,
			console.Cyan(fmt.Sprintf("%+.5f", v[0])),
			console.Cyan(fmt.Sprintf("%+.5f", v[1])),
			console.Cyan(fmt.Sprintf("%+.5f", v[2])))
	}
	return nil
}

func shutdownGyro(ctx context.Context, g *gyro.LSM6DS3) {
	if err := g.Shutdown(ctx); err != nil {
		console.Errorf("gyroscope shutdown error: %s", console.Red(err))
	}
}

func closeStation(st *station) {
	if err := st.Close(); err != nil {
		console.Errorf("error closing bus: %s", console.Red(err))
	}
}
