package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/abiosoft/ishell"

	"robocore/config"
	"robocore/host/robot"
	"robocore/host/serial"
	"robocore/host/telemetry"
	"robocore/sim"
)

var (
	configPath = flag.String("config", "", "Config file (.json, .yaml or .yml)")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	simulated  = flag.Bool("sim", false, "Run against an in-process simulated board")
	listen     = flag.String("telemetry", "", "Telemetry listen address, e.g. :8080 (overrides config)")
	script     = flag.String("c", "", "Run ';'-separated commands and exit")
	verbose    = flag.Bool("verbose", false, "Print firmware debug output (sim only)")
)

// app is the state shared by the shell commands
type app struct {
	robot  *robot.Robot
	board  *sim.Board // nil unless -sim
	server *telemetry.Server
	config *config.HostConfig

	// printReports echoes streamed reports to the shell; read on the
	// transport goroutine
	printReports atomic.Bool
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *listen != "" {
		cfg.Telemetry.Addr = *listen
	}

	a := &app{robot: robot.NewRobot(), config: cfg}
	if err := a.connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	shell := ishell.New()
	a.register(shell)
	a.robot.OnEncoder(a.reportHandler(shellWriter{shell}))

	if cfg.Telemetry.Addr != "" {
		if err := a.startTelemetry(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *script != "" {
		if err := runScript(shell, *script); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	shell.Println("robocore shell (type 'help' for commands)")
	shell.Run()
}

func (a *app) connect() error {
	if *simulated {
		var opts []sim.Option
		if *verbose {
			opts = append(opts, sim.WithDebug(os.Stderr))
		}
		a.board = sim.NewBoard(opts...)
		port, err := a.board.Port()
		if err != nil {
			return err
		}
		fmt.Println("Connected to simulated board")
		if err := a.robot.ConnectPort(port); err != nil {
			return err
		}
	} else {
		fmt.Printf("Connecting to %s...\n", a.config.Device)
		err := a.robot.ConnectWithConfig(&serial.Config{
			Device:      a.config.Device,
			Baud:        a.config.Baud,
			ReadTimeout: a.config.ReadTimeoutMS,
		})
		if err != nil {
			return err
		}
	}

	if err := a.robot.RetrieveDictionary(); err != nil {
		return fmt.Errorf("failed to retrieve dictionary: %w", err)
	}
	fmt.Printf("Dictionary retrieved: %d bytes\n", len(a.robot.RawDictionary()))
	return nil
}

func (a *app) startTelemetry() error {
	t := a.config.Telemetry
	a.server = telemetry.NewServer(a.robot, nil)
	if t.RedisAddr != "" {
		a.server.AddSink(telemetry.NewRedisSink(t.RedisAddr, t.RedisPrefix))
	}

	interval := time.Duration(t.StreamMS) * time.Millisecond
	for id := 0; id < a.encoderCount(); id++ {
		if err := a.robot.StreamEncoder(id, interval); err != nil {
			return fmt.Errorf("stream encoder %d: %w", id, err)
		}
	}

	go func() {
		if err := a.server.ListenAndServe(t.Addr); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
		}
	}()
	return nil
}

// reportHandler forwards streamed reports to telemetry and, when enabled,
// echoes them to w.
func (a *app) reportHandler(w io.Writer) func(robot.EncoderReport) {
	return func(rep robot.EncoderReport) {
		if a.server != nil {
			a.server.Publish(rep)
		}
		if a.printReports.Load() {
			fmt.Fprintf(w, "encoder %d: %d @ %d\n", rep.ID, rep.Position, rep.Clock)
		}
	}
}

func (a *app) close() {
	if a.server != nil {
		a.server.Close()
	}
	a.robot.Close()
	if a.board != nil {
		a.board.Close()
	}
}

func (a *app) encoderCount() int {
	n, err := a.robot.ConstantInt("ENCODER_COUNT")
	if err != nil {
		return 0
	}
	return int(n)
}
