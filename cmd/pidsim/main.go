// Command pidsim flies a scripted scenario through the PID controller and a
// simulated quad, then reports tracking metrics. Runs can be recorded to the
// blackbox database, streamed over a serial port and plotted.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/banshee-data/flightcore/internal/blackbox"
	"github.com/banshee-data/flightcore/internal/charts"
	"github.com/banshee-data/flightcore/internal/monitoring"
	"github.com/banshee-data/flightcore/internal/pid"
	"github.com/banshee-data/flightcore/internal/security"
	"github.com/banshee-data/flightcore/internal/sim"
	"github.com/banshee-data/flightcore/internal/version"
)

var (
	scenario    = flag.String("scenario", "step", "Scenario to fly (see -list)")
	profilePath = flag.String("profile", "", "Profile file (.json, .yaml or .yml); defaults when empty")
	seed        = flag.Int64("seed", 1, "Seed for gyro noise and timing jitter")
	gyroNoise   = flag.Float64("noise", 0, "Gyro noise standard deviation, deg/s")
	jitterUs    = flag.Int("jitter", 0, "Maximum loop timing jitter, microseconds")
	recordEvery = flag.Int64("record-every", 1, "Record one frame in every N ticks")
	dbPath      = flag.String("db", "", "Blackbox database to record the session into")
	notes       = flag.String("notes", "", "Notes stored with the recorded session")
	serialPort  = flag.String("serial", "", "Serial port to stream CSV frames to")
	serialBaud  = flag.Int("baud", 115200, "Serial baud rate")
	serialEvery = flag.Int64("serial-every", 40, "Send one in every N recorded frames to the serial port")
	pngPath     = flag.String("png", "", "Write a PNG chart of the run")
	htmlPath    = flag.String("html", "", "Write an interactive HTML chart of the run")
	listOnly    = flag.Bool("list", false, "List scenarios and exit")
	verbose     = flag.Bool("v", false, "Log diagnostics to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// config is the parsed command line.
type config struct {
	Scenario    sim.Scenario
	Profile     pid.Profile
	Loop        pid.LoopConfig
	Seed        int64
	GyroNoise   float32
	JitterUs    int32
	RecordEvery int64
	DBPath      string
	Notes       string
	SerialPort  string
	Serial      blackbox.PortOptions
	SerialEvery int64
	PNGPath     string
	HTMLPath    string
}

func configFromFlags() (config, error) {
	sc, err := sim.LookupScenario(*scenario)
	if err != nil {
		return config{}, fmt.Errorf("%w (have %s)", err, strings.Join(sim.ScenarioNames(), ", "))
	}
	profile, loop := pid.DefaultProfile(), pid.DefaultLoopConfig()
	if *profilePath != "" {
		if profile, loop, err = pid.LoadProfile(*profilePath); err != nil {
			return config{}, err
		}
	}
	if *recordEvery < 1 {
		return config{}, fmt.Errorf("record-every must be at least 1, got %d", *recordEvery)
	}
	if *jitterUs < 0 {
		return config{}, fmt.Errorf("jitter must not be negative, got %d", *jitterUs)
	}
	return config{
		Scenario:    sc,
		Profile:     profile,
		Loop:        loop,
		Seed:        *seed,
		GyroNoise:   float32(*gyroNoise),
		JitterUs:    int32(*jitterUs),
		RecordEvery: *recordEvery,
		DBPath:      *dbPath,
		Notes:       *notes,
		SerialPort:  *serialPort,
		Serial:      blackbox.PortOptions{BaudRate: *serialBaud},
		SerialEvery: *serialEvery,
		PNGPath:     *pngPath,
		HTMLPath:    *htmlPath,
	}, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pidsim"))
		return
	}
	if *listOnly {
		listScenarios(os.Stdout)
		return
	}
	if *verbose {
		monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr, Diag: os.Stderr})
	} else {
		monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr})
	}

	cfg, err := configFromFlags()
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("pidsim: %v", err)
	}
}

func listScenarios(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range sim.ScenarioNames() {
		sc, _ := sim.LookupScenario(name)
		fmt.Fprintf(tw, "%s\t%v\t%s\n", sc.Name, sc.Duration, sc.Description)
	}
	tw.Flush()
}

// run flies cfg, records it to every configured sink and writes a report to
// out.
func run(ctx context.Context, cfg config, out io.Writer) error {
	rec := blackbox.NewRecorder(0)
	sinks := blackbox.MultiSink{rec}

	if cfg.SerialPort != "" {
		ss, err := blackbox.OpenSerialSink(cfg.SerialPort, cfg.Serial, cfg.SerialEvery, nil)
		if err != nil {
			return err
		}
		defer ss.Close()
		sinks = append(sinks, ss)
	}

	var (
		store  *blackbox.Store
		sess   *blackbox.Session
		writer *blackbox.SessionWriter
	)
	if cfg.DBPath != "" {
		var err error
		if store, err = blackbox.Open(cfg.DBPath); err != nil {
			return err
		}
		defer store.Close()

		sess, err = store.CreateSession(ctx, blackbox.SessionInfo{
			Scenario:   cfg.Scenario.Name,
			Profile:    cfg.Profile,
			LooptimeUs: cfg.Loop.TargetLooptimeUs(),
			Notes:      cfg.Notes,
		})
		if err != nil {
			return err
		}
		log.Printf("recording session %s to %s", sess.ID, cfg.DBPath)
		writer = store.NewSessionWriter(sess.ID, 0)
		sinks = append(sinks, writer)
	}

	res, err := sim.Run(ctx, sim.Options{
		Scenario:    cfg.Scenario,
		Profile:     cfg.Profile,
		Loop:        cfg.Loop,
		Plant:       sim.DefaultPlantConfig(),
		Seed:        cfg.Seed,
		GyroNoise:   cfg.GyroNoise,
		JitterUs:    cfg.JitterUs,
		Sink:        sinks,
		RecordEvery: cfg.RecordEvery,
	})
	if err != nil {
		if sess != nil {
			if delErr := store.DeleteSession(context.WithoutCancel(ctx), sess.ID); delErr != nil {
				log.Printf("failed to remove incomplete session %s: %v", sess.ID, delErr)
			}
		}
		return err
	}
	if writer != nil {
		if err := writer.Close(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}

	report(out, res)

	frames := rec.Frames()
	title := fmt.Sprintf("%s (looptime %dus)", res.Scenario, cfg.Loop.TargetLooptimeUs())
	if cfg.PNGPath != "" {
		if err := writeFile(cfg.PNGPath, func(w io.Writer) error {
			return charts.WritePNG(w, title, frames)
		}); err != nil {
			return err
		}
	}
	if cfg.HTMLPath != "" {
		if err := writeFile(cfg.HTMLPath, func(w io.Writer) error {
			return charts.WriteHTML(w, frames, charts.HTMLOptions{Title: title})
		}); err != nil {
			return err
		}
	}
	return nil
}

func report(w io.Writer, res *sim.Result) {
	fmt.Fprintf(w, "scenario %s: %d ticks over %v, %d frames recorded\n",
		res.Scenario, res.Ticks, res.Duration, res.Recorded)
	fmt.Fprintf(w, "crash events %d, max motor mix range %.2f\n", res.CrashEvents, res.MaxMotorMixRange)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "axis\tmean\tstddev\trms\tmax\tstep\tovershoot%\tsettle ms\t")
	for axis, m := range res.Metrics.Axes {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f\t%.1f\t%.2f\t\n",
			pid.Axis(axis), m.MeanError, m.StdDevError, m.RMSError, m.MaxAbsError,
			m.StepSize, m.OvershootPercent, m.SettleTimeMs)
	}
	tw.Flush()
}

func writeFile(path string, render func(io.Writer) error) error {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Printf("wrote %s", path)
	return nil
}
