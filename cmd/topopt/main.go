// Command topopt runs a SIMP topology optimization on one of the preset load
// cases and prints the final layout as a density map.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/notargets/TopOpt/harness"
	"github.com/notargets/TopOpt/problems"
	"github.com/notargets/TopOpt/runner"
	"github.com/notargets/TopOpt/topopt"
)

type options struct {
	Problem    string
	ConfigFile string
	Nelx, Nely int
	Volfrac    float64
	MaxIter    int
	Report     int
	Accel      bool
	Verbose    bool
	StateFile  string
}

func parseFlags() (options, map[string]bool) {
	var opts options
	flag.StringVar(&opts.Problem, "problem", "mbb", "load case: "+strings.Join(problems.Names(), ", "))
	flag.StringVar(&opts.ConfigFile, "config", "", "YAML or TOML configuration file")
	flag.IntVar(&opts.Nelx, "nelx", 0, "elements along x (overrides config)")
	flag.IntVar(&opts.Nely, "nely", 0, "elements along y (overrides config)")
	flag.Float64Var(&opts.Volfrac, "volfrac", 0, "target volume fraction (overrides config)")
	flag.IntVar(&opts.MaxIter, "iters", 0, "maximum iterations (overrides config)")
	flag.IntVar(&opts.Report, "report", 10, "iterations between progress lines")
	flag.BoolVar(&opts.Accel, "accel", false, "use an OCCA device for the linear solves when available")
	flag.BoolVar(&opts.Verbose, "v", false, "log every iteration")
	flag.StringVar(&opts.StateFile, "state", "", "write the final state as YAML to this file")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set
}

func loadConfig(opts options, set map[string]bool) (topopt.Config, error) {
	cfg := topopt.DefaultConfig()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = topopt.LoadConfig(opts.ConfigFile); err != nil {
			return topopt.Config{}, err
		}
	}
	var ov topopt.Overrides
	if set["nelx"] {
		ov.Nelx = topopt.Ptr(opts.Nelx)
	}
	if set["nely"] {
		ov.Nely = topopt.Ptr(opts.Nely)
	}
	if set["volfrac"] {
		ov.Volfrac = topopt.Ptr(opts.Volfrac)
	}
	if set["iters"] {
		ov.MaxIter = topopt.Ptr(opts.MaxIter)
	}
	return cfg.WithOverrides(ov)
}

func main() {
	opts, set := parseFlags()

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	topopt.SetLogger(logger)

	cfg, err := loadConfig(opts, set)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	problem, err := problems.Lookup(opts.Problem, cfg.Nelx, cfg.Nely)
	if err != nil {
		log.Fatalf("problem: %v", err)
	}

	selector := &runner.Selector{PreferAccelerated: opts.Accel, Logger: logger}
	worker := harness.NewWorker(selector.Backend())
	worker.ReportEvery = opts.Report
	worker.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands := make(chan harness.Command, 2)
	events := make(chan harness.Event, 16)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx, commands, events) }()

	fmt.Printf("=== SIMP Topology Optimization ===\n")
	fmt.Printf("Problem: %s, mesh %dx%d, volfrac %.3f, penal %.1f, rmin %.2f\n",
		problem.Name, cfg.Nelx, cfg.Nely, cfg.Volfrac, cfg.Penal, cfg.Rmin)

	commands <- harness.Init{Config: cfg, Problem: problem}
	final, ok := drain(events, commands)
	close(commands)
	for range events {
	}
	if err := <-done; err != nil && ctx.Err() == nil {
		log.Fatalf("worker: %v", err)
	}
	if !ok {
		os.Exit(1)
	}

	fmt.Printf("\nFinished after %d iterations: compliance %.4f, volume %.4f, change %.4f\n",
		final.Iteration, final.Compliance, final.Volume, final.Change)
	printDensities(os.Stdout, final.Densities, cfg.Nelx, cfg.Nely)

	if opts.StateFile != "" {
		data, err := harness.EncodeState(final)
		if err != nil {
			log.Fatalf("state: %v", err)
		}
		if err := os.WriteFile(opts.StateFile, data, 0o644); err != nil {
			log.Fatalf("state: %v", err)
		}
	}
}

// drain follows the worker from Ready to Converged, printing progress. It
// reports false if the run failed or was interrupted.
func drain(events <-chan harness.Event, commands chan<- harness.Command) (topopt.State, bool) {
	var last topopt.State
	for ev := range events {
		switch e := ev.(type) {
		case harness.Ready:
			fmt.Printf("Solver backend: %s\n", e.Backend)
			commands <- harness.Start{}
		case harness.StateUpdate:
			last = e.State
			fmt.Printf("It.:%4d  Obj.:%11.4f  Vol.:%6.3f  ch.:%6.3f\n",
				e.State.Iteration, e.State.Compliance, e.State.Volume, e.State.Change)
		case harness.Converged:
			commands <- harness.Terminate{}
			return e.State, true
		case harness.Failed:
			log.Printf("run failed: %v", e.Err)
			commands <- harness.Terminate{}
			return last, false
		}
	}
	return last, false
}

// printDensities draws one character per element, darker for denser, top row
// first.
func printDensities(w io.Writer, rho []float64, nelx, nely int) {
	const shades = " .:-=+*#%@"
	var sb strings.Builder
	for ely := nely - 1; ely >= 0; ely-- {
		for elx := 0; elx < nelx; elx++ {
			v := rho[elx*nely+ely]
			i := int(v * float64(len(shades)-1))
			i = max(0, min(i, len(shades)-1))
			sb.WriteByte(shades[i])
		}
		sb.WriteByte('\n')
	}
	fmt.Fprint(w, sb.String())
}
