package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/VictoriaMetrics/metrics"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/vtable/alloc"
	"github.com/wippyai/vtable/errors"
	"github.com/wippyai/vtable/element"
	"github.com/wippyai/vtable/host"
	"github.com/wippyai/vtable/resource"
	"github.com/wippyai/vtable/stress"
)

func main() {
	app := &cli.App{
		Name:  "vrc",
		Usage: "Exercise reference counted vtable handles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "vrc.yaml",
				Usage: "optional YAML configuration file",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log at debug level",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "print metrics in Prometheus text format after the command",
			},
		},
		Commands: []*cli.Command{{
			Name:  "race",
			Usage: "Race final releases against weak upgrades",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "iterations",
					Usage: "number of races (default from config, 10000)",
				},
				&cli.IntFlag{
					Name:  "workers",
					Usage: "concurrent workers (default GOMAXPROCS)",
				},
				&cli.BoolFlag{
					Name:    "interactive",
					Aliases: []string{"i"},
					Usage:   "show a progress view",
				},
			},
			Action: raceCommand,
		}, {
			Name:      "scenario",
			Usage:     "Run a scripted handle lifecycle",
			ArgsUsage: "[name]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "list",
					Usage: "list scenarios and exit",
				},
			},
			Action: scenarioCommand,
		}, {
			Name:   "elements",
			Usage:  "Build a sample element tree, run the passes and check for leaks",
			Action: elementsCommand,
		}},
		Before: setup,
		After: func(c *cli.Context) error {
			if c.Bool("metrics") {
				metrics.WritePrometheus(c.App.Writer, false)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	cfg, err := LoadOptional(c.String("config"))
	if err != nil {
		return err
	}
	c.App.Metadata = map[string]any{"config": cfg}

	logger, err := newLogger(cfg.Log, c.Bool("verbose"))
	if err != nil {
		return err
	}
	alloc.SetLogger(logger)
	resource.SetLogger(logger)
	host.SetLogger(logger)
	element.SetLogger(logger.Named("element"))
	stress.SetLogger(logger.Named("stress"))
	return nil
}

func newLogger(cfg LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.ParseFailed("log.level", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func config(c *cli.Context) *Config {
	if cfg, ok := c.App.Metadata["config"].(*Config); ok {
		return cfg
	}
	return defaultConfig()
}

func raceCommand(c *cli.Context) error {
	cfg := config(c)
	opts := stress.Options{
		Iterations: cfg.Race.Iterations,
		Workers:    cfg.Race.Workers,
	}
	if c.IsSet("iterations") {
		opts.Iterations = c.Int("iterations")
	}
	if c.IsSet("workers") {
		opts.Workers = c.Int("workers")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	var (
		rep stress.Report
		err error
	)
	if c.Bool("interactive") && term.IsTerminal(int(os.Stdout.Fd())) {
		rep, err = runInteractive(ctx, opts)
	} else {
		rep, err = stress.Run(ctx, opts)
	}
	if err != nil {
		return err
	}

	printReport(c.App.Writer, rep)
	if !rep.OK() {
		return cli.Exit("protocol violation detected", 2)
	}
	return nil
}

func scenarioCommand(c *cli.Context) error {
	out := c.App.Writer
	if c.Bool("list") {
		for _, s := range stress.Scenarios() {
			fmt.Fprintf(out, "%-22s %s\n", s.Name, s.Summary)
		}
		return nil
	}

	scenarios := stress.Scenarios()
	if name := c.Args().First(); name != "" {
		s, ok := stress.Lookup(name)
		if !ok {
			return cli.Exit(fmt.Sprintf("unknown scenario %q (see --list)", name), 1)
		}
		scenarios = []stress.Scenario{s}
	}

	failed := 0
	for _, s := range scenarios {
		fmt.Fprintln(out, headerStyle.Render(s.Name))
		steps, err := s.Run(c.Context)
		if err != nil {
			return err
		}
		for _, st := range steps {
			fmt.Fprintln(out, renderStep(st))
		}
		if !stress.Passed(steps) {
			failed++
		}
		fmt.Fprintln(out)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d scenario(s) failed", failed), 2)
	}
	return nil
}

func elementsCommand(c *cli.Context) error {
	out := c.App.Writer
	before := element.Blocks().Stats()

	root := element.NewComponent("window", element.Geometry{Width: 320, Height: 200},
		element.NewRectangle("background", element.Geometry{Width: 320, Height: 200}, 0x202020),
		element.NewComponent("toolbar", element.Geometry{Width: 320, Height: 32},
			element.NewText("title", "vrc", element.Geometry{X: 8, Y: 8, Width: 120, Height: 16}),
			element.NewRectangle("close", element.Geometry{X: 300, Y: 8, Width: 24, Height: 16}, 0xff0000),
		),
	)
	doc := element.NewDocument(root)

	var diag element.Diagnostics
	err := element.RunPasses(c.Context, doc, &diag, element.DefaultPasses()...)
	if err == nil {
		for _, e := range doc.Elements {
			b := element.BaseOf(e)
			idx, _ := b.ItemIndex()
			fmt.Fprintf(out, "%3d %-10s %s\n", idx, element.KindOf(e), b.ID)
		}
		for _, d := range diag.All() {
			fmt.Fprintln(out, renderDiagnostic(d))
		}
	}
	doc.Release()

	after := element.Blocks().Stats()
	fmt.Fprintf(out, "blocks allocated %d, freed %d, live %d\n",
		after.Allocs-before.Allocs, after.Frees-before.Frees, after.Live)
	if n := element.Blocks().ReportLeaks(); n > 0 {
		return cli.Exit(fmt.Sprintf("%d element block(s) leaked", n), 2)
	}
	return err
}
