package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/angelmondragon/inventory-tracker/internal/imaging"
	"github.com/angelmondragon/inventory-tracker/internal/storage"
	"github.com/angelmondragon/inventory-tracker/pkg/config"
	"github.com/angelmondragon/inventory-tracker/pkg/logger"
	"github.com/angelmondragon/inventory-tracker/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type cliArgs struct {
	Driver  string `help:"Override the storage driver (sqlite, postgres, bolt)."`
	Path    string `help:"Override the store file path."`
	Metrics bool   `help:"Print operation counters on stderr when done."`

	Init     cmdInit     `cmd:"" help:"Create or upgrade the store."`
	Usage    cmdUsage    `cmd:"" help:"Show storage usage against the quota."`
	Export   cmdExport   `cmd:"" help:"Export products, categories and settings as JSON."`
	Import   cmdImport   `cmd:"" help:"Restore an exported JSON snapshot."`
	Clear    cmdClear    `cmd:"" help:"Delete every record in every collection."`
	Product  cmdProduct  `cmd:"" help:"Manage products."`
	Category cmdCategory `cmd:"" help:"Manage categories."`
	Image    cmdImage    `cmd:"" help:"Attach and fetch product photos."`
	Setting  cmdSetting  `cmd:"" help:"Manage settings."`
}

// CliConfig carries the process surface Run talks to.
type CliConfig struct {
	Name        string
	Description string
	Exit        func(int)
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	// Config replaces loading from the environment when set.
	Config *config.Config
}

// NewCliConfig returns a CliConfig bound to the real process.
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "inventory",
		Description: "Track products, categories, photos and settings in a local store.",
		Exit:        os.Exit,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// app is bound into every command's Run method.
type app struct {
	ctx   context.Context
	cfg   *config.Config
	gw    *storage.Gateway
	img   *imaging.Compressor
	log   *logger.Logger
	stdin io.Reader
	out   io.Writer
}

// Run parses args, opens the store and executes the selected command.
func Run(args []string, cc *CliConfig) (int, error) {
	var cli cliArgs
	parser, err := kong.New(&cli,
		kong.Name(cc.Name),
		kong.Description(cc.Description),
		kong.Exit(cc.Exit),
		kong.Writers(cc.Stdout, cc.Stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		return 1, err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return 2, err
	}

	cfg := cc.Config
	if cfg == nil {
		if cfg, err = config.Load(); err != nil {
			return 1, err
		}
	}
	if cli.Driver != "" {
		cfg.Storage.Driver = cli.Driver
	}
	if cli.Path != "" {
		cfg.Storage.Path = cli.Path
	}

	logg := logger.New(logger.Options{
		ServiceName: cc.Name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Output:      cc.Stderr,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": kctx.Command(),
	})

	reg := prometheus.NewRegistry()
	gw, err := storage.Open(ctx, storage.Options{
		Storage: cfg.Storage,
		Logger:  logg,
		Metrics: metrics.NewOperationMetrics(reg, "storage"),
	})
	if err != nil {
		return 1, err
	}
	defer gw.Close()

	a := &app{
		ctx: ctx,
		cfg: cfg,
		gw:  gw,
		img: imaging.New(imaging.Config{
			Defaults:          imaging.OptionsFromConfig(cfg.Images),
			ThumbnailDefaults: imaging.ThumbnailOptionsFromConfig(cfg.Thumbs),
			Logger:            logg,
			Metrics:           metrics.NewOperationMetrics(reg, "imaging"),
		}),
		log:   logg,
		stdin: cc.Stdin,
		out:   cc.Stdout,
	}
	err = kctx.Run(a)
	if cli.Metrics {
		printMetrics(cc.Stderr, reg)
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMetrics(w io.Writer, reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "gather metrics: %v\n", err)
		return
	}
	var lines []string
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			value := m.GetCounter().GetValue()
			if h := m.GetHistogram(); h != nil {
				value = float64(h.GetSampleCount())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
