package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-emd/emd"
	"github.com/robert-malhotra/go-emd/internal/config"
	"github.com/robert-malhotra/go-emd/internal/metrics"
	"github.com/robert-malhotra/go-emd/store"
	"github.com/robert-malhotra/go-emd/store/badgerstore"
	"github.com/robert-malhotra/go-emd/store/hdf5store"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath  string
	logLevel    string
	memoryLimit string
	noColor     bool
	showMetrics bool

	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector

	out    io.Writer
	errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:          "emdinfo",
		Short:        "Inspect and convert electron microscopy data files",
		Long:         `emdinfo reads EMD containers and SER, DM3 and TIFF instrument files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.showMetrics {
				a.dumpMetrics()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "emdinfo.yaml", "configuration file")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&a.memoryLimit, "memory-limit", "", "largest dataset to load, e.g. 512MiB")
	f.BoolVar(&a.noColor, "no-color", false, "disable coloured output")
	f.BoolVar(&a.showMetrics, "metrics", false, "print collected metrics to stderr on exit")

	root.AddCommand(a.treeCmd(), a.frameCmd(), a.convertCmd())
	return root
}

// setup loads the config file and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("memory-limit") {
		n, err := humanize.ParseBytes(a.memoryLimit)
		if err != nil {
			return fmt.Errorf("--memory-limit %q: %w", a.memoryLimit, err)
		}
		cfg.MemoryLimit = config.ByteSize(n)
	}
	if a.noColor {
		cfg.Color = false
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
	a.registry = prometheus.NewRegistry()
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return err
	}
	color.NoColor = !cfg.Color
	a.cfg = cfg

	a.logger.Debug("configuration loaded",
		"path", a.configPath,
		"memory_limit", cfg.MemoryLimit.String(),
		"sample_size", cfg.SampleSize)
	return nil
}

func (a *app) newModel() *emd.Model {
	return emd.NewModel(
		emd.WithLogger(a.logger),
		emd.WithMemoryLimit(uint64(a.cfg.MemoryLimit)),
		emd.WithSampler(emd.NewSampler(a.cfg.SampleSize)),
		emd.WithMetrics(a.metrics),
		emd.WithStoreOpener(a.openStore),
	)
}

// openStore opens an .emd container with the configured backend.
func (a *app) openStore(path string) (store.Store, error) {
	if a.cfg.Store == config.StoreBadger {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = path
		cfg.SyncWrites = a.cfg.Badger.SyncWrites
		cfg.CompressionLevel = a.cfg.Badger.CompressionLevel
		cfg.Logger = a.logger
		s, err := badgerstore.Open(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	cfg := hdf5store.DefaultConfig()
	cfg.Path = path
	cfg.Logger = a.logger
	s, err := hdf5store.Open(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// open decodes path into a fresh model.
func (a *app) open(path string) (*emd.Model, *emd.Report, error) {
	m := a.newModel()
	rep, err := m.OpenFile(path)
	if err != nil {
		return nil, rep, err
	}
	return m, rep, nil
}

func (a *app) dumpMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Error("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, mt := range mf.GetMetric() {
			name := mf.GetName()
			var v float64
			switch {
			case mt.GetCounter() != nil:
				v = mt.GetCounter().GetValue()
			case mt.GetGauge() != nil:
				v = mt.GetGauge().GetValue()
			case mt.GetHistogram() != nil:
				name += "_count"
				v = float64(mt.GetHistogram().GetSampleCount())
			default:
				continue
			}
			var labels []string
			for _, lp := range mt.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(a.errOut, "%s %g\n", name, v)
		}
	}
}
