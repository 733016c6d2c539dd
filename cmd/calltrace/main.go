// Command calltrace works with recorded call-graph definitions: it combines
// traces, labels sources with modules and prints reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/ritzau/calltrace/pkg/config"
	"github.com/ritzau/calltrace/pkg/definition"
	"github.com/ritzau/calltrace/pkg/loader"
	"github.com/ritzau/calltrace/pkg/logging"
	"github.com/ritzau/calltrace/pkg/modulestore"
	"github.com/ritzau/calltrace/pkg/output"
	"github.com/ritzau/calltrace/pkg/store"
)

const usage = `usage: calltrace <command> [flags] files...

commands:
  combine   merge definition files into one
  label     add module labels from --modules-file to a definition
  report    print a summary of one or more definitions
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// command is a parsed invocation
type command struct {
	name    string
	cfg     *config.Config
	files   []string
	flags   *pflag.FlagSet
	stdout  io.Writer
	metrics *prometheus.Registry
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd := &command{name: args[0], stdout: stdout, metrics: prometheus.NewRegistry()}
	var handler func(context.Context, *command) error
	switch cmd.name {
	case "combine":
		handler = runCombine
	case "label":
		handler = runLabel
	case "report":
		handler = runReport
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}

	fs := newFlagSet(cmd.name)
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	cmd.flags = fs
	cmd.files = fs.Args()
	if len(cmd.files) == 0 {
		return fmt.Errorf("%w: %s needs at least one definition file", errUsage, cmd.name)
	}

	configFile, _ := fs.GetString("config")
	cfg, err := config.LoadFile(configFile, fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.cfg = cfg
	setupLogging(cfg)

	if err := handler(ctx, cmd); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, cmd.metrics); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.String("config", config.DefaultFile, "Configuration file")
	fs.StringP("output", "o", "", "Output file; the extension selects the format (default stdout)")
	fs.String("format", "json", "Output format for stdout: json or yaml")
	fs.String("group", "", "Definition group")
	fs.String("title", "", "Definition title (default random UUID)")
	fs.String("modules-file", "", "YAML file mapping sources to module labels")
	fs.Int("concurrency", 4, "Number of files loaded in parallel")
	fs.String("metrics-file", "", "Write prometheus metrics to this textfile")
	fs.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	fs.CountP("verbose", "v", "Increase log verbosity")
	fs.Bool("json-logs", false, "Log in JSON format")

	if name == "report" {
		fs.Bool("paths", false, "List the call sites of every method")
		fs.Bool("modules", false, "Include the module rollup")
	}
	return fs
}

func setupLogging(cfg *config.Config) {
	level := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	logging.SetOutput(os.Stderr, level, cfg.JSONLogs)
}

// load reads every file into a metered store
func (c *command) load(ctx context.Context) (*store.Store, error) {
	defs, err := loader.LoadAll(ctx, c.files, c.cfg.Concurrency)
	if err != nil {
		return nil, err
	}
	st := store.New(store.WithRegisterer(c.metrics))
	st.Set(defs...)
	logging.Info("loaded definitions", "files", len(c.files), "groups", len(st.Groups()))
	return st, nil
}

// combined merges the loaded definitions, restricted to the configured
// group if there is one
func (c *command) combined(st *store.Store) (*definition.Definition, error) {
	title := c.cfg.Title
	if title == "" {
		title = uuid.New().String()
	}
	if c.cfg.Group != "" {
		return st.Combined(c.cfg.Group, title)
	}
	if st.Len() == 1 && c.cfg.Title == "" {
		return st.All()[0], nil
	}
	return definition.Combine("", title, st.All()...)
}

func (c *command) label(def *definition.Definition) error {
	if c.cfg.ModulesFile == "" {
		return nil
	}
	modules, err := modulestore.Load(c.cfg.ModulesFile)
	if err != nil {
		return err
	}
	n := modules.Label(def)
	logging.Debug("labelled sources", "labelled", n, "sources", def.Len())
	return nil
}

func (c *command) write(def *definition.Definition) error {
	if c.cfg.Output != "" {
		if err := loader.Save(c.cfg.Output, def); err != nil {
			return err
		}
		logging.Info("wrote definition", "path", c.cfg.Output, "sources", def.Len())
		return nil
	}
	format, err := loader.ParseFormat(c.cfg.Format)
	if err != nil {
		return err
	}
	return loader.Encode(c.stdout, def, format)
}

func runCombine(ctx context.Context, c *command) error {
	st, err := c.load(ctx)
	if err != nil {
		return err
	}
	def, err := c.combined(st)
	if err != nil {
		return err
	}
	if err := c.label(def); err != nil {
		return err
	}
	return c.write(def)
}

func runLabel(ctx context.Context, c *command) error {
	if c.cfg.ModulesFile == "" {
		return fmt.Errorf("%w: label needs --modules-file", errUsage)
	}
	if len(c.files) != 1 {
		return fmt.Errorf("%w: label takes exactly one definition file", errUsage)
	}
	st, err := c.load(ctx)
	if err != nil {
		return err
	}
	def := st.All()[0]
	if err := c.label(def); err != nil {
		return err
	}
	return c.write(def)
}

func runReport(ctx context.Context, c *command) error {
	st, err := c.load(ctx)
	if err != nil {
		return err
	}
	def, err := c.combined(st)
	if err != nil {
		return err
	}
	if err := c.label(def); err != nil {
		return err
	}

	paths, _ := c.flags.GetBool("paths")
	modules, _ := c.flags.GetBool("modules")
	output.PrintReport(c.stdout, def, output.ReportOptions{Paths: paths, Modules: modules})
	return nil
}
