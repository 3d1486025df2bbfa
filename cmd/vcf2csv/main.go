package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/smileynet/vcf2csv/internal/attrs"
	"github.com/smileynet/vcf2csv/internal/config"
	"github.com/smileynet/vcf2csv/internal/convert"
	"github.com/smileynet/vcf2csv/internal/csvout"
	"github.com/smileynet/vcf2csv/internal/display"
	"github.com/smileynet/vcf2csv/internal/logging"
	"github.com/smileynet/vcf2csv/internal/vcard"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the command structure for vcf2csv.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Input     string           `arg:"" help:"vCard file to convert." type:"path"`
	Output    string           `help:"Output CSV path (default: output.csv)." short:"o" placeholder:"PATH"`
	Config    string           `help:"Config file applied after the user and project config." short:"c" type:"path" placeholder:"PATH"`
	OnMissing string           `help:"Contacts without EMAIL or FN: abort or skip." placeholder:"MODE"`
	Exclude   []string         `help:"Properties left out of the attributes column (replaces the configured set)." short:"x" placeholder:"NAME"`
	Decode    string           `help:"Invalid byte handling: replace or latin1." placeholder:"MODE"`
	LogLevel  string           `help:"DEBUG, INFO, WARN or ERROR." placeholder:"LEVEL"`
	LogFormat string           `help:"TEXT or JSON." placeholder:"FORMAT"`
	Plain     bool             `help:"Force a plain text summary even if stdout is a TTY."`
}

// Run executes the conversion.
func (c *CLI) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, os.Stdout, os.Stderr)
}

// convertError marks failures that happen after the output file was opened.
type convertError struct {
	err error
}

func (e *convertError) Error() string { return e.err.Error() }
func (e *convertError) Unwrap() error { return e.err }

// run performs the conversion against the given streams, enabling testable wiring.
func (c *CLI) run(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(stderr, cfg.Log)
	if err != nil {
		return err
	}
	// Validate has already accepted these values.
	policy, _ := convert.ParsePolicy(cfg.Convert.OnMissingRequired)
	decode, _ := vcard.ParseDecode(cfg.Convert.Decode)

	log.Info("converting", slog.String("file", c.Input), slog.String("output", cfg.Output.Path))

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	text := vcard.DecodeText(data, decode)

	out, err := csvout.Create(cfg.Output.Path)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	conv := convert.New(
		convert.WithPolicy(policy),
		convert.WithExclusions(attrs.NewExclusions(cfg.Convert.Exclude...)),
		convert.WithLogger(log),
	)

	var stats convert.Stats
	runErr := out.WriteHeader()
	if runErr == nil {
		stats, runErr = conv.Run(ctx, vcard.NewDecoder(strings.NewReader(text)).All(), out)
	}
	if err := out.Close(); err != nil && runErr == nil {
		runErr = err
	}

	display.New(display.Options{Writer: stdout, ForcePlain: c.Plain}).Render(display.Summary{
		Input:       filepath.Base(c.Input),
		InputBytes:  len(data),
		Output:      cfg.Output.Path,
		Contacts:    stats.Contacts,
		Written:     stats.Written,
		Skipped:     stats.Skipped,
		ParseErrors: stats.ParseErrors,
		Err:         runErr,
	})

	if runErr != nil {
		return &convertError{err: runErr}
	}
	log.Debug("done", slog.Int("rows", out.Rows()))
	return nil
}

// loadConfig loads layered config from user, project and explicit paths,
// then applies env and flag overrides.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/vcf2csv/config.yaml"),
		".vcf2csv.yaml",
		c.Config,
	)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	c.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides config values with flags that were set.
func (c *CLI) applyFlags(cfg *config.Config) {
	if c.Output != "" {
		cfg.Output.Path = c.Output
	}
	if c.OnMissing != "" {
		cfg.Convert.OnMissingRequired = c.OnMissing
	}
	if len(c.Exclude) > 0 {
		cfg.Convert.Exclude = config.SplitList(strings.Join(c.Exclude, ","))
	}
	if c.Decode != "" {
		cfg.Convert.Decode = c.Decode
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
}

func newLogger(w io.Writer, lc config.Log) (*slog.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(lc.Format)
	if err != nil {
		return nil, err
	}
	h, err := logging.NewHandler(w, format, level)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// Exit codes.
const (
	exitSuccess = 0
	exitConvert = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ce *convertError
	if errors.As(err, &ce) {
		return exitConvert
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("vcf2csv"),
		kong.Description("Convert a vCard address book into a CSV table (email, name, attributes)."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
