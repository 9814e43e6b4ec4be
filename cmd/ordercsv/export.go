package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ordercsv/internal/config"
	"github.com/JonMunkholm/ordercsv/internal/export"
	"github.com/JonMunkholm/ordercsv/internal/logging"
	"github.com/JonMunkholm/ordercsv/internal/store"
)

type exportFlagSet struct {
	from       string
	to         string
	strategy   string
	lineEnding string
	charset    string
	output     string
	strict     bool
}

var exportFlags exportFlagSet

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "Export one line per order with a column per attribute",
	Long: `Export one line per order. The header lists the fixed order columns
followed by every attribute definition, in definition id order.

Date bounds accept RFC 3339 timestamps, local date-times
(2024-02-01T10:00) and bare dates. A bare --to date includes the whole day.

Examples:
  ordercsv attributes --from 2024-02-01 --to 2024-02-29 -o feb.csv
  ordercsv attributes --strategy window --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, export.KindAttributes)
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Export one line per order item",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, export.KindItems)
	},
}

func init() {
	rootCmd.AddCommand(attributesCmd, itemsCmd)

	for _, c := range []*cobra.Command{attributesCmd, itemsCmd} {
		c.Flags().StringVar(&exportFlags.from, "from", "", "earliest order date, inclusive")
		c.Flags().StringVar(&exportFlags.to, "to", "", "latest order date, inclusive")
		c.Flags().StringVar(&exportFlags.lineEnding, "line-ending", "", "lf or crlf (default: EXPORT_LINE_ENDING)")
		c.Flags().StringVar(&exportFlags.charset, "charset", "", "utf-8 or shift_jis (default: EXPORT_CHARSET)")
		c.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default: stdout)")
	}
	attributesCmd.Flags().StringVar(&exportFlags.strategy, "strategy", "", "grouping strategy (default: EXPORT_DEFAULT_STRATEGY)")
	attributesCmd.Flags().BoolVar(&exportFlags.strict, "strict", false, "fail if rows arrive out of order")
}

// options resolves flags against the configured defaults. Unlike the HTTP
// API, an unknown strategy is an error here.
func (f exportFlagSet) options(cfg *config.ExportConfig) (export.Options, error) {
	opts := cfg.Defaults()

	loc, err := cfg.Location()
	if err != nil {
		return opts, fmt.Errorf("load export timezone: %w", err)
	}

	if opts.From, err = export.ParseDate(f.from, loc, false); err != nil {
		return opts, fmt.Errorf("--from: %w", err)
	}
	if opts.To, err = export.ParseDate(f.to, loc, true); err != nil {
		return opts, fmt.Errorf("--to: %w", err)
	}
	if opts.From != nil && opts.To != nil && opts.From.After(*opts.To) {
		return opts, errors.New("invalid date range: --from is after --to")
	}

	if f.strategy != "" {
		st, ok := export.LookupStrategy(f.strategy)
		if !ok {
			return opts, fmt.Errorf("unknown strategy %q (run 'ordercsv strategies')", f.strategy)
		}
		opts.Strategy = st
	}
	opts.LineEnding = export.ParseLineEnding(f.lineEnding, opts.LineEnding)
	opts.Charset = export.ParseCharset(f.charset, opts.Charset)
	opts.Strict = opts.Strict || f.strict

	return opts, nil
}

func runExport(cmd *cobra.Command, kind string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logging.Setup(os.Stderr, level, cfg.Logging.Format)

	opts, err := exportFlags.options(&cfg.Export)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Export.Timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	// One export at a time; metrics are only scraped from the server.
	exporter := export.NewExporter(store.New(pool), cfg.Export.Limits(), nil)

	res, err := writeOutput(exportFlags.output, cmd.OutOrStdout(), func(w io.Writer) (export.Result, error) {
		if kind == export.KindItems {
			return exporter.WriteItems(ctx, opts, w)
		}
		return exporter.WriteAttributes(ctx, opts, w)
	})
	if err != nil {
		return exportError(err, res.Rows)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d rows (%s, run %s) in %s\n",
		res.Rows, res.Kind, res.RunID, res.Duration.Round(time.Millisecond))
	return nil
}

// exportError puts the support message first and keeps the cause, since
// the CLI has no request log to look it up in.
func exportError(err error, rows int) error {
	return fmt.Errorf("%s (after %d rows): %w", export.FormatUserError(err), rows, err)
}

// writeOutput runs write against stdout, or against a temporary file next
// to path that is renamed into place only when the export succeeds.
func writeOutput(path string, stdout io.Writer, write func(io.Writer) (export.Result, error)) (export.Result, error) {
	if path == "" || path == "-" {
		bw := bufio.NewWriter(stdout)
		res, err := write(bw)
		if ferr := bw.Flush(); err == nil && ferr != nil {
			err = ferr
		}
		return res, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimPrefix(filepath.Base(path), ".")+".*")
	if err != nil {
		return export.Result{}, fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	res, err := write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return res, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return res, fmt.Errorf("rename output: %w", err)
	}
	return res, nil
}
