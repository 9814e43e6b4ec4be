package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/ordercsv/internal/logging"
	"github.com/google/uuid"
)

// Export kinds, used in results, logs and metrics.
const (
	KindAttributes = "attributes"
	KindItems      = "items"
)

// DefaultFlushInterval is the number of lines written between flushes.
const DefaultFlushInterval = 1000

// Source is the storage layer the exporter reads from.
type Source interface {
	// LoadCatalog returns every attribute definition ordered by id.
	LoadCatalog(ctx context.Context) (Catalog, error)

	// OpenAttributeRows opens the order x attribute join for orders dated
	// within [from, to], sorted by order id then definition id.
	OpenAttributeRows(ctx context.Context, from, to *time.Time) (Cursor[JoinedRow], error)

	// OpenItemRows opens the order x item join for orders dated within
	// [from, to].
	OpenItemRows(ctx context.Context, from, to *time.Time) (Cursor[ItemRow], error)
}

// Config tunes an Exporter.
type Config struct {
	MaxConcurrent int
	MaxWait       time.Duration
	FlushInterval int
}

// Exporter drives exports from a Source to an io.Writer.
type Exporter struct {
	source     Source
	limiter    *Limiter
	metrics    *Metrics
	flushEvery int
}

// NewExporter creates an exporter. metrics may be nil.
func NewExporter(source Source, cfg Config, metrics *Metrics) *Exporter {
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = DefaultFlushInterval
	}
	return &Exporter{
		source:     source,
		limiter:    NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		metrics:    metrics,
		flushEvery: flush,
	}
}

// LimiterStatus reports how many exports are running.
func (e *Exporter) LimiterStatus() LimiterStatus {
	return e.limiter.Status()
}

// WaitForExports blocks until running exports finish or ctx is done.
func (e *Exporter) WaitForExports(ctx context.Context) error {
	return e.limiter.WaitForDrain(ctx)
}

// WriteAttributes writes the attribute export to w: a header built from the
// catalog, then one line per order in the date range, grouped with
// opts.Strategy.
//
// The row cursor is closed exactly once whatever happens: success, source
// failure, write failure on w, or cancellation of ctx. On failure, lines
// already written to w stay there; the returned Result counts them.
func (e *Exporter) WriteAttributes(ctx context.Context, opts Options, w io.Writer) (Result, error) {
	res := Result{RunID: uuid.NewString(), Kind: KindAttributes, Strategy: opts.Strategy.String()}
	return e.run(ctx, &res, func() error {
		return e.writeAttributes(ctx, opts, w, &res)
	})
}

// WriteItems writes the plain export to w: one line per order item.
// It follows the same release and failure rules as WriteAttributes.
func (e *Exporter) WriteItems(ctx context.Context, opts Options, w io.Writer) (Result, error) {
	res := Result{RunID: uuid.NewString(), Kind: KindItems}
	return e.run(ctx, &res, func() error {
		return e.writeItems(ctx, opts, w, &res)
	})
}

// run wraps one export with slot acquisition, timing, logging and metrics.
func (e *Exporter) run(ctx context.Context, res *Result, body func() error) (Result, error) {
	logger := logging.WithFields(ctx, "run_id", res.RunID, "kind", res.Kind, "strategy", res.Strategy)

	if err := e.limiter.Acquire(ctx); err != nil {
		logger.Warn("export rejected", "error", err)
		e.metrics.rejected(*res, err)
		return *res, err
	}
	defer e.limiter.Release()

	start := time.Now()
	e.metrics.begin()
	logger.Info("export started")

	err := body()
	res.Duration = time.Since(start)
	e.metrics.end(*res, err)

	if err != nil {
		logger.Error("export failed",
			"rows", res.Rows,
			"duration_ms", res.Duration.Milliseconds(),
			"error", err,
		)
		return *res, err
	}

	logger.Info("export completed",
		"rows", res.Rows,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return *res, nil
}

func (e *Exporter) writeAttributes(ctx context.Context, opts Options, w io.Writer, res *Result) (err error) {
	catalog, err := e.source.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	out := opts.Charset.writer(w)
	defer closeOutput(out, &err)

	r := NewRenderer(out, opts.LineEnding)
	if err := r.WriteHeader(catalog); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := r.Flush(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	cursor, err := e.source.OpenAttributeRows(ctx, opts.From, opts.To)
	if err != nil {
		return fmt.Errorf("open attribute rows: %w", err)
	}
	defer cursor.Close()

	rows := cursor
	if opts.Strict {
		rows = strictRows(cursor)
	}

	for rec, err := range opts.Strategy.Aggregate(rows) {
		if err != nil {
			return fmt.Errorf("read attribute rows: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.WriteRecord(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		res.Rows++
		if res.Rows%e.flushEvery == 0 {
			if err := r.Flush(); err != nil {
				return fmt.Errorf("flush output: %w", err)
			}
		}
	}

	if err := r.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func (e *Exporter) writeItems(ctx context.Context, opts Options, w io.Writer, res *Result) (err error) {
	out := opts.Charset.writer(w)
	defer closeOutput(out, &err)

	r := NewRenderer(out, opts.LineEnding)
	if err := r.WriteItemHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := r.Flush(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows, err := e.source.OpenItemRows(ctx, opts.From, opts.To)
	if err != nil {
		return fmt.Errorf("open item rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.WriteItem(rows.Row()); err != nil {
			return fmt.Errorf("write item: %w", err)
		}
		res.Rows++
		if res.Rows%e.flushEvery == 0 {
			if err := r.Flush(); err != nil {
				return fmt.Errorf("flush output: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read item rows: %w", err)
	}

	if err := r.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// closeOutput flushes the charset encoder, keeping the first error.
func closeOutput(out io.Closer, errp *error) {
	if cerr := out.Close(); cerr != nil && *errp == nil {
		*errp = fmt.Errorf("close output: %w", cerr)
	}
}
