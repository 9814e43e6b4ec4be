package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ordercsv/internal/export"
	"github.com/JonMunkholm/ordercsv/internal/logging"
)

// Trailers sent after every streamed export. A body without
// X-Export-Status: complete is truncated.
const (
	trailerRows   = "X-Export-Rows"
	trailerStatus = "X-Export-Status"
)

// chunkWriter hands each write to the response goroutine through a bounded
// channel. Writes block while the channel is full, so a slow client slows
// the database cursor down instead of growing memory.
type chunkWriter struct {
	ctx    context.Context
	chunks chan<- []byte
}

func (c *chunkWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	select {
	case c.chunks <- buf:
		return len(p), nil
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	}
}

// exportFunc runs one export into w.
type exportFunc func(ctx context.Context, w io.Writer) (export.Result, error)

// streamExport runs an export in a background goroutine and copies its
// output to the response as it is produced.
//
// Errors raised before the first chunk (busy limiter, catalog failure) get a
// regular error response. Once the body has started the status code cannot
// change, so failure is reported through the X-Export-Status trailer.
func (s *Server) streamExport(w http.ResponseWriter, r *http.Request, filename string, charset export.Charset, run exportFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Export.Timeout)
	defer cancel()

	chunks := make(chan []byte, s.cfg.Export.StreamBuffer)
	g, gctx := errgroup.WithContext(ctx)

	var res export.Result
	g.Go(func() error {
		defer close(chunks)
		var err error
		res, err = run(gctx, &chunkWriter{ctx: gctx, chunks: chunks})
		return err
	})

	rc := http.NewResponseController(w)
	started := false
	var writeErr error

	for chunk := range chunks {
		if writeErr != nil {
			continue
		}
		if !started {
			h := w.Header()
			h.Set("Content-Type", charset.ContentType())
			h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
			h.Set("Cache-Control", "no-store")
			h.Set("Trailer", trailerRows+", "+trailerStatus)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write(chunk); err != nil {
			// Client went away; stop the producer and drain what it already queued.
			writeErr = err
			cancel()
			continue
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			writeErr = err
			cancel()
		}
	}

	err := g.Wait()
	logger := logging.WithFields(r.Context(), "run_id", res.RunID, "kind", res.Kind)

	if !started {
		if err == nil {
			err = errors.New("export produced no output")
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	status := "complete"
	if err != nil || writeErr != nil {
		status = "failed"
	}
	w.Header().Set(trailerRows, strconv.Itoa(res.Rows))
	w.Header().Set(trailerStatus, status)

	if writeErr != nil {
		logger.Warn("export aborted by client", "rows", res.Rows, "error", writeErr)
	} else if err != nil {
		logger.Error("export truncated", "rows", res.Rows, "code", export.MapError(err).Code, "error", err)
	}
}

// statusFor picks the HTTP status for an error raised before streaming.
func statusFor(err error) int {
	switch {
	case errors.Is(err, export.ErrTooManyExports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// exportFilename follows the orders_<kind>_<unix millis>.csv convention.
func exportFilename(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d.csv", prefix, now.UnixMilli())
}
