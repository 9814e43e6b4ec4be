package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/JonMunkholm/ordercsv/internal/export"
	"github.com/JonMunkholm/ordercsv/internal/logging"
)

// handleExportAttributes streams one line per order with a column for every
// attribute definition.
//
// Query parameters: startDate, endDate, strategy, lineEnding, charset.
func (s *Server) handleExportAttributes(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseOptions(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	s.streamExport(w, r, exportFilename("orders_attributes", time.Now()), opts.Charset,
		func(ctx context.Context, out io.Writer) (export.Result, error) {
			return s.exporter.WriteAttributes(ctx, opts, out)
		})
}

// handleExportItems streams one line per order item.
//
// Query parameters: startDate, endDate, lineEnding, charset.
func (s *Server) handleExportItems(w http.ResponseWriter, r *http.Request) {
	opts, err := s.parseOptions(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	s.streamExport(w, r, exportFilename("orders_export", time.Now()), opts.Charset,
		func(ctx context.Context, out io.Writer) (export.Result, error) {
			return s.exporter.WriteItems(ctx, opts, out)
		})
}

// StrategyInfo describes one grouping strategy for API clients.
type StrategyInfo struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
	Default bool     `json:"default"`
}

// handleListStrategies returns the accepted strategy names.
func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	def := s.cfg.Export.Strategy()

	var out []StrategyInfo
	for _, st := range export.Strategies() {
		out = append(out, StrategyInfo{
			Name:    st.String(),
			Aliases: st.Aliases(),
			Default: st == def,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExportStatus reports export slot usage.
func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.exporter.LimiterStatus())
}

func logStrategyFallback(r *http.Request, name string, used export.Strategy) {
	logging.FromContext(r.Context()).Warn("unknown export strategy, using default",
		"requested", name,
		"strategy", used.String(),
	)
}
