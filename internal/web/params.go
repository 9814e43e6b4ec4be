package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/ordercsv/internal/export"
)

var errInvalidRange = errors.New("invalid date range: startDate is after endDate")

// parseDateParam parses a startDate/endDate value in loc.
func parseDateParam(name, value string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	t, err := export.ParseDate(value, loc, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("%w for %s", err, name)
	}
	return t, nil
}

// parseOptions builds export options from the query string, starting from
// the configured defaults.
func (s *Server) parseOptions(r *http.Request) (export.Options, error) {
	q := r.URL.Query()
	opts := s.cfg.Export.Defaults()

	from, err := parseDateParam("startDate", q.Get("startDate"), s.location, false)
	if err != nil {
		return opts, err
	}
	to, err := parseDateParam("endDate", q.Get("endDate"), s.location, true)
	if err != nil {
		return opts, err
	}
	if from != nil && to != nil && from.After(*to) {
		return opts, errInvalidRange
	}
	opts.From, opts.To = from, to

	if name := q.Get("strategy"); name != "" {
		st, ok := export.LookupStrategy(name)
		if !ok {
			// Unknown names fall back to the default rather than failing.
			st = opts.Strategy
			logStrategyFallback(r, name, st)
		}
		opts.Strategy = st
	}
	opts.LineEnding = export.ParseLineEnding(q.Get("lineEnding"), opts.LineEnding)
	opts.Charset = export.ParseCharset(q.Get("charset"), opts.Charset)

	return opts, nil
}
