package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func newTestExporter(src Source, flushEvery int) (*Exporter, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	return NewExporter(src, Config{MaxConcurrent: 2, MaxWait: time.Second, FlushInterval: flushEvery}, m), m
}

func TestWriteAttributes_BoundaryScenario(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, s := range Strategies() {
		t.Run(s.String(), func(t *testing.T) {
			rows, catalog := boundaryRows()
			src := &fakeSource{catalog: catalog, rows: rows}
			exp, _ := newTestExporter(src, 0)

			var buf bytes.Buffer
			res, err := exp.WriteAttributes(context.Background(), Options{Strategy: s}, &buf)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Rows)
			assert.Equal(t, s.String(), res.Strategy)
			assert.NotEmpty(t, res.RunID)

			g.Assert(t, "boundary_attributes", buf.Bytes())
			assert.Equal(t, 1, src.opened.CloseCount())
		})
	}
}

func TestWriteAttributes_UnboundedRange(t *testing.T) {
	rows, catalog := randomRows(9, 40)
	src := &fakeSource{catalog: catalog, rows: rows}
	exp, _ := newTestExporter(src, 0)

	var buf bytes.Buffer
	res, err := exp.WriteAttributes(context.Background(), Options{}, &buf)
	require.NoError(t, err)
	assert.Nil(t, src.from)
	assert.Nil(t, src.to)
	assert.Equal(t, 40, res.Rows)
}

func TestWriteAttributes_CRLFAndShiftJIS(t *testing.T) {
	rows, catalog := boundaryRows()
	src := &fakeSource{catalog: catalog, rows: rows}
	exp, _ := newTestExporter(src, 1)

	var buf bytes.Buffer
	_, err := exp.WriteAttributes(context.Background(), Options{
		LineEnding: LineEndingCRLF,
		Charset:    CharsetShiftJIS,
	}, &buf)
	require.NoError(t, err)

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)

	lines := strings.Split(string(decoded), "\r\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "order_id,customer_id,customer_name,customer_email,order_date,ギフト包装,配送指示", lines[0])
	assert.Equal(t, "11,2,Customer 2,c2@example.com,2024-02-02T12:00,なし,", lines[2])
	assert.Empty(t, lines[3])
}

func TestWriteAttributes_ReleasesSourceOnce(t *testing.T) {
	srcErr := errors.New("connection reset by peer")

	tests := []struct {
		name    string
		source  func() *fakeSource
		writer  func() *failingWriter
		ctx     func(src *fakeSource) context.Context
		strict  bool
		wantErr error
	}{
		{
			name:   "success",
			source: func() *fakeSource { r, c := randomRows(1, 30); return &fakeSource{catalog: c, rows: r} },
		},
		{
			name: "source failure mid-stream",
			source: func() *fakeSource {
				r, c := randomRows(2, 30)
				return &fakeSource{catalog: c, rows: r, rowsErr: srcErr}
			},
			wantErr: srcErr,
		},
		{
			name:    "sink failure after header",
			source:  func() *fakeSource { r, c := randomRows(3, 30); return &fakeSource{catalog: c, rows: r} },
			writer:  func() *failingWriter { return &failingWriter{allow: 1} },
			wantErr: errSinkClosed,
		},
		{
			name: "ordering violation",
			source: func() *fakeSource {
				a, _ := randomRows(4, 5)
				b, c := randomRows(4, 5)
				return &fakeSource{catalog: c, rows: append(a, b...)}
			},
			strict:  true,
			wantErr: ErrRowsOutOfOrder,
		},
		{
			name:   "cancellation",
			source: func() *fakeSource { r, c := randomRows(5, 30); return &fakeSource{catalog: c, rows: r} },
			ctx: func(src *fakeSource) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				src.wrap = func(c Cursor[JoinedRow]) Cursor[JoinedRow] {
					return &hookCursor{Cursor: c, onNext: func(n int) {
						if n == 10 {
							cancel()
						}
					}}
				}
				return ctx
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		for _, s := range Strategies() {
			t.Run(tt.name+"/"+s.String(), func(t *testing.T) {
				src := tt.source()
				ctx := context.Background()
				if tt.ctx != nil {
					ctx = tt.ctx(src)
				}
				var w io.Writer = &bytes.Buffer{}
				if tt.writer != nil {
					w = tt.writer()
				}

				exp, _ := newTestExporter(src, 1)
				_, err := exp.WriteAttributes(ctx, Options{Strategy: s, Strict: tt.strict}, w)

				if tt.wantErr != nil {
					require.ErrorIs(t, err, tt.wantErr)
				} else {
					require.NoError(t, err)
				}
				require.NotNil(t, src.opened, "source was never opened")
				assert.Equal(t, 1, src.opened.CloseCount())
				assert.Equal(t, 0, exp.LimiterStatus().Active, "limiter slot released")
			})
		}
	}
}

func TestWriteAttributes_PartialOutputKeepsHeader(t *testing.T) {
	rows, catalog := randomRows(6, 10)
	src := &fakeSource{catalog: catalog, rows: rows, openErr: errors.New("dial tcp: connection refused")}
	exp, _ := newTestExporter(src, 0)

	var buf bytes.Buffer
	_, err := exp.WriteAttributes(context.Background(), Options{}, &buf)
	require.Error(t, err)
	assert.Equal(t, "DB004", MapError(err).Code)
	assert.True(t, strings.HasPrefix(buf.String(), "order_id,customer_id"))
	assert.Nil(t, src.opened)
}

func TestWriteAttributes_CatalogFailure(t *testing.T) {
	src := &fakeSource{catalogErr: errors.New("timeout")}
	exp, m := newTestExporter(src, 0)

	var buf bytes.Buffer
	_, err := exp.WriteAttributes(context.Background(), Options{}, &buf)
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing written before the catalog is known")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues(KindAttributes, "sequence", "failed")))
}

func TestWriteAttributes_RecordsMetrics(t *testing.T) {
	rows, catalog := randomRows(8, 25)
	exp, m := newTestExporter(&fakeSource{catalog: catalog, rows: rows}, 0)

	_, err := exp.WriteAttributes(context.Background(), Options{Strategy: StrategyWindow}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues(KindAttributes, "window", "complete")))
	assert.Equal(t, 25.0, testutil.ToFloat64(m.rows.WithLabelValues(KindAttributes, "window")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestWriteAttributes_RejectsWhenBusy(t *testing.T) {
	rows, catalog := randomRows(8, 5)
	m := NewMetrics(prometheus.NewRegistry())
	exp := NewExporter(&fakeSource{catalog: catalog, rows: rows}, Config{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond}, m)

	require.NoError(t, exp.limiter.Acquire(context.Background()))
	defer exp.limiter.Release()

	_, err := exp.WriteAttributes(context.Background(), Options{}, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrTooManyExports)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues(KindAttributes, "sequence", "rejected")))
}

func TestWriteItems(t *testing.T) {
	src := &fakeSource{items: []ItemRow{
		{OrderID: 2, OrderDate: time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC), CustomerID: 1, CustomerName: "A", CustomerEmail: "a@x", OrderItemID: 21, ProductName: "Pen", Quantity: 3},
		{OrderID: 1, OrderDate: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), CustomerID: 1, CustomerName: "A", CustomerEmail: "a@x", OrderItemID: 11, ProductName: "Ink", Quantity: 1},
	}}
	exp, _ := newTestExporter(src, 1)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	res, err := exp.WriteItems(context.Background(), Options{From: &from}, &buf)
	require.NoError(t, err)

	assert.Equal(t, KindItems, res.Kind)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, &from, src.from)
	assert.Equal(t, 1, src.openedItem.CloseCount())
	assert.Equal(t,
		"order_id,order_date,total_amount,customer_id,customer_name,customer_email,order_item_id,product_name,quantity,unit_price\n"+
			"2,2024-02-02T08:00,,1,A,a@x,21,Pen,3,\n"+
			"1,2024-02-01T08:00,,1,A,a@x,11,Ink,1,\n",
		buf.String())
}

func TestWriteItems_SinkFailureReleasesSource(t *testing.T) {
	src := &fakeSource{items: make([]ItemRow, 5)}
	exp, _ := newTestExporter(src, 1)

	_, err := exp.WriteItems(context.Background(), Options{}, &failingWriter{allow: 2})
	require.ErrorIs(t, err, errSinkClosed)
	assert.Equal(t, 1, src.openedItem.CloseCount())
}
