// Package store reads orders for export from PostgreSQL.
//
// Every query streams: rows are fetched from the server as the caller
// advances the returned cursor, and the pool connection stays checked out
// until the cursor is closed.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ordercsv/internal/config"
	"github.com/JonMunkholm/ordercsv/internal/export"
)

// Querier is the subset of *pgxpool.Pool and pgx.Tx the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements export.Source over a PostgreSQL database.
type Store struct {
	db Querier
}

// New creates a Store backed by db.
func New(db Querier) *Store {
	return &Store{db: db}
}

// NewPool opens a connection pool sized from cfg and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const catalogQuery = `SELECT id, label FROM order_attribute_definition ORDER BY id ASC`

// LoadCatalog returns every attribute definition ordered by id.
func (s *Store) LoadCatalog(ctx context.Context) (export.Catalog, error) {
	rows, err := s.db.Query(ctx, catalogQuery)
	if err != nil {
		return nil, fmt.Errorf("query attribute definitions: %w", err)
	}
	defer rows.Close()

	var catalog export.Catalog
	for rows.Next() {
		var d export.Definition
		if err := rows.Scan(&d.ID, &d.Label); err != nil {
			return nil, fmt.Errorf("scan attribute definition: %w", err)
		}
		catalog = append(catalog, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return catalog, nil
}

const attributeRowsQuery = `SELECT o.id, o.customer_id, c.name, c.email, o.order_date,
       v.attribute_definition_id, d.label, v.value
FROM "order" o
JOIN customer c ON c.id = o.customer_id
LEFT JOIN order_attribute_value v ON v.order_id = o.id
LEFT JOIN order_attribute_definition d ON d.id = v.attribute_definition_id`

const attributeRowsOrder = ` ORDER BY o.id ASC, d.id ASC`

// OpenAttributeRows opens the order x attribute join. Orders without any
// attribute value produce one row with null attribute columns.
func (s *Store) OpenAttributeRows(ctx context.Context, from, to *time.Time) (export.Cursor[export.JoinedRow], error) {
	query, args := dateRangeQuery(attributeRowsQuery, attributeRowsOrder, from, to)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attribute rows: %w", err)
	}
	return newRowCursor(rows, scanJoinedRow), nil
}

func scanJoinedRow(rows pgx.Rows) (export.JoinedRow, error) {
	var r export.JoinedRow
	err := rows.Scan(
		&r.OrderID, &r.CustomerID, &r.CustomerName, &r.CustomerEmail, &r.OrderDate,
		&r.DefinitionID, &r.DefinitionLabel, &r.Value,
	)
	return r, err
}

const itemRowsQuery = `SELECT o.id, o.order_date, o.total_amount, o.customer_id, c.name, c.email,
       i.id, i.product_name, i.quantity, i.unit_price
FROM "order" o
JOIN customer c ON c.id = o.customer_id
JOIN order_item i ON i.order_id = o.id`

const itemRowsOrder = ` ORDER BY o.order_date DESC, o.id DESC, i.id DESC`

// OpenItemRows opens the order x item join, newest orders first.
func (s *Store) OpenItemRows(ctx context.Context, from, to *time.Time) (export.Cursor[export.ItemRow], error) {
	query, args := dateRangeQuery(itemRowsQuery, itemRowsOrder, from, to)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query item rows: %w", err)
	}
	return newRowCursor(rows, scanItemRow), nil
}

func scanItemRow(rows pgx.Rows) (export.ItemRow, error) {
	var r export.ItemRow
	err := rows.Scan(
		&r.OrderID, &r.OrderDate, &r.TotalAmount, &r.CustomerID, &r.CustomerName, &r.CustomerEmail,
		&r.OrderItemID, &r.ProductName, &r.Quantity, &r.UnitPrice,
	)
	return r, err
}

// dateRangeQuery adds inclusive order_date bounds to base. A nil bound adds
// no predicate, so an unbounded range selects every order.
func dateRangeQuery(base, orderBy string, from, to *time.Time) (string, []any) {
	wb := newWhereBuilder()
	if from != nil {
		wb.add("o.order_date", ">=", *from)
	}
	if to != nil {
		wb.add("o.order_date", "<=", *to)
	}
	where, args := wb.build()
	return base + where + orderBy, args
}

var _ export.Source = (*Store)(nil)
