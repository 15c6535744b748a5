// Package source reads rows from the external relational views. It only ever
// issues the SELECT built by the query package.
package source

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"datasync/pkg/circuitbreaker"
	"datasync/pkg/metrics"
)

type Reader interface {
	Query(ctx context.Context, query string) ([]map[string]any, error)
}

type PostgresReader struct {
	db *sqlx.DB
}

func NewPostgresReader(db *sqlx.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

// Query runs query inside a read-only transaction and returns every row
// keyed by column name, in the order the database produced them. Statements
// stacked after the SELECT cannot write.
func (r *PostgresReader) Query(ctx context.Context, query string) (rows []map[string]any, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ObserveSourceQuery(status, time.Since(start))
	}()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	cursor, err := tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	for cursor.Next() {
		row := make(map[string]any)
		if err := cursor.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		for k, v := range row {
			row[k] = decode(v)
		}
		rows = append(rows, row)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source rows: %w", err)
	}
	return rows, nil
}

// decode turns driver byte slices into text, or into structured values when
// they hold a JSON object or array.
func decode(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var decoded any
		if err := json.Unmarshal(trimmed, &decoded); err == nil {
			return decoded
		}
	}
	return string(b)
}

// BreakerReader sheds queries while the source is failing.
type BreakerReader struct {
	next    Reader
	breaker *circuitbreaker.Wrapper
}

func NewBreakerReader(next Reader, breaker *circuitbreaker.Wrapper) *BreakerReader {
	return &BreakerReader{next: next, breaker: breaker}
}

func (r *BreakerReader) Query(ctx context.Context, query string) ([]map[string]any, error) {
	result, err := r.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.next.Query(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := result.([]map[string]any)
	return rows, nil
}

// StaticReader serves fixed rows. Used for dry runs and tests.
type StaticReader struct {
	Rows    []map[string]any
	Err     error
	Queries []string
}

func (r *StaticReader) Query(_ context.Context, query string) ([]map[string]any, error) {
	r.Queries = append(r.Queries, query)
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out, nil
}
