package lendee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	apperrors "lendee-scoring/internal/common/errors"
)

const pgUndefinedTable = "42P01"

// PostgresLoader reads every source from a table of the same shape as the CSV exports.
type PostgresLoader struct {
	db     *sql.DB
	tables map[string]string
}

func NewPostgresLoader(db *sql.DB, tables map[string]string) *PostgresLoader {
	merged := make(map[string]string, len(SourceNames))
	for _, name := range SourceNames {
		merged[name] = name
	}
	for name, table := range tables {
		if table != "" {
			merged[name] = table
		}
	}
	return &PostgresLoader{db: db, tables: merged}
}

func (l *PostgresLoader) Load(ctx context.Context) (*Sources, error) {
	tables := make(map[string]*Table, len(SourceNames))
	var missing []string

	for _, name := range SourceNames {
		table, err := l.loadTable(ctx, name)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == pgUndefinedTable {
				missing = append(missing, name)
				continue
			}
			return nil, apperrors.NewSourceQueryFailedError(name, err)
		}
		tables[name] = table
	}

	if len(missing) > 0 {
		return nil, apperrors.NewSourcesMissingError(missing)
	}
	return &Sources{Tables: tables}, nil
}

func (l *PostgresLoader) loadTable(ctx context.Context, name string) (*Table, error) {
	query := "SELECT * FROM " + pq.QuoteIdentifier(l.tables[name])
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", name, err)
	}

	var out [][]string
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}

		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = cellString(v)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return NewTable(name, columns, out), nil
}

// cellString renders a driver value in the same string form a CSV export would carry.
func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
