// Package lendee turns the four borrower sources into a per-lendee feature
// table and scores each lendee with a fixed weighted formula.
package lendee

import (
	"context"
	"math"
	"strconv"
	"strings"
)

const (
	SourceInvestments  = "investments"
	SourceProfiles     = "profiles"
	SourceLoanRequests = "loan_requests"
	SourceBankMarket   = "bank_market"
)

// SourceNames lists the required sources in load order.
var SourceNames = []string{SourceInvestments, SourceProfiles, SourceLoanRequests, SourceBankMarket}

// IDColumns maps each source onto the column that carries the lendee identifier.
var IDColumns = map[string]string{
	SourceInvestments:  "id",
	SourceProfiles:     "id",
	SourceLoanRequests: "lendee_id",
	SourceBankMarket:   "lendee_id",
}

const (
	columnOutcome = "outcome"
	columnAmount  = "amount"

	outcomeDefaulted = "defaulted"
	outcomeYes       = "yes"
)

// Loader materializes all four sources. A loader must fail with a
// SOURCES_MISSING error when any source is absent rather than return a partial set.
type Loader interface {
	Load(ctx context.Context) (*Sources, error)
}

// Sources holds the four loaded tables keyed by source name.
type Sources struct {
	Tables map[string]*Table
}

func (s *Sources) Table(name string) *Table {
	if s == nil {
		return nil
	}
	return s.Tables[name]
}

// Table is one loaded source. Cells are kept in their string form; an empty
// or NaN-like cell is null.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
	index   map[string]int
}

func NewTable(name string, columns []string, rows [][]string) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	return &Table{Name: name, Columns: columns, Rows: rows, index: index}
}

func (t *Table) Has(column string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[column]
	return ok
}

// Value returns the cell of row under column, and false when the column is
// absent, the row is short, or the cell is null.
func (t *Table) Value(row []string, column string) (string, bool) {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return "", false
	}
	v := row[i]
	if isNull(v) {
		return "", false
	}
	return v, true
}

// Number parses the cell as a float, treating null or malformed cells as 0.
func (t *Table) Number(row []string, column string) float64 {
	v, ok := t.Value(row, column)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func isNull(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "null", "none":
		return true
	}
	return false
}
