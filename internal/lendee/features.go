package lendee

import (
	"sort"
	"strings"
)

// FeatureRow is the per-lendee aggregate used as scoring input.
type FeatureRow struct {
	LendeeID           string  `json:"lendee_id"`
	LendeeCount        int     `json:"lendee_count"`
	UnpaidAmount       float64 `json:"unpaid_amount"`
	UnpaidCount        int     `json:"unpaid_count"`
	TotalLoanAmount    float64 `json:"total_loan_amount"`
	Defaulted          bool    `json:"defaulted"`
	UnpaidRate         float64 `json:"unpaid_rate"`
	AvgUnpaidAmountPer float64 `json:"avg_unpaid_amount_per"`
	AvgLoanPerLendee   float64 `json:"avg_loan_per_lendee"`
}

// ScoreInput projects the row onto the fields the scorer reads.
func (r FeatureRow) ScoreInput() ScoreInput {
	return ScoreInput{
		LendeeCount:      float64(r.LendeeCount),
		TotalLoanAmount:  r.TotalLoanAmount,
		AvgLoanPerLendee: r.AvgLoanPerLendee,
		Defaulted:        r.Defaulted,
	}
}

// amountSources contribute their amount column to total_loan_amount.
var amountSources = map[string]bool{
	SourceBankMarket:   true,
	SourceInvestments:  true,
	SourceLoanRequests: true,
}

// CollectIdentifiers returns the sorted union of lendee ids over every source
// that carries its id column. Null ids are skipped.
func CollectIdentifiers(src *Sources) []string {
	seen := make(map[string]struct{})
	for _, name := range SourceNames {
		table := src.Table(name)
		column := IDColumns[name]
		if !table.Has(column) {
			continue
		}
		for _, row := range table.Rows {
			if id, ok := lendeeID(table, row, column); ok {
				seen[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregate builds one derived feature row per identifier, ordered by id.
// Sources or columns that are absent contribute nothing.
func Aggregate(src *Sources) []FeatureRow {
	ids := CollectIdentifiers(src)
	byID := make(map[string]*FeatureRow, len(ids))
	rows := make([]FeatureRow, len(ids))
	for i, id := range ids {
		rows[i].LendeeID = id
		byID[id] = &rows[i]
	}

	for _, name := range SourceNames {
		table := src.Table(name)
		column := IDColumns[name]
		if !table.Has(column) {
			continue
		}
		hasAmount := amountSources[name] && table.Has(columnAmount)

		for _, row := range table.Rows {
			id, ok := lendeeID(table, row, column)
			if !ok {
				continue
			}
			feature := byID[id]
			feature.LendeeCount++

			amount := 0.0
			if hasAmount {
				amount = table.Number(row, columnAmount)
				feature.TotalLoanAmount += amount
			}
			if unpaid(name, table, row) {
				feature.UnpaidCount++
				feature.UnpaidAmount += amount
			}
		}
	}

	for i := range rows {
		rows[i] = Derive(rows[i])
	}
	return rows
}

// unpaid applies the per-source unpaid rule. bank_market rows count only on an
// explicit "defaulted"; investment rows count on anything but an explicit "yes",
// including a null outcome.
func unpaid(source string, table *Table, row []string) bool {
	if !table.Has(columnOutcome) {
		return false
	}
	outcome, ok := table.Value(row, columnOutcome)
	switch source {
	case SourceBankMarket:
		return ok && outcome == outcomeDefaulted
	case SourceInvestments:
		return !ok || outcome != outcomeYes
	default:
		return false
	}
}

// Derive fills the default flag and the ratio fields from the base counts.
// A zero denominator yields 0.
func Derive(row FeatureRow) FeatureRow {
	row.Defaulted = row.UnpaidCount > 0
	row.UnpaidRate = ratio(float64(row.UnpaidCount), float64(row.LendeeCount))
	row.AvgUnpaidAmountPer = ratio(row.UnpaidAmount, float64(row.UnpaidCount))
	row.AvgLoanPerLendee = ratio(row.TotalLoanAmount, float64(row.LendeeCount))
	return row
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func lendeeID(table *Table, row []string, column string) (string, bool) {
	v, ok := table.Value(row, column)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}
