package main

import (
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"lendee-scoring/internal/lendee"
)

// renderFeatures prints one row per lendee with its score appended.
func renderFeatures(out io.Writer, rows []lendee.FeatureRow) error {
	table := tablewriter.NewWriter(out)
	table.Header([]string{
		"Lendee", "Count", "Unpaid", "Unpaid Amount", "Total Amount", "Unpaid Rate", "Avg Loan", "Defaulted", "Score",
	})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.LendeeID,
			strconv.Itoa(r.LendeeCount),
			strconv.Itoa(r.UnpaidCount),
			formatNumber(r.UnpaidAmount),
			formatNumber(r.TotalLoanAmount),
			formatNumber(r.UnpaidRate),
			formatNumber(r.AvgLoanPerLendee),
			strconv.FormatBool(r.Defaulted),
			formatNumber(lendee.Score(r.ScoreInput())),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// renderScores prints scores sorted by lendee id.
func renderScores(out io.Writer, scores lendee.Scores) error {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Lendee", "Score"})

	data := make([][]string, 0, len(ids))
	for _, id := range ids {
		data = append(data, []string{id, formatNumber(scores[id])})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
