package lendee

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

const (
	maxLendeeCount     = 100.0
	maxTotalLoanAmount = 1_000_000.0
	maxAvgLoan         = 50_000.0

	weightNotDefaulted = 0.5
	weightLendeeCount  = 0.2
	weightTotalLoan    = 0.15
	weightAvgLoan      = 0.15
)

// Scores maps the string form of a lendee id to its score.
type Scores map[string]float64

// ScoreInput is the feature tuple the scorer reads. Inputs must be non-negative.
type ScoreInput struct {
	LendeeCount      float64
	TotalLoanAmount  float64
	AvgLoanPerLendee float64
	Defaulted        bool
}

// Score returns a value in [0,100] rounded to two decimals:
//
//	100 * (0.5*(1-defaulted) + 0.2*n(count) + 0.15*n(total) + 0.15*n(avg))
//
// where n clamps value/cap to at most 1.
func Score(in ScoreInput) float64 {
	notDefaulted := 1.0
	if in.Defaulted {
		notDefaulted = 0
	}

	score := (weightNotDefaulted*notDefaulted +
		weightLendeeCount*normalize(in.LendeeCount, maxLendeeCount) +
		weightTotalLoan*normalize(in.TotalLoanAmount, maxTotalLoanAmount) +
		weightAvgLoan*normalize(in.AvgLoanPerLendee, maxAvgLoan)) * 100

	return round2(score)
}

func normalize(value, limit float64) float64 {
	return math.Min(value/limit, 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScoreRows scores every feature row.
func ScoreRows(rows []FeatureRow) Scores {
	scores := make(Scores, len(rows))
	for _, row := range rows {
		scores[row.LendeeID] = Score(row.ScoreInput())
	}
	return scores
}

// FeatureItem is a caller-supplied feature tuple. Absent numeric fields are 0.
type FeatureItem struct {
	LendeeID         Identifier `json:"lendee_id"`
	LendeeCount      float64    `json:"lendee_count"`
	TotalLoanAmount  float64    `json:"total_loan_amount"`
	AvgLoanPerLendee float64    `json:"avg_loan_per_lendee"`
	Defaulted        Flag       `json:"defaulted"`
}

func (it FeatureItem) ScoreInput() ScoreInput {
	return ScoreInput{
		LendeeCount:      it.LendeeCount,
		TotalLoanAmount:  it.TotalLoanAmount,
		AvgLoanPerLendee: it.AvgLoanPerLendee,
		Defaulted:        bool(it.Defaulted),
	}
}

// ScoreItems scores caller-supplied items without loading any source. Items
// without an id are skipped; a repeated id keeps the last score.
func ScoreItems(items []FeatureItem) Scores {
	scores := make(Scores, len(items))
	for _, it := range items {
		if it.LendeeID == "" {
			continue
		}
		scores[string(it.LendeeID)] = Score(it.ScoreInput())
	}
	return scores
}

// Identifier is a lendee id decoded from JSON in its string form. Strings are
// kept verbatim, numbers keep their JSON literal text, null decodes to "".
type Identifier string

func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty identifier")
	}

	switch data[0] {
	case 'n':
		*id = ""
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = Identifier(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*id = Identifier(strconv.FormatBool(b))
		return nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*id = Identifier(buf.String())
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*id = Identifier(n.String())
		return nil
	}
}

// Identifiers converts decoded ids to strings, dropping null entries.
func Identifiers(ids []Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, string(id))
		}
	}
	return out
}

// Flag decodes a default indicator given either as a JSON bool or as a number.
// Numbers are truncated to an integer first, so 0.5 is false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(val)
	case float64:
		*f = int64(val) != 0
	default:
		return fmt.Errorf("defaulted must be a bool or a number, got %T", v)
	}
	return nil
}
