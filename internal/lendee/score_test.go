package lendee

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   ScoreInput
		want float64
	}{
		{name: "zero input", in: ScoreInput{}, want: 50},
		{name: "zero input defaulted", in: ScoreInput{Defaulted: true}, want: 0},
		{name: "single profile row", in: ScoreInput{LendeeCount: 1}, want: 50.2},
		{
			name: "scenario A lendee",
			in:   ScoreInput{LendeeCount: 4, TotalLoanAmount: 1700, AvgLoanPerLendee: 425, Defaulted: true},
			want: 0.95,
		},
		{
			name: "every input saturated",
			in:   ScoreInput{LendeeCount: 500, TotalLoanAmount: 5_000_000, AvgLoanPerLendee: 90_000},
			want: 100,
		},
		{
			name: "half of every cap",
			in:   ScoreInput{LendeeCount: 50, TotalLoanAmount: 500_000, AvgLoanPerLendee: 25_000},
			want: 75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.in))
		})
	}
}

func TestScore_DefaultDropsExactlyFifty(t *testing.T) {
	in := ScoreInput{LendeeCount: 10, TotalLoanAmount: 200_000, AvgLoanPerLendee: 20_000}
	clean := Score(in)
	in.Defaulted = true

	assert.InDelta(t, 50.0, clean-Score(in), 1e-9)
}

func TestScore_LendeeCountSaturates(t *testing.T) {
	at := Score(ScoreInput{LendeeCount: 100})
	for _, count := range []float64{100, 101, 250, 1e9} {
		assert.Equal(t, at, Score(ScoreInput{LendeeCount: count}), "count %v", count)
	}
	assert.Less(t, Score(ScoreInput{LendeeCount: 99}), at)
}

func TestScore_RangeAndDeterminism(t *testing.T) {
	counts := []float64{0, 1, 3, 99, 100, 1000}
	amounts := []float64{0, 0.5, 1234.567, 999_999, 1_000_000, 7e7}

	for _, c := range counts {
		for _, a := range amounts {
			for _, d := range []bool{false, true} {
				in := ScoreInput{LendeeCount: c, TotalLoanAmount: a, AvgLoanPerLendee: a / 3, Defaulted: d}
				s := Score(in)
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, 100.0)
				assert.Equal(t, s, Score(in))
				assert.Equal(t, s, round2(s))
			}
		}
	}
}

func TestScoreItems(t *testing.T) {
	var items []FeatureItem
	require.NoError(t, json.Unmarshal([]byte(`[
		{"lendee_id": "X", "lendee_count": 4, "total_loan_amount": 1700, "avg_loan_per_lendee": 425, "defaulted": 1},
		{"lendee_id": 42, "lendee_count": 1},
		{"lendee_id": "B", "defaulted": true},
		{"lendee_count": 3},
		{"lendee_id": "C", "defaulted": 0.5}
	]`), &items))

	scores := ScoreItems(items)

	assert.Equal(t, Scores{"X": 0.95, "42": 50.2, "B": 0, "C": 50}, scores)
}

func TestIdentifier_UnmarshalJSON(t *testing.T) {
	var ids []Identifier
	require.NoError(t, json.Unmarshal([]byte(`["abc", 123, 1.0, -7, null, true, "  padded "]`), &ids))

	assert.Equal(t, []string{"abc", "123", "1.0", "-7", "true", "  padded "}, Identifiers(ids))
}

func TestFlag_RejectsStrings(t *testing.T) {
	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &f))
}
