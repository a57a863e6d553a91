package lendee

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// scenarioA is one row per source for lendee X, plus a profiles-only lendee Y.
var scenarioA = map[string]string{
	SourceInvestments:  "id,outcome,amount\nX,no,500\n",
	SourceProfiles:     "id,name\nX,Ada\nY,Grace\n",
	SourceLoanRequests: "lendee_id,amount\nX,200\n",
	SourceBankMarket:   "lendee_id,outcome,amount\nX,defaulted,1000\n",
}

func writeSources(t *testing.T, contents map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range contents {
		path := filepath.Join(dir, DefaultFiles[name])
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

func sourcesFrom(t *testing.T, contents map[string]string) *Sources {
	t.Helper()
	src, err := NewCSVLoader(writeSources(t, contents), nil).Load(t.Context())
	require.NoError(t, err)
	return src
}

func rowByID(t *testing.T, rows []FeatureRow, id string) FeatureRow {
	t.Helper()
	for _, r := range rows {
		if r.LendeeID == id {
			return r
		}
	}
	t.Fatalf("no feature row for %q", id)
	return FeatureRow{}
}
