package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendee-scoring/internal/common/logger"
)

func TestObservability_RecordJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New("lendee-scoring-test", reg, logger.NewTestLogger(t))
	t.Cleanup(obs.Shutdown)

	obs.RecordJob(context.Background(), "compute-and-send", "completed", 120*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.True(t, hasPrefix(names, "jobs_processed"), "gathered: %v", names)
	assert.True(t, hasPrefix(names, "jobs_duration"), "gathered: %v", names)
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	obs := &Observability{logger: logger.NewNoOpLogger()}

	assert.NotPanics(t, func() {
		obs.RecordJob(context.Background(), "compute-and-send", "failed", time.Second)
		obs.Shutdown()
	})
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
