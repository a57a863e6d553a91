package computeandsend

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	apperrors "lendee-scoring/internal/common/errors"
	"lendee-scoring/internal/common/logger"
	"lendee-scoring/internal/common/observability"
	"lendee-scoring/internal/lendee"
	"lendee-scoring/internal/relay"
	"lendee-scoring/internal/scoring"
)

// ==========================
// Test Helpers
// ==========================

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

type stubService struct {
	result  *scoring.Result
	err     error
	gotIDs  []string
	gotDest string
}

func (s *stubService) ComputeAndSend(_ context.Context, ids []string, destination string) (*scoring.Result, error) {
	s.gotIDs = ids
	s.gotDest = destination
	return s.result, s.err
}

// fakeGateway records the job commands the handler sends.
type fakeGateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
}

func (g *fakeGateway) CompleteJob(_ context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, nil
}

func (g *fakeGateway) FailJob(_ context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, nil
}

func (g *fakeGateway) ThrowError(_ context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, nil
}

func noRetry(context.Context, error) bool { return false }

type fakeJobClient struct {
	gateway *fakeGateway
}

func (c fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, noRetry)
}

func (c fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, noRetry)
}

func (c fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, noRetry)
}

func createMockJob(key int64, variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "lendee-scoring",
		ElementId:          "Activity_ComputeAndSend",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          variables,
	}}
}

func createTestConfig() *Config {
	return &Config{Enabled: true, MaxJobsActive: 1, Timeout: 5 * time.Second}
}

func newObservability(t *testing.T) *observability.Observability {
	obs := observability.New("compute-and-send-test", prometheus.NewRegistry(), newTestLogger(t))
	t.Cleanup(obs.Shutdown)
	return obs
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		result   *scoring.Result
		wantIDs  []string
		wantDest string
		want     *Output
	}{
		{
			name:    "delivered",
			input:   &Input{UUIDs: []lendee.Identifier{"X"}},
			result:  &scoring.Result{Mapping: lendee.Scores{"X": 0.95}, Delivery: relay.Delivery{Delivered: true, StatusCode: 200}},
			wantIDs: []string{"X"},
			want:    &Output{Mapping: lendee.Scores{"X": 0.95}, Posted: true, OracleStatusCode: 200},
		},
		{
			name:     "rejected by relay",
			input:    &Input{UUIDs: []lendee.Identifier{"X", "", "Y"}, OracleURL: "http://oracle/receive"},
			result:   &scoring.Result{Mapping: lendee.Scores{"X": 0.95}, Delivery: relay.Delivery{StatusCode: 401, Err: errors.New("401")}},
			wantIDs:  []string{"X", "Y"},
			wantDest: "http://oracle/receive",
			want:     &Output{Mapping: lendee.Scores{"X": 0.95}, OracleStatusCode: 401},
		},
		{
			name:    "relay unreachable",
			input:   &Input{UUIDs: []lendee.Identifier{"X"}},
			result:  &scoring.Result{Mapping: lendee.Scores{"X": 0.95}, Delivery: relay.Delivery{Err: errors.New("refused")}},
			wantIDs: []string{"X"},
			want:    &Output{Mapping: lendee.Scores{"X": 0.95}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{result: tt.result}
			h := NewHandler(createTestConfig(), svc, nil, newTestLogger(t))

			out, err := h.Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.wantIDs, svc.gotIDs)
			assert.Equal(t, tt.wantDest, svc.gotDest)
		})
	}
}

func TestHandler_Execute_SourcesMissing(t *testing.T) {
	svc := &stubService{err: apperrors.NewSourcesMissingError([]string{"investments"})}
	h := NewHandler(createTestConfig(), svc, nil, newTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{UUIDs: []lendee.Identifier{"X"}})
	assert.Nil(t, out)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSourcesMissing))
}

// ==========================
// Handle Tests
// ==========================

func TestHandler_Handle_CompletesJob(t *testing.T) {
	svc := &stubService{result: &scoring.Result{
		Mapping:  lendee.Scores{"X": 0.95, "12": 50.2},
		Delivery: relay.Delivery{Delivered: true, StatusCode: 200},
	}}
	h := NewHandler(createTestConfig(), svc, newObservability(t), newTestLogger(t))
	gw := &fakeGateway{}

	h.Handle(fakeJobClient{gateway: gw}, createMockJob(7, `{"uuids":["X",12],"oracleUrl":"http://oracle/receive","other":"ignored"}`))

	assert.Equal(t, []string{"X", "12"}, svc.gotIDs)
	assert.Equal(t, "http://oracle/receive", svc.gotDest)
	require.Len(t, gw.completed, 1)
	assert.Empty(t, gw.failed)
	assert.Empty(t, gw.thrown)
	assert.Equal(t, int64(7), gw.completed[0].JobKey)

	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(gw.completed[0].Variables), &vars))
	assert.Equal(t, true, vars["posted"])
	assert.Equal(t, 200.0, vars["oracleStatusCode"])
	assert.Equal(t, map[string]interface{}{"X": 0.95, "12": 50.2}, vars["mapping"])
}

func TestHandler_Handle_Errors(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		svcErr    error
		wantThrow string
		wantFail  bool
	}{
		{name: "missing uuids", variables: `{"oracleUrl":"http://x"}`, wantThrow: "INVALID_REQUEST"},
		{name: "empty uuids", variables: `{"uuids":[]}`, wantThrow: "INVALID_REQUEST"},
		{name: "uuids not a list", variables: `{"uuids":"X"}`, wantThrow: "INVALID_REQUEST"},
		{
			name:      "sources missing",
			variables: `{"uuids":["X"]}`,
			svcErr:    apperrors.NewSourcesMissingError([]string{"bank_market"}),
			wantThrow: "SOURCES_MISSING",
		},
		{
			name:      "source query failed is retried",
			variables: `{"uuids":["X"]}`,
			svcErr:    apperrors.NewSourceQueryFailedError("investments", errors.New("connection reset")),
			wantFail:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.svcErr}
			h := NewHandler(createTestConfig(), svc, newObservability(t), newTestLogger(t))
			gw := &fakeGateway{}

			h.Handle(fakeJobClient{gateway: gw}, createMockJob(3, tt.variables))

			assert.Empty(t, gw.completed)
			if tt.wantFail {
				require.Len(t, gw.failed, 1)
				assert.Empty(t, gw.thrown)
				assert.Less(t, gw.failed[0].Retries, int32(3))
				return
			}
			require.Len(t, gw.thrown, 1)
			assert.Empty(t, gw.failed)
			assert.Equal(t, tt.wantThrow, gw.thrown[0].ErrorCode)
		})
	}
}

// ==========================
// Config Tests
// ==========================

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&Config{MaxJobsActive: 1}).Validate())
	assert.Error(t, (&Config{Timeout: time.Second}).Validate())
}
