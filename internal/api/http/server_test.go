package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiconfig "github.com/weisyn/rollup-prover/internal/config/api"
	"github.com/weisyn/rollup-prover/internal/core/prover/pipeline"
	"github.com/weisyn/rollup-prover/internal/core/prover/registry"
	"github.com/weisyn/rollup-prover/internal/testutil"
	"github.com/weisyn/rollup-prover/pkg/types/rollup"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProofs struct{}

func (stubProofs) Submit(ctx context.Context, stage rollup.Stage, subject string, req *pipeline.SubmitRequest) (*pipeline.ProofResponse, error) {
	return &pipeline.ProofResponse{Success: true, RequestID: "r", Message: pipeline.MessageGenerating}, nil
}

func (stubProofs) Get(ctx context.Context, stage rollup.Stage, subject, requestID string) (*pipeline.ProofResponse, error) {
	return &pipeline.ProofResponse{RequestID: requestID}, nil
}

func (stubProofs) GetBatch(ctx context.Context, stage rollup.Stage, subject string, ids []string) (*pipeline.BatchResponse, error) {
	return &pipeline.BatchResponse{Success: true}, nil
}

type stubStore struct{}

func (stubStore) Ping(context.Context) error { return nil }

type stubRegistry struct{}

func (stubRegistry) Status() registry.Status { return registry.Status{Ready: true} }

func testOptions() *apiconfig.APIOptions {
	opts := apiconfig.New(nil).GetOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 0
	return opts
}

func newTestServer(t *testing.T, reg *prometheus.Registry) *Server {
	s, err := NewServer(Dependencies{
		Options:  testOptions(),
		Logger:   testutil.NewTestLogger(),
		Clock:    testutil.NewTestClock(),
		Version:  "test",
		Proofs:   stubProofs{},
		Store:    stubStore{},
		Registry: stubRegistry{},
		Gatherer: reg,
		Metrics:  reg,
	})
	require.NoError(t, err)
	return s
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Dependencies{})
	assert.Error(t, err)

	_, err = NewServer(Dependencies{Options: testOptions(), Logger: testutil.NewTestLogger(), Clock: testutil.NewTestClock()})
	assert.Error(t, err, "proof service is required")
}

func TestMetricsEndpointExportsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, reg)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proof/0xab/deposit/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `rollup_api_requests_total{method="GET",path="/proof/:subject/:stage/:requestId",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	opts := testOptions()
	opts.EnableMetrics = false
	s, err := NewServer(Dependencies{
		Options:  opts,
		Logger:   testutil.NewTestLogger(),
		Clock:    testutil.NewTestClock(),
		Proofs:   stubProofs{},
		Gatherer: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, prometheus.NewRegistry())
	require.NoError(t, s.Start())
	require.NotEmpty(t, s.Addr())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health/live", s.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	require.NoError(t, s.Stop(context.Background()))
	_, err = client.Get(fmt.Sprintf("http://%s/health/live", s.Addr()))
	assert.Error(t, err)
}

func TestStopBeforeStart(t *testing.T) {
	s := newTestServer(t, prometheus.NewRegistry())
	assert.NoError(t, s.Stop(context.Background()))
}
