package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coach-service/internal/config"
	"coach-service/internal/hashing"
	"coach-service/internal/models"
	"coach-service/internal/provider"
	"coach-service/internal/repository/memory"
	"coach-service/internal/service"
)

// newTestServer wires the full HTTP surface over in-memory stores and the
// deterministic provider only.
func newTestServer(t *testing.T) (*httptest.Server, *memory.IdeaStore) {
	t.Helper()

	logger := zap.NewNop()
	hasher := hashing.NewIdentifierHasher(&config.Config{
		Hashing: config.HashingConfig{IdentifierPepper: "test-pepper"},
	})
	ideas := memory.NewIdeaStore()

	admission := service.NewAdmissionService(memory.NewCounterStore(), hasher, logger)
	chain := service.NewChainService([]provider.Provider{provider.NewHeuristicProvider()}, nil, logger)
	jobs := service.NewJobService(memory.NewJobStore(), ideas, nil, logger)
	dispatch := service.NewDispatchService("", time.Second, logger)

	h := NewPipelineHandler(admission, chain, jobs, dispatch, logger)
	server := httptest.NewServer(NewRouter(h, logger))
	t.Cleanup(server.Close)
	return server, ideas
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestValidateEndpointEnforcesDailyQuota(t *testing.T) {
	server, _ := newTestServer(t)
	url := server.URL + "/api/v1/validate"
	body := map[string]string{
		"title":       "Churn prediction for SaaS",
		"description": "Analyze customer usage data to flag accounts at risk.",
	}

	resp := postJSON(t, url, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))

	out := decodeResponse(t, resp)
	assert.True(t, out.Success)

	// Same caller, same day: rejected with the reset timestamp.
	resp = postJSON(t, url, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	var limited struct {
		Error     string `json:"error"`
		ResetTime int64  `json:"resetTime"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&limited))
	resp.Body.Close()
	assert.NotEmpty(t, limited.Error)

	resetAt := time.UnixMilli(limited.ResetTime)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), resetAt, time.Minute,
		"reset should be roughly a day from the admitted request")

	headerReset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, limited.ResetTime, headerReset)
}

func TestValidateEndpointReturnsAnalysis(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/validate", map[string]string{
		"title":         "Invoice reconciliation for dental practices",
		"description":   "Automated matching of insurance payments so staff review only exceptions.",
		"target_market": "Independent dental practices",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeResponse(t, resp)
	require.True(t, out.Success)

	raw, err := json.Marshal(out.Data)
	require.NoError(t, err)
	var analysis models.ValidationAnalysis
	require.NoError(t, json.Unmarshal(raw, &analysis))
	assert.GreaterOrEqual(t, analysis.Score, 0)
	assert.LessOrEqual(t, analysis.Score, 100)
	assert.NotEmpty(t, analysis.Verdict)
	assert.Equal(t, "heuristic", analysis.Provider)
}

func TestValidateEndpointRejectsBadInput(t *testing.T) {
	server, _ := newTestServer(t)
	url := server.URL + "/api/v1/validate"

	resp := postJSON(t, url, map[string]string{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, url, map[string]string{"title": "x", "description": "<script>alert(1)</script>"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestJobLifecycleOverHTTP(t *testing.T) {
	server, ideas := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/v1/jobs", map[string]interface{}{
		"type":    "VALIDATION",
		"payload": map[string]string{"title": "Meal planning", "description": "Plans from pantry contents"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	out := decodeResponse(t, resp)
	require.True(t, out.Success)
	data, ok := out.Data.(map[string]interface{})
	require.True(t, ok)
	jobID, _ := data["jobId"].(string)
	require.NotEmpty(t, jobID)

	getJob := func() *models.Job {
		r, err := http.Get(server.URL + "/api/v1/jobs/" + jobID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, r.StatusCode)
		body := decodeResponse(t, r)
		raw, err := json.Marshal(body.Data)
		require.NoError(t, err)
		var job models.Job
		require.NoError(t, json.Unmarshal(raw, &job))
		return &job
	}

	assert.Equal(t, models.JobStatusPending, getJob().Status)

	webhook := server.URL + "/api/v1/webhooks/job-result"

	resp = postJSON(t, webhook, map[string]interface{}{"jobId": jobID, "status": "PROCESSING"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, models.JobStatusProcessing, getJob().Status)

	completion := map[string]interface{}{
		"jobId":  jobID,
		"status": "COMPLETED",
		"result": map[string]interface{}{"score": 66, "verdict": "Has potential"},
	}
	resp = postJSON(t, webhook, completion)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	job := getJob()
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotEmpty(t, job.Result)

	// Redelivered callback: same 200 answer, state untouched, one idea record.
	resp = postJSON(t, webhook, completion)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, models.JobStatusCompleted, getJob().Status)

	recs, err := ideas.RecentIdeas(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestJobResultWebhookValidation(t *testing.T) {
	server, _ := newTestServer(t)
	webhook := server.URL + "/api/v1/webhooks/job-result"

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing jobId", map[string]interface{}{"status": "COMPLETED"}, http.StatusBadRequest},
		{"unknown status", map[string]interface{}{"jobId": "j", "status": "DONE"}, http.StatusBadRequest},
		{"pending not allowed", map[string]interface{}{"jobId": "j", "status": "PENDING"}, http.StatusBadRequest},
		{"unknown job", map[string]interface{}{"jobId": "missing", "status": "COMPLETED"}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, webhook, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestGetJobUnknownIDReturns404(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/jobs/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCoachNudgeQuota(t *testing.T) {
	server, _ := newTestServer(t)
	url := server.URL + "/api/v1/coach-nudge"
	body := map[string]interface{}{"userId": "u1", "reason": "inactivity"}

	for i := 0; i < 3; i++ {
		resp := postJSON(t, url, body)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "nudge %d", i+1)
		resp.Body.Close()
	}

	resp := postJSON(t, url, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()
}

func TestUnknownRouteReturns404(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerErrorsHideDetail(t *testing.T) {
	logger := zap.NewNop()
	hasher := hashing.NewIdentifierHasher(&config.Config{
		Hashing: config.HashingConfig{IdentifierPepper: "p"},
	})

	failing := &failingProvider{}
	admission := service.NewAdmissionService(memory.NewCounterStore(), hasher, logger)
	chain := service.NewChainService([]provider.Provider{failing}, nil, logger)
	jobs := service.NewJobService(memory.NewJobStore(), memory.NewIdeaStore(), nil, logger)
	dispatch := service.NewDispatchService("", time.Second, logger)

	h := NewPipelineHandler(admission, chain, jobs, dispatch, logger)
	server := httptest.NewServer(NewRouter(h, logger))
	defer server.Close()

	resp := postJSON(t, server.URL+"/api/v1/validate", map[string]string{
		"title":       "t",
		"description": "d",
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	out := decodeResponse(t, resp)
	assert.False(t, out.Success)
	assert.NotContains(t, out.Error, "database password leaked")
}

type failingProvider struct{}

func (p *failingProvider) Name() string           { return "failing" }
func (p *failingProvider) Timeout() time.Duration { return 0 }
func (p *failingProvider) Attempt(_ context.Context, _ provider.Input) (*provider.Result, error) {
	return nil, fmt.Errorf("database password leaked")
}
