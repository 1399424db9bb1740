package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowProviderParsesValidResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score":81,"verdict":"Strong","strengths":["clear niche"],"risks":[],"next_steps":["interview users"]}`))
	}))
	defer server.Close()

	p := NewWorkflowProvider(server.URL, "secret-token", 5*time.Second)
	result, err := p.Attempt(context.Background(), Input{
		RequestID:   "req-1",
		Title:       "t",
		Description: "d",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "req-1", gotBody["request_id"])
	assert.Equal(t, 81, result.Analysis.Score)
	assert.Equal(t, "workflow-engine", result.Analysis.Provider)
}

func TestWorkflowProviderRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p := NewWorkflowProvider(server.URL, "", 5*time.Second)
	_, err := p.Attempt(context.Background(), Input{Title: "t"})
	assert.Error(t, err)
}

func TestWorkflowProviderRejectsGarbageBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance page</html>`))
	}))
	defer server.Close()

	p := NewWorkflowProvider(server.URL, "", 5*time.Second)
	_, err := p.Attempt(context.Background(), Input{Title: "t"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestWorkflowProviderRejectsOutOfRangeScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"score":250,"verdict":"broken"}`))
	}))
	defer server.Close()

	p := NewWorkflowProvider(server.URL, "", 5*time.Second)
	_, err := p.Attempt(context.Background(), Input{Title: "t"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestWorkflowProviderHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewWorkflowProvider(server.URL, "", time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := p.Attempt(ctx, Input{Title: "t"})
	assert.Error(t, err)
	assert.Less(t, time.Since(started), time.Second)
}

func TestParseAnalysisContentStripsMarkdownFences(t *testing.T) {
	content := "```json\n{\"score\": 64, \"verdict\": \"ok\"}\n```"

	analysis, err := parseAnalysisContent(content)
	require.NoError(t, err)
	assert.Equal(t, 64, analysis.Score)
	assert.Equal(t, "ok", analysis.Verdict)
}

func TestParseAnalysisContentRejectsEmptyVerdict(t *testing.T) {
	_, err := parseAnalysisContent(`{"score": 64, "verdict": ""}`)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
