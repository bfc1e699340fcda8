package splitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Split(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/split-events", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var req SplitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "onboarding", req.Source)
		assert.Equal(t, "career", req.Topic)

		json.NewEncoder(w).Encode(SplitResponse{
			Success:     true,
			Destination: "life_event",
			Events: []Event{
				{Title: "Start bei Siemens", StartDate: "1990-01-01", Confidence: 0.9, Source: "onboarding"},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithAccessToken("secret-token"))

	resp, err := c.Split(context.Background(), SplitRequest{
		Content: "1990 habe ich bei Siemens angefangen.",
		Source:  "onboarding",
		Topic:   "career",
		UserID:  "u1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "life_event", resp.Destination)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Start bei Siemens", resp.Events[0].Title)
}

func TestHTTPClient_Split_RequestTokenOverridesDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer per-request", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(SplitResponse{Success: true})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithAccessToken("default"))

	_, err := c.Split(context.Background(), SplitRequest{
		Content:     "Text.",
		AccessToken: "per-request",
	})
	require.NoError(t, err)
}

func TestHTTPClient_Split_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "splitter overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)

	_, err := c.Split(context.Background(), SplitRequest{Content: "Text."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
	assert.Contains(t, err.Error(), "splitter overloaded")
}

func TestHTTPClient_Split_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)

	_, err := c.Split(context.Background(), SplitRequest{Content: "Text."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestHTTPClient_Split_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SplitResponse{Success: true})
	}))
	defer srv.Close()

	// One request per hour with burst 1: the second call must wait and the
	// cancelled context aborts it.
	c := NewHTTPClient(srv.URL, WithRateLimit(1.0/3600, 1))

	_, err := c.Split(context.Background(), SplitRequest{Content: "Erster."})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Split(ctx, SplitRequest{Content: "Zweiter."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("Hier ist das Ergebnis: {\"a\":1} fertig."))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSON("```json\n{\"a\":{\"b\":2}}\n```"))
	assert.Equal(t, "kein json", extractJSON("kein json"))
}
