package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestScoreReturnsVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/detection/score" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score":92.5,"passed":true,"confidence":0.8}`))
	}))
	defer server.Close()

	scorer := NewScorer(ScorerConfig{BaseURL: server.URL, DefaultScore: 70})
	result := scorer.Score(context.Background(), "some rewritten text", 75)
	if result.Fallback {
		t.Fatalf("expected live score, got fallback")
	}
	if result.Score != 92.5 || !result.Passed {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestScoreFallsBackOnOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	scorer := NewScorer(ScorerConfig{BaseURL: server.URL, DefaultScore: 85, MaxRetries: 1})
	result := scorer.Score(context.Background(), "text", 75)
	if !result.Fallback {
		t.Fatalf("expected fallback result on 5xx")
	}
	if result.Score != 85 || !result.Passed {
		t.Fatalf("unexpected fallback result: %+v", result)
	}
}

func TestScoreFallsBackWithoutBaseURL(t *testing.T) {
	scorer := NewScorer(ScorerConfig{DefaultScore: 60})
	result := scorer.Score(context.Background(), "text", 75)
	if !result.Fallback {
		t.Fatalf("expected fallback when scorer is not configured")
	}
	if result.Passed {
		t.Fatalf("default 60 must not pass a 75 threshold")
	}
}

func TestScoreRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"score":88,"passed":true,"confidence":0.7}`))
	}))
	defer server.Close()

	scorer := NewScorer(ScorerConfig{BaseURL: server.URL, MaxRetries: 2})
	result := scorer.Score(context.Background(), "text", 75)
	if result.Fallback {
		t.Fatalf("expected retry to succeed, got fallback")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestScoreUsesCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"score":90,"passed":true,"confidence":0.9}`))
	}))
	defer server.Close()

	scorer := NewScorer(ScorerConfig{BaseURL: server.URL, CacheTTL: time.Minute})
	for i := 0; i < 3; i++ {
		scorer.Score(context.Background(), "identical text", 75)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call with caching, got %d", calls.Load())
	}
}
