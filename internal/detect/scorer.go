package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

var ErrScorerUnavailable = errors.New("detection scorer unavailable")

// Result is a detection verdict. Fallback marks results synthesized from the
// default score when the scorer could not be reached; the pipeline treats
// those as successes so a provider outage never blocks completion.
type Result struct {
	Score      float64 `json:"score"`
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback,omitempty"`
}

type ScorerConfig struct {
	BaseURL      string
	AuthToken    string
	Timeout      time.Duration
	MaxRetries   int
	DefaultScore float64
	HTTPClient   *http.Client
	CacheTTL     time.Duration
	CacheEntries int
}

// Scorer calls the internal AI-detection endpoint with bounded retries and
// a conservative default on outage.
type Scorer struct {
	baseURL      string
	authToken    string
	timeout      time.Duration
	maxRetries   int
	defaultScore float64
	httpClient   *http.Client
	cache        *scoreCache
}

func NewScorer(config ScorerConfig) *Scorer {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.DefaultScore <= 0 {
		config.DefaultScore = 85
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Scorer{
		baseURL:      strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		authToken:    strings.TrimSpace(config.AuthToken),
		timeout:      config.Timeout,
		maxRetries:   config.MaxRetries,
		defaultScore: config.DefaultScore,
		httpClient:   config.HTTPClient,
		cache:        newScoreCache(config.CacheTTL, config.CacheEntries),
	}
}

func (s *Scorer) Available() bool {
	return s.baseURL != ""
}

// Score returns the detection verdict for text. Never returns an error for
// provider outages: those yield the default score with Fallback set.
func (s *Scorer) Score(ctx context.Context, text string, passThreshold float64) Result {
	if !s.Available() {
		return s.fallback(passThreshold)
	}

	signature := cacheSignature(text, passThreshold)
	if cached, ok := s.cache.get(signature); ok {
		return cached
	}

	payload, err := json.Marshal(map[string]any{
		"text":           text,
		"pass_threshold": passThreshold,
	})
	if err != nil {
		return s.fallback(passThreshold)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		result, callErr := s.callScoreAPI(ctx, payload)
		if callErr == nil {
			s.cache.put(signature, result)
			return result
		}
		lastErr = callErr

		if !isRetryable(callErr) || attempt == s.maxRetries {
			break
		}
		backoff := time.Duration(250*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return s.fallback(passThreshold)
		case <-time.After(backoff):
		}
	}
	_ = lastErr

	return s.fallback(passThreshold)
}

func (s *Scorer) callScoreAPI(ctx context.Context, payload []byte) (Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		s.baseURL+"/internal/detection/score",
		bytes.NewReader(payload),
	)
	if err != nil {
		return Result{}, fmt.Errorf("create detection request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if s.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read detection response: %w", err)
	}
	if response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests {
		return Result{}, fmt.Errorf("%w: status %d", ErrScorerUnavailable, response.StatusCode)
	}
	if response.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("detection scorer returned status %d", response.StatusCode)
	}

	var decoded Result
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode detection response: %w", err)
	}
	if decoded.Score < 0 {
		decoded.Score = 0
	}
	if decoded.Score > 100 {
		decoded.Score = 100
	}
	return decoded, nil
}

func (s *Scorer) fallback(passThreshold float64) Result {
	return Result{
		Score:      s.defaultScore,
		Passed:     s.defaultScore >= passThreshold,
		Confidence: 0,
		Fallback:   true,
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrScorerUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
