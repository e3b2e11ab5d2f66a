package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const editorOrigin = "https://editor.textforge.io"

func corsHandler(t *testing.T, nextCalled *bool) http.Handler {
	t.Helper()
	return CORS(CORSConfig{
		AllowedOrigins: []string{editorOrigin},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if nextCalled != nil {
			*nextCalled = true
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORSPreflightFromEditor(t *testing.T) {
	nextCalled := false
	handler := corsHandler(t, &nextCalled)

	request := httptest.NewRequest(http.MethodOptions, "/v1/transforms", nil)
	request.Header.Set("Origin", editorOrigin)
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "authorization,content-type,idempotency-key")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if nextCalled {
		t.Fatalf("preflight must not reach the handler chain")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != editorOrigin {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("expected POST in allow methods, got %q", got)
	}
	allowed := strings.ToLower(recorder.Header().Get("Access-Control-Allow-Headers"))
	for _, header := range []string{"authorization", "idempotency-key"} {
		if !strings.Contains(allowed, header) {
			t.Fatalf("expected %s in allow headers, got %q", header, allowed)
		}
	}
}

func TestCORSActualRequestFromEditor(t *testing.T) {
	handler := corsHandler(t, nil)

	request := httptest.NewRequest(http.MethodPost, "/v1/transforms", nil)
	request.Header.Set("Origin", editorOrigin)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != editorOrigin {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	nextCalled := false
	handler := corsHandler(t, &nextCalled)

	request := httptest.NewRequest(http.MethodOptions, "/v1/transforms", nil)
	request.Header.Set("Origin", "https://scraper.example")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected passthrough status %d, got %d", http.StatusOK, recorder.Code)
	}
	if !nextCalled {
		t.Fatalf("unknown origin should pass through the chain")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header for unknown origin, got %q", got)
	}
}
