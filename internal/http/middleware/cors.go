package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the API. An
// AllowedOrigins entry of "*" opens the API to every origin.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

const corsDefaultMaxAge = 600

func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	wildcard := false
	for _, raw := range cfg.AllowedOrigins {
		origin := strings.ToLower(strings.TrimSpace(raw))
		if origin == "" {
			continue
		}
		if origin == "*" {
			wildcard = true
		}
		origins[origin] = struct{}{}
	}

	methods := headerValue(cfg.AllowedMethods,
		http.MethodGet, http.MethodPost, http.MethodOptions)
	// Idempotency-Key and X-Request-Id are part of the transform API surface
	// and must survive preflight.
	headers := headerValue(cfg.AllowedHeaders,
		"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id")

	maxAge := cfg.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = corsDefaultMaxAge
	}
	maxAgeValue := strconv.Itoa(maxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := origins[strings.ToLower(origin)]; !ok && !wildcard {
				// unknown origin: no CORS headers, the browser enforces the rest
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			if r.Method == http.MethodOptions {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", maxAgeValue)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// headerValue joins configured values into a header string, falling back to
// the given defaults when nothing usable was configured.
func headerValue(configured []string, defaults ...string) string {
	kept := make([]string, 0, len(configured))
	for _, raw := range configured {
		if value := strings.TrimSpace(raw); value != "" {
			kept = append(kept, value)
		}
	}
	if len(kept) == 0 {
		kept = defaults
	}
	return strings.Join(kept, ", ")
}
