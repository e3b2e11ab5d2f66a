package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = 3 * time.Minute
	limiterSweepGap = time.Minute
)

// limiterPool hands out one token bucket per client IP and sweeps buckets
// that have gone quiet.
type limiterPool struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	pool := &limiterPool{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go pool.sweep()
	return pool
}

func (p *limiterPool) allow(ip string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	client, ok := p.clients[ip]
	if !ok {
		client = &clientLimiter{bucket: rate.NewLimiter(p.rps, p.burst)}
		p.clients[ip] = client
	}
	client.lastSeen = time.Now()
	return client.bucket.Allow()
}

func (p *limiterPool) sweep() {
	ticker := time.NewTicker(limiterSweepGap)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		for ip, client := range p.clients {
			if time.Since(client.lastSeen) > limiterIdleTTL {
				delete(p.clients, ip)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimit throttles requests per client IP.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	pool := newLimiterPool(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(clientIP(r.RemoteAddr)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
