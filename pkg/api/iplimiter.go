package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter is a coarse, per-IP token-bucket limiter sitting in front of
// the domain-precise sliding-window limiter in pkg/auth. It sheds obvious
// abuse cheaply, before an authenticator or the inner limiter even runs;
// the inner limiter remains the one whose behavior is covered by the
// sliding-window testable properties.
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*ipVisitor
	rps      rate.Limit
	burst    int
}

type ipVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPLimiter constructs an IPLimiter allowing rps requests/sec with the
// given burst, per remote address.
func NewIPLimiter(rps int, burst int) *IPLimiter {
	return &IPLimiter{
		visitors: make(map[string]*ipVisitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *IPLimiter) visitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &ipVisitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Sweep removes visitor entries idle for longer than maxIdle, bounding
// memory growth. Callers run this periodically (e.g. from a background
// goroutine in cmd/driftwatchd).
func (l *IPLimiter) Sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if time.Since(v.lastSeen) > maxIdle {
			delete(l.visitors, ip)
		}
	}
}

// Middleware rejects requests whose source IP has exhausted its token
// bucket with 429.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.Trim(r.RemoteAddr, "[]")
		}
		if !l.visitor(ip).Allow() {
			WriteTooManyRequests(w, 5)
			return
		}
		next.ServeHTTP(w, r)
	})
}
