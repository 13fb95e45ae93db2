package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter 按客户端 IP 限流，闲置超过 idleTTL 的条目惰性清理
type clientLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*visitor
	lastSweep time.Time
	idleTTL   time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		clients:   make(map[string]*visitor),
		lastSweep: time.Now(),
		idleTTL:   3 * time.Minute,
	}
}

func (l *clientLimiter) allow(client string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		for ip, v := range l.clients {
			if now.Sub(v.lastSeen) > l.idleTTL {
				delete(l.clients, ip)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.clients[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[client] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// wrap 超限时返回 429
func (l *clientLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests", nil, nil)
			return
		}
		next(w, r)
	}
}
