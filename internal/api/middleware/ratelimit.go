package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"looplib/internal/auth"
)

const (
	maxTrackedClients = 10000
	idleTimeout       = 10 * time.Minute
)

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*visitor),
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	v, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.pruneLocked(now.Add(-idleTimeout))
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than maxIdle.
func (l *IPRateLimiter) Cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(time.Now().Add(-maxIdle))
}

func (l *IPRateLimiter) pruneLocked(cutoff time.Time) {
	for ip, v := range l.clients {
		if v.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
		}
	}
}

// RateLimit answers 429 with the auth/too-many-requests code once a client
// IP runs out of tokens.
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   auth.CodeTooManyRequests,
				"message": auth.BannerMessage(auth.ErrTooManyRequests),
			})
			return
		}
		c.Next()
	}
}
