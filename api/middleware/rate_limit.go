package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. The name labels the
// scope in log output so auth-wide and code-issue buckets stay
// distinguishable.
type RateLimiter struct {
	name     string
	logger   logrus.FieldLogger
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	lastSeen map[string]time.Time
}

func NewRateLimiter(name string, r rate.Limit, burst int, ttl time.Duration, logger logrus.FieldLogger) *RateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimiter{
		name:     name,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
	}
}

func (l *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !l.getLimiter(ip).Allow() {
				l.logger.WithFields(logrus.Fields{
					"limiter": l.name,
					"ip":      ip,
					"path":    c.Path(),
				}).Warn("rate limit exceeded")
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func (l *RateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if limiter, ok := l.limiters[ip]; ok {
		l.lastSeen[ip] = time.Now()
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	l.lastSeen[ip] = time.Now()
	l.evictIdle()
	return limiter
}

// evictIdle runs under the mutex and drops buckets idle past the TTL.
func (l *RateLimiter) evictIdle() {
	if l.ttl == 0 {
		return
	}
	cutoff := time.Now().Add(-l.ttl)
	evicted := 0
	for ip, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, ip)
			delete(l.limiters, ip)
			evicted++
		}
	}
	if evicted > 0 {
		l.logger.WithFields(logrus.Fields{
			"limiter": l.name,
			"evicted": evicted,
		}).Debug("evicted idle rate limiter buckets")
	}
}
