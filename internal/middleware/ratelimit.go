package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/apperr"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPLimiter is a token bucket per client IP and route. It is a coarse
// flood guard in front of the per-user action quotas in package ratelimit.
type IPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*keyLimiter
	r       rate.Limit
	burst   int
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

func NewIPLimiter(r rate.Limit, burst int, ttl time.Duration) *IPLimiter {
	return &IPLimiter{
		buckets: make(map[string]*keyLimiter),
		r:       r,
		burst:   burst,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
}

func (l *IPLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.buckets[key]; ok {
		kl.lastSeen = now
		return kl.lim
	}
	lim := rate.NewLimiter(l.r, l.burst)
	l.buckets[key] = &keyLimiter{lim: lim, lastSeen: now}
	return lim
}

func (l *IPLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.buckets {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.buckets, k)
		}
	}
}

// Run evicts idle buckets until Stop is called.
func (l *IPLimiter) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *IPLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *IPLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := clientIP(c.Request.RemoteAddr) + "|" + path
		if !l.get(key, time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
				"code":  apperr.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
