package middleware

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// attemptLimiter 按 key 统计滑动窗口内的尝试次数
type attemptLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	attempts  map[string][]time.Time
	lastSweep time.Time
}

func newAttemptLimiter(maxAttempts int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		max:      maxAttempts,
		window:   window,
		now:      time.Now,
		attempts: make(map[string][]time.Time),
	}
}

// allow 记录一次尝试；超限时返回需要等待的时长
func (l *attemptLimiter) allow(key string) (bool, time.Duration) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := prune(l.attempts[key], cutoff)
	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false, recent[0].Sub(cutoff)
	}
	l.attempts[key] = append(recent, now)
	return true, 0
}

// sweep 丢弃整个窗口内都没有尝试的 key
func (l *attemptLimiter) sweep(cutoff time.Time) {
	for key, ts := range l.attempts {
		if kept := prune(ts, cutoff); len(kept) > 0 {
			l.attempts[key] = kept
		} else {
			delete(l.attempts, key)
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// LoginRateLimit 注册/登录限流，按客户端 IP 和路由分别计数，超限返回 429
func LoginRateLimit(maxAttempts int, window time.Duration) gin.HandlerFunc {
	return newAttemptLimiter(maxAttempts, window).handler()
}

func (l *attemptLimiter) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + " " + c.FullPath()
		ok, wait := l.allow(key)
		if !ok {
			log.Printf("[AUTH] %s 尝试次数过多", key)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "Too many attempts, please try again later",
			})
			return
		}
		c.Next()
	}
}
