package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle client keeps its token bucket.
const visitorTTL = 15 * time.Minute

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// visitorRegistry hands each client IP its own token bucket and forgets
// buckets that have been idle past the TTL. Pruning happens inline on
// access, so the registry needs no background goroutine.
type visitorRegistry struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	nextPrune time.Time
}

func (reg *visitorRegistry) get(ip string) *rate.Limiter {
	now := time.Now()
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if now.After(reg.nextPrune) {
		for ip, v := range reg.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(reg.visitors, ip)
			}
		}
		reg.nextPrune = now.Add(visitorTTL)
	}

	v, ok := reg.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(reg.limit, reg.burst)}
		reg.visitors[ip] = v
	}
	v.lastSeen = now
	return v.bucket
}

// RateLimit rejects requests past r per second with a burst allowance of b,
// tracked per client IP.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	reg := &visitorRegistry{
		visitors:  make(map[string]*visitor),
		limit:     r,
		burst:     b,
		nextPrune: time.Now().Add(visitorTTL),
	}
	return func(c *gin.Context) {
		if !reg.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
