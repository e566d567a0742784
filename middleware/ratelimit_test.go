package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func limitedRouter(r rate.Limit, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	eng := gin.New()
	eng.Use(RateLimit(r, burst))
	eng.GET("/balance", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func hitFrom(t *testing.T, eng *gin.Engine, ip string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/balance", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	eng.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	// Refill is effectively zero, so only the burst goes through.
	eng := limitedRouter(rate.Limit(1e-6), 2)
	assert.Equal(t, http.StatusOK, hitFrom(t, eng, "172.16.0.9"))
	assert.Equal(t, http.StatusOK, hitFrom(t, eng, "172.16.0.9"))
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(t, eng, "172.16.0.9"))
}

func TestRateLimit_BucketsAreIndependentPerIP(t *testing.T) {
	eng := limitedRouter(rate.Limit(1e-6), 1)
	assert.Equal(t, http.StatusOK, hitFrom(t, eng, "172.16.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(t, eng, "172.16.1.1"))

	// A different client still has its full burst.
	assert.Equal(t, http.StatusOK, hitFrom(t, eng, "172.16.1.2"))
}

func TestRateLimit_GenerousLimitNeverBlocks(t *testing.T) {
	eng := limitedRouter(rate.Limit(1000), 100)
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, hitFrom(t, eng, "172.16.2.2"))
	}
}
