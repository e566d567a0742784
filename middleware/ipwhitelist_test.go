package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func whitelistedRouter(ips []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IPWhitelist(ips))
	r.GET("/admin/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func adminHitFrom(t *testing.T, r *gin.Engine, ip string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestIPWhitelist_NoConfigAdmitsEveryone(t *testing.T) {
	r := whitelistedRouter(nil)
	assert.Equal(t, http.StatusOK, adminHitFrom(t, r, "203.0.113.50"))
}

func TestIPWhitelist_ListedAndUnlistedClients(t *testing.T) {
	r := whitelistedRouter([]string{"10.20.0.1", "10.20.0.2"})

	assert.Equal(t, http.StatusOK, adminHitFrom(t, r, "10.20.0.1"))
	assert.Equal(t, http.StatusOK, adminHitFrom(t, r, "10.20.0.2"))
	assert.Equal(t, http.StatusForbidden, adminHitFrom(t, r, "10.20.0.3"))
}

func TestIPWhitelist_BlocksWhenClientIPUnknown(t *testing.T) {
	r := whitelistedRouter([]string{"10.20.0.1"})
	assert.Equal(t, http.StatusForbidden, adminHitFrom(t, r, ""))
}
