package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/ledger"
)

// EconomyHandler serves read-only balance and history endpoints.
type EconomyHandler struct {
	ledger *ledger.Service
}

// Balance handles GET /api/players/:uuid/balance.
func (h *EconomyHandler) Balance(c *gin.Context) {
	uuid := c.Param("uuid")
	bal, err := h.ledger.Balance(c.Request.Context(), ledger.PlayerAccount(uuid))
	if errors.Is(err, ledger.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uuid":    uuid,
		"balance": bal.StringFixed(2),
	})
}

// History handles GET /api/players/:uuid/transactions?limit=N.
func (h *EconomyHandler) History(c *gin.Context) {
	uuid := c.Param("uuid")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-100"})
		return
	}
	rows, err := h.ledger.History(c.Request.Context(), ledger.PlayerAccount(uuid), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}

// healthz reports gateway liveness for load balancers.
func healthz(gw *db.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := gw.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": gw.Mode()})
	}
}
