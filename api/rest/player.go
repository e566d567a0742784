package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/player"
	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
)

// PlayerHandler serves the internal player lifecycle endpoints the game
// server calls on login, logout and team selection.
type PlayerHandler struct {
	player *player.Service
	ledger *ledger.Service
}

type joinRequest struct {
	Name string `json:"name" binding:"required"`
	IP   string `json:"ip"`
}

// Join handles POST /api/internal/players/:uuid/join.
func (h *PlayerHandler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.player.Provision(c.Request.Context(), c.Param("uuid"), req.Name, req.IP)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": p})
}

// Quit handles POST /api/internal/players/:uuid/quit.
func (h *PlayerHandler) Quit(c *gin.Context) {
	var req struct {
		IP string `json:"ip"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.player.Quit(c.Request.Context(), c.Param("uuid"), req.IP); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

type teamRequest struct {
	Team string `json:"team" binding:"required"`
}

// ChooseTeam handles POST /api/internal/players/:uuid/team.
func (h *PlayerHandler) ChooseTeam(c *gin.Context) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.player.ChooseTeam(c.Request.Context(), c.Param("uuid"), req.Team); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": req.Team})
}

// SwitchTeam handles POST /api/internal/players/:uuid/team/switch.
func (h *PlayerHandler) SwitchTeam(c *gin.Context) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.player.SwitchTeam(c.Request.Context(), c.Param("uuid"), req.Team); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": req.Team})
}

type transferRequest struct {
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason"`
}

// Transfer handles POST /api/internal/transfers. Both sides are player
// accounts; guild cofre movement goes through the guild endpoints.
func (h *PlayerHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.ledger.Transfer(c.Request.Context(),
		ledger.PlayerAccount(req.From), ledger.PlayerAccount(req.To),
		req.Amount, model.TxPlayerToPlayer, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
