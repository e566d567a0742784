package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/panel"
)

// PanelHandler serves the snapshots display panels render.
type PanelHandler struct {
	panel *panel.Service
}

// BalanceTop handles GET /api/panels/balance-top?limit=N.
func (h *PanelHandler) BalanceTop(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-50"})
		return
	}
	entries, err := h.panel.BalanceTop(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"top": entries})
}

// TeamScores handles GET /api/panels/teams.
func (h *PanelHandler) TeamScores(c *gin.Context) {
	scores, err := h.panel.TeamScores(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": scores})
}

type placePanelRequest struct {
	Type     string `json:"type" binding:"required"`
	Location string `json:"location" binding:"required"`
	GuildID  *int64 `json:"guild_id"`
	Team     string `json:"team"`
}

// Place handles POST /api/internal/panels.
func (h *PanelHandler) Place(c *gin.Context) {
	var req placePanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.panel.Place(c.Request.Context(), req.Type, req.Location, req.GuildID, req.Team)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"panel": p})
}

// Remove handles DELETE /api/internal/panels/:id.
func (h *PanelHandler) Remove(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid panel id"})
		return
	}
	if err := h.panel.Remove(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
