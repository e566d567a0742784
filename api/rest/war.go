package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/nexus"
	"github.com/nexuswars/server/game/shield"
	"github.com/nexuswars/server/model"
)

// WarHandler serves the internal nexus and shield endpoints. These are
// the territory-war mutations the game server issues during sieges.
type WarHandler struct {
	nexus  *nexus.Service
	shield *shield.Service
}

func guildParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guild id"})
		return 0, false
	}
	return id, true
}

// BuildNexus handles POST /api/internal/guilds/:id/nexus.
func (h *WarHandler) BuildNexus(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req struct {
		Location string `json:"location" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nx, err := h.nexus.Build(c.Request.Context(), id, req.Location)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"nexus": nx})
}

// GetNexus handles GET /api/internal/guilds/:id/nexus.
func (h *WarHandler) GetNexus(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	nx, err := h.nexus.Get(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nexus": nx})
}

// DamageNexus handles POST /api/internal/guilds/:id/nexus/damage.
func (h *WarHandler) DamageNexus(c *gin.Context) {
	h.applyNexus(c, h.nexus.Damage)
}

// HealNexus handles POST /api/internal/guilds/:id/nexus/heal.
func (h *WarHandler) HealNexus(c *gin.Context) {
	h.applyNexus(c, h.nexus.Heal)
}

func (h *WarHandler) applyNexus(c *gin.Context, op func(ctx context.Context, guildID int64, amount float64) (*model.Nexus, error)) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req struct {
		Amount float64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nx, err := op(c.Request.Context(), id, req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nexus": nx})
}

// UpgradeNexus handles POST /api/internal/guilds/:id/nexus/upgrade.
func (h *WarHandler) UpgradeNexus(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	nx, err := h.nexus.Upgrade(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nexus": nx})
}

// RebuildNexus handles POST /api/internal/guilds/:id/nexus/rebuild.
func (h *WarHandler) RebuildNexus(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	nx, err := h.nexus.Rebuild(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nexus": nx})
}

// ActivateShield handles POST /api/internal/guilds/:id/shield.
func (h *WarHandler) ActivateShield(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	if err := h.shield.Activate(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	state, err := h.shield.Status(c.Request.Context(), id, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// ShieldStatus handles GET /api/internal/guilds/:id/shield.
func (h *WarHandler) ShieldStatus(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	state, err := h.shield.Status(c.Request.Context(), id, time.Now())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
