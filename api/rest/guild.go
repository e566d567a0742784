package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/guild"
	"github.com/nexuswars/server/game/panel"
	"github.com/shopspring/decimal"
)

// GuildHandler serves read-only guild endpoints.
type GuildHandler struct {
	guild *guild.Service
	panel *panel.Service
}

// Get handles GET /api/guilds/:id. The payload is the same summary the
// display panels render.
func (h *GuildHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guild id"})
		return
	}
	info, err := h.panel.GuildInfo(c.Request.Context(), id)
	if errors.Is(err, panel.ErrPanelNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "guild not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Members handles GET /api/guilds/:id/members.
func (h *GuildHandler) Members(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guild id"})
		return
	}
	if _, err := h.guild.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, guild.ErrGuildNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "guild not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	members, err := h.guild.Members(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

type createGuildRequest struct {
	LeaderUUID string `json:"leader_uuid" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// Create handles POST /api/internal/guilds.
func (h *GuildHandler) Create(c *gin.Context) {
	var req createGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.guild.Create(c.Request.Context(), req.LeaderUUID, req.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"guild": g})
}

type memberRequest struct {
	UUID string `json:"uuid" binding:"required"`
}

// Join handles POST /api/internal/guilds/:id/members.
func (h *GuildHandler) Join(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guild.AddMember(c.Request.Context(), id, req.UUID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// Leave handles POST /api/internal/guilds/:id/leave.
func (h *GuildHandler) Leave(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guild.Leave(c.Request.Context(), id, req.UUID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

type actorTargetRequest struct {
	ActorUUID  string `json:"actor_uuid" binding:"required"`
	TargetUUID string `json:"target_uuid" binding:"required"`
}

// Kick handles POST /api/internal/guilds/:id/kick.
func (h *GuildHandler) Kick(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req actorTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guild.Kick(c.Request.Context(), id, req.ActorUUID, req.TargetUUID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// Promote handles POST /api/internal/guilds/:id/promote. Leadership
// moves to the target; the actor becomes a regular member.
func (h *GuildHandler) Promote(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req actorTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guild.PromoteLeader(c.Request.Context(), id, req.ActorUUID, req.TargetUUID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

type cofreRequest struct {
	UUID   string          `json:"uuid" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CofreDeposit handles POST /api/internal/guilds/:id/cofre/deposit.
func (h *GuildHandler) CofreDeposit(c *gin.Context) {
	h.cofreOp(c, h.guild.DepositCofre)
}

// CofreWithdraw handles POST /api/internal/guilds/:id/cofre/withdraw.
func (h *GuildHandler) CofreWithdraw(c *gin.Context) {
	h.cofreOp(c, h.guild.WithdrawCofre)
}

func (h *GuildHandler) cofreOp(c *gin.Context, op func(ctx context.Context, guildID int64, playerUUID string, amount decimal.Decimal) error) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req cofreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := op(c.Request.Context(), id, req.UUID, req.Amount); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// AddPoints handles POST /api/internal/guilds/:id/points.
func (h *GuildHandler) AddPoints(c *gin.Context) {
	id, ok := guildParam(c)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.guild.AddPoints(c.Request.Context(), id, req.Delta); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
