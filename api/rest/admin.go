package rest

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
	"github.com/nexuswars/server/game/ledger"
	mw "github.com/nexuswars/server/middleware"
	"go.uber.org/zap"
)

// AdminHandler handles the JWT-gated admin surface: freeze/unfreeze and
// ledger replay verification.
type AdminHandler struct {
	cache  cache.Cache
	ledger *ledger.Service
	sec    config.SecurityConfig
	logger *zap.Logger
}

func NewAdminHandler(c cache.Cache, ledgerSvc *ledger.Service, sec config.SecurityConfig, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{cache: c, ledger: ledgerSvc, sec: sec, logger: logger}
}

type loginRequest struct {
	Key string `json:"key" binding:"required"`
}

// Login handles POST /api/admin/login. The admin key is a single shared
// secret; an empty configured key disables the whole admin surface.
func (h *AdminHandler) Login(c *gin.Context) {
	if h.sec.AdminKey == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin api disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.sec.AdminKey)) != 1 {
		h.logger.Warn("admin login rejected", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
		return
	}

	token, err := mw.GenerateToken(mw.RoleAdmin, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(token), "1", h.sec.JWTTTLH); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout handles POST /api/admin/logout by revoking the session.
func (h *AdminHandler) Logout(c *gin.Context) {
	tokenStr := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(tokenStr))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Freeze handles POST /api/admin/accounts/:ref/freeze.
// ref is a player UUID or "guild:<id>".
func (h *AdminHandler) Freeze(c *gin.Context) {
	h.setFrozen(c, true)
}

// Unfreeze handles POST /api/admin/accounts/:ref/unfreeze.
func (h *AdminHandler) Unfreeze(c *gin.Context) {
	h.setFrozen(c, false)
}

func (h *AdminHandler) setFrozen(c *gin.Context, frozen bool) {
	acct, err := parseAccountRef(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if frozen {
		err = h.ledger.Freeze(c.Request.Context(), acct)
	} else {
		err = h.ledger.Unfreeze(c.Request.Context(), acct)
	}
	if errors.Is(err, ledger.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": acct.Ref(), "frozen": frozen})
}

// Replay handles GET /api/admin/accounts/:ref/replay. It recomputes the
// balance from the transaction history so auditors can verify the ledger.
func (h *AdminHandler) Replay(c *gin.Context) {
	acct, err := parseAccountRef(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	current, err := h.ledger.Balance(c.Request.Context(), acct)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	replayed, err := h.ledger.Replay(c.Request.Context(), acct)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":    acct.Ref(),
		"balance":    current.StringFixed(2),
		"replayed":   replayed.StringFixed(2),
		"consistent": current.Equal(replayed),
	})
}

func parseAccountRef(ref string) (ledger.Account, error) {
	if rest, ok := strings.CutPrefix(ref, "guild:"); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return ledger.Account{}, errors.New("invalid guild account ref")
		}
		return ledger.GuildAccount(id), nil
	}
	if len(ref) != 36 {
		return ledger.Account{}, errors.New("invalid player uuid")
	}
	return ledger.PlayerAccount(ref), nil
}
