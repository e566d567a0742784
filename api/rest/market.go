package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/market"
	"github.com/shopspring/decimal"
)

// MarketHandler serves the public listing board.
type MarketHandler struct {
	market *market.Service
}

// Active handles GET /api/market?limit=N.
func (h *MarketHandler) Active(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-200"})
		return
	}
	listings, err := h.market.Active(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

type listRequest struct {
	SellerUUID string          `json:"seller_uuid" binding:"required"`
	ItemData   string          `json:"item_data" binding:"required"`
	Price      decimal.Decimal `json:"price" binding:"required"`
}

// List handles POST /api/internal/market.
func (h *MarketHandler) List(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	listing, err := h.market.List(c.Request.Context(), req.SellerUUID, req.ItemData, req.Price)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"listing": listing})
}

// Buy handles POST /api/internal/market/:id/buy.
func (h *MarketHandler) Buy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}
	var req struct {
		BuyerUUID string `json:"buyer_uuid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	listing, err := h.market.Buy(c.Request.Context(), id, req.BuyerUUID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing": listing})
}
