package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/objective"
)

// ObjectiveHandler serves the objective board.
type ObjectiveHandler struct {
	objective *objective.Service
}

// ListActive handles GET /api/objectives.
func (h *ObjectiveHandler) ListActive(c *gin.Context) {
	objs, err := h.objective.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"objectives": objs})
}

// Get handles GET /api/objectives/:id, including the contributor list.
func (h *ObjectiveHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid objective id"})
		return
	}
	obj, err := h.objective.Get(c.Request.Context(), id)
	if errors.Is(err, objective.ErrObjectiveNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "objective not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	parts, err := h.objective.Participants(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"objective": obj, "participants": parts})
}

type createObjectiveRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category" binding:"required"`
	Difficulty  string `json:"difficulty" binding:"required"`
	Goal        int    `json:"goal" binding:"required"`
}

// Create handles POST /api/internal/objectives.
func (h *ObjectiveHandler) Create(c *gin.Context) {
	var req createObjectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	obj, err := h.objective.Create(c.Request.Context(), req.Name, req.Description, req.Category, req.Difficulty, req.Goal)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"objective": obj})
}

type contributeRequest struct {
	UUID   string `json:"uuid" binding:"required"`
	Amount int    `json:"amount" binding:"required"`
}

// Contribute handles POST /api/internal/objectives/:id/contribute.
func (h *ObjectiveHandler) Contribute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid objective id"})
		return
	}
	var req contributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	obj, err := h.objective.Contribute(c.Request.Context(), id, req.UUID, req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objective": obj})
}
