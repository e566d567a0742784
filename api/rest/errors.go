package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/game/guild"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/market"
	"github.com/nexuswars/server/game/nexus"
	"github.com/nexuswars/server/game/objective"
	"github.com/nexuswars/server/game/panel"
	"github.com/nexuswars/server/game/player"
	"github.com/nexuswars/server/game/shield"
)

// errorStatus maps service sentinel errors onto HTTP status codes.
// Anything not listed is a 500.
var errorStatus = map[error]int{
	ledger.ErrAccountNotFound:      http.StatusNotFound,
	guild.ErrGuildNotFound:         http.StatusNotFound,
	shield.ErrGuildNotFound:        http.StatusNotFound,
	nexus.ErrNoSuchNexus:           http.StatusNotFound,
	player.ErrPlayerNotFound:       http.StatusNotFound,
	objective.ErrObjectiveNotFound: http.StatusNotFound,
	market.ErrListingNotFound:      http.StatusNotFound,
	panel.ErrPanelNotFound:         http.StatusNotFound,

	ledger.ErrInvalidAmount:          http.StatusBadRequest,
	ledger.ErrSameAccount:            http.StatusBadRequest,
	guild.ErrInvalidName:             http.StatusBadRequest,
	guild.ErrNoTeam:                  http.StatusBadRequest,
	player.ErrInvalidTeam:            http.StatusBadRequest,
	player.ErrNoTeamChosen:           http.StatusBadRequest,
	nexus.ErrInvalidDamage:           http.StatusBadRequest,
	objective.ErrInvalidContribution: http.StatusBadRequest,
	objective.ErrUnknownCategory:     http.StatusBadRequest,
	objective.ErrInvalidGoal:         http.StatusBadRequest,
	market.ErrInvalidPrice:           http.StatusBadRequest,
	panel.ErrUnknownType:             http.StatusBadRequest,

	guild.ErrNotLeader:  http.StatusForbidden,
	guild.ErrNotAMember: http.StatusForbidden,

	ledger.ErrInsufficientFunds:     http.StatusConflict,
	ledger.ErrAccountFrozen:         http.StatusConflict,
	ledger.ErrBalanceCapExceeded:    http.StatusConflict,
	guild.ErrNameTaken:              http.StatusConflict,
	guild.ErrAlreadyInGuild:         http.StatusConflict,
	guild.ErrGuildFull:              http.StatusConflict,
	guild.ErrLeaderCannotLeave:      http.StatusConflict,
	guild.ErrWrongTeam:              http.StatusConflict,
	nexus.ErrAlreadyBuilt:           http.StatusConflict,
	nexus.ErrShielded:               http.StatusConflict,
	nexus.ErrDestroyed:              http.StatusConflict,
	nexus.ErrNotDestroyed:           http.StatusConflict,
	nexus.ErrUnderConstruction:      http.StatusConflict,
	nexus.ErrMaxLevelReached:        http.StatusConflict,
	nexus.ErrRebuildCooldown:        http.StatusConflict,
	nexus.ErrWriteConflict:          http.StatusConflict,
	shield.ErrAlreadyActive:         http.StatusConflict,
	shield.ErrOnCooldown:            http.StatusConflict,
	player.ErrTeamAlreadyChosen:     http.StatusConflict,
	player.ErrSameTeam:              http.StatusConflict,
	player.ErrSwitchCooldown:        http.StatusConflict,
	player.ErrInGuild:               http.StatusConflict,
	objective.ErrObjectiveNotActive: http.StatusConflict,
	objective.ErrTooManyActive:      http.StatusConflict,
	market.ErrListingUnavailable:    http.StatusConflict,
	market.ErrOwnListing:            http.StatusConflict,
	market.ErrPurchaseLocked:        http.StatusConflict,
}

// respondErr writes the mapped status for a known service error, or a
// generic 500 for anything unexpected.
func respondErr(c *gin.Context, err error) {
	for sentinel, code := range errorStatus {
		if errors.Is(err, sentinel) {
			c.JSON(code, gin.H{"error": sentinel.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
