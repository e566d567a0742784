package model

import "github.com/shopspring/decimal"

// Player represents a player account in the economy.
// Balance is fixed-point DECIMAL(15,2); it must never be stored as a float.
type Player struct {
	UUID           string          `gorm:"primaryKey;size:36" json:"uuid"`
	Name           string          `gorm:"size:16;not null" json:"name"`
	Team           string          `gorm:"index:idx_player_team;size:10" json:"team"`
	GuildID        *int64          `gorm:"index:idx_player_guild" json:"guild_id"`
	Balance        decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	EconomyFrozen  bool            `gorm:"not null;default:false" json:"economy_frozen"`
	LastLogin      int64           `json:"last_login"`
	LastTeamSwitch int64           `json:"last_team_switch"`
	CreatedAt      int64           `gorm:"autoCreateTime:milli" json:"created_at"`
}

func (Player) TableName() string { return "players" }
