package model

import "gorm.io/datatypes"

// PanelType selects which snapshot a display panel renders.
type PanelType = string

const (
	PanelBalanceTop PanelType = "BALANCE_TOP"
	PanelGuildInfo  PanelType = "GUILD_INFO"
	PanelObjectives PanelType = "OBJECTIVES"
	PanelTeamScore  PanelType = "TEAM_SCORE"
)

// Panel is a placed display panel. The core only stores it and serves the
// data it renders; drawing is the display collaborator's job.
type Panel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string         `gorm:"size:20;not null" json:"type"`
	Location  string         `gorm:"type:text;not null" json:"location"`
	GuildID   *int64         `json:"guild_id"`
	Team      string         `gorm:"size:10" json:"team"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at"`
}

func (Panel) TableName() string { return "panels" }
