package model

import "github.com/shopspring/decimal"

// GuildRole is a member's role within the guild.
type GuildRole = string

const (
	GuildRoleLeader GuildRole = "LEADER"
	GuildRoleMember GuildRole = "MEMBER"
)

// Guild represents a guild with its cofre (shared treasury) balance.
// The cofre is an account in the ledger sense: every change to it goes
// through a Transaction row.
type Guild struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string          `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Team         string          `gorm:"index:idx_guild_team;size:10;not null" json:"team"`
	LeaderUUID   string          `gorm:"size:36;not null" json:"leader_uuid"`
	MemberLimit  int             `gorm:"not null;default:20" json:"member_limit"`
	CofreBalance decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"cofre_balance"`
	CofreFrozen  bool            `gorm:"not null;default:false" json:"cofre_frozen"`
	Points       int             `gorm:"not null;default:0" json:"points"`
	CreatedAt    int64           `gorm:"autoCreateTime:milli" json:"created_at"`
}

func (Guild) TableName() string { return "guilds" }

// GuildMember links a player to a guild with a role.
type GuildMember struct {
	GuildID    int64  `gorm:"primaryKey" json:"guild_id"`
	PlayerUUID string `gorm:"primaryKey;size:36;index:idx_member_player" json:"player_uuid"`
	Role       string `gorm:"size:20;not null;default:'MEMBER'" json:"role"`
	JoinedAt   int64  `gorm:"autoCreateTime:milli" json:"joined_at"`
}

func (GuildMember) TableName() string { return "guild_members" }
