package model

import "gorm.io/datatypes"

// AuditEventType tags a security-relevant event.
type AuditEventType = string

const (
	AuditPlayerJoin         AuditEventType = "PLAYER_JOIN"
	AuditPlayerQuit         AuditEventType = "PLAYER_QUIT"
	AuditMoneyTransfer      AuditEventType = "MONEY_TRANSFER"
	AuditMoneyDeposit       AuditEventType = "MONEY_DEPOSIT"
	AuditMoneyWithdraw      AuditEventType = "MONEY_WITHDRAW"
	AuditTeamChoose         AuditEventType = "TEAM_CHOOSE"
	AuditTeamSwitch         AuditEventType = "TEAM_SWITCH"
	AuditGuildCreate        AuditEventType = "GUILD_CREATE"
	AuditGuildJoin          AuditEventType = "GUILD_JOIN"
	AuditGuildLeave         AuditEventType = "GUILD_LEAVE"
	AuditGuildKick          AuditEventType = "GUILD_KICK"
	AuditNexusBuild         AuditEventType = "NEXUS_BUILD"
	AuditNexusDamage        AuditEventType = "NEXUS_DAMAGE"
	AuditNexusDestroy       AuditEventType = "NEXUS_DESTROY"
	AuditNexusUpgrade       AuditEventType = "NEXUS_UPGRADE"
	AuditNexusRebuild       AuditEventType = "NEXUS_REBUILD"
	AuditShieldActivate     AuditEventType = "SHIELD_ACTIVATE"
	AuditShieldExpire       AuditEventType = "SHIELD_EXPIRE"
	AuditObjectiveStart     AuditEventType = "OBJECTIVE_START"
	AuditObjectiveComplete  AuditEventType = "OBJECTIVE_COMPLETE"
	AuditObjectiveExpire    AuditEventType = "OBJECTIVE_EXPIRE"
	AuditMarketList         AuditEventType = "MARKET_LIST"
	AuditMarketBuy          AuditEventType = "MARKET_BUY"
	AuditSuspiciousActivity AuditEventType = "SUSPICIOUS_ACTIVITY"
	AuditEconomyFreeze      AuditEventType = "ECONOMY_FREEZE"
	AuditEconomyUnfreeze    AuditEventType = "ECONOMY_UNFREEZE"
)

// AuditEvent is one append-only audit row. Immutable once persisted.
type AuditEvent struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerUUID *string        `gorm:"index:idx_audit_player;size:36" json:"player_uuid"`
	EventType  string         `gorm:"index:idx_audit_event;size:50;not null" json:"event_type"`
	Details    datatypes.JSON `json:"details"`
	IPAddress  string         `gorm:"size:45" json:"ip_address"`
	Timestamp  int64          `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
}

func (AuditEvent) TableName() string { return "audit" }
