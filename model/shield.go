package model

// ShieldState is the lifecycle state of a guild's shield.
type ShieldState string

const (
	ShieldInactive ShieldState = "INACTIVE"
	ShieldWarmup   ShieldState = "WARMUP"
	ShieldActive   ShieldState = "ACTIVE"
	ShieldCooldown ShieldState = "COOLDOWN"
)

// Shield is a guild's protection timer, owned 1:1 by a guild.
// All timestamps are epoch milliseconds; the current phase is always
// re-derivable from them alone, so a missed scheduler tick never leaves the
// shield stuck in a stale phase.
type Shield struct {
	GuildID     int64       `gorm:"primaryKey" json:"guild_id"`
	State       ShieldState `gorm:"size:20;not null;default:'INACTIVE'" json:"state"`
	ActivatedAt int64       `json:"activated_at"`
	ExpiresAt   int64       `json:"expires_at"`
	LastUsed    int64       `json:"last_used"`
}

func (Shield) TableName() string { return "shields" }
