package model

// NexusState is the lifecycle state of a guild's nexus.
type NexusState string

const (
	NexusActive       NexusState = "ACTIVE"
	NexusUnderAttack  NexusState = "UNDER_ATTACK"
	NexusDestroyed    NexusState = "DESTROYED"
	NexusConstruction NexusState = "CONSTRUCTION"
)

// nexusTransitions lists the legal state transitions. Anything absent is
// rejected by CanTransitionTo.
var nexusTransitions = map[NexusState][]NexusState{
	NexusActive:       {NexusUnderAttack, NexusDestroyed},
	NexusUnderAttack:  {NexusActive, NexusDestroyed},
	NexusDestroyed:    {NexusConstruction},
	NexusConstruction: {NexusActive},
}

// CanTransitionTo reports whether moving from s to next is a legal
// transition of the nexus state machine.
func (s NexusState) CanTransitionTo(next NexusState) bool {
	for _, t := range nexusTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Nexus is a guild's destructible heart, owned 1:1 by a guild.
// Invariant: Health == 0 exactly when State == DESTROYED.
type Nexus struct {
	GuildID int64      `gorm:"primaryKey" json:"guild_id"`
	Level   int        `gorm:"not null;default:1" json:"level"`
	// Health and MaxHealth are DECIMAL(10,2) so siege damage accumulates
	// without binary-float drift.
	Health         float64    `gorm:"type:decimal(10,2);not null" json:"health"`
	MaxHealth      float64    `gorm:"type:decimal(10,2);not null" json:"max_health"`
	State          NexusState `gorm:"size:20;not null;default:'ACTIVE'" json:"state"`
	Location       string     `gorm:"type:text" json:"location"`
	LastDestroyed  int64      `json:"last_destroyed"`
	RebuildStarted int64      `json:"rebuild_started"`
	CreatedAt      int64      `gorm:"autoCreateTime:milli" json:"created_at"`
}

func (Nexus) TableName() string { return "nexus_hearts" }
