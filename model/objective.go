package model

import "github.com/shopspring/decimal"

// ObjectiveCategory groups objectives by the activity they reward.
type ObjectiveCategory = string

const (
	ObjectivePVE         ObjectiveCategory = "PVE"
	ObjectivePVP         ObjectiveCategory = "PVP"
	ObjectiveExploration ObjectiveCategory = "EXPLORATION"
	ObjectiveSupport     ObjectiveCategory = "SUPPORT"
)

// ObjectiveDifficulty scales the reward pool.
type ObjectiveDifficulty = string

const (
	DifficultyEasy    ObjectiveDifficulty = "EASY"
	DifficultyMedium  ObjectiveDifficulty = "MEDIUM"
	DifficultyHard    ObjectiveDifficulty = "HARD"
	DifficultyExtreme ObjectiveDifficulty = "EXTREME"
)

// ObjectiveState is the lifecycle state of an objective.
type ObjectiveState string

const (
	ObjectiveActive    ObjectiveState = "ACTIVE"
	ObjectiveCompleted ObjectiveState = "COMPLETED"
	ObjectiveFailed    ObjectiveState = "FAILED"
	ObjectiveExpired   ObjectiveState = "EXPIRED"
)

// Terminal reports whether the state accepts no further transitions.
func (s ObjectiveState) Terminal() bool {
	return s != ObjectiveActive
}

// Objective is a time-boxed, contribution-tracked task with a shared reward
// pool. Invariant: Progress equals the sum of all participant contributions,
// and COMPLETED is entered exactly once, when Progress first reaches Goal.
type Objective struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"index:idx_objective_category;size:20;not null" json:"category"`
	Difficulty  string          `gorm:"size:20;not null" json:"difficulty"`
	Reward      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"reward"`
	State       ObjectiveState  `gorm:"index:idx_objective_state;size:20;not null;default:'ACTIVE'" json:"state"`
	Progress    int             `gorm:"not null;default:0" json:"progress"`
	Goal        int             `gorm:"not null" json:"goal"`
	CreatedAt   int64           `gorm:"autoCreateTime:milli" json:"created_at"`
	ExpiresAt   int64           `json:"expires_at"`
	CompletedAt int64           `json:"completed_at"`
}

func (Objective) TableName() string { return "objectives" }

// ObjectiveParticipant records one player's contribution to an objective.
type ObjectiveParticipant struct {
	ObjectiveID  int64  `gorm:"primaryKey" json:"objective_id"`
	PlayerUUID   string `gorm:"primaryKey;size:36;index:idx_participant_player" json:"player_uuid"`
	Contribution int    `gorm:"not null;default:0" json:"contribution"`
}

func (ObjectiveParticipant) TableName() string { return "objective_participants" }
