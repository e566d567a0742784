package model

// The two fixed teams. No other team rows may exist.
const (
	TeamSolar = "SOLAR"
	TeamLunar = "LUNAR"
)

// Team is one of the two server-wide factions.
type Team struct {
	Name         string `gorm:"primaryKey;size:10" json:"name"`
	Points       int    `gorm:"not null;default:0" json:"points"`
	TotalMembers int    `gorm:"not null;default:0" json:"total_members"`
	CreatedAt    int64  `gorm:"autoCreateTime:milli" json:"created_at"`
}

func (Team) TableName() string { return "teams" }

// ValidTeam reports whether name is one of the two fixed teams.
func ValidTeam(name string) bool {
	return name == TeamSolar || name == TeamLunar
}
