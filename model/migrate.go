package model

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allModels lists every model to be auto-migrated.
var allModels = []interface{}{
	&Player{},
	&Team{},
	&Guild{},
	&GuildMember{},
	&Nexus{},
	&Shield{},
	&Transaction{},
	&AuditEvent{},
	&Objective{},
	&ObjectiveParticipant{},
	&Panel{},
	&MarketListing{},
}

// AutoMigrate creates or updates all tables. Safe to run on every startup.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}

// SeedTeams inserts the two fixed team rows if they are absent.
func SeedTeams(db *gorm.DB) error {
	now := time.Now().UnixMilli()
	teams := []Team{
		{Name: TeamSolar, CreatedAt: now},
		{Name: TeamLunar, CreatedAt: now},
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&teams).Error
}
