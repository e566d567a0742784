package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrPanelNotFound means the panel does not exist.
	ErrPanelNotFound = errors.New("panel: not found")
	// ErrUnknownType rejects panel types outside the fixed set.
	ErrUnknownType = errors.New("panel: unknown type")
)

const (
	leaderboardKey = "panel:balance_top"
	topListSize    = 10
)

// BalanceEntry is one row of the balance top list.
type BalanceEntry struct {
	PlayerUUID string `json:"player_uuid"`
	Name       string `json:"name"`
	Balance    string `json:"balance"`
}

// GuildSummary is the per-guild panel payload.
type GuildSummary struct {
	Name       string `json:"name"`
	Team       string `json:"team"`
	Members    int    `json:"members"`
	Points     int    `json:"points"`
	Cofre      string `json:"cofre"`
	NexusState string `json:"nexus_state,omitempty"`
}

// TeamScore is one side of the team scoreboard.
type TeamScore struct {
	Team    string `json:"team"`
	Points  int    `json:"points"`
	Members int    `json:"members"`
}

// Service stores placed display panels and computes the read-only snapshots
// they render. It writes nothing to the economy; the balance top list is
// mirrored to a cache ZSet so panel reads stay off the hot tables.
type Service struct {
	gw     *db.Gateway
	cache  cache.Cache
	logger *zap.Logger
}

func NewService(gw *db.Gateway, c cache.Cache, logger *zap.Logger) *Service {
	return &Service{gw: gw, cache: c, logger: logger}
}

// Place registers a panel at a location.
func (svc *Service) Place(ctx context.Context, panelType, location string, guildID *int64, team string) (*model.Panel, error) {
	switch panelType {
	case model.PanelBalanceTop, model.PanelGuildInfo, model.PanelObjectives, model.PanelTeamScore:
	default:
		return nil, ErrUnknownType
	}
	p := &model.Panel{Type: panelType, Location: location, GuildID: guildID, Team: team}
	if err := svc.gw.DB().WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Remove deletes a placed panel.
func (svc *Service) Remove(ctx context.Context, panelID int64) error {
	res := svc.gw.DB().WithContext(ctx).Delete(&model.Panel{}, panelID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPanelNotFound
	}
	return nil
}

// List returns every placed panel.
func (svc *Service) List(ctx context.Context) ([]model.Panel, error) {
	var panels []model.Panel
	err := svc.gw.DB().WithContext(ctx).Order("id").Find(&panels).Error
	return panels, err
}

// BalanceTop returns the richest players. The cache ZSet is tried first;
// on a miss or error the database answers and reseeds the board.
func (svc *Service) BalanceTop(ctx context.Context, limit int) ([]BalanceEntry, error) {
	if limit <= 0 {
		limit = topListSize
	}
	if entries, err := svc.topFromCache(ctx, limit); err == nil && len(entries) > 0 {
		return entries, nil
	}

	var players []model.Player
	err := svc.gw.DB().WithContext(ctx).
		Order("balance DESC").Limit(limit).Find(&players).Error
	if err != nil {
		return nil, err
	}
	entries := make([]BalanceEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, BalanceEntry{
			PlayerUUID: p.UUID,
			Name:       p.Name,
			Balance:    p.Balance.StringFixed(2),
		})
		score, _ := p.Balance.Float64()
		if cerr := svc.cache.ZAdd(ctx, leaderboardKey, score, p.UUID); cerr != nil {
			svc.logger.Warn("leaderboard reseed failed", zap.Error(cerr))
			break
		}
	}
	return entries, nil
}

func (svc *Service) topFromCache(ctx context.Context, limit int) ([]BalanceEntry, error) {
	uuids, err := svc.cache.ZRevRange(ctx, leaderboardKey, 0, int64(limit-1))
	if err != nil || len(uuids) == 0 {
		return nil, err
	}
	var players []model.Player
	if err := svc.gw.DB().WithContext(ctx).
		Where("uuid IN ?", uuids).Find(&players).Error; err != nil {
		return nil, err
	}
	byUUID := make(map[string]*model.Player, len(players))
	for i := range players {
		byUUID[players[i].UUID] = &players[i]
	}
	entries := make([]BalanceEntry, 0, len(uuids))
	for _, id := range uuids {
		p, ok := byUUID[id]
		if !ok {
			continue
		}
		entries = append(entries, BalanceEntry{
			PlayerUUID: p.UUID,
			Name:       p.Name,
			Balance:    p.Balance.StringFixed(2),
		})
	}
	return entries, nil
}

// RefreshLeaderboard rebuilds the cache ZSet from the table. Scheduler-driven.
func (svc *Service) RefreshLeaderboard(ctx context.Context) error {
	var players []model.Player
	if err := svc.gw.DB().WithContext(ctx).
		Order("balance DESC").Limit(topListSize * 2).Find(&players).Error; err != nil {
		return err
	}
	for _, p := range players {
		score, _ := p.Balance.Float64()
		if err := svc.cache.ZAdd(ctx, leaderboardKey, score, p.UUID); err != nil {
			return err
		}
	}
	return nil
}

// GuildInfo builds the guild panel payload.
func (svc *Service) GuildInfo(ctx context.Context, guildID int64) (*GuildSummary, error) {
	var g model.Guild
	err := svc.gw.DB().WithContext(ctx).First(&g, guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("panel: guild %d: %w", guildID, ErrPanelNotFound)
	}
	if err != nil {
		return nil, err
	}
	var members int64
	if err := svc.gw.DB().WithContext(ctx).Model(&model.GuildMember{}).
		Where("guild_id = ?", guildID).Count(&members).Error; err != nil {
		return nil, err
	}
	summary := &GuildSummary{
		Name:    g.Name,
		Team:    g.Team,
		Members: int(members),
		Points:  g.Points,
		Cofre:   g.CofreBalance.StringFixed(2),
	}
	var n model.Nexus
	err = svc.gw.DB().WithContext(ctx).Where("guild_id = ?", guildID).First(&n).Error
	if err == nil {
		summary.NexusState = string(n.State)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return summary, nil
}

// ObjectiveBoard lists open objectives for the objectives panel.
func (svc *Service) ObjectiveBoard(ctx context.Context) ([]model.Objective, error) {
	var objs []model.Objective
	err := svc.gw.DB().WithContext(ctx).
		Where("state = ?", model.ObjectiveActive).
		Order("expires_at").Find(&objs).Error
	return objs, err
}

// TeamScores returns both team scoreboard rows.
func (svc *Service) TeamScores(ctx context.Context) ([]TeamScore, error) {
	var teams []model.Team
	if err := svc.gw.DB().WithContext(ctx).Order("points DESC").Find(&teams).Error; err != nil {
		return nil, err
	}
	scores := make([]TeamScore, 0, len(teams))
	for _, t := range teams {
		scores = append(scores, TeamScore{Team: t.Name, Points: t.Points, Members: t.TotalMembers})
	}
	return scores, nil
}

// Snapshot recomputes a panel's payload and stores it in the Data column so
// the display collaborator can render without further queries.
func (svc *Service) Snapshot(ctx context.Context, panelID int64, now time.Time) error {
	var p model.Panel
	if err := svc.gw.DB().WithContext(ctx).First(&p, panelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPanelNotFound
		}
		return err
	}

	var payload interface{}
	var err error
	switch p.Type {
	case model.PanelBalanceTop:
		payload, err = svc.BalanceTop(ctx, topListSize)
	case model.PanelGuildInfo:
		if p.GuildID == nil {
			return fmt.Errorf("panel %d: guild panel without guild_id", panelID)
		}
		payload, err = svc.GuildInfo(ctx, *p.GuildID)
	case model.PanelObjectives:
		payload, err = svc.ObjectiveBoard(ctx)
	case model.PanelTeamScore:
		payload, err = svc.TeamScores(ctx)
	default:
		return ErrUnknownType
	}
	if err != nil {
		return err
	}

	data, err := json.Marshal(map[string]interface{}{
		"refreshed_at": now.UnixMilli(),
		"payload":      payload,
	})
	if err != nil {
		return err
	}
	return svc.gw.DB().WithContext(ctx).Model(&model.Panel{}).
		Where("id = ?", panelID).Update("data", datatypes.JSON(data)).Error
}

// SnapshotAll refreshes every placed panel. Scheduler-driven.
func (svc *Service) SnapshotAll(ctx context.Context, now time.Time) error {
	panels, err := svc.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range panels {
		if err := svc.Snapshot(ctx, p.ID, now); err != nil {
			svc.logger.Warn("panel snapshot failed", zap.Int64("panel_id", p.ID), zap.Error(err))
		}
	}
	return nil
}
