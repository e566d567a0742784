package panel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	dbadapter "github.com/nexuswars/server/db"
	"github.com/nexuswars/server/model"
	"github.com/nexuswars/server/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

func newPanelService(t *testing.T) (*Service, *dbadapter.Gateway) {
	t.Helper()
	gw := testutil.SetupTestDB(t)
	svc := NewService(gw, testutil.SetupTestCache(t), nopLogger())
	return svc, gw
}

func seedPlayers(t *testing.T, gw *dbadapter.Gateway) {
	t.Helper()
	players := []model.Player{
		{UUID: "aaaaaaaa-0000-0000-0000-000000000001", Name: "rich", Team: model.TeamSolar, Balance: decimal.NewFromInt(9000)},
		{UUID: "bbbbbbbb-0000-0000-0000-000000000002", Name: "mid", Team: model.TeamSolar, Balance: decimal.NewFromInt(5000)},
		{UUID: "cccccccc-0000-0000-0000-000000000003", Name: "poor", Team: model.TeamLunar, Balance: decimal.NewFromInt(100)},
	}
	for i := range players {
		require.NoError(t, gw.DB().Create(&players[i]).Error)
	}
}

func TestPlace_Validation(t *testing.T) {
	svc, _ := newPanelService(t)
	_, err := svc.Place(context.Background(), "WEATHER", "spawn", nil, "")
	assert.ErrorIs(t, err, ErrUnknownType)

	p, err := svc.Place(context.Background(), model.PanelBalanceTop, "spawn", nil, "")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
}

func TestBalanceTop_OrderedAndCached(t *testing.T) {
	svc, gw := newPanelService(t)
	seedPlayers(t, gw)
	ctx := context.Background()

	entries, err := svc.BalanceTop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rich", entries[0].Name)
	assert.Equal(t, "mid", entries[1].Name)
	assert.Equal(t, "9000.00", entries[0].Balance)

	// Second read comes from the reseeded ZSet and keeps the same order.
	entries, err = svc.BalanceTop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rich", entries[0].Name)
}

func TestGuildInfo(t *testing.T) {
	svc, gw := newPanelService(t)
	g := &model.Guild{
		Name: "Knights", Team: model.TeamSolar,
		LeaderUUID:   "aaaaaaaa-0000-0000-0000-000000000001",
		MemberLimit:  20,
		CofreBalance: decimal.NewFromFloat(1234.5),
		Points:       42,
	}
	require.NoError(t, gw.DB().Create(g).Error)
	require.NoError(t, gw.DB().Create(&model.GuildMember{
		GuildID: g.ID, PlayerUUID: g.LeaderUUID, Role: model.GuildRoleLeader,
	}).Error)
	require.NoError(t, gw.DB().Create(&model.Nexus{
		GuildID: g.ID, Level: 2, Health: 500, MaxHealth: 1200, State: model.NexusUnderAttack,
	}).Error)

	info, err := svc.GuildInfo(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Knights", info.Name)
	assert.Equal(t, 1, info.Members)
	assert.Equal(t, 42, info.Points)
	assert.Equal(t, "1234.50", info.Cofre)
	assert.Equal(t, "UNDER_ATTACK", info.NexusState)
}

func TestTeamScores(t *testing.T) {
	svc, gw := newPanelService(t)
	require.NoError(t, gw.DB().Model(&model.Team{}).
		Where("name = ?", model.TeamLunar).Update("points", 77).Error)

	scores, err := svc.TeamScores(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, model.TeamLunar, scores[0].Team)
	assert.Equal(t, 77, scores[0].Points)
}

func TestSnapshot_WritesPayload(t *testing.T) {
	svc, gw := newPanelService(t)
	seedPlayers(t, gw)
	ctx := context.Background()

	p, err := svc.Place(ctx, model.PanelBalanceTop, "spawn", nil, "")
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, svc.Snapshot(ctx, p.ID, now))

	var stored model.Panel
	require.NoError(t, gw.DB().First(&stored, p.ID).Error)
	var doc struct {
		RefreshedAt int64          `json:"refreshed_at"`
		Payload     []BalanceEntry `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(stored.Data, &doc))
	assert.Equal(t, now.UnixMilli(), doc.RefreshedAt)
	require.Len(t, doc.Payload, 3)
	assert.Equal(t, "rich", doc.Payload[0].Name)
}

func TestSnapshotAll_SkipsBrokenPanels(t *testing.T) {
	svc, gw := newPanelService(t)
	seedPlayers(t, gw)
	ctx := context.Background()

	// A guild panel without a guild id cannot be refreshed, but the sweep
	// still refreshes the healthy one.
	_, err := svc.Place(ctx, model.PanelGuildInfo, "hall", nil, "")
	require.NoError(t, err)
	good, err := svc.Place(ctx, model.PanelTeamScore, "spawn", nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.SnapshotAll(ctx, time.Now()))

	var stored model.Panel
	require.NoError(t, gw.DB().First(&stored, good.ID).Error)
	assert.NotEmpty(t, stored.Data)
}

func TestRemove(t *testing.T) {
	svc, _ := newPanelService(t)
	assert.ErrorIs(t, svc.Remove(context.Background(), 404), ErrPanelNotFound)
	p, err := svc.Place(context.Background(), model.PanelObjectives, "spawn", nil, "")
	require.NoError(t, err)
	assert.NoError(t, svc.Remove(context.Background(), p.ID))
}
