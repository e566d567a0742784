package player

import (
	"context"
	"testing"
	"time"

	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/config"
	dbadapter "github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/model"
	"github.com/nexuswars/server/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const playerUUID = "aaaaaaaa-0000-0000-0000-000000000001"

func nopLogger() *zap.Logger { return zap.NewNop() }

func newPlayerService(t *testing.T) (*Service, *ledger.Service, *dbadapter.Gateway) {
	t.Helper()
	gw := testutil.SetupTestDB(t)
	auditSvc := audit.New(gw.DB(), nopLogger())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	economy := config.EconomyConfig{
		StartingBalance:   1000,
		MaxBalance:        10000000,
		MaxTransferAmount: 1000000,
		MaxDailyTransfer:  2000000,
		SuspiciousValue:   1000000,
	}
	ledgerSvc := ledger.NewService(gw, auditSvc, economy, nopLogger())
	svc := NewService(gw, ledgerSvc, auditSvc, economy, config.TeamConfig{
		SwitchCost:         500,
		SwitchCooldownDays: 30,
	}, nopLogger())
	return svc, ledgerSvc, gw
}

func TestProvision_FirstLoginGrantsStartingBalance(t *testing.T) {
	svc, ledgerSvc, gw := newPlayerService(t)
	ctx := context.Background()

	p, err := svc.Provision(ctx, playerUUID, "Steve", "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(decimal.NewFromInt(1000)), "got %s", p.Balance)
	assert.NotZero(t, p.LastLogin)

	// The grant is a ledger row, not a raw column write.
	var tx model.Transaction
	require.NoError(t, gw.DB().First(&tx).Error)
	assert.Nil(t, tx.FromID)
	require.NotNil(t, tx.ToID)
	assert.Equal(t, playerUUID, *tx.ToID)
	assert.Equal(t, model.TxSystemReward, tx.Type)

	bal, err := ledgerSvc.Balance(ctx, ledger.PlayerAccount(playerUUID))
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(1000)))
}

func TestProvision_ReturningLoginKeepsBalance(t *testing.T) {
	svc, ledgerSvc, gw := newPlayerService(t)
	ctx := context.Background()

	_, err := svc.Provision(ctx, playerUUID, "Steve", "")
	require.NoError(t, err)
	p, err := svc.Provision(ctx, playerUUID, "Steve_Renamed", "")
	require.NoError(t, err)
	assert.Equal(t, "Steve_Renamed", p.Name)

	// No second starting grant.
	bal, _ := ledgerSvc.Balance(ctx, ledger.PlayerAccount(playerUUID))
	assert.True(t, bal.Equal(decimal.NewFromInt(1000)), "got %s", bal)
	var count int64
	gw.DB().Model(&model.Transaction{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestQuit(t *testing.T) {
	svc, _, _ := newPlayerService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Quit(ctx, playerUUID, ""), ErrPlayerNotFound)
	_, err := svc.Provision(ctx, playerUUID, "Steve", "")
	require.NoError(t, err)
	assert.NoError(t, svc.Quit(ctx, playerUUID, "203.0.113.7"))
}

func TestChooseTeam(t *testing.T) {
	svc, _, gw := newPlayerService(t)
	ctx := context.Background()
	_, err := svc.Provision(ctx, playerUUID, "Steve", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChooseTeam(ctx, playerUUID, "PIRATES"), ErrInvalidTeam)
	require.NoError(t, svc.ChooseTeam(ctx, playerUUID, model.TeamSolar))
	assert.ErrorIs(t, svc.ChooseTeam(ctx, playerUUID, model.TeamLunar), ErrTeamAlreadyChosen)

	var team model.Team
	require.NoError(t, gw.DB().Where("name = ?", model.TeamSolar).First(&team).Error)
	assert.Equal(t, 1, team.TotalMembers)
}

func TestSwitchTeam_FeeAndCooldown(t *testing.T) {
	svc, ledgerSvc, gw := newPlayerService(t)
	ctx := context.Background()
	base := time.Now()
	svc.clock = func() time.Time { return base }

	_, err := svc.Provision(ctx, playerUUID, "Steve", "")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SwitchTeam(ctx, playerUUID, model.TeamLunar), ErrNoTeamChosen)
	require.NoError(t, svc.ChooseTeam(ctx, playerUUID, model.TeamSolar))
	assert.ErrorIs(t, svc.SwitchTeam(ctx, playerUUID, model.TeamSolar), ErrSameTeam)

	require.NoError(t, svc.SwitchTeam(ctx, playerUUID, model.TeamLunar))
	bal, _ := ledgerSvc.Balance(ctx, ledger.PlayerAccount(playerUUID))
	assert.True(t, bal.Equal(decimal.NewFromInt(500)), "got %s", bal)

	var solar, lunar model.Team
	require.NoError(t, gw.DB().Where("name = ?", model.TeamSolar).First(&solar).Error)
	require.NoError(t, gw.DB().Where("name = ?", model.TeamLunar).First(&lunar).Error)
	assert.Equal(t, 0, solar.TotalMembers)
	assert.Equal(t, 1, lunar.TotalMembers)

	// 30-day cooldown between switches.
	svc.clock = func() time.Time { return base.Add(10 * 24 * time.Hour) }
	assert.ErrorIs(t, svc.SwitchTeam(ctx, playerUUID, model.TeamSolar), ErrSwitchCooldown)
	svc.clock = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	assert.NoError(t, svc.SwitchTeam(ctx, playerUUID, model.TeamSolar))
}

func TestSwitchTeam_GuildMembersBlocked(t *testing.T) {
	svc, _, gw := newPlayerService(t)
	ctx := context.Background()
	_, err := svc.Provision(ctx, playerUUID, "Steve", "")
	require.NoError(t, err)
	require.NoError(t, svc.ChooseTeam(ctx, playerUUID, model.TeamSolar))

	g := &model.Guild{Name: "Knights", Team: model.TeamSolar, LeaderUUID: playerUUID, MemberLimit: 20}
	require.NoError(t, gw.DB().Create(g).Error)
	require.NoError(t, gw.DB().Model(&model.Player{}).
		Where("uuid = ?", playerUUID).Update("guild_id", g.ID).Error)

	assert.ErrorIs(t, svc.SwitchTeam(ctx, playerUUID, model.TeamLunar), ErrInGuild)
}

func TestSwitchTeam_InsufficientFunds(t *testing.T) {
	svc, ledgerSvc, _ := newPlayerService(t)
	ctx := context.Background()
	_, err := svc.Provision(ctx, playerUUID, "Steve", "")
	require.NoError(t, err)
	require.NoError(t, svc.ChooseTeam(ctx, playerUUID, model.TeamSolar))

	// Burn the wallet below the 500 fee.
	require.NoError(t, ledgerSvc.Withdraw(ctx, ledger.PlayerAccount(playerUUID),
		decimal.NewFromInt(900), model.TxSystemPenalty, "test drain"))
	assert.ErrorIs(t, svc.SwitchTeam(ctx, playerUUID, model.TeamLunar),
		ledger.ErrInsufficientFunds)
}
