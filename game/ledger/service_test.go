package ledger

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/config"
	dbadapter "github.com/nexuswars/server/db"
	"github.com/nexuswars/server/model"
	"github.com/nexuswars/server/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

func testEconomy() config.EconomyConfig {
	return config.EconomyConfig{
		StartingBalance:   1000,
		MaxBalance:        1000000,
		MaxTransferAmount: 100000,
		MaxDailyTransfer:  200000,
		SuspiciousValue:   50000,
		AlertOnSuspicious: true,
	}
}

func newLedger(t *testing.T) (*Service, *dbadapter.Gateway, *audit.Service) {
	t.Helper()
	gw := testutil.SetupTestDB(t)
	auditSvc := audit.New(gw.DB(), nopLogger())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	return NewService(gw, auditSvc, testEconomy(), nopLogger()), gw, auditSvc
}

func createPlayer(t *testing.T, gw *dbadapter.Gateway, uuid string, balance float64) {
	t.Helper()
	p := &model.Player{
		UUID:    uuid,
		Name:    "p_" + uuid[:4],
		Balance: decimal.NewFromFloat(balance),
	}
	require.NoError(t, gw.DB().Create(p).Error)
}

func createGuildRow(t *testing.T, gw *dbadapter.Gateway, name string, balance float64) int64 {
	t.Helper()
	g := &model.Guild{
		Name:         name,
		Team:         model.TeamSolar,
		LeaderUUID:   "00000000-0000-0000-0000-000000000000",
		MemberLimit:  20,
		CofreBalance: decimal.NewFromFloat(balance),
	}
	require.NoError(t, gw.DB().Create(g).Error)
	return g.ID
}

const (
	uuidA = "aaaaaaaa-0000-0000-0000-000000000001"
	uuidB = "bbbbbbbb-0000-0000-0000-000000000002"
)

func TestTransfer_Success(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)
	createPlayer(t, gw, uuidB, 100)

	err := svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(150), model.TxPlayerToPlayer, "test payment")
	require.NoError(t, err)

	balA, err := svc.Balance(context.Background(), PlayerAccount(uuidA))
	require.NoError(t, err)
	balB, err := svc.Balance(context.Background(), PlayerAccount(uuidB))
	require.NoError(t, err)
	assert.True(t, balA.Equal(decimal.NewFromInt(350)), "got %s", balA)
	assert.True(t, balB.Equal(decimal.NewFromInt(250)), "got %s", balB)

	var row model.Transaction
	require.NoError(t, gw.DB().First(&row).Error)
	require.NotNil(t, row.FromID)
	require.NotNil(t, row.ToID)
	assert.Equal(t, uuidA, *row.FromID)
	assert.Equal(t, uuidB, *row.ToID)
	assert.Equal(t, model.TxPlayerToPlayer, row.Type)
}

func TestTransfer_RoundTripRestoresBalances(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)
	createPlayer(t, gw, uuidB, 100)
	amt := decimal.NewFromFloat(123.45)

	require.NoError(t, svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB), amt, model.TxPlayerToPlayer, "out"))
	require.NoError(t, svc.Transfer(context.Background(),
		PlayerAccount(uuidB), PlayerAccount(uuidA), amt, model.TxPlayerToPlayer, "back"))

	balA, _ := svc.Balance(context.Background(), PlayerAccount(uuidA))
	balB, _ := svc.Balance(context.Background(), PlayerAccount(uuidB))
	assert.True(t, balA.Equal(decimal.NewFromInt(500)), "got %s", balA)
	assert.True(t, balB.Equal(decimal.NewFromInt(100)), "got %s", balB)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 10)
	createPlayer(t, gw, uuidB, 0)

	err := svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(50), model.TxPlayerToPlayer, "too much")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Failed transfer leaves no partial state.
	balA, _ := svc.Balance(context.Background(), PlayerAccount(uuidA))
	assert.True(t, balA.Equal(decimal.NewFromInt(10)))
	var count int64
	gw.DB().Model(&model.Transaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestTransfer_InvalidAmounts(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)
	createPlayer(t, gw, uuidB, 100)
	from, to := PlayerAccount(uuidA), PlayerAccount(uuidB)

	assert.ErrorIs(t, svc.Transfer(context.Background(), from, to,
		decimal.Zero, model.TxPlayerToPlayer, ""), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Transfer(context.Background(), from, to,
		decimal.NewFromInt(-5), model.TxPlayerToPlayer, ""), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Transfer(context.Background(), from, to,
		decimal.NewFromInt(100001), model.TxPlayerToPlayer, ""), ErrInvalidAmount)
	assert.ErrorIs(t, svc.Transfer(context.Background(), from, to,
		decimal.NewFromFloat(0.001), model.TxPlayerToPlayer, ""), ErrInvalidAmount)
}

func TestTransfer_SameAccount(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)
	err := svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidA),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, "")
	assert.ErrorIs(t, err, ErrSameAccount)
}

func TestTransfer_FrozenAccount(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)
	createPlayer(t, gw, uuidB, 100)

	require.NoError(t, svc.Freeze(context.Background(), PlayerAccount(uuidA)))
	err := svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, "")
	assert.ErrorIs(t, err, ErrAccountFrozen)

	// Frozen destinations reject ordinary credits too.
	err = svc.Transfer(context.Background(),
		PlayerAccount(uuidB), PlayerAccount(uuidA),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, "")
	assert.ErrorIs(t, err, ErrAccountFrozen)

	require.NoError(t, svc.Unfreeze(context.Background(), PlayerAccount(uuidA)))
	assert.NoError(t, svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, ""))
}

func TestDeposit_SystemRewardReachesFrozenAccount(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 100)
	require.NoError(t, svc.Freeze(context.Background(), PlayerAccount(uuidA)))

	// System reversals are the one credit a frozen account accepts.
	require.NoError(t, svc.Deposit(context.Background(), PlayerAccount(uuidA),
		decimal.NewFromInt(25), model.TxSystemReward, "reversal"))

	bal, _ := svc.Balance(context.Background(), PlayerAccount(uuidA))
	assert.True(t, bal.Equal(decimal.NewFromInt(125)), "got %s", bal)
}

func TestDepositWithdraw_NullSides(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 100)

	require.NoError(t, svc.Deposit(context.Background(), PlayerAccount(uuidA),
		decimal.NewFromInt(50), model.TxSystemReward, "reward"))
	require.NoError(t, svc.Withdraw(context.Background(), PlayerAccount(uuidA),
		decimal.NewFromInt(30), model.TxSystemPenalty, "penalty"))

	var rows []model.Transaction
	require.NoError(t, gw.DB().Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].FromID)
	require.NotNil(t, rows[0].ToID)
	assert.Nil(t, rows[1].ToID)
	require.NotNil(t, rows[1].FromID)
}

func TestWithdrawTx_RollsBackWithCallerTransaction(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 100)
	boom := errors.New("entity write failed")

	// A caller composing a debit with its own writes must lose the debit too
	// when the surrounding transaction aborts.
	err := gw.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		if err := svc.WithdrawTx(tx, PlayerAccount(uuidA),
			decimal.NewFromInt(60), model.TxSystemPenalty, "doomed"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bal, err := svc.Balance(context.Background(), PlayerAccount(uuidA))
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)), "got %s", bal)

	var rows int64
	require.NoError(t, gw.DB().Model(&model.Transaction{}).Count(&rows).Error)
	assert.Equal(t, int64(0), rows)
}

func TestCredit_BalanceCap(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 999999)

	err := svc.Deposit(context.Background(), PlayerAccount(uuidA),
		decimal.NewFromInt(100), model.TxObjectiveReward, "over cap")
	assert.ErrorIs(t, err, ErrBalanceCapExceeded)
}

func TestTransfer_UnknownAccount(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)

	err := svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestTransfer_GuildCofre(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 500)
	guildID := createGuildRow(t, gw, "Testers", 0)

	require.NoError(t, svc.Transfer(context.Background(),
		PlayerAccount(uuidA), GuildAccount(guildID),
		decimal.NewFromInt(200), model.TxPlayerToGuild, "cofre deposit"))

	cofre, err := svc.Balance(context.Background(), GuildAccount(guildID))
	require.NoError(t, err)
	assert.True(t, cofre.Equal(decimal.NewFromInt(200)), "got %s", cofre)

	var row model.Transaction
	require.NoError(t, gw.DB().First(&row).Error)
	require.NotNil(t, row.ToID)
	assert.Equal(t, "guild:"+strconv.FormatInt(guildID, 10), *row.ToID)
}

func TestReplay_ReproducesBalance(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 0)
	createPlayer(t, gw, uuidB, 1000)
	ctx := context.Background()

	require.NoError(t, svc.Deposit(ctx, PlayerAccount(uuidA), decimal.NewFromInt(300), model.TxSystemReward, "seed"))
	require.NoError(t, svc.Transfer(ctx, PlayerAccount(uuidB), PlayerAccount(uuidA), decimal.NewFromFloat(49.99), model.TxPlayerToPlayer, ""))
	require.NoError(t, svc.Withdraw(ctx, PlayerAccount(uuidA), decimal.NewFromInt(120), model.TxShieldCost, ""))

	replayed, err := svc.Replay(ctx, PlayerAccount(uuidA))
	require.NoError(t, err)
	current, err := svc.Balance(ctx, PlayerAccount(uuidA))
	require.NoError(t, err)
	// The player started at 0, so the signed sum must equal the balance.
	assert.True(t, replayed.Equal(current), "replay %s vs balance %s", replayed, current)
	assert.True(t, current.Equal(decimal.NewFromFloat(229.99)), "got %s", current)
}

func TestTransfer_NoOverdraftUnderConcurrency(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 25)
	createPlayer(t, gw, uuidB, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	amounts := []int64{10, 20}
	for i := range amounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Transfer(context.Background(),
				PlayerAccount(uuidA), PlayerAccount(uuidB),
				decimal.NewFromInt(amounts[i]), model.TxPlayerToPlayer, "race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one of the racing transfers must win")

	balA, _ := svc.Balance(context.Background(), PlayerAccount(uuidA))
	assert.True(t, balA.GreaterThanOrEqual(decimal.Zero), "balance went negative: %s", balA)
}

func TestFraudCheck_SuspiciousValueAudited(t *testing.T) {
	svc, gw, auditSvc := newLedger(t)
	createPlayer(t, gw, uuidA, 90000)
	createPlayer(t, gw, uuidB, 0)

	// 60000 > suspicious threshold 50000; the transfer still succeeds.
	require.NoError(t, svc.Transfer(context.Background(),
		PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(60000), model.TxPlayerToPlayer, "big"))

	auditSvc.Stop(context.Background())
	var events []model.AuditEvent
	require.NoError(t, gw.DB().Where("event_type = ?", model.AuditSuspiciousActivity).Find(&events).Error)
	require.Len(t, events, 1)
}

func TestDailyOutflow_RollingWindow(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 10000)
	createPlayer(t, gw, uuidB, 0)
	ctx := context.Background()

	require.NoError(t, svc.Transfer(ctx, PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(100), model.TxPlayerToPlayer, ""))
	require.NoError(t, svc.Transfer(ctx, PlayerAccount(uuidA), PlayerAccount(uuidB),
		decimal.NewFromInt(250), model.TxPlayerToPlayer, ""))

	out, err := svc.DailyOutflow(ctx, PlayerAccount(uuidA))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(350)), "got %s", out)

	// Rows older than 24h fall out of the window.
	old := time.Now().Add(-25 * time.Hour).UnixMilli()
	require.NoError(t, gw.DB().Model(&model.Transaction{}).
		Where("1 = 1").Update("timestamp", old).Error)
	out, err = svc.DailyOutflow(ctx, PlayerAccount(uuidA))
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.Zero), "got %s", out)
}

func TestHistory_NewestFirst(t *testing.T) {
	svc, gw, _ := newLedger(t)
	createPlayer(t, gw, uuidA, 1000)
	ctx := context.Background()

	require.NoError(t, svc.Withdraw(ctx, PlayerAccount(uuidA), decimal.NewFromInt(1), model.TxSystemPenalty, "first"))
	require.NoError(t, svc.Withdraw(ctx, PlayerAccount(uuidA), decimal.NewFromInt(2), model.TxSystemPenalty, "second"))

	rows, err := svc.History(ctx, PlayerAccount(uuidA), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].Reason)
}

func TestFreeze_UnknownAccount(t *testing.T) {
	svc, _, _ := newLedger(t)
	err := svc.Freeze(context.Background(), PlayerAccount(uuidB))
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}
