package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/nexus"
	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerEconomyFlow(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	ctx := context.Background()

	alice := UniqueUUID()
	bob := UniqueUUID()
	ts.Join(t, alice, "Alice", model.TeamSolar)
	ts.Join(t, bob, "Bob", model.TeamLunar)

	// Both got the starting grant.
	resp := ts.Get(t, "/api/players/"+alice+"/balance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal struct {
		Balance string `json:"balance"`
	}
	ReadJSON(t, resp, &bal)
	assert.Equal(t, "1000.00", bal.Balance)

	// Transfer moves money and shows up in both histories.
	err := ts.Ledger.Transfer(ctx,
		ledger.PlayerAccount(alice), ledger.PlayerAccount(bob),
		decimal.NewFromInt(250), model.TxPlayerToPlayer, "payment")
	require.NoError(t, err)

	resp = ts.Get(t, "/api/players/"+bob+"/balance", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ReadJSON(t, resp, &bal)
	assert.Equal(t, "1250.00", bal.Balance)

	resp = ts.Get(t, "/api/players/"+alice+"/transactions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist struct {
		Transactions []model.Transaction `json:"transactions"`
	}
	ReadJSON(t, resp, &hist)
	require.NotEmpty(t, hist.Transactions)
	assert.Equal(t, model.TxPlayerToPlayer, hist.Transactions[0].Type)
}

func TestGuildNexusShieldFlow(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	ctx := context.Background()

	leader := UniqueUUID()
	ts.Join(t, leader, "Leader", model.TeamSolar)

	g, err := ts.Guild.Create(ctx, leader, "IronPact")
	require.NoError(t, err)

	// Fund the cofre: build cost 200 + shield cost 50.
	require.NoError(t, ts.Guild.DepositCofre(ctx, g.ID, leader, decimal.NewFromInt(400)))

	nx, err := ts.Nexus.Build(ctx, g.ID, "crossroads")
	require.NoError(t, err)
	assert.Equal(t, model.NexusActive, nx.State)

	// Shield starts in warmup; the nexus is still attackable.
	require.NoError(t, ts.Shield.Activate(ctx, g.ID))
	state, err := ts.Shield.Status(ctx, g.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.ShieldWarmup, state)

	_, err = ts.Nexus.Damage(ctx, g.ID, 100)
	require.NoError(t, err)

	// After warmup the shield absorbs everything.
	require.Eventually(t, func() bool {
		s, err := ts.Shield.Status(ctx, g.ID, time.Now())
		return err == nil && s == model.ShieldActive
	}, 2*time.Second, 10*time.Millisecond)

	_, err = ts.Nexus.Damage(ctx, g.ID, 100)
	assert.ErrorIs(t, err, nexus.ErrShielded)

	// The guild panel reflects the attack.
	resp := ts.Get(t, "/api/guilds/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		Name       string `json:"name"`
		NexusState string `json:"nexus_state"`
	}
	ReadJSON(t, resp, &detail)
	assert.Equal(t, "IronPact", detail.Name)
	assert.Equal(t, string(model.NexusUnderAttack), detail.NexusState)
}

func TestObjectiveCompletionPaysContributors(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	ctx := context.Background()

	p1 := UniqueUUID()
	p2 := UniqueUUID()
	ts.Join(t, p1, "Hunter1", model.TeamSolar)
	ts.Join(t, p2, "Hunter2", model.TeamSolar)

	obj, err := ts.Objective.Create(ctx, "Cull the swarm", "", model.ObjectivePVE, model.DifficultyMedium, 10)
	require.NoError(t, err)
	// PVE base 100 at MEDIUM ×1.5.
	assert.True(t, obj.Reward.Equal(decimal.NewFromInt(150)), obj.Reward.String())

	_, err = ts.Objective.Contribute(ctx, obj.ID, p1, 6)
	require.NoError(t, err)
	done, err := ts.Objective.Contribute(ctx, obj.ID, p2, 4)
	require.NoError(t, err)
	assert.Equal(t, model.ObjectiveCompleted, done.State)

	b1, err := ts.Ledger.Balance(ctx, ledger.PlayerAccount(p1))
	require.NoError(t, err)
	b2, err := ts.Ledger.Balance(ctx, ledger.PlayerAccount(p2))
	require.NoError(t, err)
	assert.Equal(t, "1090.00", b1.StringFixed(2))
	assert.Equal(t, "1060.00", b2.StringFixed(2))

	resp := ts.Get(t, "/api/objectives/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Participants []model.ObjectiveParticipant `json:"participants"`
	}
	ReadJSON(t, resp, &out)
	assert.Len(t, out.Participants, 2)
}

func TestMarketSaleMovesMoney(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	ctx := context.Background()

	seller := UniqueUUID()
	buyer := UniqueUUID()
	ts.Join(t, seller, "Seller", model.TeamSolar)
	ts.Join(t, buyer, "Buyer", model.TeamLunar)

	listing, err := ts.Market.List(ctx, seller, `{"item_id":7}`, decimal.NewFromInt(500))
	require.NoError(t, err)

	resp := ts.Get(t, "/api/market", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var board struct {
		Listings []model.MarketListing `json:"listings"`
	}
	ReadJSON(t, resp, &board)
	require.Len(t, board.Listings, 1)

	_, err = ts.Market.Buy(ctx, listing.ID, buyer)
	require.NoError(t, err)

	// Seller: 1000 − 10 fee + 500 − 25 tax. Buyer: 1000 − 500.
	bs, err := ts.Ledger.Balance(ctx, ledger.PlayerAccount(seller))
	require.NoError(t, err)
	bb, err := ts.Ledger.Balance(ctx, ledger.PlayerAccount(buyer))
	require.NoError(t, err)
	assert.Equal(t, "1465.00", bs.StringFixed(2))
	assert.Equal(t, "500.00", bb.StringFixed(2))
}

func TestAdminFreezeBlocksTransfers(t *testing.T) {
	ts := NewTestServer(t)
	defer ts.Close()
	ctx := context.Background()

	alice := UniqueUUID()
	bob := UniqueUUID()
	ts.Join(t, alice, "Alice", model.TeamSolar)
	ts.Join(t, bob, "Bob", model.TeamSolar)

	token := ts.AdminLogin(t)
	resp := ts.PostJSON(t, "/api/admin/accounts/"+alice+"/freeze", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	err := ts.Ledger.Transfer(ctx,
		ledger.PlayerAccount(alice), ledger.PlayerAccount(bob),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, "blocked")
	assert.ErrorIs(t, err, ledger.ErrAccountFrozen)

	resp = ts.PostJSON(t, "/api/admin/accounts/"+alice+"/unfreeze", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	err = ts.Ledger.Transfer(ctx,
		ledger.PlayerAccount(alice), ledger.PlayerAccount(bob),
		decimal.NewFromInt(10), model.TxPlayerToPlayer, "allowed")
	assert.NoError(t, err)
}
