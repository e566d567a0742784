package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/nexuswars/server/api/rest"
	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
	dbadapter "github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/guild"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/market"
	"github.com/nexuswars/server/game/nexus"
	"github.com/nexuswars/server/game/objective"
	"github.com/nexuswars/server/game/panel"
	"github.com/nexuswars/server/game/player"
	"github.com/nexuswars/server/game/shield"
	"github.com/nexuswars/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestServer wraps a real HTTP server with all economy subsystems wired
// together. Write operations go through the service layer, reads through
// the public REST surface, the same split main.go exposes.
type TestServer struct {
	GW        *dbadapter.Gateway
	Cache     cache.Cache
	Ledger    *ledger.Service
	Player    *player.Service
	Guild     *guild.Service
	Nexus     *nexus.Service
	Shield    *shield.Service
	Objective *objective.Service
	Market    *market.Service
	Panel     *panel.Service
	Server    *httptest.Server
	URL       string
	Sec       config.SecurityConfig
}

// NewTestServer wires the full stack for integration testing, mirroring
// the dependency order in main.go. Durations are kept short so phase
// transitions happen inside the test without clock stubbing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	auditSvc := audit.New(gw.DB(), logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	economy := config.EconomyConfig{
		StartingBalance:   1000,
		MaxBalance:        100000000,
		MaxTransferAmount: 500000,
		MaxDailyTransfer:  2000000,
		SuspiciousValue:   1000000,
		AlertOnSuspicious: true,
	}
	team := config.TeamConfig{SwitchCost: 500, SwitchCooldownDays: 30}
	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		AdminKey:       "integration-admin-key",
		ServerKey:      "integration-server-key",
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	ledgerSvc := ledger.NewService(gw, auditSvc, economy, logger)
	playerSvc := player.NewService(gw, ledgerSvc, auditSvc, economy, team, logger)
	guildSvc := guild.NewService(gw, ledgerSvc, auditSvc, config.GuildConfig{
		CreationCost: 100, DefaultMemberLimit: 20, MaxMemberLimit: 50,
	}, logger)
	shieldSvc := shield.NewService(gw, ledgerSvc, auditSvc, config.ShieldConfig{
		ActivationCost: 50,
		Warmup:         50 * time.Millisecond,
		ActiveDuration: 10 * time.Minute,
		Cooldown:       time.Hour,
	}, logger)
	nexusSvc := nexus.NewService(gw, ledgerSvc, shieldSvc, auditSvc, config.NexusConfig{
		BuildCost: 200, BaseHealth: 1000, MaxLevel: 10,
		HealthGrowthFactor: 1.2, UpgradeBaseCost: 100, UpgradeCostMultiplier: 1.8,
		RebuildMultiplier: 1.5, RebuildCooldown: time.Hour, ConstructionTime: time.Minute,
	}, logger)
	objectiveSvc := objective.NewService(gw, ledgerSvc, auditSvc, config.ObjectiveConfig{
		MaxActive: 10,
		Lifetime:  time.Hour,
		BaseRewards: map[string]float64{
			"PVE": 100, "PVP": 160, "EXPLORATION": 80, "SUPPORT": 60,
		},
		DailyRewardCap: 50000,
	}, logger)
	marketSvc := market.NewService(gw, ledgerSvc, c, auditSvc, config.MarketConfig{
		ListingFeePercent: 2, SaleTaxPercent: 5, ListingLifetime: time.Hour,
	}, logger)
	panelSvc := panel.NewService(gw, c, logger)

	router := apirest.NewRouter(apirest.Deps{
		Gateway:   gw,
		Cache:     c,
		Ledger:    ledgerSvc,
		Player:    playerSvc,
		Guild:     guildSvc,
		Nexus:     nexusSvc,
		Shield:    shieldSvc,
		Objective: objectiveSvc,
		Market:    marketSvc,
		Panel:     panelSvc,
		Security:  sec,
		Logger:    logger,
	})
	srv := httptest.NewServer(router)

	return &TestServer{
		GW:        gw,
		Cache:     c,
		Ledger:    ledgerSvc,
		Player:    playerSvc,
		Guild:     guildSvc,
		Nexus:     nexusSvc,
		Shield:    shieldSvc,
		Objective: objectiveSvc,
		Market:    marketSvc,
		Panel:     panelSvc,
		Server:    srv,
		URL:       srv.URL,
		Sec:       sec,
	}
}

func (ts *TestServer) Close() {
	ts.Server.Close()
}

// Join provisions a player and assigns the team, the same sequence the
// login hook runs.
func (ts *TestServer) Join(t *testing.T, uuid, name, team string) {
	t.Helper()
	ctx := context.Background()
	_, err := ts.Player.Provision(ctx, uuid, name, "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, ts.Player.ChooseTeam(ctx, uuid, team))
}

// Get performs a GET request against the test server, optionally with a
// bearer token.
func (ts *TestServer) Get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// PostJSON performs a POST request with a JSON body.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// AdminLogin authenticates against the admin surface and returns the token.
func (ts *TestServer) AdminLogin(t *testing.T) string {
	t.Helper()
	resp := ts.PostJSON(t, "/api/admin/login", map[string]string{"key": ts.Sec.AdminKey}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

// ReadJSON decodes and closes a response body.
func ReadJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

var uniqueCounter atomic.Int64

// UniqueUUID returns a well-formed UUID string distinct per call, so
// tests sharing a database never collide.
func UniqueUUID() string {
	n := uniqueCounter.Add(1)
	const digits = "0123456789"
	buf := []byte("00000000-0000-4000-8000-000000000000")
	for i := len(buf) - 1; i >= 24 && n > 0; i-- {
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf)
}
