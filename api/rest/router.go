package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/guild"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/market"
	"github.com/nexuswars/server/game/nexus"
	"github.com/nexuswars/server/game/objective"
	"github.com/nexuswars/server/game/panel"
	"github.com/nexuswars/server/game/player"
	"github.com/nexuswars/server/game/shield"
	mw "github.com/nexuswars/server/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Deps collects everything the HTTP boundary needs. Public routes are
// read-only; mutations live under /api/internal and are called by the
// game server with the shared server key.
type Deps struct {
	Gateway   *db.Gateway
	Cache     cache.Cache
	Ledger    *ledger.Service
	Player    *player.Service
	Guild     *guild.Service
	Nexus     *nexus.Service
	Shield    *shield.Service
	Objective *objective.Service
	Market    *market.Service
	Panel     *panel.Service
	Security  config.SecurityConfig
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with the full middleware chain and routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		mw.Recovery(d.Logger),
		mw.RequestID(),
		mw.AccessLog(d.Logger),
		mw.RateLimit(rate.Limit(d.Security.RateLimitRPS), d.Security.RateLimitBurst),
	)

	eco := &EconomyHandler{ledger: d.Ledger}
	plr := &PlayerHandler{player: d.Player, ledger: d.Ledger}
	gld := &GuildHandler{guild: d.Guild, panel: d.Panel}
	war := &WarHandler{nexus: d.Nexus, shield: d.Shield}
	obj := &ObjectiveHandler{objective: d.Objective}
	mkt := &MarketHandler{market: d.Market}
	pnl := &PanelHandler{panel: d.Panel}
	adm := NewAdminHandler(d.Cache, d.Ledger, d.Security, d.Logger)

	r.GET("/healthz", healthz(d.Gateway))

	api := r.Group("/api")
	{
		api.GET("/players/:uuid/balance", eco.Balance)
		api.GET("/players/:uuid/transactions", eco.History)
		api.GET("/guilds/:id", gld.Get)
		api.GET("/guilds/:id/members", gld.Members)
		api.GET("/objectives", obj.ListActive)
		api.GET("/objectives/:id", obj.Get)
		api.GET("/market", mkt.Active)
		api.GET("/panels/balance-top", pnl.BalanceTop)
		api.GET("/panels/teams", pnl.TeamScores)

		internal := api.Group("/internal", mw.ServerAuth(d.Security))
		{
			internal.POST("/players/:uuid/join", plr.Join)
			internal.POST("/players/:uuid/quit", plr.Quit)
			internal.POST("/players/:uuid/team", plr.ChooseTeam)
			internal.POST("/players/:uuid/team/switch", plr.SwitchTeam)
			internal.POST("/transfers", plr.Transfer)

			internal.POST("/guilds", gld.Create)
			internal.POST("/guilds/:id/members", gld.Join)
			internal.POST("/guilds/:id/leave", gld.Leave)
			internal.POST("/guilds/:id/kick", gld.Kick)
			internal.POST("/guilds/:id/promote", gld.Promote)
			internal.POST("/guilds/:id/points", gld.AddPoints)
			internal.POST("/guilds/:id/cofre/deposit", gld.CofreDeposit)
			internal.POST("/guilds/:id/cofre/withdraw", gld.CofreWithdraw)

			internal.GET("/guilds/:id/nexus", war.GetNexus)
			internal.POST("/guilds/:id/nexus", war.BuildNexus)
			internal.POST("/guilds/:id/nexus/damage", war.DamageNexus)
			internal.POST("/guilds/:id/nexus/heal", war.HealNexus)
			internal.POST("/guilds/:id/nexus/upgrade", war.UpgradeNexus)
			internal.POST("/guilds/:id/nexus/rebuild", war.RebuildNexus)
			internal.GET("/guilds/:id/shield", war.ShieldStatus)
			internal.POST("/guilds/:id/shield", war.ActivateShield)

			internal.POST("/objectives", obj.Create)
			internal.POST("/objectives/:id/contribute", obj.Contribute)

			internal.POST("/market", mkt.List)
			internal.POST("/market/:id/buy", mkt.Buy)

			internal.POST("/panels", pnl.Place)
			internal.DELETE("/panels/:id", pnl.Remove)
		}

		admin := api.Group("/admin", mw.IPWhitelist(d.Security.AdminIPs))
		admin.POST("/login", adm.Login)
		protected := admin.Group("", mw.AdminAuth(d.Security, d.Cache))
		{
			protected.POST("/logout", adm.Logout)
			protected.POST("/accounts/:ref/freeze", adm.Freeze)
			protected.POST("/accounts/:ref/unfreeze", adm.Unfreeze)
			protected.GET("/accounts/:ref/replay", adm.Replay)
		}
	}

	return r
}
