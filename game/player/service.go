package player

import (
	"context"
	"errors"
	"time"

	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/config"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrPlayerNotFound means no account exists for the UUID.
	ErrPlayerNotFound = errors.New("player: not found")
	// ErrInvalidTeam rejects team names outside the two fixed teams.
	ErrInvalidTeam = errors.New("player: invalid team")
	// ErrTeamAlreadyChosen means the free choice was already used; switching costs.
	ErrTeamAlreadyChosen = errors.New("player: team already chosen")
	// ErrNoTeamChosen means the player must choose a team before switching.
	ErrNoTeamChosen = errors.New("player: no team chosen yet")
	// ErrSameTeam rejects switching to the team the player is already on.
	ErrSameTeam = errors.New("player: already on that team")
	// ErrSwitchCooldown rejects switching before the cooldown elapses.
	ErrSwitchCooldown = errors.New("player: team switch cooldown has not elapsed")
	// ErrInGuild requires leaving the guild before switching teams.
	ErrInGuild = errors.New("player: must leave guild before switching teams")
)

// Service provisions player accounts and manages team membership.
type Service struct {
	gw     *db.Gateway
	ledger *ledger.Service
	audit  *audit.Service
	logger *zap.Logger
	clock  func() time.Time

	startingBalance decimal.Decimal
	switchCost      decimal.Decimal
	switchCooldown  time.Duration
}

func NewService(gw *db.Gateway, ledgerSvc *ledger.Service, auditSvc *audit.Service, economy config.EconomyConfig, team config.TeamConfig, logger *zap.Logger) *Service {
	return &Service{
		gw:              gw,
		ledger:          ledgerSvc,
		audit:           auditSvc,
		logger:          logger,
		clock:           time.Now,
		startingBalance: decimal.NewFromFloat(economy.StartingBalance),
		switchCost:      decimal.NewFromFloat(team.SwitchCost),
		switchCooldown:  time.Duration(team.SwitchCooldownDays) * 24 * time.Hour,
	}
}

// Get loads a player account.
func (svc *Service) Get(ctx context.Context, uuid string) (*model.Player, error) {
	var p model.Player
	err := svc.gw.DB().WithContext(ctx).Where("uuid = ?", uuid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Provision is the join hook. First login creates the account and grants the
// starting balance through the ledger so it shows up in the transaction
// history; later logins refresh name and last_login.
func (svc *Service) Provision(ctx context.Context, uuid, name, ip string) (*model.Player, error) {
	now := svc.clock().UnixMilli()
	p, err := svc.Get(ctx, uuid)
	switch {
	case errors.Is(err, ErrPlayerNotFound):
		p = &model.Player{UUID: uuid, Name: name, LastLogin: now}
		if err := svc.gw.DB().WithContext(ctx).Create(p).Error; err != nil {
			return nil, err
		}
		if svc.startingBalance.IsPositive() {
			if err := svc.ledger.Deposit(ctx, ledger.PlayerAccount(uuid),
				svc.startingBalance, model.TxSystemReward, "starting balance"); err != nil {
				return nil, err
			}
			p.Balance = svc.startingBalance
		}
	case err != nil:
		return nil, err
	default:
		updates := map[string]interface{}{"name": name, "last_login": now}
		if err := svc.gw.DB().WithContext(ctx).Model(&model.Player{}).
			Where("uuid = ?", uuid).Updates(updates).Error; err != nil {
			return nil, err
		}
		p.Name = name
		p.LastLogin = now
	}

	svc.audit.Record(audit.Entry{
		PlayerUUID: &uuid,
		EventType:  model.AuditPlayerJoin,
		IPAddress:  ip,
		Details:    map[string]interface{}{"name": name},
	})
	return p, nil
}

// Quit is the disconnect hook: it stamps the last-seen time.
func (svc *Service) Quit(ctx context.Context, uuid, ip string) error {
	res := svc.gw.DB().WithContext(ctx).Model(&model.Player{}).
		Where("uuid = ?", uuid).Update("last_login", svc.clock().UnixMilli())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPlayerNotFound
	}
	svc.audit.Record(audit.Entry{
		PlayerUUID: &uuid,
		EventType:  model.AuditPlayerQuit,
		IPAddress:  ip,
	})
	return nil
}

// ChooseTeam sets the player's team for the first time, for free.
func (svc *Service) ChooseTeam(ctx context.Context, uuid, team string) error {
	if !model.ValidTeam(team) {
		return ErrInvalidTeam
	}
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		var p model.Player
		if err := tx.Where("uuid = ?", uuid).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlayerNotFound
			}
			return err
		}
		if p.Team != "" {
			return ErrTeamAlreadyChosen
		}
		if err := tx.Model(&model.Player{}).Where("uuid = ?", uuid).
			Update("team", team).Error; err != nil {
			return err
		}
		return tx.Model(&model.Team{}).Where("name = ?", team).
			Update("total_members", gorm.Expr("total_members + 1")).Error
	})
	if err != nil {
		return err
	}
	svc.audit.Record(audit.Entry{
		PlayerUUID: &uuid,
		EventType:  model.AuditTeamChoose,
		Details:    map[string]interface{}{"team": team},
	})
	return nil
}

// SwitchTeam changes the player's team for a fee, subject to a cooldown.
// Guild members must leave their guild first since guilds are team-bound.
func (svc *Service) SwitchTeam(ctx context.Context, uuid, team string) error {
	if !model.ValidTeam(team) {
		return ErrInvalidTeam
	}
	now := svc.clock()

	p, err := svc.Get(ctx, uuid)
	if err != nil {
		return err
	}
	if p.Team == "" {
		return ErrNoTeamChosen
	}
	if p.Team == team {
		return ErrSameTeam
	}
	if p.GuildID != nil {
		return ErrInGuild
	}
	if p.LastTeamSwitch > 0 &&
		now.UnixMilli() < p.LastTeamSwitch+svc.switchCooldown.Milliseconds() {
		return ErrSwitchCooldown
	}

	if svc.switchCost.IsPositive() {
		if err := svc.ledger.Withdraw(ctx, ledger.PlayerAccount(uuid),
			svc.switchCost, model.TxTeamSwitchFee, "team switch to "+team); err != nil {
			return err
		}
	}

	from := p.Team
	err = svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&model.Player{}).Where("uuid = ?", uuid).
			Updates(map[string]interface{}{
				"team":             team,
				"last_team_switch": now.UnixMilli(),
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Team{}).Where("name = ? AND total_members > 0", from).
			Update("total_members", gorm.Expr("total_members - 1")).Error; err != nil {
			return err
		}
		return tx.Model(&model.Team{}).Where("name = ?", team).
			Update("total_members", gorm.Expr("total_members + 1")).Error
	})
	if err != nil {
		return err
	}

	svc.audit.Record(audit.Entry{
		PlayerUUID: &uuid,
		EventType:  model.AuditTeamSwitch,
		Details:    map[string]interface{}{"from": from, "to": team},
	})
	return nil
}

// TeamTotals returns both team rows for scoreboard queries.
func (svc *Service) TeamTotals(ctx context.Context) ([]model.Team, error) {
	var teams []model.Team
	err := svc.gw.DB().WithContext(ctx).Order("name").Find(&teams).Error
	return teams, err
}
