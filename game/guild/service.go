package guild

import (
	"context"
	"errors"
	"regexp"
	"strings"

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
	// ErrInvalidName rejects names outside the 3-16 [A-Za-z0-9_] rule.
	ErrInvalidName = errors.New("guild: invalid name")
	// ErrNameTaken means another guild already holds the name.
	ErrNameTaken = errors.New("guild: name already taken")
	// ErrGuildNotFound means the guild does not exist.
	ErrGuildNotFound = errors.New("guild: not found")
	// ErrAlreadyInGuild rejects joining or founding while already a member somewhere.
	ErrAlreadyInGuild = errors.New("guild: player already in a guild")
	// ErrNotAMember means the player does not belong to the guild.
	ErrNotAMember = errors.New("guild: player is not a member")
	// ErrGuildFull means the member limit has been reached.
	ErrGuildFull = errors.New("guild: member limit reached")
	// ErrNotLeader rejects leader-only operations from ordinary members.
	ErrNotLeader = errors.New("guild: operation requires the guild leader")
	// ErrLeaderCannotLeave requires promoting a new leader before leaving.
	ErrLeaderCannotLeave = errors.New("guild: leader must promote a successor first")
	// ErrWrongTeam rejects members from the opposing team.
	ErrWrongTeam = errors.New("guild: player belongs to a different team")
	// ErrNoTeam rejects players that have not chosen a team yet.
	ErrNoTeam = errors.New("guild: player has not chosen a team")
)

var nameRule = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// Service manages guild membership and the cofre. All cofre movements go
// through the ledger so they appear in the transaction history.
type Service struct {
	gw     *db.Gateway
	ledger *ledger.Service
	audit  *audit.Service
	logger *zap.Logger
	cfg    config.GuildConfig
}

func NewService(gw *db.Gateway, ledgerSvc *ledger.Service, auditSvc *audit.Service, cfg config.GuildConfig, logger *zap.Logger) *Service {
	return &Service{gw: gw, ledger: ledgerSvc, audit: auditSvc, logger: logger, cfg: cfg}
}

// Create founds a new guild with the player as leader. The creation fee is
// debited up front; if the guild row cannot be created afterwards the fee is
// reversed with a system deposit.
func (svc *Service) Create(ctx context.Context, leaderUUID, name string) (*model.Guild, error) {
	if !nameRule.MatchString(name) {
		return nil, ErrInvalidName
	}

	var player model.Player
	if err := svc.gw.DB().WithContext(ctx).Where("uuid = ?", leaderUUID).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}
	if player.Team == "" {
		return nil, ErrNoTeam
	}
	if player.GuildID != nil {
		return nil, ErrAlreadyInGuild
	}

	var count int64
	if err := svc.gw.DB().WithContext(ctx).Model(&model.Guild{}).
		Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrNameTaken
	}

	fee := decimal.NewFromFloat(svc.cfg.CreationCost)
	if err := svc.ledger.Withdraw(ctx, ledger.PlayerAccount(leaderUUID), fee,
		model.TxGuildCreationFee, "guild creation: "+name); err != nil {
		return nil, err
	}

	g := &model.Guild{
		Name:        name,
		Team:        player.Team,
		LeaderUUID:  leaderUUID,
		MemberLimit: svc.cfg.DefaultMemberLimit,
	}
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}
		member := &model.GuildMember{GuildID: g.ID, PlayerUUID: leaderUUID, Role: model.GuildRoleLeader}
		if err := tx.Create(member).Error; err != nil {
			return err
		}
		return tx.Model(&model.Player{}).Where("uuid = ?", leaderUUID).
			Update("guild_id", g.ID).Error
	})
	if err != nil {
		// The fee already committed, so hand it back.
		if rerr := svc.ledger.Deposit(ctx, ledger.PlayerAccount(leaderUUID), fee,
			model.TxSystemReward, "guild creation refund: "+name); rerr != nil {
			svc.logger.Error("guild creation refund failed",
				zap.String("player", leaderUUID), zap.Error(rerr))
		}
		if isUniqueViolation(err) {
			return nil, ErrNameTaken
		}
		return nil, err
	}

	svc.audit.Record(audit.Entry{
		PlayerUUID: &leaderUUID,
		EventType:  model.AuditGuildCreate,
		Details:    map[string]interface{}{"guild_id": g.ID, "name": name, "team": g.Team},
	})
	return g, nil
}

// Get loads a guild by id.
func (svc *Service) Get(ctx context.Context, guildID int64) (*model.Guild, error) {
	var g model.Guild
	if err := svc.gw.DB().WithContext(ctx).First(&g, guildID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGuildNotFound
		}
		return nil, err
	}
	return &g, nil
}

// GetByName loads a guild by its unique name.
func (svc *Service) GetByName(ctx context.Context, name string) (*model.Guild, error) {
	var g model.Guild
	if err := svc.gw.DB().WithContext(ctx).Where("name = ?", name).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGuildNotFound
		}
		return nil, err
	}
	return &g, nil
}

// GuildOf returns the guild the player belongs to, or ErrNotAMember.
func (svc *Service) GuildOf(ctx context.Context, playerUUID string) (*model.Guild, error) {
	var member model.GuildMember
	err := svc.gw.DB().WithContext(ctx).
		Where("player_uuid = ?", playerUUID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotAMember
	}
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, member.GuildID)
}

// Members lists the guild's members.
func (svc *Service) Members(ctx context.Context, guildID int64) ([]model.GuildMember, error) {
	var members []model.GuildMember
	err := svc.gw.DB().WithContext(ctx).
		Where("guild_id = ?", guildID).Order("joined_at").Find(&members).Error
	return members, err
}

// AddMember joins a player to the guild. The player must be on the guild's
// team, not already in a guild, and the guild must have room.
func (svc *Service) AddMember(ctx context.Context, guildID int64, playerUUID string) error {
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		var g model.Guild
		if err := tx.First(&g, guildID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGuildNotFound
			}
			return err
		}
		var player model.Player
		if err := tx.Where("uuid = ?", playerUUID).First(&player).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrAccountNotFound
			}
			return err
		}
		if player.GuildID != nil {
			return ErrAlreadyInGuild
		}
		if player.Team != g.Team {
			return ErrWrongTeam
		}
		var members int64
		if err := tx.Model(&model.GuildMember{}).
			Where("guild_id = ?", guildID).Count(&members).Error; err != nil {
			return err
		}
		if members >= int64(g.MemberLimit) {
			return ErrGuildFull
		}
		member := &model.GuildMember{GuildID: guildID, PlayerUUID: playerUUID, Role: model.GuildRoleMember}
		if err := tx.Create(member).Error; err != nil {
			return err
		}
		return tx.Model(&model.Player{}).Where("uuid = ?", playerUUID).
			Update("guild_id", guildID).Error
	})
	if err != nil {
		return err
	}
	svc.audit.Record(audit.Entry{
		PlayerUUID: &playerUUID,
		EventType:  model.AuditGuildJoin,
		Details:    map[string]interface{}{"guild_id": guildID},
	})
	return nil
}

// Leave removes the player from their guild. The leader must promote a
// successor before leaving.
func (svc *Service) Leave(ctx context.Context, guildID int64, playerUUID string) error {
	err := svc.removeMember(ctx, guildID, playerUUID, true)
	if err != nil {
		return err
	}
	svc.audit.Record(audit.Entry{
		PlayerUUID: &playerUUID,
		EventType:  model.AuditGuildLeave,
		Details:    map[string]interface{}{"guild_id": guildID},
	})
	return nil
}

// Kick removes a member by leader decision.
func (svc *Service) Kick(ctx context.Context, guildID int64, actorUUID, targetUUID string) error {
	g, err := svc.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if g.LeaderUUID != actorUUID {
		return ErrNotLeader
	}
	if actorUUID == targetUUID {
		return ErrLeaderCannotLeave
	}
	if err := svc.removeMember(ctx, guildID, targetUUID, false); err != nil {
		return err
	}
	svc.audit.Record(audit.Entry{
		PlayerUUID: &targetUUID,
		EventType:  model.AuditGuildKick,
		Details:    map[string]interface{}{"guild_id": guildID, "by": actorUUID},
	})
	return nil
}

func (svc *Service) removeMember(ctx context.Context, guildID int64, playerUUID string, guardLeader bool) error {
	return svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		var g model.Guild
		if err := tx.First(&g, guildID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGuildNotFound
			}
			return err
		}
		if guardLeader && g.LeaderUUID == playerUUID {
			return ErrLeaderCannotLeave
		}
		res := tx.Where("guild_id = ? AND player_uuid = ?", guildID, playerUUID).
			Delete(&model.GuildMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotAMember
		}
		return tx.Model(&model.Player{}).Where("uuid = ?", playerUUID).
			Update("guild_id", nil).Error
	})
}

// PromoteLeader hands leadership to another member.
func (svc *Service) PromoteLeader(ctx context.Context, guildID int64, actorUUID, targetUUID string) error {
	return svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		var g model.Guild
		if err := tx.First(&g, guildID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGuildNotFound
			}
			return err
		}
		if g.LeaderUUID != actorUUID {
			return ErrNotLeader
		}
		var member model.GuildMember
		err := tx.Where("guild_id = ? AND player_uuid = ?", guildID, targetUUID).
			First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}
		if err := tx.Model(&model.GuildMember{}).
			Where("guild_id = ? AND player_uuid = ?", guildID, actorUUID).
			Update("role", model.GuildRoleMember).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.GuildMember{}).
			Where("guild_id = ? AND player_uuid = ?", guildID, targetUUID).
			Update("role", model.GuildRoleLeader).Error; err != nil {
			return err
		}
		return tx.Model(&model.Guild{}).Where("id = ?", guildID).
			Update("leader_uuid", targetUUID).Error
	})
}

// DepositCofre moves money from a member's wallet into the cofre.
func (svc *Service) DepositCofre(ctx context.Context, guildID int64, playerUUID string, amount decimal.Decimal) error {
	if err := svc.requireMember(ctx, guildID, playerUUID); err != nil {
		return err
	}
	return svc.ledger.Transfer(ctx,
		ledger.PlayerAccount(playerUUID), ledger.GuildAccount(guildID),
		amount, model.TxPlayerToGuild, "cofre deposit")
}

// WithdrawCofre moves money from the cofre to the leader's wallet.
// Leader only.
func (svc *Service) WithdrawCofre(ctx context.Context, guildID int64, playerUUID string, amount decimal.Decimal) error {
	g, err := svc.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if g.LeaderUUID != playerUUID {
		return ErrNotLeader
	}
	return svc.ledger.Transfer(ctx,
		ledger.GuildAccount(guildID), ledger.PlayerAccount(playerUUID),
		amount, model.TxGuildToPlayer, "cofre withdrawal")
}

// AddPoints adjusts the guild's territory points. Negative deltas floor at 0.
// The adjustment happens in place so concurrent awards cannot overwrite each
// other's reads.
func (svc *Service) AddPoints(ctx context.Context, guildID int64, delta int) error {
	return svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Guild{}).Where("id = ?", guildID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrGuildNotFound
		}
		return tx.Model(&model.Guild{}).Where("id = ?", guildID).
			Update("points", gorm.Expr(
				"CASE WHEN points + ? < 0 THEN 0 ELSE points + ? END", delta, delta)).Error
	})
}

func (svc *Service) requireMember(ctx context.Context, guildID int64, playerUUID string) error {
	var count int64
	err := svc.gw.DB().WithContext(ctx).Model(&model.GuildMember{}).
		Where("guild_id = ? AND player_uuid = ?", guildID, playerUUID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotAMember
	}
	return nil
}

// isUniqueViolation matches the duplicate-key errors both backends produce
// when the unique name index rejects a concurrent creation.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "Duplicate entry")
}
