package shield

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
	// ErrAlreadyActive rejects activation while a shield is warming up or active.
	ErrAlreadyActive = errors.New("shield: already active")
	// ErrOnCooldown rejects activation before the cooldown since the last
	// expiry elapses.
	ErrOnCooldown = errors.New("shield: on cooldown")
	// ErrGuildNotFound means the guild does not exist.
	ErrGuildNotFound = errors.New("shield: guild not found")
)

// Service manages per-guild shield timers. The phase is never trusted from
// the persisted State column alone: it is re-derived from the activation
// timestamps, so Tick is idempotent and a missed tick cannot strand a shield.
type Service struct {
	gw     *db.Gateway
	ledger *ledger.Service
	audit  *audit.Service
	logger *zap.Logger
	clock  func() time.Time

	cost     decimal.Decimal
	warmup   time.Duration
	active   time.Duration
	cooldown time.Duration
}

func NewService(gw *db.Gateway, ledgerSvc *ledger.Service, auditSvc *audit.Service, cfg config.ShieldConfig, logger *zap.Logger) *Service {
	return &Service{
		gw:       gw,
		ledger:   ledgerSvc,
		audit:    auditSvc,
		logger:   logger,
		clock:    time.Now,
		cost:     decimal.NewFromFloat(cfg.ActivationCost),
		warmup:   cfg.Warmup,
		active:   cfg.ActiveDuration,
		cooldown: cfg.Cooldown,
	}
}

// deriveState computes the phase at the given instant from the persisted
// timestamps alone. Pure: no clock, no database.
func (svc *Service) deriveState(s *model.Shield, now time.Time) model.ShieldState {
	if s.ActivatedAt == 0 {
		return model.ShieldInactive
	}
	ms := now.UnixMilli()
	activeFrom := s.ActivatedAt + svc.warmup.Milliseconds()
	if ms < activeFrom {
		return model.ShieldWarmup
	}
	if ms < s.ExpiresAt {
		return model.ShieldActive
	}
	// The cooldown runs from the expiry instant, not from activation.
	if ms < s.ExpiresAt+svc.cooldown.Milliseconds() {
		return model.ShieldCooldown
	}
	return model.ShieldInactive
}

// Activate starts the warmup phase and charges the activation cost to the
// guild cofre. Only allowed from INACTIVE.
func (svc *Service) Activate(ctx context.Context, guildID int64) error {
	now := svc.clock()
	s, err := svc.loadOrInit(ctx, guildID)
	if err != nil {
		return err
	}
	switch svc.deriveState(s, now) {
	case model.ShieldWarmup, model.ShieldActive:
		return ErrAlreadyActive
	case model.ShieldCooldown:
		return ErrOnCooldown
	}

	ms := now.UnixMilli()
	expiresAt := ms + svc.warmup.Milliseconds() + svc.active.Milliseconds()
	// last_used records the instant the protection ends; the cooldown in
	// deriveState is anchored there.
	updates := map[string]interface{}{
		"state":        model.ShieldWarmup,
		"activated_at": ms,
		"expires_at":   expiresAt,
		"last_used":    expiresAt,
	}
	// One transaction: a failed shield write rolls the activation cost back.
	err = svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := svc.ledger.WithdrawTx(tx, ledger.GuildAccount(guildID), svc.cost,
			model.TxShieldCost, "shield activation"); err != nil {
			return err
		}
		return tx.Model(&model.Shield{}).
			Where("guild_id = ?", guildID).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	svc.audit.Record(audit.Entry{
		EventType: model.AuditShieldActivate,
		Details:   map[string]interface{}{"guild_id": guildID, "expires_at": updates["expires_at"]},
	})
	return nil
}

// Status returns the shield's phase at the given instant.
func (svc *Service) Status(ctx context.Context, guildID int64, now time.Time) (model.ShieldState, error) {
	s, err := svc.loadOrInit(ctx, guildID)
	if err != nil {
		return model.ShieldInactive, err
	}
	return svc.deriveState(s, now), nil
}

// ProtectsAt reports whether the guild's nexus is shielded at the instant.
// Only the ACTIVE phase protects; WARMUP does not.
func (svc *Service) ProtectsAt(ctx context.Context, guildID int64, now time.Time) (bool, error) {
	var s model.Shield
	err := svc.gw.DB().WithContext(ctx).
		Where("guild_id = ?", guildID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return svc.deriveState(&s, now) == model.ShieldActive, nil
}

// Tick reconciles every shield's persisted State column with the phase
// derived from its timestamps. Running it twice with the same now is a no-op;
// the column exists only so panel queries can filter without re-deriving.
func (svc *Service) Tick(ctx context.Context, now time.Time) error {
	var shields []model.Shield
	if err := svc.gw.DB().WithContext(ctx).
		Where("state <> ?", model.ShieldInactive).Find(&shields).Error; err != nil {
		return err
	}
	for i := range shields {
		s := &shields[i]
		derived := svc.deriveState(s, now)
		if derived == s.State {
			continue
		}
		if err := svc.gw.DB().WithContext(ctx).Model(&model.Shield{}).
			Where("guild_id = ? AND state = ?", s.GuildID, s.State).
			Update("state", derived).Error; err != nil {
			return err
		}
		if s.State == model.ShieldActive && derived != model.ShieldActive {
			svc.audit.Record(audit.Entry{
				EventType: model.AuditShieldExpire,
				Details:   map[string]interface{}{"guild_id": s.GuildID},
			})
		}
		svc.logger.Debug("shield phase changed",
			zap.Int64("guild_id", s.GuildID),
			zap.String("from", string(s.State)),
			zap.String("to", string(derived)))
	}
	return nil
}

// loadOrInit fetches the guild's shield row, creating the INACTIVE default
// on first use. Guild existence is checked so activation cannot orphan a row.
func (svc *Service) loadOrInit(ctx context.Context, guildID int64) (*model.Shield, error) {
	var s model.Shield
	err := svc.gw.DB().WithContext(ctx).Where("guild_id = ?", guildID).First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	var guilds int64
	if err := svc.gw.DB().WithContext(ctx).Model(&model.Guild{}).
		Where("id = ?", guildID).Count(&guilds).Error; err != nil {
		return nil, err
	}
	if guilds == 0 {
		return nil, ErrGuildNotFound
	}
	s = model.Shield{GuildID: guildID, State: model.ShieldInactive}
	if err := svc.gw.DB().WithContext(ctx).Create(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
