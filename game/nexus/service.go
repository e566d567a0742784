package nexus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/config"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/game/shield"
	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoSuchNexus means the guild has no nexus.
	ErrNoSuchNexus = errors.New("nexus: not found")
	// ErrAlreadyBuilt means the guild already has a nexus.
	ErrAlreadyBuilt = errors.New("nexus: already built")
	// ErrInvalidDamage rejects non-positive damage or heal amounts.
	ErrInvalidDamage = errors.New("nexus: amount must be positive")
	// ErrShielded means an active shield absorbed the attack.
	ErrShielded = errors.New("nexus: protected by shield")
	// ErrDestroyed rejects operations that need a standing nexus.
	ErrDestroyed = errors.New("nexus: destroyed")
	// ErrNotDestroyed rejects rebuilding a nexus that is still standing.
	ErrNotDestroyed = errors.New("nexus: not destroyed")
	// ErrUnderConstruction rejects operations while the nexus is being rebuilt.
	ErrUnderConstruction = errors.New("nexus: under construction")
	// ErrMaxLevelReached rejects upgrades past the level cap.
	ErrMaxLevelReached = errors.New("nexus: maximum level reached")
	// ErrRebuildCooldown rejects rebuilding before the cooldown elapses.
	ErrRebuildCooldown = errors.New("nexus: rebuild cooldown has not elapsed")
	// ErrWriteConflict means concurrent writers kept invalidating the guarded
	// update; the caller should retry.
	ErrWriteConflict = errors.New("nexus: conflicting concurrent update")
)

// maxWriteRetries bounds the optimistic retries on Damage and Heal.
const maxWriteRetries = 5

// Service owns the nexus lifecycle. Health is floored at zero and the
// DESTROYED transition happens exactly once per destruction; every costed
// operation is paid from the guild cofre through the ledger.
type Service struct {
	gw     *db.Gateway
	ledger *ledger.Service
	shield *shield.Service
	audit  *audit.Service
	logger *zap.Logger
	clock  func() time.Time
	cfg    config.NexusConfig
}

func NewService(gw *db.Gateway, ledgerSvc *ledger.Service, shieldSvc *shield.Service, auditSvc *audit.Service, cfg config.NexusConfig, logger *zap.Logger) *Service {
	return &Service{
		gw:     gw,
		ledger: ledgerSvc,
		shield: shieldSvc,
		audit:  auditSvc,
		logger: logger,
		clock:  time.Now,
		cfg:    cfg,
	}
}

// Get loads the guild's nexus.
func (svc *Service) Get(ctx context.Context, guildID int64) (*model.Nexus, error) {
	var n model.Nexus
	err := svc.gw.DB().WithContext(ctx).Where("guild_id = ?", guildID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSuchNexus
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Build erects the guild's nexus at the location, charging the build cost.
func (svc *Service) Build(ctx context.Context, guildID int64, location string) (*model.Nexus, error) {
	if _, err := svc.Get(ctx, guildID); err == nil {
		return nil, ErrAlreadyBuilt
	} else if !errors.Is(err, ErrNoSuchNexus) {
		return nil, err
	}

	cost := decimal.NewFromFloat(svc.cfg.BuildCost)
	n := &model.Nexus{
		GuildID:   guildID,
		Level:     1,
		Health:    svc.cfg.BaseHealth,
		MaxHealth: svc.cfg.BaseHealth,
		State:     model.NexusActive,
		Location:  location,
	}
	// One transaction: a failed creation rolls the build cost back too.
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := svc.ledger.WithdrawTx(tx, ledger.GuildAccount(guildID), cost,
			model.TxNexusBuildCost, "nexus build"); err != nil {
			return err
		}
		return tx.Create(n).Error
	})
	if err != nil {
		return nil, err
	}

	svc.audit.Record(audit.Entry{
		EventType: model.AuditNexusBuild,
		Details:   map[string]interface{}{"guild_id": guildID, "location": location},
	})
	return n, nil
}

// Damage applies siege damage. An ACTIVE shield absorbs the hit entirely.
// Health floors at zero; hitting zero destroys the nexus exactly once.
func (svc *Service) Damage(ctx context.Context, guildID int64, amount float64) (*model.Nexus, error) {
	if amount <= 0 {
		return nil, ErrInvalidDamage
	}
	now := svc.clock()
	protected, err := svc.shield.ProtectsAt(ctx, guildID, now)
	if err != nil {
		return nil, err
	}
	if protected {
		return nil, ErrShielded
	}

	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		var result model.Nexus
		destroyed := false
		applied := false
		err = svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
			var n model.Nexus
			if err := tx.Where("guild_id = ?", guildID).First(&n).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNoSuchNexus
				}
				return err
			}
			switch n.State {
			case model.NexusDestroyed:
				return ErrDestroyed
			case model.NexusConstruction:
				return ErrUnderConstruction
			}
			prevHealth, prevState := n.Health, n.State

			n.Health = round2(n.Health - amount)
			if n.Health <= 0 {
				n.Health = 0
				if !n.State.CanTransitionTo(model.NexusDestroyed) {
					return fmt.Errorf("nexus: illegal transition %s -> DESTROYED", n.State)
				}
				n.State = model.NexusDestroyed
				n.LastDestroyed = now.UnixMilli()
				destroyed = true
			} else if n.State == model.NexusActive {
				n.State = model.NexusUnderAttack
			}
			// The guard on the values we read means a concurrent writer makes
			// this match zero rows instead of clobbering its update, and the
			// DESTROYED flip lands exactly once.
			res := tx.Model(&model.Nexus{}).
				Where("guild_id = ? AND health = ? AND state = ?", guildID, prevHealth, prevState).
				Updates(map[string]interface{}{
					"health":         n.Health,
					"state":          n.State,
					"last_destroyed": n.LastDestroyed,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			applied = true
			result = n
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			continue
		}

		event := model.AuditNexusDamage
		if destroyed {
			event = model.AuditNexusDestroy
		}
		svc.audit.Record(audit.Entry{
			EventType: event,
			Details: map[string]interface{}{
				"guild_id": guildID, "damage": amount, "health": result.Health,
			},
		})
		return &result, nil
	}
	return nil, ErrWriteConflict
}

// Heal restores health up to the maximum. A destroyed nexus cannot be healed
// back to life; it must be rebuilt. Healing to full ends UNDER_ATTACK.
func (svc *Service) Heal(ctx context.Context, guildID int64, amount float64) (*model.Nexus, error) {
	if amount <= 0 {
		return nil, ErrInvalidDamage
	}
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		var result model.Nexus
		applied := false
		err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
			var n model.Nexus
			if err := tx.Where("guild_id = ?", guildID).First(&n).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNoSuchNexus
				}
				return err
			}
			switch n.State {
			case model.NexusDestroyed:
				return ErrDestroyed
			case model.NexusConstruction:
				return ErrUnderConstruction
			}
			prevHealth, prevState := n.Health, n.State

			n.Health = round2(math.Min(n.Health+amount, n.MaxHealth))
			if n.State == model.NexusUnderAttack && n.Health == n.MaxHealth {
				n.State = model.NexusActive
			}
			res := tx.Model(&model.Nexus{}).
				Where("guild_id = ? AND health = ? AND state = ?", guildID, prevHealth, prevState).
				Updates(map[string]interface{}{"health": n.Health, "state": n.State})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			applied = true
			result = n
			return nil
		})
		if err != nil {
			return nil, err
		}
		if applied {
			return &result, nil
		}
	}
	return nil, ErrWriteConflict
}

// UpgradeCost is the cofre price of raising the nexus from its current level.
func (svc *Service) UpgradeCost(level int) decimal.Decimal {
	cost := svc.cfg.UpgradeBaseCost * math.Pow(svc.cfg.UpgradeCostMultiplier, float64(level-1))
	return decimal.NewFromFloat(cost).Round(2)
}

// Upgrade raises the level, grows max health by the growth factor and fully
// heals. The cost curve steepens per level and is paid from the cofre.
func (svc *Service) Upgrade(ctx context.Context, guildID int64) (*model.Nexus, error) {
	n, err := svc.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	switch n.State {
	case model.NexusDestroyed:
		return nil, ErrDestroyed
	case model.NexusConstruction:
		return nil, ErrUnderConstruction
	}
	if n.Level >= svc.cfg.MaxLevel {
		return nil, ErrMaxLevelReached
	}

	cost := svc.UpgradeCost(n.Level)
	newMax := round2(n.MaxHealth * svc.cfg.HealthGrowthFactor)
	err = svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := svc.ledger.WithdrawTx(tx, ledger.GuildAccount(guildID), cost,
			model.TxNexusUpgradeCost, fmt.Sprintf("nexus upgrade to level %d", n.Level+1)); err != nil {
			return err
		}
		// The guard on the current level keeps a concurrent upgrade from
		// charging twice for the same step.
		res := tx.Model(&model.Nexus{}).
			Where("guild_id = ? AND level = ?", guildID, n.Level).
			Updates(map[string]interface{}{
				"level":      n.Level + 1,
				"max_health": newMax,
				"health":     newMax,
				"state":      model.NexusActive,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWriteConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.audit.Record(audit.Entry{
		EventType: model.AuditNexusUpgrade,
		Details: map[string]interface{}{
			"guild_id": guildID, "level": n.Level + 1, "cost": cost.StringFixed(2),
		},
	})
	return svc.Get(ctx, guildID)
}

// Rebuild starts reconstruction of a destroyed nexus after the cooldown,
// charging the rebuild cost. The nexus comes back on the completion tick.
func (svc *Service) Rebuild(ctx context.Context, guildID int64) (*model.Nexus, error) {
	now := svc.clock()
	n, err := svc.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if n.State == model.NexusConstruction {
		return nil, ErrUnderConstruction
	}
	if n.State != model.NexusDestroyed {
		return nil, ErrNotDestroyed
	}
	if now.UnixMilli() < n.LastDestroyed+svc.cfg.RebuildCooldown.Milliseconds() {
		return nil, ErrRebuildCooldown
	}

	cost := decimal.NewFromFloat(svc.cfg.BuildCost * svc.cfg.RebuildMultiplier).Round(2)
	err = svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := svc.ledger.WithdrawTx(tx, ledger.GuildAccount(guildID), cost,
			model.TxNexusBuildCost, "nexus rebuild"); err != nil {
			return err
		}
		// Only a still-destroyed nexus starts construction, so a concurrent
		// rebuild cannot charge the cofre twice.
		res := tx.Model(&model.Nexus{}).
			Where("guild_id = ? AND state = ?", guildID, model.NexusDestroyed).
			Updates(map[string]interface{}{
				"state":           model.NexusConstruction,
				"rebuild_started": now.UnixMilli(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUnderConstruction
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.audit.Record(audit.Entry{
		EventType: model.AuditNexusRebuild,
		Details:   map[string]interface{}{"guild_id": guildID, "cost": cost.StringFixed(2)},
	})
	return svc.Get(ctx, guildID)
}

// Tick completes any construction whose build time has elapsed. Idempotent:
// the guarded WHERE clause means a re-run finds nothing left to complete.
func (svc *Service) Tick(ctx context.Context, now time.Time) error {
	deadline := now.UnixMilli() - svc.cfg.ConstructionTime.Milliseconds()
	var pending []model.Nexus
	if err := svc.gw.DB().WithContext(ctx).
		Where("state = ? AND rebuild_started <= ?", model.NexusConstruction, deadline).
		Find(&pending).Error; err != nil {
		return err
	}
	for i := range pending {
		n := &pending[i]
		res := svc.gw.DB().WithContext(ctx).Model(&model.Nexus{}).
			Where("guild_id = ? AND state = ?", n.GuildID, model.NexusConstruction).
			Updates(map[string]interface{}{
				"state":  model.NexusActive,
				"health": n.MaxHealth,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			svc.logger.Info("nexus construction complete", zap.Int64("guild_id", n.GuildID))
		}
	}
	return nil
}

// round2 keeps health values at the same 0.01 granularity as the column.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
