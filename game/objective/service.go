package objective

import (
	"context"
	"errors"
	"fmt"
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
	// ErrObjectiveNotFound means the objective does not exist.
	ErrObjectiveNotFound = errors.New("objective: not found")
	// ErrObjectiveNotActive rejects contributions to terminal objectives.
	ErrObjectiveNotActive = errors.New("objective: not active")
	// ErrInvalidContribution rejects non-positive contribution amounts.
	ErrInvalidContribution = errors.New("objective: contribution must be positive")
	// ErrUnknownCategory means the category has no configured base reward.
	ErrUnknownCategory = errors.New("objective: unknown category")
	// ErrInvalidGoal rejects non-positive goals.
	ErrInvalidGoal = errors.New("objective: goal must be positive")
	// ErrTooManyActive rejects creation past the active-objective limit.
	ErrTooManyActive = errors.New("objective: too many active objectives")
)

// difficultyMultipliers scales the category base reward.
var difficultyMultipliers = map[string]float64{
	model.DifficultyEasy:    1.0,
	model.DifficultyMedium:  1.5,
	model.DifficultyHard:    2.0,
	model.DifficultyExtreme: 3.0,
}

const rewardWindow = 24 * time.Hour

// Service tracks shared objectives and splits their reward pool among
// contributors. Completion happens exactly once, on the contribution that
// first reaches the goal; the split is proportional, rounded down to the
// 0.01 unit, with the rounding residual going to the top contributor.
type Service struct {
	gw     *db.Gateway
	ledger *ledger.Service
	audit  *audit.Service
	logger *zap.Logger
	clock  func() time.Time
	cfg    config.ObjectiveConfig
}

func NewService(gw *db.Gateway, ledgerSvc *ledger.Service, auditSvc *audit.Service, cfg config.ObjectiveConfig, logger *zap.Logger) *Service {
	return &Service{
		gw:     gw,
		ledger: ledgerSvc,
		audit:  auditSvc,
		logger: logger,
		clock:  time.Now,
		cfg:    cfg,
	}
}

// Create opens a new objective. The reward pool is the category base reward
// scaled by difficulty.
func (svc *Service) Create(ctx context.Context, name, description, category, difficulty string, goal int) (*model.Objective, error) {
	if goal <= 0 {
		return nil, ErrInvalidGoal
	}
	base, ok := svc.cfg.BaseRewards[category]
	if !ok {
		return nil, ErrUnknownCategory
	}
	mult, ok := difficultyMultipliers[difficulty]
	if !ok {
		return nil, fmt.Errorf("objective: unknown difficulty %q", difficulty)
	}

	var active int64
	if err := svc.gw.DB().WithContext(ctx).Model(&model.Objective{}).
		Where("state = ?", model.ObjectiveActive).Count(&active).Error; err != nil {
		return nil, err
	}
	if active >= int64(svc.cfg.MaxActive) {
		return nil, ErrTooManyActive
	}

	now := svc.clock()
	obj := &model.Objective{
		Name:        name,
		Description: description,
		Category:    category,
		Difficulty:  difficulty,
		Reward:      decimal.NewFromFloat(base * mult).Round(2),
		State:       model.ObjectiveActive,
		Goal:        goal,
		ExpiresAt:   now.Add(svc.cfg.Lifetime).UnixMilli(),
	}
	if err := svc.gw.DB().WithContext(ctx).Create(obj).Error; err != nil {
		return nil, err
	}

	svc.audit.Record(audit.Entry{
		EventType: model.AuditObjectiveStart,
		Details: map[string]interface{}{
			"objective_id": obj.ID, "category": category,
			"difficulty": difficulty, "reward": obj.Reward.StringFixed(2),
		},
	})
	return obj, nil
}

// Get loads an objective.
func (svc *Service) Get(ctx context.Context, id int64) (*model.Objective, error) {
	var obj model.Objective
	err := svc.gw.DB().WithContext(ctx).First(&obj, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrObjectiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// ListActive returns open objectives, newest first.
func (svc *Service) ListActive(ctx context.Context) ([]model.Objective, error) {
	var objs []model.Objective
	err := svc.gw.DB().WithContext(ctx).
		Where("state = ?", model.ObjectiveActive).
		Order("created_at DESC").Find(&objs).Error
	return objs, err
}

// Participants returns the objective's contributors, largest first.
func (svc *Service) Participants(ctx context.Context, objectiveID int64) ([]model.ObjectiveParticipant, error) {
	var parts []model.ObjectiveParticipant
	err := svc.gw.DB().WithContext(ctx).
		Where("objective_id = ?", objectiveID).
		Order("contribution DESC, player_uuid ASC").Find(&parts).Error
	return parts, err
}

// Contribute adds a player's progress. Progress only ever grows, and the
// contribution that first reaches the goal completes the objective and
// triggers the payout.
func (svc *Service) Contribute(ctx context.Context, objectiveID int64, playerUUID string, amount int) (*model.Objective, error) {
	if amount <= 0 {
		return nil, ErrInvalidContribution
	}
	now := svc.clock()

	var result model.Objective
	completed := false
	err := svc.gw.WithTransaction(ctx, func(tx *gorm.DB) error {
		var obj model.Objective
		if err := tx.First(&obj, objectiveID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrObjectiveNotFound
			}
			return err
		}
		if obj.State.Terminal() || now.UnixMilli() >= obj.ExpiresAt {
			return ErrObjectiveNotActive
		}

		var part model.ObjectiveParticipant
		err := tx.Where("objective_id = ? AND player_uuid = ?", objectiveID, playerUUID).
			First(&part).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			part = model.ObjectiveParticipant{
				ObjectiveID: objectiveID, PlayerUUID: playerUUID, Contribution: amount,
			}
			if err := tx.Create(&part).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&model.ObjectiveParticipant{}).
				Where("objective_id = ? AND player_uuid = ?", objectiveID, playerUUID).
				Update("contribution", gorm.Expr("contribution + ?", amount)).Error; err != nil {
				return err
			}
		}

		// Increment in place and guard on ACTIVE so concurrent writers under
		// the multi-writer backend serialize on the row lock instead of
		// overwriting each other's reads.
		res := tx.Model(&model.Objective{}).
			Where("id = ? AND state = ?", objectiveID, model.ObjectiveActive).
			Update("progress", gorm.Expr("progress + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrObjectiveNotActive
		}

		if err := tx.First(&obj, objectiveID).Error; err != nil {
			return err
		}
		if obj.Progress >= obj.Goal {
			// Guarded flip: whoever sees ACTIVE here completes the
			// objective; everyone else gets zero rows and no payout.
			res := tx.Model(&model.Objective{}).
				Where("id = ? AND state = ?", objectiveID, model.ObjectiveActive).
				Updates(map[string]interface{}{
					"state":        model.ObjectiveCompleted,
					"completed_at": now.UnixMilli(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				obj.State = model.ObjectiveCompleted
				obj.CompletedAt = now.UnixMilli()
				completed = true
			}
		}
		result = obj
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		svc.payout(ctx, &result)
		svc.audit.Record(audit.Entry{
			PlayerUUID: &playerUUID,
			EventType:  model.AuditObjectiveComplete,
			Details: map[string]interface{}{
				"objective_id": result.ID, "progress": result.Progress,
			},
		})
	}
	return &result, nil
}

// Expire forces an active objective to EXPIRED with no payout.
func (svc *Service) Expire(ctx context.Context, objectiveID int64) error {
	res := svc.gw.DB().WithContext(ctx).Model(&model.Objective{}).
		Where("id = ? AND state = ?", objectiveID, model.ObjectiveActive).
		Update("state", model.ObjectiveExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		obj, err := svc.Get(ctx, objectiveID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: state %s", ErrObjectiveNotActive, obj.State)
	}
	svc.audit.Record(audit.Entry{
		EventType: model.AuditObjectiveExpire,
		Details:   map[string]interface{}{"objective_id": objectiveID},
	})
	return nil
}

// ExpireStale expires every active objective whose deadline passed.
// Scheduler-driven; the guarded update makes re-runs no-ops.
func (svc *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := svc.gw.DB().WithContext(ctx).Model(&model.Objective{}).
		Where("state = ? AND expires_at <= ?", model.ObjectiveActive, now.UnixMilli()).
		Update("state", model.ObjectiveExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("expired stale objectives", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// payout splits the reward pool among contributors in proportion to their
// contribution. Each share rounds down to 0.01; whatever rounding leaves
// over goes to the top contributor (ties broken by lowest player id). The
// per-player daily reward cap trims individual payments, never the split.
func (svc *Service) payout(ctx context.Context, obj *model.Objective) {
	parts, err := svc.Participants(ctx, obj.ID)
	if err != nil {
		svc.logger.Error("objective payout aborted", zap.Int64("objective_id", obj.ID), zap.Error(err))
		return
	}
	if len(parts) == 0 || obj.Progress <= 0 {
		return
	}

	progress := decimal.NewFromInt(int64(obj.Progress))
	shares := make([]decimal.Decimal, len(parts))
	distributed := decimal.Zero
	for i, p := range parts {
		contribution := decimal.NewFromInt(int64(p.Contribution))
		shares[i] = obj.Reward.Mul(contribution).Div(progress).RoundDown(2)
		distributed = distributed.Add(shares[i])
	}

	// Participants is ordered contribution DESC, player_uuid ASC, so index 0
	// is the residual recipient.
	residual := obj.Reward.Sub(distributed)
	if residual.IsPositive() {
		shares[0] = shares[0].Add(residual)
	}

	for i, p := range parts {
		amount := svc.capDailyReward(ctx, p.PlayerUUID, shares[i])
		if !amount.IsPositive() {
			svc.logger.Debug("objective reward suppressed by daily cap",
				zap.String("player", p.PlayerUUID), zap.Int64("objective_id", obj.ID))
			continue
		}
		err := svc.ledger.Deposit(ctx, ledger.PlayerAccount(p.PlayerUUID), amount,
			model.TxObjectiveReward, fmt.Sprintf("objective %d reward", obj.ID))
		if err != nil {
			// One failed payment must not starve the remaining participants.
			svc.logger.Error("objective reward payment failed",
				zap.String("player", p.PlayerUUID),
				zap.Int64("objective_id", obj.ID), zap.Error(err))
		}
	}
}

// capDailyReward trims the share to the player's remaining daily allowance.
func (svc *Service) capDailyReward(ctx context.Context, playerUUID string, share decimal.Decimal) decimal.Decimal {
	limit := decimal.NewFromFloat(svc.cfg.DailyRewardCap)
	if limit.LessThanOrEqual(decimal.Zero) {
		return share
	}
	since := svc.clock().Add(-rewardWindow).UnixMilli()
	var out struct {
		Total decimal.Decimal
	}
	err := svc.gw.DB().WithContext(ctx).Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("to_id = ? AND type = ? AND timestamp > ?",
			playerUUID, model.TxObjectiveReward, since).
		Scan(&out).Error
	if err != nil {
		svc.logger.Error("daily reward lookup failed", zap.Error(err))
		return share
	}
	remaining := limit.Sub(out.Total)
	if share.GreaterThan(remaining) {
		return remaining
	}
	return share
}
