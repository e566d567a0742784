package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexuswars/server/audit"
	"github.com/nexuswars/server/cache"
	"github.com/nexuswars/server/config"
	"github.com/nexuswars/server/db"
	"github.com/nexuswars/server/game/ledger"
	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrListingNotFound means the listing does not exist or is gone.
	ErrListingNotFound = errors.New("market: listing not found")
	// ErrListingUnavailable means the listing is sold or expired.
	ErrListingUnavailable = errors.New("market: listing no longer available")
	// ErrOwnListing rejects buying your own listing.
	ErrOwnListing = errors.New("market: cannot buy your own listing")
	// ErrPurchaseLocked means another purchase of the same listing is in flight.
	ErrPurchaseLocked = errors.New("market: purchase in progress, try again")
	// ErrInvalidPrice rejects non-positive prices.
	ErrInvalidPrice = errors.New("market: price must be positive")
)

const purchaseLockTTL = 10 * time.Second

// Service runs the player market. Listing charges an up-front fee; a sale
// pays the seller the price minus the sale tax. The purchase path takes a
// cache lock per listing so two buyers cannot both win the same item.
type Service struct {
	gw     *db.Gateway
	ledger *ledger.Service
	cache  cache.Cache
	audit  *audit.Service
	logger *zap.Logger
	clock  func() time.Time

	listingFeePct decimal.Decimal
	saleTaxPct    decimal.Decimal
	lifetime      time.Duration
}

func NewService(gw *db.Gateway, ledgerSvc *ledger.Service, c cache.Cache, auditSvc *audit.Service, cfg config.MarketConfig, logger *zap.Logger) *Service {
	return &Service{
		gw:            gw,
		ledger:        ledgerSvc,
		cache:         c,
		audit:         auditSvc,
		logger:        logger,
		clock:         time.Now,
		listingFeePct: decimal.NewFromFloat(cfg.ListingFeePercent),
		saleTaxPct:    decimal.NewFromFloat(cfg.SaleTaxPercent),
		lifetime:      cfg.ListingLifetime,
	}
}

// ListingFee is the up-front cost of listing at the given price.
func (svc *Service) ListingFee(price decimal.Decimal) decimal.Decimal {
	return price.Mul(svc.listingFeePct).Div(decimal.NewFromInt(100)).Round(2)
}

// SaleTax is the cut withheld from the seller on a sale.
func (svc *Service) SaleTax(price decimal.Decimal) decimal.Decimal {
	return price.Mul(svc.saleTaxPct).Div(decimal.NewFromInt(100)).Round(2)
}

// List puts an item up for sale, charging the listing fee up front.
func (svc *Service) List(ctx context.Context, sellerUUID, itemData string, price decimal.Decimal) (*model.MarketListing, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrice
	}
	fee := svc.ListingFee(price)
	if fee.IsPositive() {
		if err := svc.ledger.Withdraw(ctx, ledger.PlayerAccount(sellerUUID), fee,
			model.TxMarketListingFee, "market listing fee"); err != nil {
			return nil, err
		}
	}

	listing := &model.MarketListing{
		SellerUUID: sellerUUID,
		ItemData:   itemData,
		Price:      price,
		ExpiresAt:  svc.clock().Add(svc.lifetime).UnixMilli(),
	}
	if err := svc.gw.DB().WithContext(ctx).Create(listing).Error; err != nil {
		return nil, err
	}

	svc.audit.Record(audit.Entry{
		PlayerUUID: &sellerUUID,
		EventType:  model.AuditMarketList,
		Details: map[string]interface{}{
			"listing_id": listing.ID, "price": price.StringFixed(2),
		},
	})
	return listing, nil
}

// Buy purchases a listing. The buyer pays the full price; the seller
// receives the price minus the sale tax as two ledger rows.
func (svc *Service) Buy(ctx context.Context, listingID int64, buyerUUID string) (*model.MarketListing, error) {
	lockKey := fmt.Sprintf("market:lock:%d", listingID)
	locked, err := svc.cache.SetNX(ctx, lockKey, buyerUUID, purchaseLockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrPurchaseLocked
	}
	defer func() {
		if derr := svc.cache.Del(ctx, lockKey); derr != nil {
			svc.logger.Warn("market lock release failed", zap.Error(derr))
		}
	}()

	var listing model.MarketListing
	if err := svc.gw.DB().WithContext(ctx).First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if listing.Sold || svc.clock().UnixMilli() >= listing.ExpiresAt {
		return nil, ErrListingUnavailable
	}
	if listing.SellerUUID == buyerUUID {
		return nil, ErrOwnListing
	}

	tax := svc.SaleTax(listing.Price)
	proceeds := listing.Price.Sub(tax)

	// Buyer pays the seller in full, then the tax is withheld from the
	// seller. Both legs are ledger rows; if the second fails the first has
	// still transferred and the failure is surfaced for manual reversal.
	if err := svc.ledger.Transfer(ctx,
		ledger.PlayerAccount(buyerUUID), ledger.PlayerAccount(listing.SellerUUID),
		listing.Price, model.TxMarketPurchase,
		fmt.Sprintf("market purchase %d", listingID)); err != nil {
		return nil, err
	}
	if tax.IsPositive() {
		if err := svc.ledger.Withdraw(ctx, ledger.PlayerAccount(listing.SellerUUID),
			tax, model.TxMarketSaleTax,
			fmt.Sprintf("sale tax for listing %d", listingID)); err != nil {
			svc.logger.Error("sale tax collection failed",
				zap.Int64("listing_id", listingID), zap.Error(err))
		}
	}

	res := svc.gw.DB().WithContext(ctx).Model(&model.MarketListing{}).
		Where("id = ? AND sold = ?", listingID, false).
		Update("sold", true)
	if res.Error != nil {
		return nil, res.Error
	}

	svc.audit.Record(audit.Entry{
		PlayerUUID: &buyerUUID,
		EventType:  model.AuditMarketBuy,
		Details: map[string]interface{}{
			"listing_id": listingID,
			"seller":     listing.SellerUUID,
			"price":      listing.Price.StringFixed(2),
			"tax":        tax.StringFixed(2),
			"proceeds":   proceeds.StringFixed(2),
		},
	})
	listing.Sold = true
	return &listing, nil
}

// Active lists unsold, unexpired listings, newest first.
func (svc *Service) Active(ctx context.Context, limit int) ([]model.MarketListing, error) {
	var listings []model.MarketListing
	err := svc.gw.DB().WithContext(ctx).
		Where("sold = ? AND expires_at > ?", false, svc.clock().UnixMilli()).
		Order("listed_at DESC").Limit(limit).Find(&listings).Error
	return listings, err
}

// BySeller lists a player's own listings, including sold ones.
func (svc *Service) BySeller(ctx context.Context, sellerUUID string) ([]model.MarketListing, error) {
	var listings []model.MarketListing
	err := svc.gw.DB().WithContext(ctx).
		Where("seller_uuid = ?", sellerUUID).
		Order("listed_at DESC").Find(&listings).Error
	return listings, err
}

// ExpireStale deletes unsold listings whose lifetime passed. The listing fee
// is not refunded. Scheduler-driven and idempotent.
func (svc *Service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := svc.gw.DB().WithContext(ctx).
		Where("sold = ? AND expires_at <= ?", false, now.UnixMilli()).
		Delete(&model.MarketListing{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		svc.logger.Info("expired market listings", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
