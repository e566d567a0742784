package model

import "github.com/shopspring/decimal"

// MarketListing is an item offered for sale on the player market.
type MarketListing struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerUUID string          `gorm:"index:idx_listing_seller;size:36;not null" json:"seller_uuid"`
	ItemData   string          `gorm:"type:text;not null" json:"item_data"`
	Price      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	ListedAt   int64           `gorm:"autoCreateTime:milli" json:"listed_at"`
	ExpiresAt  int64           `gorm:"index:idx_listing_expires" json:"expires_at"`
	Sold       bool            `gorm:"not null;default:false" json:"sold"`
}

func (MarketListing) TableName() string { return "market_listings" }
