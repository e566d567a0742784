package model

import "github.com/shopspring/decimal"

// TransactionType tags what a ledger entry paid for.
type TransactionType string

const (
	TxPlayerToPlayer   TransactionType = "PLAYER_TO_PLAYER"
	TxPlayerToGuild    TransactionType = "PLAYER_TO_GUILD"
	TxGuildToPlayer    TransactionType = "GUILD_TO_PLAYER"
	TxSystemReward     TransactionType = "SYSTEM_REWARD"
	TxSystemPenalty    TransactionType = "SYSTEM_PENALTY"
	TxTeamSwitchFee    TransactionType = "TEAM_SWITCH_FEE"
	TxGuildCreationFee TransactionType = "GUILD_CREATION_FEE"
	TxNexusBuildCost   TransactionType = "NEXUS_BUILD_COST"
	TxNexusUpgradeCost TransactionType = "NEXUS_UPGRADE_COST"
	TxShieldCost       TransactionType = "SHIELD_ACTIVATION_COST"
	TxMarketListingFee TransactionType = "MARKET_LISTING_FEE"
	TxMarketSaleTax    TransactionType = "MARKET_SALE_TAX"
	TxMarketPurchase   TransactionType = "MARKET_PURCHASE"
	TxObjectiveReward  TransactionType = "OBJECTIVE_REWARD"
)

// Transaction is one append-only ledger entry. Rows are never updated or
// deleted: replaying all rows touching an account in timestamp order must
// reproduce its current balance.
//
// FromID / ToID are account identifiers (player UUID or "guild:<id>").
// At most one side may be nil; a nil side marks a system source or sink.
type Transaction struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	FromID    *string         `gorm:"index:idx_tx_from;size:42" json:"from_id"`
	ToID      *string         `gorm:"index:idx_tx_to;size:42" json:"to_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Type      TransactionType `gorm:"size:30;not null" json:"type"`
	Reason    string          `gorm:"type:text" json:"reason"`
	Timestamp int64           `gorm:"index:idx_tx_timestamp;not null" json:"timestamp"`
}

func (Transaction) TableName() string { return "transactions" }
