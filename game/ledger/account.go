package ledger

import (
	"fmt"

	"github.com/nexuswars/server/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type accountKind int

const (
	kindPlayer accountKind = iota
	kindGuild
)

// Account identifies a balance holder: a player wallet or a guild cofre.
// The zero value is not a valid account; use PlayerAccount or GuildAccount.
type Account struct {
	kind       accountKind
	playerUUID string
	guildID    int64
}

// PlayerAccount references a player wallet by UUID.
func PlayerAccount(uuid string) Account {
	return Account{kind: kindPlayer, playerUUID: uuid}
}

// GuildAccount references a guild cofre by guild id.
func GuildAccount(id int64) Account {
	return Account{kind: kindGuild, guildID: id}
}

// IsPlayer reports whether the account is a player wallet.
func (a Account) IsPlayer() bool { return a.kind == kindPlayer }

// Ref is the identifier persisted in transaction rows:
// the player UUID, or "guild:<id>" for a cofre.
func (a Account) Ref() string {
	if a.kind == kindPlayer {
		return a.playerUUID
	}
	return fmt.Sprintf("guild:%d", a.guildID)
}

// PlayerUUID returns the wallet owner's UUID, or "" for guild accounts.
func (a Account) PlayerUUID() string {
	if a.kind == kindPlayer {
		return a.playerUUID
	}
	return ""
}

func (a Account) String() string { return a.Ref() }

// debitQuery scopes tx to the account's balance row for a guarded debit.
// The frozen and balance guards live in the WHERE clause so the check and
// the update are one atomic statement under both backend modes.
func (a Account) debitQuery(tx *gorm.DB, amount decimal.Decimal) *gorm.DB {
	if a.kind == kindPlayer {
		return tx.Model(&model.Player{}).
			Where("uuid = ? AND economy_frozen = ? AND balance >= ?", a.playerUUID, false, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
	}
	return tx.Model(&model.Guild{}).
		Where("id = ? AND cofre_frozen = ? AND cofre_balance >= ?", a.guildID, false, amount).
		Update("cofre_balance", gorm.Expr("cofre_balance - ?", amount))
}

// creditQuery scopes tx to the account's balance row for a guarded credit.
// headroom is maxBalance - amount: the credit only applies while it cannot
// push the balance over the cap.
func (a Account) creditQuery(tx *gorm.DB, amount, headroom decimal.Decimal, allowFrozen bool) *gorm.DB {
	if a.kind == kindPlayer {
		q := tx.Model(&model.Player{}).
			Where("uuid = ? AND balance <= ?", a.playerUUID, headroom)
		if !allowFrozen {
			q = q.Where("economy_frozen = ?", false)
		}
		return q.Update("balance", gorm.Expr("balance + ?", amount))
	}
	q := tx.Model(&model.Guild{}).
		Where("id = ? AND cofre_balance <= ?", a.guildID, headroom)
	if !allowFrozen {
		q = q.Where("cofre_frozen = ?", false)
	}
	return q.Update("cofre_balance", gorm.Expr("cofre_balance + ?", amount))
}

// load fetches the account's current balance and frozen flag.
func (a Account) load(tx *gorm.DB) (balance decimal.Decimal, frozen bool, err error) {
	if a.kind == kindPlayer {
		var p model.Player
		if err = tx.Select("balance", "economy_frozen").
			Where("uuid = ?", a.playerUUID).First(&p).Error; err != nil {
			return
		}
		return p.Balance, p.EconomyFrozen, nil
	}
	var g model.Guild
	if err = tx.Select("cofre_balance", "cofre_frozen").
		Where("id = ?", a.guildID).First(&g).Error; err != nil {
		return
	}
	return g.CofreBalance, g.CofreFrozen, nil
}

func (a Account) setFrozen(tx *gorm.DB, frozen bool) *gorm.DB {
	if a.kind == kindPlayer {
		return tx.Model(&model.Player{}).
			Where("uuid = ?", a.playerUUID).Update("economy_frozen", frozen)
	}
	return tx.Model(&model.Guild{}).
		Where("id = ?", a.guildID).Update("cofre_frozen", frozen)
}
