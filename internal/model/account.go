package model

import "github.com/shopspring/decimal"

// AccountRow is the persisted state of one account.
type AccountRow struct {
	ID       string
	Name     string
	WalletID string // opaque, not enforced
	Region   string // ISO 3166 alpha-2, fixed at creation
	Seq      int    // last transaction sequence number, 0 = none
	Balance  decimal.Decimal
}

// WalletRow is the persisted state of one wallet. Its accounts are found
// through AccountRow.WalletID.
type WalletRow struct {
	ID     string
	Region string
}
