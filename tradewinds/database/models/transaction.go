package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TransactionKind string

const (
	TxKindWork        TransactionKind = "work"
	TxKindDaily       TransactionKind = "daily"
	TxKindTransfer    TransactionKind = "transfer"
	TxKindTransferFee TransactionKind = "transfer_fee"
	TxKindTax         TransactionKind = "tax"
	TxKindGrant       TransactionKind = "grant"
	TxKindDonation    TransactionKind = "donation"
	TxKindInfluence   TransactionKind = "influence"
	TxKindDrift       TransactionKind = "drift"
	TxKindPassive     TransactionKind = "passive_income"
	TxKindEvent       TransactionKind = "event"
	TxKindPolicy      TransactionKind = "policy_change"
	TxKindAdminSpend  TransactionKind = "admin_spend"
)

// Transaction is one append-only audit row. A nil FromUser or ToUser
// means the guild treasury stood on that side of the movement.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:tx"`

	ID          int64           `bun:"id,pk,autoincrement"`
	Reference   string          `bun:"reference,notnull,unique"`
	GuildID     string          `bun:"guild_id,notnull"`
	FromUser    *string         `bun:"from_user"`
	ToUser      *string         `bun:"to_user"`
	Amount      int64           `bun:"amount,notnull"`
	Kind        TransactionKind `bun:"kind,notnull"`
	Description string          `bun:"description"`
	Timestamp   time.Time       `bun:"timestamp,notnull"`
}
