package model

// SeenOutpoint records a ledger output that has already been credited.
// Rows are insert-once and never deleted; the primary key on Outpoint is
// what guarantees at-most-once crediting across restarts.
type SeenOutpoint struct {
	Outpoint    string `db:"outpoint" json:"outpoint"`
	AmountSompi int64  `db:"amount_sompi" json:"amountSompi"`
	SeenAt      int64  `db:"seen_at" json:"seenAt"`
}
