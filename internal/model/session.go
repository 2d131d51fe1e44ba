package model

// Session is a payment-metered access window. A client pays the session's
// expected amount (base price plus a small random tag) to the shared receiver
// address; each matched payment extends PaidUntil by CheckpointSeconds.
type Session struct {
	ID                  string  `db:"id" json:"id"`
	ReceiverAddress     string  `db:"receiver_address" json:"receiverAddress"`
	ExpectedAmountSompi int64   `db:"expected_amount_sompi" json:"expectedAmountSompi"`
	CheckpointSeconds   int     `db:"checkpoint_seconds" json:"checkpointSeconds"`
	RateKasPerMinute    float64 `db:"rate_kas_per_minute" json:"rateKasPerMinute"`
	CreatedAt           int64   `db:"created_at" json:"createdAt"`
	PaidUntil           int64   `db:"paid_until" json:"paidUntil"`
	LastPaymentOutpoint *string `db:"last_payment_outpoint" json:"lastPaymentOutpoint,omitempty"`
}

type CreateSessionParams struct {
	ReceiverAddress     string
	ExpectedAmountSompi int64
	CheckpointSeconds   int
	RateKasPerMinute    float64
	CreatedAt           int64
}
