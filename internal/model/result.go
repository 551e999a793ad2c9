package model

import "github.com/shopspring/decimal"

// Status is the terminal state of one pipeline run.
type Status string

// Terminal states.
const (
	StatusPosted  Status = "posted"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FeeKind identifies which kind of fee entry a sub-result describes.
type FeeKind string

// Fee entry kinds.
const (
	FeeTransfer     FeeKind = "transfer"
	FeeEstimated    FeeKind = "estimated"
	FeeNotification FeeKind = "notification"
)

// FeeOutcome is the observable sub-result of one best-effort fee posting.
// A failed fee posting never rolls back the primary entry; it is surfaced
// here so an operator can reconcile the missing fee by hand.
type FeeOutcome struct {
	Kind          FeeKind         `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Key           string          `json:"key"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Error         string          `json:"error,omitempty"`
	Posted        bool            `json:"posted"`
}

// Result aggregates everything one pipeline run decided, for logging and
// debugging rather than further automation.
type Result struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Direction     *Direction       `json:"direction,omitempty"`
	Status        Status           `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Routing       RoutingDecision  `json:"routing"`
	Category      string           `json:"category,omitempty"`
	Payee         string           `json:"payee,omitempty"`
	Memo          string           `json:"memo,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Key           string           `json:"key,omitempty"`
	Fees          []FeeOutcome     `json:"fees,omitempty"`
	PayeeMatched  bool             `json:"payee_matched"`
}
