package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorrelationRecord is the short-lived working memory that lets a follow-up
// message complete the fee computation of an earlier primary transaction.
// Created when a primary transaction posts, mutated once when a follow-up is
// correlated to it, and deleted by the retention sweep. Not an audit log.
type CorrelationRecord struct {
	ReceivedAt    time.Time
	CreatedAt     time.Time
	Amount        *decimal.Decimal
	Direction     *Direction
	ID            string
	Sender        string
	Body          string
	EndingHint    string
	TransactionID string
	AccountID     string
	Key           string
	MatchedID     string
	IsPrimary     bool
	FeeApplied    bool
}
