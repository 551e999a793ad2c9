// Package service defines the interfaces for all external collaborators.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

// Ledger is the budgeting service that owns accounts, categories, payees and
// transactions. Transaction creation is idempotent server-side on the
// submitted key.
type Ledger interface {
	Accounts(ctx context.Context) ([]model.Account, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Payees(ctx context.Context) ([]model.Payee, error)
	CreateAccount(ctx context.Context, name string) (*model.Account, error)
	CreateTransaction(ctx context.Context, txn NewTransaction) (*CreatedTransaction, error)
}

// NewTransaction is one ledger entry to create. AmountMinor is signed minor
// units: inflows positive, outflows negative. Entries are always created
// unapproved and uncleared so a human reviews them.
type NewTransaction struct {
	Date        time.Time
	AccountID   string
	PayeeID     string
	PayeeName   string
	CategoryID  string
	Memo        string
	Key         string
	AmountMinor int64
}

// CreatedTransaction reports the outcome of a create call. Duplicate is true
// when the ledger recognized the key and kept its existing entry.
type CreatedTransaction struct {
	ID        string
	Duplicate bool
}

// ExtractionRequest carries a message plus the directory context the
// classifier needs to pick matching category and payee names.
type ExtractionRequest struct {
	Sender     string
	Body       string
	LocalTime  string
	Categories []string
	Payees     []string
}

// Extractor classifies a message and extracts its transaction fields.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (model.Extraction, error)
}

// CorrelationStore persists the short-lived primary-transaction records used
// to attach fees from follow-up messages.
type CorrelationStore interface {
	Store(ctx context.Context, rec *model.CorrelationRecord) error
	FindMatch(ctx context.Context, sender string, amount *decimal.Decimal, window time.Duration) (*model.CorrelationRecord, error)
	MarkFeeApplied(ctx context.Context, id string) error
	LinkCorrelation(ctx context.Context, followUpID, primaryID string) error
	SweepOlderThan(ctx context.Context, retention time.Duration) (int64, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
