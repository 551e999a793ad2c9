// Package engine implements the ingestion pipeline: the sequence of
// idempotent, order-sensitive decisions that turn one noisy SMS into zero or
// more ledger entries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/dedup"
	"github.com/lusakalabs/kwachaflow/internal/directory"
	"github.com/lusakalabs/kwachaflow/internal/fees"
	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/router"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

// IngestionEngine orchestrates one pipeline run per inbound message.
type IngestionEngine struct {
	ledger       service.Ledger
	extractor    service.Extractor
	correlations service.CorrelationStore
	directory    *directory.Cache
	router       *router.Router
	fees         *fees.Table
	logger       *slog.Logger
	window       time.Duration
	memoLimit    int
}

// Config holds configuration options for the ingestion engine.
type Config struct {
	// CorrelationWindow bounds how old a primary record may be for a
	// follow-up message to match it.
	CorrelationWindow time.Duration
	// MemoLimit truncates memos to the ledger's field size.
	MemoLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CorrelationWindow: 5 * time.Minute,
		MemoLimit:         200,
	}
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Ledger       service.Ledger
	Extractor    service.Extractor
	Correlations service.CorrelationStore
	Directory    *directory.Cache
	Router       *router.Router
	Fees         *fees.Table
	Logger       *slog.Logger
}

// New creates an ingestion engine with the default configuration.
func New(deps Deps) *IngestionEngine {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates an ingestion engine with custom configuration.
func NewWithConfig(deps Deps, cfg Config) *IngestionEngine {
	if cfg.CorrelationWindow <= 0 {
		cfg.CorrelationWindow = 5 * time.Minute
	}
	if cfg.MemoLimit <= 0 {
		cfg.MemoLimit = 200
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionEngine{
		ledger:       deps.Ledger,
		extractor:    deps.Extractor,
		correlations: deps.Correlations,
		directory:    deps.Directory,
		router:       deps.Router,
		fees:         deps.Fees,
		logger:       logger,
		window:       cfg.CorrelationWindow,
		memoLimit:    cfg.MemoLimit,
	}
}

// Process runs the state machine for one message. The returned Result always
// describes the terminal state; the error is non-nil only for failed runs.
// Re-delivering the identical message reproduces identical idempotency keys
// at every step, so the ledger's own dedup rejects the repeats.
func (e *IngestionEngine) Process(ctx context.Context, msg model.Message) (*model.Result, error) {
	result := &model.Result{}

	if err := e.directory.EnsureFresh(ctx, e.ledger); err != nil {
		return e.fail(result, "directory refresh failed", err)
	}

	extraction, err := e.extractor.Extract(ctx, service.ExtractionRequest{
		Sender:     msg.Sender,
		Body:       msg.Body,
		LocalTime:  msg.ReceivedAt.Format("Mon 15:04"),
		Categories: e.directory.CategoryNames(),
		Payees:     e.directory.PayeeNames(),
	})
	if err != nil {
		return e.fail(result, "classification error", err)
	}

	result.Amount = extraction.Amount
	result.Direction = extraction.Direction

	if !extraction.IsTransaction {
		e.logger.Info("message is not a transaction",
			"sender", msg.Sender,
			"reason", extraction.Reason)
		return e.skip(result, "not a transaction")
	}

	if extraction.IsFollowUp {
		return e.processFollowUp(ctx, msg, extraction, result)
	}

	if extraction.Amount == nil || extraction.Direction == nil {
		return e.fail(result, "incomplete extraction", nil)
	}

	routing := e.router.Resolve(ctx, msg.Body, msg.Sender, e.ledger)
	result.Routing = routing
	if routing.AccountID == "" {
		return e.fail(result, "no account", nil)
	}

	categoryID := e.resolveCategory(extraction, result)
	payeeID, payeeMatched := e.resolvePayee(extraction, result)
	memo := e.buildMemo(msg, extraction, payeeMatched)
	result.Memo = memo

	amountMinor := model.MinorUnits(*extraction.Amount)
	key := dedup.Key(msg.Sender, msg.ReceivedAt, amountMinor, msg.Body)
	result.Key = key

	signed := amountMinor
	if *extraction.Direction == model.DirectionOutflow {
		signed = -signed
	}

	created, err := e.ledger.CreateTransaction(ctx, service.NewTransaction{
		Date:        msg.ReceivedAt,
		AccountID:   routing.AccountID,
		AmountMinor: signed,
		PayeeID:     payeeID,
		CategoryID:  categoryID,
		Memo:        memo,
		Key:         key,
	})
	if err != nil {
		return e.fail(result, "ledger error", err)
	}
	result.TransactionID = created.ID
	if created.Duplicate {
		e.logger.Info("ledger deduplicated primary entry", "key", key)
	}

	// Correlation context is best-effort: losing it only means a later
	// follow-up cannot attach its fee.
	record := &model.CorrelationRecord{
		Sender:        msg.Sender,
		Body:          msg.Body,
		ReceivedAt:    msg.ReceivedAt,
		Amount:        extraction.Amount,
		Direction:     extraction.Direction,
		EndingHint:    router.EndingHint(msg.Body),
		TransactionID: created.ID,
		AccountID:     routing.AccountID,
		Key:           key,
		IsPrimary:     true,
	}
	if storeErr := e.correlations.Store(ctx, record); storeErr != nil {
		e.logger.Warn("failed to persist correlation context",
			"sender", msg.Sender,
			"error", storeErr)
	}

	e.postFees(ctx, msg, extraction, routing, key, result)

	result.Status = model.StatusPosted
	e.logger.Info("message posted",
		"sender", msg.Sender,
		"account", routing.AccountName,
		"amount", extraction.Amount,
		"direction", *extraction.Direction,
		"transaction_id", created.ID,
		"fees", len(result.Fees))

	return result, nil
}

// processFollowUp handles a message that completes an earlier primary
// transaction rather than reporting a new one. At most one fee entry comes
// out of it; the principal amount is never re-posted.
func (e *IngestionEngine) processFollowUp(ctx context.Context, msg model.Message, extraction model.Extraction, result *model.Result) (*model.Result, error) {
	primary, err := e.correlations.FindMatch(ctx, msg.Sender, extraction.Amount, e.window)
	if err != nil {
		e.logger.Error("correlation lookup failed", "sender", msg.Sender, "error", err)
	}
	if primary == nil {
		return e.skip(result, "no primary to correlate")
	}

	result.Routing = model.RoutingDecision{
		AccountID: primary.AccountID,
	}

	transferType := transferTypeFor(extraction, msg.Body)
	if !transferType.Known() || primary.Amount == nil {
		return e.skip(result, "correlated, no fee due")
	}

	provider := fees.SenderProvider(msg.Sender)
	quote := e.fees.TransferFee(provider, transferType, *primary.Amount)
	if !quote.Configured || quote.Fee == nil || !quote.Fee.IsPositive() {
		return e.skip(result, "correlated, no fee due")
	}

	feeKey := dedup.Rekey(primary.Key, dedup.KindTransferFee)
	memo := fmt.Sprintf("%s transfer fee", transferType)
	outcome := e.postFee(ctx, model.FeeTransfer, feeKey, primary.AccountID, primary.ReceivedAt, *quote.Fee, quote.Payee, quote.Category, memo)
	result.Fees = append(result.Fees, outcome)
	if !outcome.Posted {
		return e.fail(result, "ledger error", errors.New(outcome.Error))
	}

	followUp := &model.CorrelationRecord{
		Sender:     msg.Sender,
		Body:       msg.Body,
		ReceivedAt: msg.ReceivedAt,
		Amount:     extraction.Amount,
		Direction:  extraction.Direction,
		Key:        feeKey,
	}
	if storeErr := e.correlations.Store(ctx, followUp); storeErr != nil {
		e.logger.Warn("failed to store follow-up record", "error", storeErr)
	} else if linkErr := e.correlations.LinkCorrelation(ctx, followUp.ID, primary.ID); linkErr != nil {
		e.logger.Warn("failed to link correlation", "error", linkErr)
	}
	if markErr := e.correlations.MarkFeeApplied(ctx, primary.ID); markErr != nil {
		e.logger.Warn("failed to mark fee applied", "primary_id", primary.ID, "error", markErr)
	}

	result.Status = model.StatusPosted
	e.logger.Info("follow-up completed primary transaction",
		"sender", msg.Sender,
		"primary_id", primary.ID,
		"fee", quote.Fee,
		"transfer_type", transferType,
		"recipient_network", fees.RecipientNetwork(msg.Body))

	return result, nil
}

// postFees computes and posts the fee entries for a freshly posted primary.
// Each posting is independently best-effort: a failure is logged and surfaced
// in the result, never rolled back or retried.
func (e *IngestionEngine) postFees(ctx context.Context, msg model.Message, extraction model.Extraction, routing model.RoutingDecision, key string, result *model.Result) {
	provider := fees.SenderProvider(msg.Sender)
	outflow := *extraction.Direction == model.DirectionOutflow

	feeComputed := false
	if outflow {
		transferType := transferTypeFor(extraction, msg.Body)
		if transferType.Known() {
			quote := e.fees.TransferFee(provider, transferType, *extraction.Amount)
			switch {
			case !quote.Configured:
				e.logger.Debug("no fee schedule configured",
					"provider", provider,
					"transfer_type", transferType)
			case quote.Fee == nil:
				e.logger.Warn("amount outside all fee tiers",
					"provider", provider,
					"transfer_type", transferType,
					"amount", extraction.Amount)
			case quote.Fee.IsZero():
				feeComputed = true
			default:
				feeComputed = true
				feeKey := dedup.Rekey(key, dedup.KindTransferFee)
				memo := fmt.Sprintf("%s transfer fee", transferType)
				outcome := e.postFee(ctx, model.FeeTransfer, feeKey, routing.AccountID, msg.ReceivedAt, *quote.Fee, quote.Payee, quote.Category, memo)
				result.Fees = append(result.Fees, outcome)
			}
		}
	}

	// Some bank senders never state a transfer type; a configured estimate
	// stands in until a human corrects it.
	if outflow && !feeComputed {
		if quote := e.fees.EstimatedFee(provider); quote.Configured && quote.Fee != nil && quote.Fee.IsPositive() {
			feeKey := dedup.Rekey(key, dedup.KindEstimatedFee)
			memo := fmt.Sprintf("Estimated %s transfer fee; verify and correct manually", provider)
			outcome := e.postFee(ctx, model.FeeEstimated, feeKey, routing.AccountID, msg.ReceivedAt, *quote.Fee, quote.Payee, quote.Category, memo)
			result.Fees = append(result.Fees, outcome)
		}
	}

	if quote := e.fees.NotificationFee(provider); quote.Configured && quote.Fee != nil && quote.Fee.IsPositive() {
		feeKey := dedup.Rekey(key, dedup.KindNotificationFee)
		memo := fmt.Sprintf("%s SMS notification fee", provider)
		outcome := e.postFee(ctx, model.FeeNotification, feeKey, routing.AccountID, msg.ReceivedAt, *quote.Fee, quote.Payee, quote.Category, memo)
		result.Fees = append(result.Fees, outcome)
	}
}

// postFee submits one fee entry. Fee amounts are always posted as outflows.
func (e *IngestionEngine) postFee(ctx context.Context, kind model.FeeKind, key, accountID string, date time.Time, fee decimal.Decimal, payeeName, categoryName, memo string) model.FeeOutcome {
	outcome := model.FeeOutcome{
		Kind:   kind,
		Amount: fee,
		Key:    key,
	}

	txn := service.NewTransaction{
		Date:        date,
		AccountID:   accountID,
		AmountMinor: -model.MinorUnits(fee),
		Memo:        memo,
		Key:         key,
	}
	if payeeID, ok := e.directory.PayeeID(payeeName); ok {
		txn.PayeeID = payeeID
	} else if payeeName != "" {
		txn.PayeeName = payeeName
	}
	if categoryID, ok := e.directory.CategoryID(categoryName); ok {
		txn.CategoryID = categoryID
	}

	created, err := e.ledger.CreateTransaction(ctx, txn)
	if err != nil {
		outcome.Error = err.Error()
		e.logger.Error("fee posting failed",
			"kind", kind,
			"key", key,
			"error", err)
		return outcome
	}

	outcome.Posted = true
	outcome.TransactionID = created.ID
	return outcome
}

// resolveCategory maps the extracted category name to a directory id. An
// unmatched name is dropped, never created.
func (e *IngestionEngine) resolveCategory(extraction model.Extraction, result *model.Result) string {
	if extraction.Category == "" {
		return ""
	}
	if id, ok := e.directory.CategoryID(extraction.Category); ok {
		result.Category = extraction.Category
		return id
	}
	e.logger.Warn("extracted category not in directory, dropping",
		"category", extraction.Category)
	return ""
}

// resolvePayee maps the extracted payee name to a directory id. An unmatched
// name leaves the transaction without a payee reference; the name survives
// only in the memo for the human reviewer.
func (e *IngestionEngine) resolvePayee(extraction model.Extraction, result *model.Result) (string, bool) {
	if extraction.Payee == "" {
		return "", false
	}
	result.Payee = extraction.Payee
	payee, ok := e.directory.PayeeByName(extraction.Payee)
	if !ok {
		return "", false
	}
	result.Payee = payee.Name
	result.PayeeMatched = true
	return payee.ID, true
}

func (e *IngestionEngine) buildMemo(msg model.Message, extraction model.Extraction, payeeMatched bool) string {
	memo := strings.TrimSpace(extraction.Memo)
	if memo == "" {
		memo = strings.TrimSpace(msg.Body)
	}
	if !payeeMatched && extraction.Payee != "" &&
		!strings.Contains(strings.ToLower(memo), strings.ToLower(extraction.Payee)) {
		memo = fmt.Sprintf("%s (payee: %s)", memo, extraction.Payee)
	}
	if runes := []rune(memo); len(runes) > e.memoLimit {
		memo = string(runes[:e.memoLimit])
	}
	return memo
}

// transferTypeFor picks the transfer type: the classifier's own tag wins,
// then phone-prefix inference from the body.
func transferTypeFor(extraction model.Extraction, body string) model.TransferType {
	if extraction.TransferType.Known() {
		return extraction.TransferType
	}
	return fees.InferTransferType(body)
}

func (e *IngestionEngine) skip(result *model.Result, reason string) (*model.Result, error) {
	result.Status = model.StatusSkipped
	result.Reason = reason
	return result, nil
}

func (e *IngestionEngine) fail(result *model.Result, reason string, err error) (*model.Result, error) {
	result.Status = model.StatusFailed
	result.Reason = reason
	if err != nil {
		return result, fmt.Errorf("%s: %w", reason, err)
	}
	return result, errors.New(reason)
}
