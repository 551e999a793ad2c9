package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lusakalabs/kwachaflow/internal/common"
	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

// Extractor implements service.Extractor on top of an LLM client, adding
// retries, rate limiting and a TTL response cache.
type Extractor struct {
	client      Client
	cache       *extractionCache
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// Config holds configuration for the LLM extractor.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// NewExtractor creates an extractor for the configured provider.
func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	case "openai":
		client, err = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Extractor{
		client:      client,
		cache:       newExtractionCache(cfg.CacheTTL),
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// Extract classifies one message. Identical requests within the cache TTL
// reuse the earlier answer, which keeps replays deterministic without a
// second round trip.
func (e *Extractor) Extract(ctx context.Context, req service.ExtractionRequest) (model.Extraction, error) {
	fingerprint := requestFingerprint(req)

	if extraction, found := e.cache.get(fingerprint); found {
		e.logger.Debug("extraction cache hit", "sender", req.Sender)
		return extraction, nil
	}

	if err := e.rateLimiter.wait(ctx); err != nil {
		return model.Extraction{}, fmt.Errorf("rate limit error: %w", err)
	}

	prompt := buildPrompt(req)

	var extraction model.Extraction
	err := common.WithRetry(ctx, func() error {
		result, extractErr := e.client.Extract(ctx, systemPrompt, prompt)
		if extractErr != nil {
			e.logger.Warn("extraction attempt failed",
				"sender", req.Sender,
				"error", extractErr)
			return &common.RetryableError{Err: extractErr, Retryable: true}
		}
		extraction = result
		return nil
	}, e.retryOpts)
	if err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %v", common.ErrClassificationFailed, err)
	}

	e.cache.set(fingerprint, extraction)

	e.logger.Info("message classified",
		"sender", req.Sender,
		"is_transaction", extraction.IsTransaction,
		"is_follow_up", extraction.IsFollowUp,
		"transfer_type", extraction.TransferType)

	return extraction, nil
}

// Close stops background goroutines and cleans up resources.
func (e *Extractor) Close() error {
	if e.cache != nil {
		e.cache.Close()
	}
	if e.rateLimiter != nil {
		e.rateLimiter.Close()
	}
	return nil
}

func requestFingerprint(req service.ExtractionRequest) string {
	hash := sha256.Sum256([]byte(req.Sender + "\x1f" + req.Body))
	return fmt.Sprintf("%x", hash)
}

const systemPrompt = "You are a financial SMS parser for Zambian banks and mobile-money providers. " +
	"Respond only with a single strict JSON object in the exact shape requested, no prose, no markdown."

// buildPrompt creates the extraction prompt for one message.
func buildPrompt(req service.ExtractionRequest) string {
	categoryList := strings.Join(req.Categories, "\n- ")
	if categoryList != "" {
		categoryList = "- " + categoryList
	}
	payeeList := strings.Join(req.Payees, "\n- ")
	if payeeList != "" {
		payeeList = "- " + payeeList
	}

	return fmt.Sprintf(`Decide whether this SMS notification reports a real financial transaction, and extract its fields.

Sender: %s
Local time: %s
Message:
%s

Existing budget categories (use an exact name or leave category empty; never invent one):
%s

Known payees (prefer an exact match; otherwise report the payee name as written and set payee_is_new):
%s

Rules:
- Promotional messages, balance-only notices, OTPs and conversation are NOT transactions.
- A message that completes an earlier transaction (for example naming the recipient's phone number without repeating the amount) is a follow-up: set is_follow_up true.
- amount is in ZMW major units as a decimal string, or null when the message states none.
- direction is "inflow" or "outflow", or null when it cannot be determined.
- transfer_type is one of: same_network, cross_network, to_bank, to_mobile, withdrawal, airtime, bill_payment, point_of_sale, unknown.
- memo is a short human-readable summary of the transaction.

Respond with exactly this JSON shape:
{
  "is_transaction": true,
  "reason": "Money transfer notification",
  "amount": "100.00",
  "direction": "outflow",
  "payee": "John Doe",
  "payee_is_new": true,
  "category": "",
  "memo": "Sent ZMW 100.00 to John Doe",
  "reference": "TX12345",
  "transfer_type": "same_network",
  "is_follow_up": false
}`,
		req.Sender,
		req.LocalTime,
		req.Body,
		categoryList,
		payeeList)
}
