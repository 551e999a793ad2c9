// Package router resolves which ledger account a message belongs to, with a
// three-tier fallback policy: account-ending hint, sender mapping, then a
// designated catch-all account.
package router

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lusakalabs/kwachaflow/internal/directory"
	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

// DefaultFallbackAccount is the catch-all account name used when no mapping
// resolves.
const DefaultFallbackAccount = "SMS Inbox"

// endingPattern matches the 4-digit "account ending" fragments banks put in
// their messages, e.g. "A/C ****1234" or "account ending 1234".
var endingPattern = regexp.MustCompile(`(?i)(?:a/?c(?:ct|count)?(?:\s+no\.?)?\s*(?:ending(?:\s+in)?)?\s*[*.x]*|\*{2,})(\d{4})\b`)

// Config is the static routing configuration, built once at startup.
type Config struct {
	FallbackAccount string
	// Senders maps a sender identifier to an account name.
	Senders map[string]string
	// Endings maps a 4-digit account suffix to an account name.
	Endings map[string]string
}

// Router resolves routing decisions against the directory cache.
type Router struct {
	cache    *directory.Cache
	senders  map[string]string
	endings  map[string]string
	fallback string
}

// New creates a router. Sender keys are matched case-insensitively.
func New(cfg Config, cache *directory.Cache) *Router {
	senders := make(map[string]string, len(cfg.Senders))
	for sender, account := range cfg.Senders {
		senders[strings.ToLower(sender)] = account
	}

	fallback := cfg.FallbackAccount
	if fallback == "" {
		fallback = DefaultFallbackAccount
	}

	return &Router{
		cache:    cache,
		senders:  senders,
		endings:  cfg.Endings,
		fallback: fallback,
	}
}

// EndingHint extracts the 4-digit account-ending hint from a message body,
// or returns "" when the body carries none.
func EndingHint(body string) string {
	match := endingPattern.FindStringSubmatch(body)
	if match == nil {
		return ""
	}
	return match[1]
}

// Resolve picks the destination account for a message. Routing is recomputed
// on every message because ending hints are per-message. A missing mapping at
// any tier falls through to the next; only a failed fallback-account creation
// yields a failed decision.
func (r *Router) Resolve(ctx context.Context, body, sender string, ledger service.Ledger) model.RoutingDecision {
	if hint := EndingHint(body); hint != "" {
		if name, ok := r.endings[hint]; ok {
			if account, found := r.cache.AccountByName(name); found {
				return model.RoutingDecision{
					AccountID:   account.ID,
					AccountName: account.Name,
					Source:      model.RouteEndingHint,
				}
			}
			slog.Warn("ending hint mapped to unknown account, falling through",
				"hint", hint,
				"account_name", name)
		}
	}

	if name, ok := r.senders[strings.ToLower(sender)]; ok {
		if account, found := r.cache.AccountByName(name); found {
			return model.RoutingDecision{
				AccountID:   account.ID,
				AccountName: account.Name,
				Source:      model.RouteSenderMapping,
			}
		}
		slog.Warn("sender mapped to unknown account, falling through",
			"sender", sender,
			"account_name", name)
	}

	if account, found := r.cache.AccountByName(r.fallback); found {
		return model.RoutingDecision{
			AccountID:   account.ID,
			AccountName: account.Name,
			Source:      model.RouteFallbackExisting,
		}
	}

	account, err := ledger.CreateAccount(ctx, r.fallback)
	if err != nil {
		slog.Error("failed to create fallback account",
			"account_name", r.fallback,
			"error", err)
		return model.RoutingDecision{Source: model.RouteFailed}
	}

	return model.RoutingDecision{
		AccountID:   account.ID,
		AccountName: account.Name,
		Source:      model.RouteFallbackCreated,
	}
}
