// Package fees implements the provider fee schedules: pure lookups from
// (provider, transfer type, amount) to the flat fee a provider charges.
package fees

import (
	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

// Tier maps a half-open-above amount interval (Min, Max] to a flat fee.
type Tier struct {
	Min decimal.Decimal
	Max decimal.Decimal
	Fee decimal.Decimal
}

// Contains reports whether amount falls inside the tier's interval.
func (t Tier) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThan(t.Min) && amount.LessThanOrEqual(t.Max)
}

// Schedule is the fee table for one (provider, transfer type) pair, plus the
// payee and category to attach to the generated fee entry. An empty tier list
// means the transfer type is known to be fee-free.
type Schedule struct {
	Payee    string
	Category string
	Tiers    []Tier
}

// FlatFee describes a fixed per-event charge such as a notification fee or an
// estimated placeholder fee.
type FlatFee struct {
	Fee      decimal.Decimal
	Payee    string
	Category string
}

// Table holds every fee schedule known to the deployment. Built once at
// startup from configuration and never mutated afterwards.
type Table struct {
	Transfers    map[Provider]map[model.TransferType]Schedule
	Notification map[Provider]FlatFee
	Estimated    map[Provider]FlatFee
}

// Quote is the answer to a fee lookup. Configured distinguishes "this pair
// has a schedule" from "we know nothing about this pair"; a configured quote
// with a nil fee means the amount fell outside every tier.
type Quote struct {
	Fee        *decimal.Decimal
	Payee      string
	Category   string
	Configured bool
}

// TransferFee looks up the fee for moving amount via the given transfer type.
// An amount outside every tier returns a configured quote with no fee; it
// must never silently default to zero or the nearest tier.
func (t *Table) TransferFee(provider Provider, transferType model.TransferType, amount decimal.Decimal) Quote {
	byType, ok := t.Transfers[provider]
	if !ok {
		return Quote{}
	}
	schedule, ok := byType[transferType]
	if !ok {
		return Quote{}
	}

	quote := Quote{
		Payee:      schedule.Payee,
		Category:   schedule.Category,
		Configured: true,
	}

	// Empty tier list means explicitly free.
	if len(schedule.Tiers) == 0 {
		zero := decimal.Zero
		quote.Fee = &zero
		return quote
	}

	for _, tier := range schedule.Tiers {
		if tier.Contains(amount) {
			fee := tier.Fee
			quote.Fee = &fee
			return quote
		}
	}

	// Amount out of known range.
	return quote
}

// NotificationFee returns the flat per-message alert fee some providers
// charge, independent of any transfer fee.
func (t *Table) NotificationFee(provider Provider) Quote {
	flat, ok := t.Notification[provider]
	if !ok {
		return Quote{}
	}
	fee := flat.Fee
	return Quote{Fee: &fee, Payee: flat.Payee, Category: flat.Category, Configured: true}
}

// EstimatedFee returns the fixed placeholder fee for providers whose messages
// never state a transfer type. The generated entry is flagged for manual
// correction by the caller.
func (t *Table) EstimatedFee(provider Provider) Quote {
	flat, ok := t.Estimated[provider]
	if !ok {
		return Quote{}
	}
	fee := flat.Fee
	return Quote{Fee: &fee, Payee: flat.Payee, Category: flat.Category, Configured: true}
}
