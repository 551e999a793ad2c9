// Package directory holds a time-bounded, read-only copy of the ledger's
// accounts, categories and payees, exposed as case-insensitive name lookups.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

// internalPrefix marks ledger-internal entries that must never be offered to
// the classifier as context.
const internalPrefix = "internal"

// transferPayeePrefix marks payees that are transfer placeholders for another
// account.
const transferPayeePrefix = "transfer :"

// Cache is the process-lifetime directory snapshot. Safe for concurrent use
// by overlapping requests; a refresh replaces the whole snapshot atomically
// so readers never observe a partial update.
type Cache struct {
	now  func() time.Time
	snap *snapshot
	ttl  time.Duration
	mu   sync.RWMutex
}

type snapshot struct {
	fetchedAt  time.Time
	accounts   []model.Account
	categories []model.Category
	payees     []model.Payee
}

// New creates an empty cache with the given freshness TTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl: ttl,
		now: time.Now,
	}
}

// NewWithClock creates a cache with an injectable clock for tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	cache := New(ttl)
	cache.now = now
	return cache
}

// EnsureFresh refreshes the snapshot from the ledger when it is stale or has
// never been populated. The three directory collections are fetched
// concurrently and joined before the snapshot is replaced. Holding the write
// lock for the whole refresh coalesces concurrent redundant refreshes. A
// fetch failure is fatal to the caller's request; the pipeline must not run
// against absent directory data.
func (c *Cache) EnsureFresh(ctx context.Context, ledger service.Ledger) error {
	c.mu.RLock()
	fresh := c.snap != nil && c.now().Sub(c.snap.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if c.snap != nil && c.now().Sub(c.snap.fetchedAt) < c.ttl {
		return nil
	}

	var (
		wg         sync.WaitGroup
		accounts   []model.Account
		categories []model.Category
		payees     []model.Payee
		errs       [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		accounts, errs[0] = ledger.Accounts(ctx)
	}()
	go func() {
		defer wg.Done()
		categories, errs[1] = ledger.Categories(ctx)
	}()
	go func() {
		defer wg.Done()
		payees, errs[2] = ledger.Payees(ctx)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("directory refresh failed: %w", err)
		}
	}

	c.snap = &snapshot{
		fetchedAt:  c.now(),
		accounts:   accounts,
		categories: categories,
		payees:     payees,
	}

	slog.Debug("directory snapshot refreshed",
		"accounts", len(accounts),
		"categories", len(categories),
		"payees", len(payees))

	return nil
}

// AccountByName finds a non-deleted account by case-insensitive exact name.
func (c *Cache) AccountByName(name string) (*model.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil, false
	}
	for i := range c.snap.accounts {
		account := &c.snap.accounts[i]
		if account.Deleted {
			continue
		}
		if strings.EqualFold(account.Name, name) {
			found := *account
			return &found, true
		}
	}
	return nil, false
}

// AccountID returns the identifier for an account name.
func (c *Cache) AccountID(name string) (string, bool) {
	account, ok := c.AccountByName(name)
	if !ok {
		return "", false
	}
	return account.ID, true
}

// CategoryByName finds a non-deleted category by case-insensitive exact name.
func (c *Cache) CategoryByName(name string) (*model.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil, false
	}
	for i := range c.snap.categories {
		category := &c.snap.categories[i]
		if category.Deleted {
			continue
		}
		if strings.EqualFold(category.Name, name) {
			found := *category
			return &found, true
		}
	}
	return nil, false
}

// CategoryID returns the identifier for a category name.
func (c *Cache) CategoryID(name string) (string, bool) {
	category, ok := c.CategoryByName(name)
	if !ok {
		return "", false
	}
	return category.ID, true
}

// PayeeByName finds a non-deleted payee by case-insensitive exact name.
func (c *Cache) PayeeByName(name string) (*model.Payee, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil, false
	}
	for i := range c.snap.payees {
		payee := &c.snap.payees[i]
		if payee.Deleted {
			continue
		}
		if strings.EqualFold(payee.Name, name) {
			found := *payee
			return &found, true
		}
	}
	return nil, false
}

// PayeeID returns the identifier for a payee name.
func (c *Cache) PayeeID(name string) (string, bool) {
	payee, ok := c.PayeeByName(name)
	if !ok {
		return "", false
	}
	return payee.ID, true
}

// CategoryNames lists category names for classification context, excluding
// deleted, hidden and ledger-internal entries.
func (c *Cache) CategoryNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil
	}
	names := make([]string, 0, len(c.snap.categories))
	for _, category := range c.snap.categories {
		if category.Deleted || category.Hidden {
			continue
		}
		if hasInternalMarker(category.Name) || hasInternalMarker(category.GroupName) {
			continue
		}
		names = append(names, category.Name)
	}
	sort.Strings(names)
	return names
}

// PayeeNames lists payee names for classification context, excluding deleted
// entries and transfer placeholders for other accounts.
func (c *Cache) PayeeNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return nil
	}
	names := make([]string, 0, len(c.snap.payees))
	for _, payee := range c.snap.payees {
		if payee.Deleted || payee.TransferAccountID != "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(payee.Name), transferPayeePrefix) {
			continue
		}
		if hasInternalMarker(payee.Name) {
			continue
		}
		names = append(names, payee.Name)
	}
	sort.Strings(names)
	return names
}

func hasInternalMarker(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), internalPrefix)
}
