package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

// fakeLedger serves canned directory data and counts fetches.
type fakeLedger struct {
	accounts   []model.Account
	categories []model.Category
	payees     []model.Payee

	accountsErr error
	fetches     atomic.Int64
}

func (f *fakeLedger) Accounts(_ context.Context) ([]model.Account, error) {
	f.fetches.Add(1)
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return f.accounts, nil
}

func (f *fakeLedger) Categories(_ context.Context) ([]model.Category, error) {
	return f.categories, nil
}

func (f *fakeLedger) Payees(_ context.Context) ([]model.Payee, error) {
	return f.payees, nil
}

func (f *fakeLedger) CreateAccount(_ context.Context, name string) (*model.Account, error) {
	return &model.Account{ID: "new-account", Name: name}, nil
}

func (f *fakeLedger) CreateTransaction(_ context.Context, _ service.NewTransaction) (*service.CreatedTransaction, error) {
	return &service.CreatedTransaction{ID: "txn-1"}, nil
}

func testLedger() *fakeLedger {
	return &fakeLedger{
		accounts: []model.Account{
			{ID: "a1", Name: "Airtel Money"},
			{ID: "a2", Name: "Absa Current"},
			{ID: "a3", Name: "Old Wallet", Deleted: true},
		},
		categories: []model.Category{
			{ID: "c1", Name: "Groceries", GroupName: "Everyday"},
			{ID: "c2", Name: "Transaction Fees", GroupName: "Everyday"},
			{ID: "c3", Name: "Hidden One", GroupName: "Everyday", Hidden: true},
			{ID: "c4", Name: "Gone", GroupName: "Everyday", Deleted: true},
			{ID: "c5", Name: "Internal Master Category", GroupName: "Internal Master Category"},
			{ID: "c6", Name: "Stipend", GroupName: "Internal Master Category"},
		},
		payees: []model.Payee{
			{ID: "p1", Name: "Shoprite"},
			{ID: "p2", Name: "Transfer : Absa Current", TransferAccountID: "a2"},
			{ID: "p3", Name: "Departed", Deleted: true},
			{ID: "p4", Name: "Internal Adjustment"},
		},
	}
}

func TestEnsureFreshPopulatesSnapshot(t *testing.T) {
	ledger := testLedger()
	cache := New(time.Minute)

	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))

	account, ok := cache.AccountByName("airtel money")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, "a1", account.ID)

	_, ok = cache.AccountByName("Old Wallet")
	assert.False(t, ok, "deleted accounts are invisible")

	id, ok := cache.CategoryID("transaction fees")
	require.True(t, ok)
	assert.Equal(t, "c2", id)

	id, ok = cache.PayeeID("SHOPRITE")
	require.True(t, ok)
	assert.Equal(t, "p1", id)
}

func TestEnsureFreshHonorsTTL(t *testing.T) {
	ledger := testLedger()

	current := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	cache := NewWithClock(time.Minute, func() time.Time { return current })

	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))
	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))
	assert.Equal(t, int64(1), ledger.fetches.Load(), "fresh snapshot is reused")

	current = current.Add(2 * time.Minute)
	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))
	assert.Equal(t, int64(2), ledger.fetches.Load(), "stale snapshot is refreshed")
}

func TestEnsureFreshFetchFailureIsFatal(t *testing.T) {
	ledger := testLedger()
	ledger.accountsErr = errors.New("boom")
	cache := New(time.Minute)

	err := cache.EnsureFresh(context.Background(), ledger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory refresh failed")

	// The failed refresh must not leave a usable snapshot behind.
	_, ok := cache.AccountByName("Airtel Money")
	assert.False(t, ok)
}

func TestEnsureFreshCoalescesConcurrentRefreshes(t *testing.T) {
	ledger := testLedger()
	cache := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, cache.EnsureFresh(context.Background(), ledger))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), ledger.fetches.Load())
}

func TestCategoryNames(t *testing.T) {
	ledger := testLedger()
	cache := New(time.Minute)
	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))

	names := cache.CategoryNames()
	assert.Equal(t, []string{"Groceries", "Transaction Fees"}, names,
		"hidden, deleted and internal categories are excluded, including by group")
}

func TestPayeeNames(t *testing.T) {
	ledger := testLedger()
	cache := New(time.Minute)
	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))

	names := cache.PayeeNames()
	assert.Equal(t, []string{"Shoprite"}, names,
		"transfer placeholders, deleted and internal payees are excluded")
}

func TestLookupsBeforeFirstRefresh(t *testing.T) {
	cache := New(time.Minute)

	_, ok := cache.AccountByName("anything")
	assert.False(t, ok)
	assert.Nil(t, cache.CategoryNames())
	assert.Nil(t, cache.PayeeNames())
}
