package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusakalabs/kwachaflow/internal/directory"
	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

type stubLedger struct {
	accounts     []model.Account
	createErr    error
	createdNames []string
}

func (s *stubLedger) Accounts(_ context.Context) ([]model.Account, error) {
	return s.accounts, nil
}

func (s *stubLedger) Categories(_ context.Context) ([]model.Category, error) { return nil, nil }
func (s *stubLedger) Payees(_ context.Context) ([]model.Payee, error) { return nil, nil }

func (s *stubLedger) CreateAccount(_ context.Context, name string) (*model.Account, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createdNames = append(s.createdNames, name)
	return &model.Account{ID: "created-1", Name: name}, nil
}

func (s *stubLedger) CreateTransaction(_ context.Context, _ service.NewTransaction) (*service.CreatedTransaction, error) {
	return nil, errors.New("not implemented")
}

func freshCache(t *testing.T, ledger service.Ledger) *directory.Cache {
	t.Helper()
	cache := directory.New(time.Minute)
	require.NoError(t, cache.EnsureFresh(context.Background(), ledger))
	return cache
}

func TestEndingHint(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "masked stars", body: "Txn on A/C ****1234 confirmed", want: "1234"},
		{name: "account ending", body: "Your account ending 5678 was debited", want: "5678"},
		{name: "acct ending in", body: "Acct ending in 9012 credited K500", want: "9012"},
		{name: "ac no with dots", body: "A/C No. ..3456 debit", want: "3456"},
		{name: "bare double stars", body: "Debit from **7890: K20", want: "7890"},
		{name: "no hint", body: "You received K100 from Mary", want: ""},
		{name: "too short", body: "A/C ***123 debited", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EndingHint(tt.body))
		})
	}
}

func TestResolveEndingHintWins(t *testing.T) {
	ledger := &stubLedger{accounts: []model.Account{
		{ID: "absa", Name: "Absa Current"},
		{ID: "airtel", Name: "Airtel Money"},
	}}
	cache := freshCache(t, ledger)

	router := New(Config{
		Senders: map[string]string{"absa": "Airtel Money"}, // deliberately conflicting
		Endings: map[string]string{"1234": "Absa Current"},
	}, cache)

	decision := router.Resolve(context.Background(), "Txn on A/C ****1234", "Absa", ledger)
	assert.Equal(t, "absa", decision.AccountID)
	assert.Equal(t, model.RouteEndingHint, decision.Source)
}

func TestResolveUnmappedHintFallsToSender(t *testing.T) {
	ledger := &stubLedger{accounts: []model.Account{
		{ID: "airtel", Name: "Airtel Money"},
	}}
	cache := freshCache(t, ledger)

	router := New(Config{
		Senders: map[string]string{"airtelmoney": "Airtel Money"},
		Endings: map[string]string{"9999": "Absa Current"},
	}, cache)

	// Hint 1234 has no mapping at all.
	decision := router.Resolve(context.Background(), "A/C ****1234 debited", "AirtelMoney", ledger)
	assert.Equal(t, "airtel", decision.AccountID)
	assert.Equal(t, model.RouteSenderMapping, decision.Source)
}

func TestResolveUnresolvableHintFallsToSender(t *testing.T) {
	ledger := &stubLedger{accounts: []model.Account{
		{ID: "airtel", Name: "Airtel Money"},
	}}
	cache := freshCache(t, ledger)

	router := New(Config{
		Senders: map[string]string{"airtelmoney": "Airtel Money"},
		// Mapped, but the named account does not exist in the ledger.
		Endings: map[string]string{"1234": "Closed Account"},
	}, cache)

	decision := router.Resolve(context.Background(), "A/C ****1234 debited", "AIRTELMONEY", ledger)
	assert.Equal(t, "airtel", decision.AccountID)
	assert.Equal(t, model.RouteSenderMapping, decision.Source)
}

func TestResolveFallbackExisting(t *testing.T) {
	ledger := &stubLedger{accounts: []model.Account{
		{ID: "inbox", Name: "SMS Inbox"},
	}}
	cache := freshCache(t, ledger)

	router := New(Config{}, cache)

	decision := router.Resolve(context.Background(), "no hints here", "Unknown", ledger)
	assert.Equal(t, "inbox", decision.AccountID)
	assert.Equal(t, model.RouteFallbackExisting, decision.Source)
	assert.Empty(t, ledger.createdNames)
}

func TestResolveFallbackCreated(t *testing.T) {
	ledger := &stubLedger{}
	cache := freshCache(t, ledger)

	router := New(Config{FallbackAccount: "Catch All"}, cache)

	decision := router.Resolve(context.Background(), "no hints here", "Unknown", ledger)
	assert.Equal(t, "created-1", decision.AccountID)
	assert.Equal(t, "Catch All", decision.AccountName)
	assert.Equal(t, model.RouteFallbackCreated, decision.Source)
	assert.Equal(t, []string{"Catch All"}, ledger.createdNames)
}

func TestResolveFallbackCreationFails(t *testing.T) {
	ledger := &stubLedger{createErr: errors.New("ledger down")}
	cache := freshCache(t, ledger)

	router := New(Config{}, cache)

	decision := router.Resolve(context.Background(), "no hints here", "Unknown", ledger)
	assert.Empty(t, decision.AccountID)
	assert.Equal(t, model.RouteFailed, decision.Source)
}
