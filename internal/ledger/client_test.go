package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token", "budget-1")
}

func TestAccounts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/budgets/budget-1/accounts", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"data": {"accounts": [
			{"id": "a1", "name": "Airtel Money", "deleted": false, "closed": false},
			{"id": "a2", "name": "Old Wallet", "deleted": true, "closed": true}
		]}}`))
	})

	accounts, err := client.Accounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, model.Account{ID: "a1", Name: "Airtel Money"}, accounts[0])
	assert.True(t, accounts[1].Deleted, "deleted accounts are passed through unfiltered")
}

func TestCategoriesFlattensGroups(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/budget-1/categories", r.URL.Path)

		_, _ = w.Write([]byte(`{"data": {"category_groups": [
			{"id": "g1", "name": "Everyday", "hidden": false, "deleted": false, "categories": [
				{"id": "c1", "name": "Groceries", "hidden": false, "deleted": false},
				{"id": "c2", "name": "Dining", "hidden": true, "deleted": false}
			]},
			{"id": "g2", "name": "Archive", "hidden": true, "deleted": false, "categories": [
				{"id": "c3", "name": "Projects", "hidden": false, "deleted": false}
			]}
		]}}`))
	})

	categories, err := client.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 3)

	assert.Equal(t, "Everyday", categories[0].GroupName)
	assert.False(t, categories[0].Hidden)
	assert.True(t, categories[1].Hidden, "category-level hidden flag survives")
	assert.True(t, categories[2].Hidden, "group-level hidden flag propagates to members")
}

func TestPayees(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"payees": [
			{"id": "p1", "name": "Shoprite", "transfer_account_id": "", "deleted": false},
			{"id": "p2", "name": "Transfer : Absa", "transfer_account_id": "a2", "deleted": false}
		]}}`))
	})

	payees, err := client.Payees(context.Background())
	require.NoError(t, err)
	require.Len(t, payees, 2)
	assert.Equal(t, "a2", payees[1].TransferAccountID)
}

func TestCreateAccount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/budgets/budget-1/accounts", r.URL.Path)

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SMS Inbox", body["account"]["name"])
		assert.Equal(t, "checking", body["account"]["type"])
		assert.Equal(t, float64(0), body["account"]["balance"])

		_, _ = w.Write([]byte(`{"data": {"account": {"id": "new-1", "name": "SMS Inbox"}}}`))
	})

	account, err := client.CreateAccount(context.Background(), "SMS Inbox")
	require.NoError(t, err)
	assert.Equal(t, "new-1", account.ID)
	assert.Equal(t, "SMS Inbox", account.Name)
}

func TestCreateTransaction(t *testing.T) {
	var got map[string]map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/budgets/budget-1/transactions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"data": {
			"transaction_ids": ["t1"],
			"duplicate_import_ids": [],
			"transactions": [{"id": "t1"}]
		}}`))
	})

	created, err := client.CreateTransaction(context.Background(), service.NewTransaction{
		Date:        time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		AccountID:   "a1",
		PayeeID:     "p1",
		PayeeName:   "ignored when payee_id set",
		CategoryID:  "c1",
		Memo:        "Sent ZMW 100.00",
		Key:         "txn:abc",
		AmountMinor: -10000,
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", created.ID)
	assert.False(t, created.Duplicate)

	txn := got["transaction"]
	assert.Equal(t, "a1", txn["account_id"])
	assert.Equal(t, "2026-03-14", txn["date"])
	assert.Equal(t, float64(-10000), txn["amount"])
	assert.Equal(t, "uncleared", txn["cleared"])
	assert.Equal(t, false, txn["approved"])
	assert.Equal(t, "txn:abc", txn["import_id"])
	assert.Equal(t, "p1", txn["payee_id"])
	assert.NotContains(t, txn, "payee_name", "payee_id takes precedence")
	assert.Equal(t, "c1", txn["category_id"])
}

func TestCreateTransactionPayeeNameFallback(t *testing.T) {
	var got map[string]map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data": {"transactions": [{"id": "t2"}]}}`))
	})

	_, err := client.CreateTransaction(context.Background(), service.NewTransaction{
		Date:        time.Now(),
		AccountID:   "a1",
		PayeeName:   "Airtel Money",
		Key:         "fee:abc",
		AmountMinor: -58,
	})
	require.NoError(t, err)

	txn := got["transaction"]
	assert.Equal(t, "Airtel Money", txn["payee_name"])
	assert.NotContains(t, txn, "payee_id")
	assert.NotContains(t, txn, "category_id")
}

func TestCreateTransactionDuplicate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {
			"transaction_ids": [],
			"duplicate_import_ids": ["txn:abc"],
			"transactions": []
		}}`))
	})

	created, err := client.CreateTransaction(context.Background(), service.NewTransaction{
		Date:        time.Now(),
		AccountID:   "a1",
		Key:         "txn:abc",
		AmountMinor: -10000,
	})
	require.NoError(t, err)
	assert.True(t, created.Duplicate)
	assert.Empty(t, created.ID)
}

func TestAPIErrorIncludesStatusAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"detail": "invalid token"}}`))
	})

	_, err := client.Accounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "invalid token")
}
