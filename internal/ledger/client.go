// Package ledger implements the budgeting-service HTTP client. The API is
// budget-scoped and deduplicates transaction creation server-side on the
// submitted idempotency key.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lusakalabs/kwachaflow/internal/model"
	"github.com/lusakalabs/kwachaflow/internal/service"
)

// Client talks to the budgeting ledger over HTTP with bearer-token auth.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	budgetID   string
}

// New creates a ledger client.
func New(baseURL, token, budgetID string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		budgetID: budgetID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Accounts lists all accounts in the budget, including deleted and closed
// ones; filtering is the directory cache's job.
func (c *Client) Accounts(ctx context.Context) ([]model.Account, error) {
	var payload struct {
		Data struct {
			Accounts []accountPayload `json:"accounts"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/accounts", &payload); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]model.Account, len(payload.Data.Accounts))
	for i, a := range payload.Data.Accounts {
		accounts[i] = model.Account{
			ID:      a.ID,
			Name:    a.Name,
			Deleted: a.Deleted,
			Closed:  a.Closed,
		}
	}
	return accounts, nil
}

// Categories lists all budget categories, flattened out of their groups.
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var payload struct {
		Data struct {
			CategoryGroups []categoryGroupPayload `json:"category_groups"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/categories", &payload); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var categories []model.Category
	for _, group := range payload.Data.CategoryGroups {
		for _, cat := range group.Categories {
			categories = append(categories, model.Category{
				ID:        cat.ID,
				Name:      cat.Name,
				GroupName: group.Name,
				Deleted:   cat.Deleted || group.Deleted,
				Hidden:    cat.Hidden || group.Hidden,
			})
		}
	}
	return categories, nil
}

// Payees lists all payees in the budget.
func (c *Client) Payees(ctx context.Context) ([]model.Payee, error) {
	var payload struct {
		Data struct {
			Payees []payeePayload `json:"payees"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/payees", &payload); err != nil {
		return nil, fmt.Errorf("failed to list payees: %w", err)
	}

	payees := make([]model.Payee, len(payload.Data.Payees))
	for i, p := range payload.Data.Payees {
		payees[i] = model.Payee{
			ID:                p.ID,
			Name:              p.Name,
			TransferAccountID: p.TransferAccountID,
			Deleted:           p.Deleted,
		}
	}
	return payees, nil
}

// CreateAccount creates a checking account with a zero opening balance.
func (c *Client) CreateAccount(ctx context.Context, name string) (*model.Account, error) {
	request := map[string]any{
		"account": map[string]any{
			"name":    name,
			"type":    "checking",
			"balance": 0,
		},
	}

	var payload struct {
		Data struct {
			Account accountPayload `json:"account"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/accounts", request, &payload); err != nil {
		return nil, fmt.Errorf("failed to create account %q: %w", name, err)
	}

	return &model.Account{
		ID:   payload.Data.Account.ID,
		Name: payload.Data.Account.Name,
	}, nil
}

// CreateTransaction submits one ledger entry. Entries always go in
// uncleared and unapproved so the human review gate stays intact. The server
// reports keys it treated as duplicates instead of failing them.
func (c *Client) CreateTransaction(ctx context.Context, txn service.NewTransaction) (*service.CreatedTransaction, error) {
	body := map[string]any{
		"account_id": txn.AccountID,
		"date":       txn.Date.Format("2006-01-02"),
		"amount":     txn.AmountMinor,
		"memo":       txn.Memo,
		"cleared":    "uncleared",
		"approved":   false,
		"import_id":  txn.Key,
	}
	if txn.PayeeID != "" {
		body["payee_id"] = txn.PayeeID
	} else if txn.PayeeName != "" {
		body["payee_name"] = txn.PayeeName
	}
	if txn.CategoryID != "" {
		body["category_id"] = txn.CategoryID
	}

	request := map[string]any{"transaction": body}

	var payload struct {
		Data struct {
			TransactionIDs     []string `json:"transaction_ids"`
			DuplicateImportIDs []string `json:"duplicate_import_ids"`
			Transactions       []struct {
				ID string `json:"id"`
			} `json:"transactions"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/transactions", request, &payload); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	created := &service.CreatedTransaction{}
	for _, dup := range payload.Data.DuplicateImportIDs {
		if dup == txn.Key {
			created.Duplicate = true
		}
	}
	if len(payload.Data.Transactions) > 0 {
		created.ID = payload.Data.Transactions[0].ID
	} else if len(payload.Data.TransactionIDs) > 0 {
		created.ID = payload.Data.TransactionIDs[0]
	}
	return created, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, jsonBody, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	url := fmt.Sprintf("%s/budgets/%s%s", c.baseURL, c.budgetID, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("ledger API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

type accountPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
	Closed  bool   `json:"closed"`
}

type categoryGroupPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Hidden     bool   `json:"hidden"`
	Deleted    bool   `json:"deleted"`
	Categories []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Hidden  bool   `json:"hidden"`
		Deleted bool   `json:"deleted"`
	} `json:"categories"`
}

type payeePayload struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	TransferAccountID string `json:"transfer_account_id"`
	Deleted           bool   `json:"deleted"`
}
