// Package llm implements the external extraction service: LLM-backed
// classification of raw SMS bodies into structured transaction fields.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/common"
	"github.com/lusakalabs/kwachaflow/internal/model"
)

// Client is one LLM provider capable of answering an extraction prompt with
// strict JSON.
type Client interface {
	Extract(ctx context.Context, systemPrompt, prompt string) (model.Extraction, error)
}

// extractionPayload is the strict JSON contract with the model. The
// is_transaction boolean is mandatory: a response without it is a hard parse
// failure, not a default.
type extractionPayload struct {
	IsTransaction *bool            `json:"is_transaction"`
	Amount        *decimal.Decimal `json:"amount"`
	Direction     *string          `json:"direction"`
	Reason        string           `json:"reason"`
	Payee         string           `json:"payee"`
	Category      string           `json:"category"`
	Memo          string           `json:"memo"`
	Reference     string           `json:"reference"`
	TransferType  string           `json:"transfer_type"`
	PayeeIsNew    bool             `json:"payee_is_new"`
	IsFollowUp    bool             `json:"is_follow_up"`
}

// parseExtraction decodes the model's response text into an Extraction.
func parseExtraction(content string) (model.Extraction, error) {
	content = cleanMarkdownWrapper(content)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return model.Extraction{}, fmt.Errorf("%w: %v", common.ErrMalformedExtraction, err)
	}

	if payload.IsTransaction == nil {
		return model.Extraction{}, fmt.Errorf("%w: missing is_transaction field", common.ErrMalformedExtraction)
	}

	extraction := model.Extraction{
		IsTransaction: *payload.IsTransaction,
		Reason:        payload.Reason,
		Amount:        payload.Amount,
		Payee:         payload.Payee,
		PayeeIsNew:    payload.PayeeIsNew,
		Category:      payload.Category,
		Memo:          payload.Memo,
		Reference:     payload.Reference,
		IsFollowUp:    payload.IsFollowUp,
	}

	if payload.Direction != nil {
		extraction.Direction = model.ParseDirection(*payload.Direction)
		if extraction.Direction == nil {
			return model.Extraction{}, fmt.Errorf("%w: invalid direction %q", common.ErrMalformedExtraction, *payload.Direction)
		}
	}

	if payload.TransferType != "" {
		extraction.TransferType = model.ParseTransferType(payload.TransferType)
	}

	return extraction, nil
}

// cleanMarkdownWrapper strips the ```json fences models wrap their output in
// despite instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
