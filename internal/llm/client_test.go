package llm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusakalabs/kwachaflow/internal/common"
	"github.com/lusakalabs/kwachaflow/internal/model"
)

func TestParseExtraction(t *testing.T) {
	content := `{
		"is_transaction": true,
		"amount": "100.00",
		"direction": "outflow",
		"payee": "Shoprite",
		"category": "Groceries",
		"memo": "Weekly shop",
		"reference": "TX4417",
		"transfer_type": "same_network",
		"payee_is_new": false,
		"is_follow_up": false
	}`

	extraction, err := parseExtraction(content)
	require.NoError(t, err)

	assert.True(t, extraction.IsTransaction)
	require.NotNil(t, extraction.Amount)
	assert.True(t, extraction.Amount.Equal(decimal.RequireFromString("100.00")))
	require.NotNil(t, extraction.Direction)
	assert.Equal(t, model.DirectionOutflow, *extraction.Direction)
	assert.Equal(t, "Shoprite", extraction.Payee)
	assert.Equal(t, "TX4417", extraction.Reference)
	assert.Equal(t, model.TransferSameNetwork, extraction.TransferType)
	assert.False(t, extraction.IsFollowUp)
}

func TestParseExtractionNonTransaction(t *testing.T) {
	content := `{"is_transaction": false, "reason": "promotional message"}`

	extraction, err := parseExtraction(content)
	require.NoError(t, err)

	assert.False(t, extraction.IsTransaction)
	assert.Equal(t, "promotional message", extraction.Reason)
	assert.Nil(t, extraction.Amount)
	assert.Nil(t, extraction.Direction)
}

func TestParseExtractionErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "the message is a transaction"},
		{name: "empty", content: ""},
		{name: "missing is_transaction", content: `{"amount": "10.00"}`},
		{name: "invalid direction", content: `{"is_transaction": true, "direction": "sideways"}`},
		{name: "numeric amount in wrong type", content: `{"is_transaction": true, "amount": {"value": 10}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseExtraction(tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrMalformedExtraction)
		})
	}
}

func TestParseExtractionUnknownTransferType(t *testing.T) {
	content := `{"is_transaction": true, "transfer_type": "teleport"}`

	extraction, err := parseExtraction(content)
	require.NoError(t, err)
	assert.Equal(t, model.TransferUnknown, extraction.TransferType)
}

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain json untouched",
			content: `{"is_transaction": true}`,
			want:    `{"is_transaction": true}`,
		},
		{
			name:    "json fence",
			content: "```json\n{\"is_transaction\": true}\n```",
			want:    `{"is_transaction": true}`,
		},
		{
			name:    "bare fence",
			content: "```\n{\"a\": 1}\n```",
			want:    `{"a": 1}`,
		},
		{
			name:    "surrounding whitespace",
			content: "  \n```json\n{}\n```\n  ",
			want:    `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMarkdownWrapper(tt.content))
		})
	}
}
