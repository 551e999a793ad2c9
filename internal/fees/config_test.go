package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

func TestFromConfigOverridesSchedule(t *testing.T) {
	cfg := TableConfig{
		Transfers: map[string]map[string]ScheduleConfig{
			"airtel": {
				"same_network": {
					Payee:    "Airtel Money",
					Category: "Transaction Fees",
					Tiers: []TierConfig{
						{Min: "0", Max: "500", Fee: "1.00"},
					},
				},
			},
		},
	}

	table, err := FromConfig(cfg)
	require.NoError(t, err)

	// The mentioned pair is replaced wholesale.
	quote := table.TransferFee(ProviderAirtel, model.TransferSameNetwork, d("400"))
	require.NotNil(t, quote.Fee)
	assert.True(t, quote.Fee.Equal(d("1.00")))

	quote = table.TransferFee(ProviderAirtel, model.TransferSameNetwork, d("600"))
	assert.True(t, quote.Configured)
	assert.Nil(t, quote.Fee, "amounts past the override's single tier are out of range")

	// Untouched pairs keep their defaults.
	quote = table.TransferFee(ProviderAirtel, model.TransferCrossNetwork, d("100"))
	require.NotNil(t, quote.Fee)
	assert.True(t, quote.Fee.Equal(d("2.00")))
}

func TestFromConfigNewProvider(t *testing.T) {
	cfg := TableConfig{
		Transfers: map[string]map[string]ScheduleConfig{
			"fnb": {
				"to_mobile": {
					Payee:    "FNB Zambia",
					Category: "Bank Charges",
					Tiers: []TierConfig{
						{Min: "0", Max: "10000", Fee: "8.00"},
					},
				},
			},
		},
		Notification: map[string]FlatFeeConfig{
			"fnb": {Fee: "0.90", Payee: "FNB Zambia", Category: "Bank Charges"},
		},
	}

	table, err := FromConfig(cfg)
	require.NoError(t, err)

	quote := table.TransferFee(ProviderFNB, model.TransferToMobile, d("2500"))
	require.NotNil(t, quote.Fee)
	assert.True(t, quote.Fee.Equal(d("8.00")))
	assert.Equal(t, "FNB Zambia", quote.Payee)

	quote = table.NotificationFee(ProviderFNB)
	require.NotNil(t, quote.Fee)
	assert.True(t, quote.Fee.Equal(d("0.90")))
}

func TestFromConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TableConfig
		wantErr string
	}{
		{
			name: "unknown transfer type",
			cfg: TableConfig{
				Transfers: map[string]map[string]ScheduleConfig{
					"airtel": {"teleport": {Tiers: []TierConfig{{Min: "0", Max: "1", Fee: "1"}}}},
				},
			},
			wantErr: "unknown transfer type",
		},
		{
			name: "inverted tier bounds",
			cfg: TableConfig{
				Transfers: map[string]map[string]ScheduleConfig{
					"airtel": {"same_network": {Tiers: []TierConfig{{Min: "500", Max: "100", Fee: "1"}}}},
				},
			},
			wantErr: "max must be greater than min",
		},
		{
			name: "unparseable amount",
			cfg: TableConfig{
				Transfers: map[string]map[string]ScheduleConfig{
					"airtel": {"same_network": {Tiers: []TierConfig{{Min: "0", Max: "lots", Fee: "1"}}}},
				},
			},
			wantErr: "tier 0 max",
		},
		{
			name: "bad notification fee",
			cfg: TableConfig{
				Notification: map[string]FlatFeeConfig{"zanaco": {Fee: "free"}},
			},
			wantErr: "notification fee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
