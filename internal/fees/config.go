package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

// TierConfig is the configuration-file form of one amount tier.
type TierConfig struct {
	Min string `mapstructure:"min"`
	Max string `mapstructure:"max"`
	Fee string `mapstructure:"fee"`
}

// ScheduleConfig is the configuration-file form of one schedule.
type ScheduleConfig struct {
	Payee    string       `mapstructure:"payee"`
	Category string       `mapstructure:"category"`
	Tiers    []TierConfig `mapstructure:"tiers"`
}

// FlatFeeConfig is the configuration-file form of a flat per-event fee.
type FlatFeeConfig struct {
	Fee      string `mapstructure:"fee"`
	Payee    string `mapstructure:"payee"`
	Category string `mapstructure:"category"`
}

// TableConfig overrides parts of the built-in fee tables. Providers or
// transfer types not mentioned keep their defaults; a mentioned pair replaces
// its default schedule wholesale.
type TableConfig struct {
	Transfers    map[string]map[string]ScheduleConfig `mapstructure:"transfers"`
	Notification map[string]FlatFeeConfig             `mapstructure:"notification"`
	Estimated    map[string]FlatFeeConfig             `mapstructure:"estimated"`
}

// FromConfig builds a fee table by applying cfg on top of the defaults.
func FromConfig(cfg TableConfig) (*Table, error) {
	table := DefaultTable()

	for providerName, byType := range cfg.Transfers {
		provider := Provider(providerName)
		if table.Transfers[provider] == nil {
			table.Transfers[provider] = make(map[model.TransferType]Schedule)
		}
		for typeName, schedCfg := range byType {
			transferType := model.ParseTransferType(typeName)
			if !transferType.Known() {
				return nil, fmt.Errorf("fee config: unknown transfer type %q for provider %q", typeName, providerName)
			}
			schedule, err := schedCfg.schedule()
			if err != nil {
				return nil, fmt.Errorf("fee config: provider %q type %q: %w", providerName, typeName, err)
			}
			table.Transfers[provider][transferType] = schedule
		}
	}

	for providerName, flatCfg := range cfg.Notification {
		fee, err := flatCfg.flatFee()
		if err != nil {
			return nil, fmt.Errorf("fee config: notification fee for %q: %w", providerName, err)
		}
		table.Notification[Provider(providerName)] = fee
	}

	for providerName, flatCfg := range cfg.Estimated {
		fee, err := flatCfg.flatFee()
		if err != nil {
			return nil, fmt.Errorf("fee config: estimated fee for %q: %w", providerName, err)
		}
		table.Estimated[Provider(providerName)] = fee
	}

	return table, nil
}

func (c ScheduleConfig) schedule() (Schedule, error) {
	schedule := Schedule{
		Payee:    c.Payee,
		Category: c.Category,
	}
	for i, tierCfg := range c.Tiers {
		min, err := decimal.NewFromString(tierCfg.Min)
		if err != nil {
			return Schedule{}, fmt.Errorf("tier %d min: %w", i, err)
		}
		max, err := decimal.NewFromString(tierCfg.Max)
		if err != nil {
			return Schedule{}, fmt.Errorf("tier %d max: %w", i, err)
		}
		fee, err := decimal.NewFromString(tierCfg.Fee)
		if err != nil {
			return Schedule{}, fmt.Errorf("tier %d fee: %w", i, err)
		}
		if !max.GreaterThan(min) {
			return Schedule{}, fmt.Errorf("tier %d: max must be greater than min", i)
		}
		schedule.Tiers = append(schedule.Tiers, Tier{Min: min, Max: max, Fee: fee})
	}
	return schedule, nil
}

func (c FlatFeeConfig) flatFee() (FlatFee, error) {
	fee, err := decimal.NewFromString(c.Fee)
	if err != nil {
		return FlatFee{}, fmt.Errorf("fee amount: %w", err)
	}
	return FlatFee{Fee: fee, Payee: c.Payee, Category: c.Category}, nil
}
