package fees

import (
	"github.com/shopspring/decimal"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

func tier(min, max, fee string) Tier {
	return Tier{
		Min: decimal.RequireFromString(min),
		Max: decimal.RequireFromString(max),
		Fee: decimal.RequireFromString(fee),
	}
}

func flat(fee, payee, category string) FlatFee {
	return FlatFee{
		Fee:      decimal.RequireFromString(fee),
		Payee:    payee,
		Category: category,
	}
}

// DefaultTable returns the built-in Zambian provider fee tables. Deployments
// can override any of it from configuration without touching the lookup
// algorithm.
func DefaultTable() *Table {
	airtelTiers := func(payee string, tiers ...Tier) Schedule {
		return Schedule{Payee: payee, Category: "Transaction Fees", Tiers: tiers}
	}

	return &Table{
		Transfers: map[Provider]map[model.TransferType]Schedule{
			ProviderAirtel: {
				model.TransferSameNetwork: airtelTiers("Airtel Money",
					tier("0", "150", "0.58"),
					tier("150", "300", "1.10"),
					tier("300", "500", "2.50"),
					tier("500", "1000", "4.00"),
					tier("1000", "3000", "6.50"),
					tier("3000", "5000", "8.00"),
					tier("5000", "10000", "10.50"),
				),
				model.TransferCrossNetwork: airtelTiers("Airtel Money",
					tier("0", "150", "2.00"),
					tier("150", "300", "4.00"),
					tier("300", "500", "6.00"),
					tier("500", "1000", "8.50"),
					tier("1000", "3000", "12.00"),
					tier("3000", "5000", "15.00"),
					tier("5000", "10000", "20.00"),
				),
				model.TransferToBank: airtelTiers("Airtel Money",
					tier("0", "500", "5.00"),
					tier("500", "3000", "10.00"),
					tier("3000", "10000", "15.00"),
				),
				model.TransferWithdrawal: airtelTiers("Airtel Money",
					tier("0", "150", "2.00"),
					tier("150", "300", "4.00"),
					tier("300", "500", "6.00"),
					tier("500", "1000", "10.00"),
					tier("1000", "3000", "15.00"),
					tier("3000", "5000", "20.00"),
					tier("5000", "10000", "25.00"),
				),
				// Airtime and bill payments are free on Airtel.
				model.TransferAirtime:     airtelTiers("Airtel Money"),
				model.TransferBillPayment: airtelTiers("Airtel Money"),
			},
			ProviderMTN: {
				model.TransferSameNetwork: {
					Payee:    "MTN Mobile Money",
					Category: "Transaction Fees",
					Tiers: []Tier{
						tier("0", "150", "0.60"),
						tier("150", "300", "1.20"),
						tier("300", "500", "2.60"),
						tier("500", "1000", "4.20"),
						tier("1000", "3000", "6.80"),
						tier("3000", "5000", "8.50"),
						tier("5000", "10000", "11.00"),
					},
				},
				model.TransferCrossNetwork: {
					Payee:    "MTN Mobile Money",
					Category: "Transaction Fees",
					Tiers: []Tier{
						tier("0", "150", "2.20"),
						tier("150", "300", "4.20"),
						tier("300", "500", "6.40"),
						tier("500", "1000", "9.00"),
						tier("1000", "3000", "12.50"),
						tier("3000", "10000", "18.00"),
					},
				},
				model.TransferWithdrawal: {
					Payee:    "MTN Mobile Money",
					Category: "Transaction Fees",
					Tiers: []Tier{
						tier("0", "150", "2.00"),
						tier("150", "300", "4.00"),
						tier("300", "500", "6.50"),
						tier("500", "1000", "10.00"),
						tier("1000", "3000", "15.50"),
						tier("3000", "10000", "24.00"),
					},
				},
				model.TransferAirtime: {
					Payee:    "MTN Mobile Money",
					Category: "Transaction Fees",
				},
			},
			ProviderZamtel: {
				model.TransferSameNetwork: {
					Payee:    "Zamtel Kwacha",
					Category: "Transaction Fees",
					Tiers: []Tier{
						tier("0", "150", "0.50"),
						tier("150", "300", "1.00"),
						tier("300", "500", "2.30"),
						tier("500", "1000", "3.80"),
						tier("1000", "10000", "6.00"),
					},
				},
				model.TransferAirtime: {
					Payee:    "Zamtel Kwacha",
					Category: "Transaction Fees",
				},
			},
			ProviderAbsa: {
				model.TransferToMobile: {
					Payee:    "Absa Bank",
					Category: "Bank Charges",
					Tiers: []Tier{
						tier("0", "1000", "10.00"),
						tier("1000", "5000", "12.50"),
						tier("5000", "25000", "15.00"),
					},
				},
				model.TransferToBank: {
					Payee:    "Absa Bank",
					Category: "Bank Charges",
					Tiers: []Tier{
						tier("0", "25000", "20.00"),
					},
				},
			},
			ProviderZanaco: {
				model.TransferToMobile: {
					Payee:    "Zanaco",
					Category: "Bank Charges",
					Tiers: []Tier{
						tier("0", "1000", "9.00"),
						tier("1000", "5000", "11.50"),
						tier("5000", "25000", "14.00"),
					},
				},
			},
		},
		Notification: map[Provider]FlatFee{
			ProviderZanaco:  flat("1.00", "Zanaco", "Bank Charges"),
			ProviderStanbic: flat("0.80", "Stanbic Bank", "Bank Charges"),
		},
		Estimated: map[Provider]FlatFee{
			ProviderZanaco:  flat("10.00", "Zanaco", "Bank Charges"),
			ProviderStanbic: flat("12.00", "Stanbic Bank", "Bank Charges"),
		},
	}
}
