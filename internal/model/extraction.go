package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Direction indicates which way money moved relative to the routed account.
type Direction string

// Direction constants.
const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
)

// ParseDirection normalizes a direction string. Returns nil for anything that
// is not a recognized direction.
func ParseDirection(s string) *Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inflow":
		d := DirectionInflow
		return &d
	case "outflow":
		d := DirectionOutflow
		return &d
	default:
		return nil
	}
}

// TransferType is a coarse classification of the economic nature of an
// outflow, used solely to select a fee schedule.
type TransferType string

// Transfer type constants.
const (
	TransferSameNetwork  TransferType = "same_network"
	TransferCrossNetwork TransferType = "cross_network"
	TransferToBank       TransferType = "to_bank"
	TransferToMobile     TransferType = "to_mobile"
	TransferWithdrawal   TransferType = "withdrawal"
	TransferAirtime      TransferType = "airtime"
	TransferBillPayment  TransferType = "bill_payment"
	TransferPointOfSale  TransferType = "point_of_sale"
	TransferUnknown      TransferType = "unknown"
)

// ParseTransferType normalizes a transfer-type tag. Unrecognized or empty
// values map to TransferUnknown.
func ParseTransferType(s string) TransferType {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case string(TransferSameNetwork):
		return TransferSameNetwork
	case string(TransferCrossNetwork):
		return TransferCrossNetwork
	case string(TransferToBank):
		return TransferToBank
	case string(TransferToMobile):
		return TransferToMobile
	case string(TransferWithdrawal):
		return TransferWithdrawal
	case string(TransferAirtime):
		return TransferAirtime
	case string(TransferBillPayment):
		return TransferBillPayment
	case string(TransferPointOfSale), "pos":
		return TransferPointOfSale
	default:
		return TransferUnknown
	}
}

// Known reports whether the transfer type selects a fee schedule.
func (t TransferType) Known() bool {
	return t != "" && t != TransferUnknown
}

// Extraction is the classifier's structured opinion about a Message.
// Produced once per message and never mutated. Nil pointer fields mean the
// classifier could not resolve that field, which is distinct from a present
// zero value.
type Extraction struct {
	Amount        *decimal.Decimal
	Direction     *Direction
	IsTransaction bool
	IsFollowUp    bool
	PayeeIsNew    bool
	Reason        string
	Payee         string
	Category      string
	Memo          string
	Reference     string
	TransferType  TransferType
}

// MinorUnits converts a major-unit amount to minor units (ngwee).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
