package fees

import (
	"regexp"
	"strings"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

// Provider is the bank or mobile-money operator that sent a message.
type Provider string

// Known providers.
const (
	ProviderAirtel  Provider = "airtel"
	ProviderMTN     Provider = "mtn"
	ProviderZamtel  Provider = "zamtel"
	ProviderAbsa    Provider = "absa"
	ProviderZanaco  Provider = "zanaco"
	ProviderFNB     Provider = "fnb"
	ProviderStanbic Provider = "stanbic"
	ProviderUnknown Provider = "unknown"
)

// providerKeywords maps sender-id fragments to providers. Order matters:
// the first match wins.
var providerKeywords = []struct {
	keyword  string
	provider Provider
}{
	{"airtel", ProviderAirtel},
	{"mtn", ProviderMTN},
	{"momo", ProviderMTN},
	{"zamtel", ProviderZamtel},
	{"zamkwacha", ProviderZamtel},
	{"absa", ProviderAbsa},
	{"zanaco", ProviderZanaco},
	{"fnb", ProviderFNB},
	{"stanbic", ProviderStanbic},
}

// SenderProvider resolves a raw sender identifier to a provider by
// case-insensitive substring matching. Unmatched senders map to
// ProviderUnknown, which has no fee schedules.
func SenderProvider(sender string) Provider {
	lowered := strings.ToLower(sender)
	for _, entry := range providerKeywords {
		if strings.Contains(lowered, entry.keyword) {
			return entry.provider
		}
	}
	return ProviderUnknown
}

// Zambian mobile numbers: optional +260/260 country code or leading zero,
// then a two-digit network prefix and seven digits.
var phonePattern = regexp.MustCompile(`(?:\+?260|\b0)(9[5-7]|7[5-7])(\d{7})\b`)

// mobileMoneyPrefixes are the network prefixes that carry mobile wallets.
var mobileMoneyPrefixes = map[string]Provider{
	"95": ProviderZamtel,
	"96": ProviderMTN,
	"76": ProviderMTN,
	"97": ProviderAirtel,
	"77": ProviderAirtel,
	"75": ProviderAirtel,
}

// InferTransferType derives a transfer type from a recipient phone number in
// the message body. A number on a mobile-money prefix implies a transfer to a
// mobile wallet; anything else stays unknown. Used only when the classifier
// supplies no usable tag.
func InferTransferType(body string) model.TransferType {
	match := phonePattern.FindStringSubmatch(body)
	if match == nil {
		return model.TransferUnknown
	}
	if _, ok := mobileMoneyPrefixes[match[1]]; ok {
		return model.TransferToMobile
	}
	return model.TransferUnknown
}

// RecipientNetwork reports which mobile network a recipient number in the
// body belongs to, for logging.
func RecipientNetwork(body string) Provider {
	match := phonePattern.FindStringSubmatch(body)
	if match == nil {
		return ProviderUnknown
	}
	if provider, ok := mobileMoneyPrefixes[match[1]]; ok {
		return provider
	}
	return ProviderUnknown
}
