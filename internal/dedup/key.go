// Package dedup derives the deterministic idempotency keys submitted with
// every ledger entry so that redelivery of the same message cannot create
// duplicates.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Entry kind tags. One message can yield several ledger entries; each kind
// gets its own tag so the keys never collide with each other.
const (
	KindTransaction     = "txn"
	KindTransferFee     = "fee"
	KindNotificationFee = "ntf"
	KindEstimatedFee    = "est"
)

// hashLen keeps tag + separator + digest within the ledger's 36-character
// idempotency key limit.
const hashLen = 32

const separator = "\x1f"

// Key builds the primary-transaction idempotency key for a message. The full
// timestamp including time-of-day goes into the digest: some providers send
// no per-transaction reference, and two equal transfers on the same day must
// still get distinct keys while an exact replay gets the identical one.
func Key(sender string, receivedAt time.Time, amountMinor int64, body string) string {
	payload := strings.Join([]string{
		sender,
		receivedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(amountMinor, 10),
		body,
	}, separator)

	sum := sha256.Sum256([]byte(payload))
	return KindTransaction + ":" + hex.EncodeToString(sum[:])[:hashLen]
}

// Rekey derives a key of another kind from an existing key by swapping the
// kind tag. The digest is kept, which ties a fee entry's key to its parent
// transaction's key deterministically.
func Rekey(key, kind string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return kind + key[i:]
	}
	return kind + ":" + key
}
