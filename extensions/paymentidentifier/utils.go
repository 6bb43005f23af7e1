package paymentidentifier

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	x402 "github.com/x402-foundation/x402-go"
)

// GeneratePaymentID generates a unique payment identifier with the given
// prefix. An empty prefix defaults to "pay_". The result is the prefix plus
// a UUID v4 without hyphens, e.g. "pay_7d5d747be160e280504c099d984bcfe0".
func GeneratePaymentID(prefix string) string {
	if prefix == "" {
		prefix = "pay_"
	}
	uuidStr := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + uuidStr
}

// PayloadFingerprint computes a deterministic hash of a payment payload so
// two payloads carrying the same payment ID can be compared for conflict
// detection.
func PayloadFingerprint(payload x402.PaymentPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// IsValidPaymentID reports whether an ID meets the format requirements:
// 16-128 characters, alphanumerics plus hyphen and underscore.
func IsValidPaymentID(id string) bool {
	if len(id) < PAYMENT_ID_MIN_LENGTH || len(id) > PAYMENT_ID_MAX_LENGTH {
		return false
	}
	return PAYMENT_ID_PATTERN.MatchString(id)
}
