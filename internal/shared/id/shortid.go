package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultLength = 14
)

// Stripe-style prefixes, one per persisted entity.
const (
	PrefixRoutingRule      = "rr"
	PrefixProviderOverride = "po"
	PrefixRetryPolicy      = "rp"
	PrefixRetrySchedule    = "rs"
	PrefixRetryAttempt     = "ra"
	PrefixReminder         = "rm"
	PrefixDunningConfig    = "dc"
	PrefixDunningRun       = "dr"
	PrefixPaymentLink      = "pl"
	PrefixAlert            = "al"
	PrefixAuditEntry       = "au"
	PrefixSideEffect       = "se"
	PrefixServiceBundle    = "sb"
	PrefixMessage          = "msg"
	PrefixRoutingDecision  = "rd"
)

// Generate returns a cryptographically random Base62 string.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	result := make([]byte, length)
	n := big.NewInt(int64(len(alphabet)))
	for i := range result {
		num, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}
	return string(result), nil
}

// New returns "prefix_random". It panics only if the system RNG fails.
func New(prefix string) string {
	s, err := Generate(DefaultLength)
	if err != nil {
		panic(err)
	}
	return prefix + "_" + s
}

func ParsePrefixedID(prefixedID string) (prefix, shortID string, err error) {
	parts := strings.SplitN(prefixedID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid prefixed ID format: %s", prefixedID)
	}
	return parts[0], parts[1], nil
}

func ValidatePrefix(prefixedID, expectedPrefix string) error {
	prefix, _, err := ParsePrefixedID(prefixedID)
	if err != nil {
		return err
	}
	if prefix != expectedPrefix {
		return fmt.Errorf("invalid prefix: expected %s, got %s", expectedPrefix, prefix)
	}
	return nil
}
