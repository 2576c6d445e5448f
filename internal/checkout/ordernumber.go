package checkout

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Ambiguous characters (0/O, 1/I/L) are excluded so support staff can read
// order numbers back over the phone.
const orderNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const orderNumberSuffixLen = 6

// newOrderNumber returns a human-readable unique-ish order number. The
// database unique index is the real guarantee; collisions retry upstream.
func newOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, orderNumberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating order number: %w", err)
	}
	for i := range buf {
		buf[i] = orderNumberAlphabet[int(buf[i])%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), buf), nil
}
