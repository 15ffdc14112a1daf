package referral

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// Alphabet omits I, O, 0 and 1 so codes survive being read aloud.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	MinCodeLength = 8
	MaxCodeLength = 20
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Generator produces candidate codes. Collisions are resolved by the caller.
type Generator func(length int) (string, error)

// RandomCode draws length characters from Alphabet. The alphabet has 32
// symbols so a byte modulo its length is uniform.
func RandomCode(length int) (string, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return "", fmt.Errorf("code length %d outside %d..%d", length, MinCodeLength, MaxCodeLength)
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// ValidFormat reports whether code is an acceptable custom referral code.
func ValidFormat(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}
	return customCodeRe.MatchString(code)
}
