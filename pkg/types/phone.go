package types

import (
	"regexp"
	"strings"
)

// phonePattern matches the 10-digit mobile numbers accepted by the sign-in
// surface. No country code, no separators.
var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// PhoneNumber is a normalized 10-digit mobile number.
type PhoneNumber string

// ParsePhoneNumber trims and validates a raw phone input.
func ParsePhoneNumber(raw string) (PhoneNumber, bool) {
	cleaned := strings.TrimSpace(raw)
	if !phonePattern.MatchString(cleaned) {
		return "", false
	}
	return PhoneNumber(cleaned), true
}

func (p PhoneNumber) String() string {
	return string(p)
}
