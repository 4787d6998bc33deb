package validator

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Required fails for empty or whitespace-only values.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

// RequiredOneOf fails when every value is empty.
func RequiredOneOf(field string, values ...string) Rule {
	return Rule{
		Check: func() bool {
			for _, v := range values {
				if strings.TrimSpace(v) != "" {
					return true
				}
			}
			return false
		},
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

// MaxLen limits the value to maxLen characters.
func MaxLen(field, value string, maxLen int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= maxLen },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", maxLen)},
	}
}

// Email accepts a single RFC 5322 address with a dotted domain, with or
// without a display name ("Ada <ada@example.com>").
func Email(field, value string) Rule {
	return Rule{
		Check: func() bool { return isEmail(value) },
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// OptionalEmail is Email for fields that may be left empty.
func OptionalEmail(field, value string) Rule {
	return When(strings.TrimSpace(value) != "", Email(field, value))
}

func isEmail(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return false
	}

	local, domain, ok := strings.Cut(addr.Address, "@")
	if !ok || local == "" {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	for part := range strings.SplitSeq(domain, ".") {
		if part == "" {
			return false
		}
	}
	return true
}
