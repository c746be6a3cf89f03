package services

import (
	"net/mail"
	"strings"
	"unicode"
)

// NormalizeMobile strips spaces, dashes and an Indian country prefix and requires
// ten digits.
func NormalizeMobile(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r != ' ' && r != '-' && r != '+' {
			return "", invalid("mobileNumber", "mobile number may only contain digits")
		}
	}
	digits := b.String()
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", invalid("mobileNumber", "mobile number must have 10 digits")
	}
	return digits, nil
}

func ValidateEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "enter a valid email address")
	}
	return email, nil
}

// NormalizeTags lower-cases, trims and de-duplicates tags, keeping first-seen order.
// Comma-separated entries are split.
func NormalizeTags(raw []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, entry := range raw {
		for _, t := range strings.Split(entry, ",") {
			t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
