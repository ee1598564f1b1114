package utils

import "strings"

// MaskEmail keeps the first letter and the domain: "jane@example.com" -> "j***@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" {
		return "***"
	}
	if len(local) <= 1 {
		return local + "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// MaskPhone keeps the last two digits of a phone number.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 2 {
		return "***"
	}
	return "***" + phone[len(phone)-2:]
}

// MaskToken keeps a short prefix of a credential so log lines can be
// correlated without leaking it.
func MaskToken(token string, keep int) string {
	if keep <= 0 || len(token) <= keep {
		return "***"
	}
	return token[:keep] + "***"
}
