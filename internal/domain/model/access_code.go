package model

import "strings"

// AccessCode is a pre-seeded single-use token that grants a fixed number of
// days of channel access. Codes are stored lower-case; Used flips
// false -> true exactly once, at redemption, and never reverts.
type AccessCode struct {
	Code         string
	DurationDays int
	Used         bool
}

// NormalizeCode maps user input onto the canonical stored form.
func NormalizeCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
