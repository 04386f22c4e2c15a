package utils

import "regexp"

// Input validation rules applied before any request reaches a repository.
var (
	// UserNameRE: 4-20 chars, letters, digits, underscore.
	UserNameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{4,20}$`)
	// EmailRE: minimal sanity check, the mail system is the real validator.
	EmailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// PhoneRE: mainland mobile number format.
	PhoneRE = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// CheckPasswordComplexity enforces the password policy: at least 8
// characters with an upper-case letter, a lower-case letter and a digit.
func CheckPasswordComplexity(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasNum bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasNum = true
		}
	}
	return hasUpper && hasLower && hasNum
}
