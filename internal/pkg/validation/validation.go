package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Names: letters in any script, spaces, hyphens, apostrophes and dots.
var fullnameRe = regexp.MustCompile(`^[\p{L}\p{M}\s\-'.]+$`)

// Phones: optional leading +, then digits with spaces or dashes, 7 to 15 digits.
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires at least 8 characters with a letter, a digit and
// a punctuation or symbol character.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit, hasSpecial := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

func IsValidFullname(fullname string) bool {
	return strings.TrimSpace(fullname) != "" && fullnameRe.MatchString(fullname)
}

func IsValidPhone(phone string) bool {
	if !phoneRe.MatchString(phone) {
		return false
	}
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}
