package credentials

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

const (
	MinUsernameLength = 5
	MaxUsernameLength = 40
	MinPasswordLength = 8
	MaxPasswordLength = 32
	MinEmailLength    = 5
	MaxEmailLength    = 40
)

// ValidateCredentials enforces the username and password length bounds.
// Lengths are counted in characters, not bytes.
func ValidateCredentials(username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// ValidateUsername also rejects '@': sign-in treats any login containing it
// as an email address.
func ValidateUsername(username string) error {
	switch n := utf8.RuneCountInString(username); {
	case n < MinUsernameLength:
		return common.ErrUsernameTooShort
	case n > MaxUsernameLength:
		return common.ErrUsernameTooLong
	}
	if strings.Contains(username, "@") {
		return common.ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < MinPasswordLength:
		return common.ErrPasswordTooShort
	case n > MaxPasswordLength:
		return common.ErrPasswordTooLong
	}
	return nil
}

// ValidateEmail checks length and a minimal address shape: exactly one '@'
// after a non-empty local part, a '.' somewhere in the domain, no "..", and
// no trailing '.'.
func ValidateEmail(email string) error {
	switch n := utf8.RuneCountInString(email); {
	case n < MinEmailLength:
		return common.ErrEmailTooShort
	case n > MaxEmailLength:
		return common.ErrEmailTooLong
	}

	if strings.Count(email, "@") != 1 || strings.Contains(email, "..") || strings.HasSuffix(email, ".") {
		return common.ErrInvalidEmail
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") {
		return common.ErrInvalidEmail
	}
	return nil
}
