// backend/internal/domain/user/password.go
package user

import (
	"regexp"
	"strings"
)

type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// PasswordCheck is the result of ValidatePassword.
type PasswordCheck struct {
	Valid    bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Strength Strength `json:"strength"`
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)

	weakPrefixes = []string{
		"12345678", "password", "qwerty", "abc123", "letmein", "welcome",
		"monkey", "dragon", "master", "admin", "111111", "123123",
	}
	// only these three lower the strength score
	strengthPenaltyPrefixes = []string{"12345678", "password", "qwerty"}
)

func hasPrefixFold(s string, prefixes []string) bool {
	ls := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(ls, p) {
			return true
		}
	}
	return false
}

// hasRun reports a character repeated 4+ times in a row.
// (RE2 has no backreferences, hence the loop.)
func hasRun(s string) bool {
	rs := []rune(s)
	run := 1
	for i := 1; i < len(rs); i++ {
		if rs[i] == rs[i-1] {
			run++
			if run >= 4 {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}

func ValidatePassword(pw string) PasswordCheck {
	var errs []string
	if len([]rune(pw)) < 8 {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if !upperRe.MatchString(pw) {
		errs = append(errs, "Password must contain at least one uppercase letter (A-Z)")
	}
	if !lowerRe.MatchString(pw) {
		errs = append(errs, "Password must contain at least one lowercase letter (a-z)")
	}
	if !digitRe.MatchString(pw) {
		errs = append(errs, "Password must contain at least one number (0-9)")
	}
	if !specialRe.MatchString(pw) {
		errs = append(errs, "Password must contain at least one special character")
	}
	if hasPrefixFold(pw, weakPrefixes) || hasRun(pw) {
		errs = append(errs, "Password contains a common or weak pattern. Please choose a more unique password")
	}
	return PasswordCheck{Valid: len(errs) == 0, Errors: errs, Strength: PasswordStrength(pw)}
}

func PasswordStrength(pw string) Strength {
	n := len([]rune(pw))
	score := 0
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}
	for _, re := range []*regexp.Regexp{lowerRe, upperRe, digitRe, specialRe} {
		if re.MatchString(pw) {
			score++
		}
	}
	if n >= 16 {
		score++
	}
	if hasPrefixFold(pw, strengthPenaltyPrefixes) {
		score -= 2
		if score < 0 {
			score = 0
		}
	}
	switch {
	case score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}
