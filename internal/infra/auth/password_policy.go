package auth

import (
	"fmt"
	"unicode"

	"reviewhub/config"
	"reviewhub/internal/domain/service"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are rejected outright.
const maxPasswordBytes = 72

type passwordPolicy struct {
	cfg config.PasswordPolicyConfig
}

// NewPasswordPolicy captures the configured rules once.
func NewPasswordPolicy(cfg *config.Config) service.PasswordPolicy {
	rules := config.DefaultPasswordPolicy()
	if cfg != nil && cfg.PasswordPolicy != nil {
		rules = cfg.PasswordPolicy
	}

	return &passwordPolicy{cfg: *rules}
}

func (p *passwordPolicy) Validate(password string) []string {
	var reasons []string

	if len([]rune(password)) < p.cfg.MinLength {
		reasons = append(reasons, fmt.Sprintf("Passwords must be at least %d characters.", p.cfg.MinLength))
	}
	if len(password) > maxPasswordBytes {
		reasons = append(reasons, fmt.Sprintf("Passwords must be at most %d bytes.", maxPasswordBytes))
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	unique := make(map[rune]struct{})
	for _, r := range password {
		unique[r] = struct{}{}
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasOther = true
		}
	}

	if p.cfg.RequireNonAlphanumeric && !hasOther {
		reasons = append(reasons, "Passwords must have at least one non alphanumeric character.")
	}
	if p.cfg.RequireDigit && !hasDigit {
		reasons = append(reasons, "Passwords must have at least one digit ('0'-'9').")
	}
	if p.cfg.RequireLowercase && !hasLower {
		reasons = append(reasons, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if p.cfg.RequireUppercase && !hasUpper {
		reasons = append(reasons, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	if len(unique) < p.cfg.RequiredUniqueChars {
		reasons = append(reasons, fmt.Sprintf("Passwords must use at least %d different characters.", p.cfg.RequiredUniqueChars))
	}

	return reasons
}
