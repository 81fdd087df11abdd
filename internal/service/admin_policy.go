package service

import "strings"

// AdminPolicy decides whether an identity email may manage publications.
type AdminPolicy func(email string) bool

// NewEmailPolicy allows exactly the listed addresses. Surrounding whitespace in
// the configured entries is ignored; the comparison itself is exact.
func NewEmailPolicy(emails ...string) AdminPolicy {
	allowed := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if email = strings.TrimSpace(email); email != "" {
			allowed[email] = struct{}{}
		}
	}
	return func(email string) bool {
		_, ok := allowed[email]
		return ok
	}
}
