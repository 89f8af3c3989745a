package main

import (
	"strings"

	"github.com/GuardianChain/launch_layer/internal/middleware"
)

// operatorSet is the allowlist of operator IDs that may hold an admin token.
type operatorSet map[string]struct{}

func newOperatorSet(ids []string) operatorSet {
	out := make(operatorSet)
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		out[trimmed] = struct{}{}
	}
	return out
}

// resolveRole returns the role granted to userID, or "" when none.
func (s operatorSet) resolveRole(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ""
	}
	if _, ok := s[userID]; ok {
		return middleware.RoleAdmin
	}
	return ""
}
