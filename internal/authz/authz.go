// Package authz holds the pure permission decision. It has no I/O: callers
// resolve the user first and pass the record in.
package authz

import (
	"strings"

	"filepanel/internal/models"
)

// Allow decides whether user may exercise cap on path. An empty path means
// the operation is not path-bearing and the capability flag alone governs.
//
// Order of evaluation:
//  1. admins bypass the whole capability model;
//  2. the capability flag must be set;
//  3. deny-list prefixes win over everything else;
//  4. an empty allow-list imposes no restriction;
//  5. otherwise some allow-list entry must prefix the path.
//
// Matching is a literal string-prefix test, not path-segment aware: a rule
// for "/secret" also matches "/secretfiles". That over-broad match is the
// documented behavior callers must account for when writing rules.
func Allow(user *models.User, cap models.Capability, path string) bool {
	if user == nil {
		return false
	}

	if user.Role == models.RoleAdmin {
		return true
	}

	if !user.Permissions.Has(cap) {
		return false
	}

	if path == "" {
		return true
	}

	for _, denied := range user.Permissions.DeniedPaths {
		if strings.HasPrefix(path, denied) {
			return false
		}
	}

	if len(user.Permissions.AllowedPaths) == 0 {
		return true
	}

	for _, allowed := range user.Permissions.AllowedPaths {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}
	return false
}
