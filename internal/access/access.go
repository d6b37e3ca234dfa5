// Package access decides whether the caller of a request holds a permission.
package access

import (
	"context"
	"slices"
)

// AccessContent is the permission required to read published content.
const AccessContent = "access content"

// Account is the caller identity attached to a request context.
type Account struct {
	ID          string
	Roles       []string
	Permissions []string
}

// IsAnonymous reports whether the account was not authenticated.
func (a Account) IsAnonymous() bool {
	return a.ID == ""
}

type accountKey struct{}

// WithAccount returns a context carrying the account.
func WithAccount(ctx context.Context, acct Account) context.Context {
	return context.WithValue(ctx, accountKey{}, acct)
}

// AccountFrom returns the account stored in ctx, or the anonymous account.
func AccountFrom(ctx context.Context) Account {
	if acct, ok := ctx.Value(accountKey{}).(Account); ok {
		return acct
	}
	return Account{}
}

// Checker answers permission questions for the account in the request context.
type Checker struct {
	anonymous []string
}

// NewChecker builds a Checker granting anonymousPermissions to unauthenticated callers.
func NewChecker(anonymousPermissions []string) *Checker {
	return &Checker{anonymous: slices.Clone(anonymousPermissions)}
}

// HasPermission reports whether the caller holds permission.
func (c *Checker) HasPermission(ctx context.Context, permission string) bool {
	acct := AccountFrom(ctx)
	if acct.IsAnonymous() {
		return slices.Contains(c.anonymous, permission)
	}
	return slices.Contains(acct.Permissions, permission)
}
