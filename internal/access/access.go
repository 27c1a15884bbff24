// Package access is the authorization policy applied before every
// owner-scoped alias operation. It is a pure function over the caller
// and the target record; the public redirect path never consults it.
package access

import (
	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// Action is the kind of alias-scoped operation being authorized.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionDelete
)

// Authorize decides whether caller may perform action on a.
//
// A nil caller is the anonymous identity and is denied with
// models.ErrUnauthenticated. An authenticated caller who is not the
// owner is denied with models.ErrForbidden. The owner is allowed.
func Authorize(caller *user.User, a *alias.Alias, action Action) error {
	if caller == nil || caller.ID == "" {
		return models.ErrUnauthenticated
	}
	if a.OwnerID != caller.ID {
		return models.ErrForbidden
	}

	return nil
}

// RequireAuthenticated covers owner-scoped actions that have no target
// record yet, such as creating an alias or listing one's own aliases.
func RequireAuthenticated(caller *user.User) error {
	if caller == nil || caller.ID == "" {
		return models.ErrUnauthenticated
	}

	return nil
}
