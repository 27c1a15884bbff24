// Package storage declares the persistence contract shared by the
// memory, JSON file and PostgreSQL backends. The maps holding users and
// aliases belong to the implementations of this interface, never to
// request-handling code.
package storage

import (
	"context"
	"database/sql"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// UserKeeper persists user accounts and enforces email uniqueness.
type UserKeeper interface {
	// CreateUser stores usr and returns its ID, generating one when
	// usr.ID is empty. It returns models.ErrDuplicateEmail when another
	// user already holds the exact same email.
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)

	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error)

	// FindUserByEmail reports found=false (not an error) for unknown emails.
	FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)
}

// AliasKeeper persists short-code records.
type AliasKeeper interface {
	// SaveAlias stores a new alias record. It returns
	// models.ErrCodeTaken when another alias already holds the code; the
	// existence check and the insert are one atomic step, an existing
	// record is never overwritten.
	SaveAlias(ctx context.Context, a *alias.Alias, transaction *sql.Tx) error

	// GetAliasByCode reports found=false for unknown codes.
	GetAliasByCode(ctx context.Context, code string) (*alias.Alias, bool, error)

	// GetAliasesByOwner returns exactly the aliases with OwnerID == ownerID.
	GetAliasesByOwner(ctx context.Context, ownerID string) ([]*alias.Alias, error)

	// UpdateAliasTarget replaces the target URL of an existing alias.
	UpdateAliasTarget(ctx context.Context, code, newTargetURL string, transaction *sql.Tx) error

	// DeleteAlias removes the alias and reports whether it existed.
	DeleteAlias(ctx context.Context, code string) (bool, error)

	// DeleteOwnerAliases removes, per owner, only the listed codes that
	// the owner actually holds. Codes owned by someone else are skipped.
	DeleteOwnerAliases(ctx context.Context, ownersCodes map[string][]string) error

	GetNumberOfAliases(ctx context.Context) (int64, error)
}

// Transactioner exposes the transaction boundary of the backend.
// Backends without transactions return a nil *sql.Tx and no-op.
type Transactioner interface {
	BeginTransaction() (*sql.Tx, error)
	RollbackTransaction(transaction *sql.Tx) error
	CommitTransaction(transaction *sql.Tx) error
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Storage is the full persistence contract the application is wired with.
type Storage interface {
	UserKeeper
	AliasKeeper
	Transactioner
	Pinger
	Close() error
}
