// Package credstore holds user credentials. It registers accounts with
// bcrypt-hashed passwords and verifies login attempts against the
// stored hashes.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// HashCost is the bcrypt work factor applied to every password.
const HashCost = 10

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error)
	FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)
}

// CredStore implements registration and credential verification on top
// of the user storage.
type CredStore struct {
	db userKeeper
}

// New returns a CredStore backed by the given user storage.
func New(db userKeeper) *CredStore {
	return &CredStore{db: db}
}

// Register creates an account for the given email. The plaintext
// password is hashed before any storage call and discarded; only the
// hash is stored.
//
// Returns models.ErrInvalidInput when either field is empty and
// models.ErrDuplicateEmail when the exact email is already registered.
func (c *CredStore) Register(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, models.ErrInvalidInput
	}

	// Hashing is CPU-bound; it must finish before the storage layer
	// takes any lock.
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return nil, fmt.Errorf("error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}

	usr := &user.User{
		Email:        email,
		PasswordHash: string(passwordHash),
	}
	if _, err := c.db.CreateUser(ctx, usr, nil); err != nil {
		return nil, err
	}

	return usr, nil
}

// Verify checks the given credentials against the stored account.
//
// It distinguishes models.ErrUnknownEmail from models.ErrWrongPassword
// so callers can classify the failure internally; the HTTP layer
// presents both identically.
func (c *CredStore) Verify(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, models.ErrInvalidInput
	}

	usr, found, err := c.db.FindUserByEmail(ctx, email, nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrUnknownEmail
	}

	err = bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, models.ErrWrongPassword
		}
		return nil, err
	}

	return usr, nil
}
