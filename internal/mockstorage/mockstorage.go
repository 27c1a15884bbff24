// Package mockstorage provides a testify-based mock implementation of
// the storage interface for unit testing handlers and services without
// a real backend.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// StorageMock is a testify mock implementing storage.Storage.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks user creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	args := m.Called(ctx, usr, transaction)
	return args.String(0), args.Error(1)
}

// GetUserByID mocks the user lookup by ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	args := m.Called(ctx, userID, transaction)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// FindUserByEmail mocks the user lookup by email.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	args := m.Called(ctx, email, transaction)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetNumberOfUsers mocks the user counter.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// SaveAlias mocks alias insertion.
func (m *StorageMock) SaveAlias(ctx context.Context, a *alias.Alias, transaction *sql.Tx) error {
	args := m.Called(ctx, a, transaction)
	return args.Error(0)
}

// GetAliasByCode mocks the alias lookup.
func (m *StorageMock) GetAliasByCode(ctx context.Context, code string) (*alias.Alias, bool, error) {
	args := m.Called(ctx, code)
	a, _ := args.Get(0).(*alias.Alias)
	return a, args.Bool(1), args.Error(2)
}

// GetAliasesByOwner mocks the owner-scoped listing.
func (m *StorageMock) GetAliasesByOwner(ctx context.Context, ownerID string) ([]*alias.Alias, error) {
	args := m.Called(ctx, ownerID)
	aliases, _ := args.Get(0).([]*alias.Alias)
	return aliases, args.Error(1)
}

// UpdateAliasTarget mocks the target update.
func (m *StorageMock) UpdateAliasTarget(ctx context.Context, code, newTargetURL string, transaction *sql.Tx) error {
	args := m.Called(ctx, code, newTargetURL, transaction)
	return args.Error(0)
}

// DeleteAlias mocks single alias removal.
func (m *StorageMock) DeleteAlias(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

// DeleteOwnerAliases mocks the batch removal.
func (m *StorageMock) DeleteOwnerAliases(ctx context.Context, ownersCodes map[string][]string) error {
	args := m.Called(ctx, ownersCodes)
	return args.Error(0)
}

// GetNumberOfAliases mocks the alias counter.
func (m *StorageMock) GetNumberOfAliases(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the backend.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
