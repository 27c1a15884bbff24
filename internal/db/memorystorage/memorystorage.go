// Package memorystorage is the default storage backend. It keeps users
// and aliases in process-local maps guarded by read-write mutexes;
// email and code uniqueness are checked and enforced under the same
// write lock as the insert, so concurrent writers cannot lose updates.
package memorystorage

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// MemoryStorage implements storage.Storage on top of in-memory maps.
// All state is lost on restart.
type MemoryStorage struct {
	usersMu sync.RWMutex
	// usersByID is the authoritative user map; usersByEmail is a
	// secondary index kept in lockstep to enforce email uniqueness.
	usersByID    map[string]*user.User
	usersByEmail map[string]*user.User

	aliasesMu sync.RWMutex
	aliases   map[string]*alias.Alias
}

// New returns an empty MemoryStorage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		usersByID:    map[string]*user.User{},
		usersByEmail: map[string]*user.User{},
		aliases:      map[string]*alias.Alias{},
	}, nil
}

// CreateUser stores usr under a fresh UUID unless usr.ID is already set.
// The duplicate-email check and the insert happen under one write lock.
func (s *MemoryStorage) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, exists := s.usersByEmail[usr.Email]; exists {
		return "", models.ErrDuplicateEmail
	}

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}

	stored := *usr
	s.usersByID[stored.ID] = &stored
	s.usersByEmail[stored.Email] = &stored

	return stored.ID, nil
}

// GetUserByID returns a copy of the stored user or nil when unknown.
func (s *MemoryStorage) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	usr, found := s.usersByID[userID]
	if !found {
		return nil, nil
	}
	result := *usr

	return &result, nil
}

// FindUserByEmail looks up a user by exact email match.
func (s *MemoryStorage) FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	usr, found := s.usersByEmail[email]
	if !found {
		return nil, false, nil
	}
	result := *usr

	return &result, true, nil
}

// GetNumberOfUsers returns the total amount of registered users.
func (s *MemoryStorage) GetNumberOfUsers(ctx context.Context) (int64, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	return int64(len(s.usersByID)), nil
}

// SaveAlias inserts a new alias record. The existence check and the
// insert share one write lock, so a colliding code from a concurrent
// writer is rejected instead of overwriting the stored record.
func (s *MemoryStorage) SaveAlias(ctx context.Context, a *alias.Alias, transaction *sql.Tx) error {
	s.aliasesMu.Lock()
	defer s.aliasesMu.Unlock()

	if _, found := s.aliases[a.Code]; found {
		return models.ErrCodeTaken
	}

	stored := *a
	s.aliases[stored.Code] = &stored

	return nil
}

// GetAliasByCode returns a copy of the alias stored under code.
func (s *MemoryStorage) GetAliasByCode(ctx context.Context, code string) (*alias.Alias, bool, error) {
	s.aliasesMu.RLock()
	defer s.aliasesMu.RUnlock()

	a, found := s.aliases[code]
	if !found {
		return nil, false, nil
	}
	result := *a

	return &result, true, nil
}

// GetAliasesByOwner returns every alias whose OwnerID equals ownerID.
func (s *MemoryStorage) GetAliasesByOwner(ctx context.Context, ownerID string) ([]*alias.Alias, error) {
	s.aliasesMu.RLock()
	defer s.aliasesMu.RUnlock()

	result := []*alias.Alias{}
	for _, a := range s.aliases {
		if a.OwnerID != ownerID {
			continue
		}
		found := *a
		result = append(result, &found)
	}

	return result, nil
}

// UpdateAliasTarget replaces the target URL of an existing alias.
func (s *MemoryStorage) UpdateAliasTarget(ctx context.Context, code, newTargetURL string, transaction *sql.Tx) error {
	s.aliasesMu.Lock()
	defer s.aliasesMu.Unlock()

	a, found := s.aliases[code]
	if !found {
		return models.ErrNotFound
	}
	a.TargetURL = newTargetURL

	return nil
}

// DeleteAlias removes the alias and reports whether it existed.
func (s *MemoryStorage) DeleteAlias(ctx context.Context, code string) (bool, error) {
	s.aliasesMu.Lock()
	defer s.aliasesMu.Unlock()

	_, found := s.aliases[code]
	delete(s.aliases, code)

	return found, nil
}

// DeleteOwnerAliases removes only those listed codes each owner holds.
func (s *MemoryStorage) DeleteOwnerAliases(ctx context.Context, ownersCodes map[string][]string) error {
	s.aliasesMu.Lock()
	defer s.aliasesMu.Unlock()

	for ownerID, codes := range ownersCodes {
		for _, code := range codes {
			a, found := s.aliases[code]
			if !found || a.OwnerID != ownerID {
				continue
			}
			delete(s.aliases, code)
		}
	}

	return nil
}

// GetNumberOfAliases returns the total amount of stored aliases.
func (s *MemoryStorage) GetNumberOfAliases(ctx context.Context) (int64, error) {
	s.aliasesMu.RLock()
	defer s.aliasesMu.RUnlock()

	return int64(len(s.aliases)), nil
}

// BeginTransaction is a no-op for the in-memory backend.
func (s *MemoryStorage) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

// RollbackTransaction is a no-op for the in-memory backend.
func (s *MemoryStorage) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

// CommitTransaction is a no-op for the in-memory backend.
func (s *MemoryStorage) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

// Snapshot copies the current maps for the file-backed storage to persist.
func (s *MemoryStorage) Snapshot() (map[string]*user.User, map[string]*alias.Alias) {
	s.usersMu.RLock()
	users := make(map[string]*user.User, len(s.usersByID))
	for id, usr := range s.usersByID {
		stored := *usr
		users[id] = &stored
	}
	s.usersMu.RUnlock()

	s.aliasesMu.RLock()
	aliases := make(map[string]*alias.Alias, len(s.aliases))
	for code, a := range s.aliases {
		stored := *a
		aliases[code] = &stored
	}
	s.aliasesMu.RUnlock()

	return users, aliases
}

// Restore replaces the current maps with the given snapshot.
func (s *MemoryStorage) Restore(users map[string]*user.User, aliases map[string]*alias.Alias) {
	s.usersMu.Lock()
	s.usersByID = map[string]*user.User{}
	s.usersByEmail = map[string]*user.User{}
	for _, usr := range users {
		stored := *usr
		s.usersByID[stored.ID] = &stored
		s.usersByEmail[stored.Email] = &stored
	}
	s.usersMu.Unlock()

	s.aliasesMu.Lock()
	s.aliases = map[string]*alias.Alias{}
	for _, a := range aliases {
		stored := *a
		s.aliases[stored.Code] = &stored
	}
	s.aliasesMu.Unlock()
}
