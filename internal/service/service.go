// Package service is the alias registry. It generates collision-free
// short codes, applies the access gate in front of every owner-scoped
// operation and keeps the public redirect path identity-free.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/tinyapp/internal/access"
	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/db/storage"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

const (
	// codeAlphabet is the 62-symbol alphabet short codes are drawn from.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// CodeLength is the fixed length of generated short codes.
	CodeLength = 6

	// triesToGenerateUniqueCode bounds the regenerate-on-collision loop.
	triesToGenerateUniqueCode = 10
)

// ErrCodeSpaceExhausted is returned when no unused code was found
// within the allowed number of attempts.
var ErrCodeSpaceExhausted = errors.New("the number of attempts to generate a unique code has been exceeded")

type aliasRemover interface {
	EnqueueJob(job *models.AliasDeleteJob)
}

// Service exposes the alias registry operations over the storage layer.
type Service struct {
	db           storage.Storage
	aliasRemover aliasRemover
	shortURLBase string
}

// New returns a Service bound to the given storage, background remover
// and public base URL.
func New(
	db storage.Storage,
	aliasRemover aliasRemover,
	shortURLBase string,
) *Service {
	return &Service{
		db:           db,
		aliasRemover: aliasRemover,
		shortURLBase: shortURLBase,
	}
}

// CreateAlias stores a new alias for targetURL owned by caller.
// Anonymous callers are rejected; the code is regenerated on collision
// rather than overwriting an existing record.
func (s *Service) CreateAlias(ctx context.Context, targetURL string, caller *user.User) (*alias.Alias, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}
	if !isValidURL(targetURL) {
		return nil, models.ErrInvalidInput
	}

	return s.saveWithFreshCode(ctx, targetURL, caller.ID)
}

// ListByOwner returns exactly the caller's aliases as API payloads.
// A caller without aliases gets an empty list, never a denial.
func (s *Service) ListByOwner(ctx context.Context, caller *user.User) (models.UserAliases, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	aliases, err := s.db.GetAliasesByOwner(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	result := funk.Map(aliases, func(a *alias.Alias) models.AliasResponse {
		return models.AliasResponse{
			Code:        a.Code,
			ShortURL:    s.ShortURL(a.Code),
			OriginalURL: a.TargetURL,
		}
	}).([]models.AliasResponse)

	return result, nil
}

// GetAlias returns the alias stored under code after the gate allows
// the caller to read it.
func (s *Service) GetAlias(ctx context.Context, code string, caller *user.User) (*alias.Alias, error) {
	return s.loadAuthorized(ctx, code, caller, access.ActionRead)
}

// UpdateTarget replaces the target URL of the caller's alias.
func (s *Service) UpdateTarget(ctx context.Context, code string, caller *user.User, newTargetURL string) (*alias.Alias, error) {
	if !isValidURL(newTargetURL) {
		return nil, models.ErrInvalidInput
	}

	a, err := s.loadAuthorized(ctx, code, caller, access.ActionWrite)
	if err != nil {
		return nil, err
	}

	if err := s.db.UpdateAliasTarget(ctx, code, newTargetURL, nil); err != nil {
		return nil, err
	}
	a.TargetURL = newTargetURL

	return a, nil
}

// Delete removes the caller's alias.
func (s *Service) Delete(ctx context.Context, code string, caller *user.User) error {
	if _, err := s.loadAuthorized(ctx, code, caller, access.ActionDelete); err != nil {
		return err
	}

	if _, err := s.db.DeleteAlias(ctx, code); err != nil {
		return err
	}

	return nil
}

// Resolve returns the target URL for code. It is the public redirect
// path and requires no identity.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	a, found, err := s.db.GetAliasByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if !found {
		return "", models.ErrNotFound
	}

	return a.TargetURL, nil
}

// DeleteAliasesAsync enqueues a batch deletion job for background
// processing. Ownership is enforced again per code at execution time.
func (s *Service) DeleteAliasesAsync(ctx context.Context, caller *user.User, codes models.DeleteAliasesRequest) error {
	if err := access.RequireAuthenticated(caller); err != nil {
		return err
	}

	s.aliasRemover.EnqueueJob(&models.AliasDeleteJob{
		OwnerID:       caller.ID,
		CodesToDelete: codes,
	})

	return nil
}

// InternalStats returns total alias and user counts.
func (s *Service) InternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	aliases, err := s.db.GetNumberOfAliases(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Aliases: aliases,
		Users:   users,
	}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ShortURL renders the absolute short URL for a code.
func (s *Service) ShortURL(code string) string {
	return s.shortURLBase + "/" + code
}

// ShortURLKey extracts the code back out of an absolute short URL.
func (s *Service) ShortURLKey(shortURL string) string {
	if shortURL == "" || s.shortURLBase == "" {
		return ""
	}
	base := strings.TrimRight(s.shortURLBase, "/")
	key := strings.TrimPrefix(shortURL, base)

	return strings.TrimPrefix(key, "/")
}

// GenerateCode draws CodeLength independent uniformly-random symbols
// from the 62-symbol alphabet.
func GenerateCode() (string, error) {
	result := make([]byte, CodeLength)
	for i := range result {
		randomIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		result[i] = codeAlphabet[randomIndex.Int64()]
	}

	return string(result), nil
}

// loadAuthorized fetches the alias and runs it through the access gate.
// The order matters: an unknown code is reported as not found before
// any identity check, matching the gate's terminal states.
func (s *Service) loadAuthorized(ctx context.Context, code string, caller *user.User, action access.Action) (*alias.Alias, error) {
	a, found, err := s.db.GetAliasByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	if err := access.Authorize(caller, a, action); err != nil {
		return nil, err
	}

	return a, nil
}

// saveWithFreshCode draws codes until SaveAlias accepts one. The insert
// itself is the uniqueness check, so two concurrent creates drawing the
// same code cannot overwrite each other: the loser gets
// models.ErrCodeTaken and retries with a fresh code.
func (s *Service) saveWithFreshCode(ctx context.Context, targetURL, ownerID string) (*alias.Alias, error) {
	for i := 0; i < triesToGenerateUniqueCode; i++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}

		a := &alias.Alias{
			Code:      code,
			TargetURL: targetURL,
			OwnerID:   ownerID,
		}
		err = s.db.SaveAlias(ctx, a, nil)
		if errors.Is(err, models.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return a, nil
	}

	return nil, ErrCodeSpaceExhausted
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)

	return err == nil &&
		(u.Scheme == "http" || u.Scheme == "https") &&
		u.Host != ""
}
