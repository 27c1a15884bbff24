// Package models contains the request/response payloads of the HTTP API
// and the error taxonomy shared by the storage, credential, session and
// alias layers.
package models

import "errors"

// Sentinel errors reported by the core layers. Handlers translate them
// into HTTP statuses; none of them is fatal to the process.
var (
	// ErrInvalidInput is returned when a required field is empty or absent.
	ErrInvalidInput = errors.New("required field is missing or empty")

	// ErrDuplicateEmail is returned on registration with an already taken email.
	ErrDuplicateEmail = errors.New("email is already registered")

	// ErrUnknownEmail is returned on login with an email no user has.
	ErrUnknownEmail = errors.New("no user with this email")

	// ErrWrongPassword is returned on login when the password does not match.
	// The HTTP layer presents it identically to ErrUnknownEmail so that
	// account existence is not confirmed to the caller.
	ErrWrongPassword = errors.New("password mismatch")

	// ErrUnauthenticated is returned for owner-scoped actions without identity.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the caller is not the alias owner.
	ErrForbidden = errors.New("alias belongs to another user")

	// ErrNotFound is returned when no alias exists for the requested code.
	ErrNotFound = errors.New("alias not found")

	// ErrCodeTaken is returned by SaveAlias when the code is already in
	// use. It never reaches the HTTP layer: the alias registry reacts by
	// drawing a fresh code.
	ErrCodeTaken = errors.New("code is already taken")
)

// RegisterRequest is the body of POST /api/user/register and POST /api/user/login.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ShortenRequest is the body of POST /api/shorten and PUT /api/user/urls/{code}.
type ShortenRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ShortenResponse carries the absolute short URL of a created alias.
type ShortenResponse struct {
	Result string `json:"result"`
}

// AliasResponse describes one alias owned by the caller.
type AliasResponse struct {
	Code        string `json:"code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
}

// UserAliases is the payload of GET /api/user/urls.
type UserAliases []AliasResponse

// DeleteAliasesRequest is the body of the batch DELETE /api/user/urls.
type DeleteAliasesRequest []string

// AliasDeleteJob is one unit of work for the background alias remover.
type AliasDeleteJob struct {
	OwnerID       string
	CodesToDelete DeleteAliasesRequest
}

// InternalStatsResponse is served to the trusted subnet only.
type InternalStatsResponse struct {
	Aliases int64 `json:"urls"`
	Users   int64 `json:"users"`
}

// Storage backend kinds selectable from configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)
