// Package user defines the user entity shared by the credential store,
// the session layer and the storage backends.
package user

// User represents a registered account.
//
// Users are created by registration and never updated or deleted; the
// plaintext password is discarded immediately after hashing and only
// PasswordHash is retained.
type User struct {
	// ID is the unique identifier of the user, a UUID.
	ID string `json:"id"`

	// Email is the login key, unique across all users (exact string match).
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"password_hash"`
}
