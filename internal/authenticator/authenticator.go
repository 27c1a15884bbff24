// Package authenticator declares the identity middleware contract the
// router depends on, keeping it decoupled from the JWT implementation.
package authenticator

import "net/http"

// Authenticator resolves the caller's identity once per request and
// attaches it to the request context.
type Authenticator interface {
	WithIdentity(h http.Handler) http.Handler
}
