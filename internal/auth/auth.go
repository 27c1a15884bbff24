// Package auth manages signed session tokens and resolves the caller's
// identity per request. Tokens are HS256 JWTs carried in a cookie (or
// the Authorization header); a missing, tampered or expired token never
// fails a request — it degrades to the anonymous identity, which the
// access gate then denies through the normal unauthenticated path.
package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// DefaultSigningKey is used when no signing key is configured. It is
// acceptable for local development only; production deployments must
// set SESSION_SIGNING_KEY.
const DefaultSigningKey = "tinyapp-dev-signing-key"

type userKeeper interface {
	GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error)
}

// Auth issues and resolves session tokens and exposes the identity
// middleware consumed by the router.
type Auth struct {
	db userKeeper

	// sessionCookieName is the name of the cookie carrying the JWT.
	sessionCookieName string

	// signingKey signs and verifies session JWTs.
	signingKey []byte

	// sessionTTL is the fixed time-to-live of issued tokens.
	sessionTTL time.Duration
}

// Claims are the session JWT claims: the standard set plus the user ID.
// The token is tamper-evident, not confidential — the user ID is
// readable by the client, only forgery is prevented.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for context values to avoid collisions.
type ContextKey string

// UserKey is the context key under which the resolved identity is
// stored. The value is a *user.User; a nil value means anonymous.
const UserKey ContextKey = "currentUser"

// New creates an Auth with the given user storage, cookie name, signing
// key and session TTL. An empty signingKey falls back to
// DefaultSigningKey.
func New(
	db userKeeper,
	sessionCookieName string,
	signingKey []byte,
	sessionTTL time.Duration,
) *Auth {
	if len(signingKey) == 0 {
		signingKey = []byte(DefaultSigningKey)
	}

	return &Auth{
		db:                db,
		sessionCookieName: sessionCookieName,
		signingKey:        signingKey,
		sessionTTL:        sessionTTL,
	}
}

// IssueToken produces a signed token binding userID to an issuance
// timestamp, valid for the configured TTL.
func (a *Auth) IssueToken(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.sessionTTL)),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)
	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ResolveUserID verifies the token's signature and expiry and returns
// the bound user ID. Any failure — missing token, bad signature,
// malformed payload, expiry — yields the empty string, never an error.
func (a *Auth) ResolveUserID(tokenString string) string {
	if tokenString == "" {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.UserID
}

// SetSessionCookie attaches the token to the response as the session
// cookie and mirrors it into the Authorization header.
func (a *Auth) SetSessionCookie(response http.ResponseWriter, tokenString string) {
	response.Header().Set("Authorization", tokenString)
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.sessionCookieName,
			Value:    tokenString,
			Path:     "/",
			HttpOnly: true,
		},
	)
}

// ClearSessionCookie instructs the client to discard the session.
func (a *Auth) ClearSessionCookie(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.sessionCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		},
	)
}

// WithIdentity is the identity-resolution middleware. It resolves the
// caller once per request — session token to user ID, user ID to stored
// user — and attaches the result to the request context. Downstream
// logic reads it via CurrentUser and never re-resolves.
func (a *Auth) WithIdentity(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		var usr *user.User

		userID := a.ResolveUserID(a.getTokenFromHeaderOrCookie(request))
		if userID != "" {
			dbUser, err := a.db.GetUserByID(request.Context(), userID, nil)
			if err != nil {
				logger.Log.Debugln("Error calling the `a.db.GetUserByID()`: ", zap.Error(err))
				response.WriteHeader(http.StatusInternalServerError)
				return
			}
			// A valid token for an unknown user degrades to anonymous.
			usr = dbUser
		}

		ctx := context.WithValue(request.Context(), UserKey, usr)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// CurrentUser returns the identity resolved by WithIdentity, or nil for
// the anonymous caller.
func CurrentUser(ctx context.Context) *user.User {
	usr, ok := ctx.Value(UserKey).(*user.User)
	if !ok {
		return nil
	}

	return usr
}

func (a *Auth) getTokenFromHeaderOrCookie(request *http.Request) string {
	tokenString := request.Header.Get("Authorization")
	if tokenString != "" {
		return tokenString
	}
	cookie, err := request.Cookie(a.sessionCookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}
