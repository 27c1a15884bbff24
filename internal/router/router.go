// Package router wires the HTTP surface of the service: registration,
// login, logout, owner-scoped alias management and the public redirect.
// It translates the typed failures of the core layers into HTTP
// statuses and leaves all decisions to them.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/auth"
	"github.com/patric-chuzhbe/tinyapp/internal/authenticator"
	"github.com/patric-chuzhbe/tinyapp/internal/gzippedhttp"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/service"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// invalidCredentialsMessage is the single body returned for both the
// unknown-email and wrong-password outcomes, so a login probe cannot
// confirm whether an account exists.
const invalidCredentialsMessage = "invalid email or password"

type credentialStore interface {
	Register(ctx context.Context, email, password string) (*user.User, error)
	Verify(ctx context.Context, email, password string) (*user.User, error)
}

type sessionManager interface {
	IssueToken(userID string) (string, error)
	SetSessionCookie(response http.ResponseWriter, tokenString string)
	ClearSessionCookie(response http.ResponseWriter)
}

// Router holds the handler dependencies.
type Router struct {
	creds     credentialStore
	svc       *service.Service
	sessions  sessionManager
	ipChecker *ipchecker.IPChecker
	validate  *validator.Validate
}

// New assembles the chi router with logging, gzip and identity
// middleware and every route of the service.
func New(
	creds credentialStore,
	svc *service.Service,
	sessions sessionManager,
	identity authenticator.Authenticator,
	ipChecker *ipchecker.IPChecker,
) http.Handler {
	r := &Router{
		creds:     creds,
		svc:       svc,
		sessions:  sessions,
		ipChecker: ipChecker,
		validate:  validator.New(),
	}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(gzippedhttp.UngzipRequest)
	router.Use(gzippedhttp.GzipResponse)
	router.Use(identity.WithIdentity)

	router.Post(`/api/user/register`, r.PostRegister)
	router.Post(`/api/user/login`, r.PostLogin)
	router.Post(`/api/user/logout`, r.PostLogout)

	router.Post(`/api/shorten`, r.PostShorten)
	router.Get(`/api/user/urls`, r.GetUserAliases)
	router.Delete(`/api/user/urls`, r.DeleteUserAliases)
	router.Get(`/api/user/urls/{code}`, r.GetAliasDetail)
	router.Put(`/api/user/urls/{code}`, r.PutAlias)
	router.Delete(`/api/user/urls/{code}`, r.DeleteAlias)

	router.Get(`/api/internal/stats`, r.GetInternalStats)
	router.Get(`/ping`, r.GetPing)
	router.Get(`/{code}`, r.GetRedirect)

	return router
}

// PostRegister creates an account and opens a session for it.
func (r *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	credentials, ok := decodeCredentials(response, request)
	if !ok {
		return
	}

	usr, err := r.creds.Register(request.Context(), credentials.Email, credentials.Password)
	if err != nil {
		r.writeError(response, err)
		return
	}

	if !r.openSession(response, usr.ID) {
		return
	}

	writeJSON(response, http.StatusCreated, models.UserResponse{
		ID:    usr.ID,
		Email: usr.Email,
	})
}

// PostLogin verifies credentials and opens a session.
func (r *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	credentials, ok := decodeCredentials(response, request)
	if !ok {
		return
	}

	usr, err := r.creds.Verify(request.Context(), credentials.Email, credentials.Password)
	if err != nil {
		r.writeError(response, err)
		return
	}

	if !r.openSession(response, usr.ID) {
		return
	}

	writeJSON(response, http.StatusOK, models.UserResponse{
		ID:    usr.ID,
		Email: usr.Email,
	})
}

// PostLogout instructs the client to discard the session token.
func (r *Router) PostLogout(response http.ResponseWriter, request *http.Request) {
	r.sessions.ClearSessionCookie(response)
	response.WriteHeader(http.StatusNoContent)
}

// PostShorten creates an alias owned by the caller.
func (r *Router) PostShorten(response http.ResponseWriter, request *http.Request) {
	shortenRequest := models.ShortenRequest{}
	if err := json.NewDecoder(request.Body).Decode(&shortenRequest); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}
	if err := r.validate.Struct(shortenRequest); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := r.svc.CreateAlias(request.Context(), shortenRequest.URL, auth.CurrentUser(request.Context()))
	if err != nil {
		r.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.ShortenResponse{
		Result: r.svc.ShortURL(created.Code),
	})
}

// GetUserAliases lists the caller's aliases. An authenticated caller
// without aliases gets 204, never a denial.
func (r *Router) GetUserAliases(response http.ResponseWriter, request *http.Request) {
	aliases, err := r.svc.ListByOwner(request.Context(), auth.CurrentUser(request.Context()))
	if err != nil {
		r.writeError(response, err)
		return
	}

	if len(aliases) == 0 {
		response.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(response, http.StatusOK, aliases)
}

// GetAliasDetail returns one alias owned by the caller.
func (r *Router) GetAliasDetail(response http.ResponseWriter, request *http.Request) {
	code := chi.URLParam(request, "code")

	found, err := r.svc.GetAlias(request.Context(), code, auth.CurrentUser(request.Context()))
	if err != nil {
		r.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, r.toAliasResponse(found))
}

// PutAlias updates the target URL of the caller's alias.
func (r *Router) PutAlias(response http.ResponseWriter, request *http.Request) {
	code := chi.URLParam(request, "code")

	shortenRequest := models.ShortenRequest{}
	if err := json.NewDecoder(request.Body).Decode(&shortenRequest); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}
	if err := r.validate.Struct(shortenRequest); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := r.svc.UpdateTarget(request.Context(), code, auth.CurrentUser(request.Context()), shortenRequest.URL)
	if err != nil {
		r.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, r.toAliasResponse(updated))
}

// DeleteAlias removes the caller's alias.
func (r *Router) DeleteAlias(response http.ResponseWriter, request *http.Request) {
	code := chi.URLParam(request, "code")

	if err := r.svc.Delete(request.Context(), code, auth.CurrentUser(request.Context())); err != nil {
		r.writeError(response, err)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// DeleteUserAliases accepts a batch of the caller's codes for
// background removal.
func (r *Router) DeleteUserAliases(response http.ResponseWriter, request *http.Request) {
	deleteRequest := models.DeleteAliasesRequest{}
	if err := json.NewDecoder(request.Body).Decode(&deleteRequest); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return
	}

	err := r.svc.DeleteAliasesAsync(request.Context(), auth.CurrentUser(request.Context()), deleteRequest)
	if err != nil {
		r.writeError(response, err)
		return
	}

	response.WriteHeader(http.StatusAccepted)
}

// GetRedirect is the public redirect path. It requires no identity.
func (r *Router) GetRedirect(response http.ResponseWriter, request *http.Request) {
	code := chi.URLParam(request, "code")

	targetURL, err := r.svc.Resolve(request.Context(), code)
	if err != nil {
		r.writeError(response, err)
		return
	}

	http.Redirect(response, request, targetURL, http.StatusTemporaryRedirect)
}

// GetPing reports storage health.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.svc.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.svc.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetInternalStats serves alias/user totals to the trusted subnet only.
func (r *Router) GetInternalStats(response http.ResponseWriter, request *http.Request) {
	if r.ipChecker.IsTrustedSubnetEmpty() {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	clientIP, err := r.ipChecker.GetClientIP(request)
	if err != nil || !r.ipChecker.Check(clientIP) {
		response.WriteHeader(http.StatusForbidden)
		return
	}

	stats, err := r.svc.InternalStats(request.Context())
	if err != nil {
		r.writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

func (r *Router) openSession(response http.ResponseWriter, userID string) bool {
	tokenString, err := r.sessions.IssueToken(userID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.sessions.IssueToken()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return false
	}
	r.sessions.SetSessionCookie(response, tokenString)

	return true
}

func (r *Router) toAliasResponse(a *alias.Alias) models.AliasResponse {
	return models.AliasResponse{
		Code:        a.Code,
		ShortURL:    r.svc.ShortURL(a.Code),
		OriginalURL: a.TargetURL,
	}
}

// writeError maps the core error taxonomy to HTTP statuses.
func (r *Router) writeError(response http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		http.Error(response, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrDuplicateEmail):
		http.Error(response, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrUnknownEmail), errors.Is(err, models.ErrWrongPassword):
		http.Error(response, invalidCredentialsMessage, http.StatusUnauthorized)
	case errors.Is(err, models.ErrUnauthenticated):
		http.Error(response, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, models.ErrForbidden):
		http.Error(response, err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrNotFound):
		http.Error(response, err.Error(), http.StatusNotFound)
	default:
		logger.Log.Debugln("Unclassified handler error: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
	}
}

func decodeCredentials(response http.ResponseWriter, request *http.Request) (models.RegisterRequest, bool) {
	credentials := models.RegisterRequest{}
	if err := json.NewDecoder(request.Body).Decode(&credentials); err != nil {
		http.Error(response, err.Error(), http.StatusBadRequest)
		return credentials, false
	}

	return credentials, true
}

func writeJSON(response http.ResponseWriter, statusCode int, payload any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}
