package router

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/tinyapp/internal/auth"
	"github.com/patric-chuzhbe/tinyapp/internal/credstore"
	"github.com/patric-chuzhbe/tinyapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/tinyapp/internal/ipchecker"
	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/service"
)

const (
	testCookieName   = "tinyapp_session"
	testTrustedCIDR  = "10.0.0.0/8"
	testShortURLBase = "http://localhost:8080"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

type removerStub struct {
	jobs []*models.AliasDeleteJob
}

func (r *removerStub) EnqueueJob(job *models.AliasDeleteJob) {
	r.jobs = append(r.jobs, job)
}

type testEnv struct {
	server  *httptest.Server
	remover *removerStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	db, err := memorystorage.New()
	require.NoError(t, err)

	remover := &removerStub{}
	svc := service.New(db, remover, testShortURLBase)
	sessions := auth.New(db, testCookieName, []byte("test-signing-key"), 24*time.Hour)

	ipChecker, err := ipchecker.New(testTrustedCIDR)
	require.NoError(t, err)

	handler := New(credstore.New(db), svc, sessions, sessions, ipChecker)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testEnv{
		server:  server,
		remover: remover,
	}
}

func newClient(env *testEnv) *resty.Client {
	return resty.New().SetBaseURL(env.server.URL)
}

func registerUser(t *testing.T, client *resty.Client, email, password string) models.UserResponse {
	t.Helper()

	usr := models.UserResponse{}
	resp, err := client.R().
		SetBody(models.RegisterRequest{Email: email, Password: password}).
		SetResult(&usr).
		Post("/api/user/register")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	require.NotEmpty(t, usr.ID)

	return usr
}

func shorten(t *testing.T, client *resty.Client, targetURL string) string {
	t.Helper()

	result := models.ShortenResponse{}
	resp, err := client.R().
		SetBody(models.ShortenRequest{URL: targetURL}).
		SetResult(&result).
		Post("/api/shorten")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	code := strings.TrimPrefix(result.Result, testShortURLBase+"/")
	require.Regexp(t, codePattern, code)

	return code
}

// getNoRedirect issues a GET without following redirects so the 307 and
// its Location header stay observable.
func getNoRedirect(t *testing.T, env *testEnv, path string) *http.Response {
	t.Helper()

	httpClient := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := httpClient.Get(env.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp
}

func TestRegisterShortenAndResolve(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	registerUser(t, client, "alice@example.com", "pw1")
	code := shorten(t, client, "http://example.com")

	resp := getNoRedirect(t, env, "/"+code)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://example.com", resp.Header.Get("Location"))
}

func TestRedirectUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	resp := getNoRedirect(t, env, "/nosuch")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	resp, err := client.R().
		SetBody(models.RegisterRequest{Email: "", Password: ""}).
		Post("/api/user/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	registerUser(t, client, "alice@example.com", "pw1")

	resp, err = newClient(env).R().
		SetBody(models.RegisterRequest{Email: "alice@example.com", Password: "pw2"}).
		Post("/api/user/register")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	registerUser(t, client, "alice@example.com", "pw1")

	wrongPassword, err := newClient(env).R().
		SetBody(models.RegisterRequest{Email: "alice@example.com", Password: "wrong"}).
		Post("/api/user/login")
	require.NoError(t, err)

	unknownEmail, err := newClient(env).R().
		SetBody(models.RegisterRequest{Email: "nobody@example.com", Password: "pw1"}).
		Post("/api/user/login")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode())
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode())
	// Same status, same body: a probe cannot tell the two cases apart.
	assert.Equal(t, wrongPassword.String(), unknownEmail.String())
}

func TestLoginOpensSession(t *testing.T) {
	env := newTestEnv(t)

	registerUser(t, newClient(env), "alice@example.com", "pw1")

	client := newClient(env)
	usr := models.UserResponse{}
	resp, err := client.R().
		SetBody(models.RegisterRequest{Email: "alice@example.com", Password: "pw1"}).
		SetResult(&usr).
		Post("/api/user/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "alice@example.com", usr.Email)

	// The fresh session is good for owner-scoped actions.
	shorten(t, client, "http://example.com")
}

func TestOwnershipIsEnforcedAcrossUsers(t *testing.T) {
	env := newTestEnv(t)

	aliceClient := newClient(env)
	registerUser(t, aliceClient, "alice@example.com", "pw1")
	code := shorten(t, aliceClient, "http://example.com")

	bobClient := newClient(env)
	registerUser(t, bobClient, "bob@example.com", "pw2")

	t.Run("bob cannot update alice's alias", func(t *testing.T) {
		resp, err := bobClient.R().
			SetBody(models.ShortenRequest{URL: "http://evil.example.com"}).
			Put("/api/user/urls/" + code)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})

	t.Run("bob cannot read alias detail", func(t *testing.T) {
		resp, err := bobClient.R().Get("/api/user/urls/" + code)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})

	t.Run("bob cannot delete alice's alias", func(t *testing.T) {
		resp, err := bobClient.R().Delete("/api/user/urls/" + code)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})

	t.Run("bob's listing does not include alice's alias", func(t *testing.T) {
		resp, err := bobClient.R().Get("/api/user/urls")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	})

	t.Run("the target is untouched", func(t *testing.T) {
		resp := getNoRedirect(t, env, "/"+code)
		assert.Equal(t, "http://example.com", resp.Header.Get("Location"))
	})
}

func TestOwnerAliasManagement(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	registerUser(t, client, "alice@example.com", "pw1")
	code := shorten(t, client, "http://example.com")

	t.Run("detail", func(t *testing.T) {
		detail := models.AliasResponse{}
		resp, err := client.R().SetResult(&detail).Get("/api/user/urls/" + code)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, code, detail.Code)
		assert.Equal(t, "http://example.com", detail.OriginalURL)
	})

	t.Run("list", func(t *testing.T) {
		listed := models.UserAliases{}
		resp, err := client.R().SetResult(&listed).Get("/api/user/urls")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())
		require.Len(t, listed, 1)
		assert.Equal(t, code, listed[0].Code)
	})

	t.Run("update", func(t *testing.T) {
		updated := models.AliasResponse{}
		resp, err := client.R().
			SetBody(models.ShortenRequest{URL: "http://example.org"}).
			SetResult(&updated).
			Put("/api/user/urls/" + code)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, "http://example.org", updated.OriginalURL)

		redirect := getNoRedirect(t, env, "/"+code)
		assert.Equal(t, "http://example.org", redirect.Header.Get("Location"))
	})

	t.Run("delete", func(t *testing.T) {
		resp, err := client.R().Delete("/api/user/urls/" + code)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode())

		redirect := getNoRedirect(t, env, "/"+code)
		assert.Equal(t, http.StatusNotFound, redirect.StatusCode)
	})
}

func TestLogoutDropsIdentity(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	registerUser(t, client, "alice@example.com", "pw1")
	code := shorten(t, client, "http://example.com")

	resp, err := client.R().Post("/api/user/logout")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode())

	t.Run("listing is unauthenticated", func(t *testing.T) {
		resp, err := client.R().Get("/api/user/urls")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	})

	t.Run("update of the previously-owned alias is unauthenticated", func(t *testing.T) {
		resp, err := client.R().
			SetBody(models.ShortenRequest{URL: "http://example.org"}).
			Put("/api/user/urls/" + code)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	})

	t.Run("the public redirect still works", func(t *testing.T) {
		redirect := getNoRedirect(t, env, "/"+code)
		assert.Equal(t, http.StatusTemporaryRedirect, redirect.StatusCode)
	})
}

func TestShortenRequiresIdentityAndValidURL(t *testing.T) {
	env := newTestEnv(t)

	t.Run("anonymous is rejected", func(t *testing.T) {
		resp, err := newClient(env).R().
			SetBody(models.ShortenRequest{URL: "http://example.com"}).
			Post("/api/shorten")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	})

	t.Run("garbage body is rejected", func(t *testing.T) {
		client := newClient(env)
		registerUser(t, client, "alice@example.com", "pw1")

		resp, err := client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{"url": ""}`).
			Post("/api/shorten")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	})
}

func TestBatchDelete(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	usr := registerUser(t, client, "alice@example.com", "pw1")
	code := shorten(t, client, "http://example.com")

	resp, err := client.R().
		SetBody(models.DeleteAliasesRequest{code}).
		Delete("/api/user/urls")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode())

	require.Len(t, env.remover.jobs, 1)
	assert.Equal(t, usr.ID, env.remover.jobs[0].OwnerID)
	assert.Equal(t, models.DeleteAliasesRequest{code}, env.remover.jobs[0].CodesToDelete)
}

func TestInternalStatsTrustedSubnet(t *testing.T) {
	env := newTestEnv(t)
	client := newClient(env)

	registerUser(t, client, "alice@example.com", "pw1")
	shorten(t, client, "http://example.com")

	t.Run("inside the trusted subnet", func(t *testing.T) {
		stats := models.InternalStatsResponse{}
		resp, err := newClient(env).R().
			SetHeader("X-Real-IP", "10.0.0.7").
			SetResult(&stats).
			Get("/api/internal/stats")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, int64(1), stats.Aliases)
		assert.Equal(t, int64(1), stats.Users)
	})

	t.Run("outside the trusted subnet", func(t *testing.T) {
		resp, err := newClient(env).R().
			SetHeader("X-Real-IP", "192.168.1.1").
			Get("/api/internal/stats")
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode())
	})
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)

	resp, err := newClient(env).R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}
