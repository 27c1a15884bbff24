package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/tinyapp/internal/mockstorage"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

const testShortURLBase = "http://localhost:8080"

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)

type removerStub struct {
	jobs []*models.AliasDeleteJob
}

func (r *removerStub) EnqueueJob(job *models.AliasDeleteJob) {
	r.jobs = append(r.jobs, job)
}

func newTestService(t *testing.T) (*Service, *removerStub) {
	t.Helper()

	db, err := memorystorage.New()
	require.NoError(t, err)

	remover := &removerStub{}

	return New(db, remover, testShortURLBase), remover
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestCreateAlias(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := &user.User{ID: "alice-id"}

	created, err := svc.CreateAlias(ctx, "http://example.com", alice)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, created.Code)
	assert.Equal(t, "http://example.com", created.TargetURL)
	assert.Equal(t, "alice-id", created.OwnerID)

	targetURL, err := svc.Resolve(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", targetURL)
}

func TestCreateAliasRequiresIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateAlias(context.Background(), "http://example.com", nil)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestCreateAliasRejectsInvalidTarget(t *testing.T) {
	svc, _ := newTestService(t)
	alice := &user.User{ID: "alice-id"}

	tests := []struct {
		name      string
		targetURL string
	}{
		{name: "empty", targetURL: ""},
		{name: "no scheme", targetURL: "example.com"},
		{name: "wrong scheme", targetURL: "ftp://example.com"},
		{name: "no host", targetURL: "http://"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.CreateAlias(context.Background(), test.targetURL, alice)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestCreateAliasRegeneratesOnCollision(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("SaveAlias", mock.Anything, mock.Anything, mock.Anything).Return(models.ErrCodeTaken).Twice()
	db.On("SaveAlias", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	svc := New(db, &removerStub{}, testShortURLBase)

	created, err := svc.CreateAlias(context.Background(), "http://example.com", &user.User{ID: "alice-id"})
	require.NoError(t, err)
	assert.Regexp(t, codePattern, created.Code)

	db.AssertNumberOfCalls(t, "SaveAlias", 3)
}

func TestCreateAliasCodeSpaceExhausted(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("SaveAlias", mock.Anything, mock.Anything, mock.Anything).Return(models.ErrCodeTaken)

	svc := New(db, &removerStub{}, testShortURLBase)

	_, err := svc.CreateAlias(context.Background(), "http://example.com", &user.User{ID: "alice-id"})
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	db.AssertNumberOfCalls(t, "SaveAlias", 10)
}

func TestOwnershipInvariant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := &user.User{ID: "alice-id"}
	bob := &user.User{ID: "bob-id"}

	created, err := svc.CreateAlias(ctx, "http://example.com", alice)
	require.NoError(t, err)

	t.Run("stranger cannot read", func(t *testing.T) {
		_, err := svc.GetAlias(ctx, created.Code, bob)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("stranger cannot update", func(t *testing.T) {
		_, err := svc.UpdateTarget(ctx, created.Code, bob, "http://evil.example.com")
		assert.ErrorIs(t, err, models.ErrForbidden)

		targetURL, err := svc.Resolve(ctx, created.Code)
		require.NoError(t, err)
		assert.Equal(t, "http://example.com", targetURL)
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		err := svc.Delete(ctx, created.Code, bob)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		_, err := svc.GetAlias(ctx, created.Code, nil)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})

	t.Run("owner can update", func(t *testing.T) {
		updated, err := svc.UpdateTarget(ctx, created.Code, alice, "http://example.org")
		require.NoError(t, err)
		assert.Equal(t, "http://example.org", updated.TargetURL)

		targetURL, err := svc.Resolve(ctx, created.Code)
		require.NoError(t, err)
		assert.Equal(t, "http://example.org", targetURL)
	})

	t.Run("owner can delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, created.Code, alice))

		_, err := svc.Resolve(ctx, created.Code)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestListByOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := &user.User{ID: "alice-id"}
	bob := &user.User{ID: "bob-id"}

	aliceCodes := map[string]bool{}
	for i := 0; i < 3; i++ {
		created, err := svc.CreateAlias(ctx, "http://example.com/alice", alice)
		require.NoError(t, err)
		aliceCodes[created.Code] = true
	}
	_, err := svc.CreateAlias(ctx, "http://example.com/bob", bob)
	require.NoError(t, err)

	listed, err := svc.ListByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for _, item := range listed {
		assert.True(t, aliceCodes[item.Code])
		assert.Equal(t, testShortURLBase+"/"+item.Code, item.ShortURL)
	}

	t.Run("empty list is not a denial", func(t *testing.T) {
		nobody := &user.User{ID: "nobody-id"}
		listed, err := svc.ListByOwner(ctx, nobody)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("anonymous is denied", func(t *testing.T) {
		_, err := svc.ListByOwner(ctx, nil)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	})
}

func TestResolveNeedsNoIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateAlias(ctx, "http://example.com", &user.User{ID: "alice-id"})
	require.NoError(t, err)

	targetURL, err := svc.Resolve(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", targetURL)

	_, err = svc.Resolve(ctx, "unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateTargetUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateTarget(context.Background(), "unknown", &user.User{ID: "alice-id"}, "http://example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteAliasesAsync(t *testing.T) {
	svc, remover := newTestService(t)
	alice := &user.User{ID: "alice-id"}

	err := svc.DeleteAliasesAsync(context.Background(), alice, models.DeleteAliasesRequest{"abc123", "def456"})
	require.NoError(t, err)
	require.Len(t, remover.jobs, 1)
	assert.Equal(t, "alice-id", remover.jobs[0].OwnerID)
	assert.Equal(t, models.DeleteAliasesRequest{"abc123", "def456"}, remover.jobs[0].CodesToDelete)

	err = svc.DeleteAliasesAsync(context.Background(), nil, models.DeleteAliasesRequest{"abc123"})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestInternalStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAlias(ctx, "http://example.com", &user.User{ID: "alice-id"})
	require.NoError(t, err)

	stats, err := svc.InternalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Aliases)
}

func TestShortURLRoundtrip(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, testShortURLBase+"/abc123", svc.ShortURL("abc123"))
	assert.Equal(t, "abc123", svc.ShortURLKey(testShortURLBase+"/abc123"))
	assert.Equal(t, "", svc.ShortURLKey(""))
}

func TestAliasRecordIsCopied(t *testing.T) {
	// Mutating the returned record must not leak into storage.
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateAlias(ctx, "http://example.com", &user.User{ID: "alice-id"})
	require.NoError(t, err)

	created.TargetURL = "http://mutated.example.com"

	var stored *alias.Alias
	stored, err = svc.GetAlias(ctx, created.Code, &user.User{ID: "alice-id"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", stored.TargetURL)
}
