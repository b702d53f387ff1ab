package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/order-service/internal/domain"
	"github.com/example/order-service/internal/usecase"
)

var _ domain.UserRepository = (*mockUserRepo)(nil)

type mockUserRepo struct {
	sync.RWMutex
	byEmail map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]domain.User)}
}

func (m *mockUserRepo) Add(_ context.Context, email, password string) (domain.User, error) {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return domain.User{}, domain.ErrConflict
	}
	now := time.Now().UTC()
	user := domain.User{ID: uuid.New(), CreatedAt: now, UpdatedAt: now, Email: email, Password: password}
	m.byEmail[email] = user
	return user, nil
}

func (m *mockUserRepo) GetBy(_ context.Context, field string, value any) (domain.User, error) {
	m.RLock()
	defer m.RUnlock()
	if field != "email" {
		return domain.User{}, domain.ErrValidation
	}
	user, ok := m.byEmail[value.(string)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

type stubIssuer struct{}

func (stubIssuer) Issue(userID uuid.UUID) (string, error) {
	return "token-for-" + userID.String(), nil
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account", func(t *testing.T) {
		uc := usecase.RegisterUser{Repo: newMockUserRepo()}
		user, err := uc.Execute(ctx, "a@b.c", "secret")
		require.NoError(t, err)
		require.Equal(t, "a@b.c", user.Email)
		require.NotEqual(t, uuid.Nil, user.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		repo := newMockUserRepo()
		uc := usecase.RegisterUser{Repo: repo}
		_, err := uc.Execute(ctx, "a@b.c", "secret")
		require.NoError(t, err)
		_, err = uc.Execute(ctx, "a@b.c", "other")
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		uc := usecase.RegisterUser{Repo: newMockUserRepo()}
		for _, tc := range []struct{ email, password string }{
			{"", "secret"},
			{"   ", "secret"},
			{"not-an-email", "secret"},
			{"a@b.c", ""},
		} {
			_, err := uc.Execute(ctx, tc.email, tc.password)
			require.ErrorIs(t, err, domain.ErrValidation, "email=%q", tc.email)
		}
	})
}

func TestIssueToken(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (usecase.IssueToken, domain.User) {
		repo := newMockUserRepo()
		user, err := usecase.RegisterUser{Repo: repo}.Execute(ctx, "a@b.c", "secret")
		require.NoError(t, err)
		return usecase.IssueToken{Repo: repo, Tokens: stubIssuer{}}, user
	}

	t.Run("returns a token for valid credentials", func(t *testing.T) {
		uc, user := setup(t)
		token, err := uc.Execute(ctx, "a@b.c", "secret")
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(token, user.ID.String()))
	})

	t.Run("wrong password is forbidden", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Execute(ctx, "a@b.c", "wrong")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown email is forbidden, not not-found", func(t *testing.T) {
		uc, _ := setup(t)
		_, err := uc.Execute(ctx, "nobody@b.c", "secret")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}
