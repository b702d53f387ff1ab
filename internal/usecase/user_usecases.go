package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/example/order-service/internal/domain"
)

// TokenIssuer signs a bearer token for a user id.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
}

// RegisterUser creates an account. Duplicate email surfaces as ErrConflict.
type RegisterUser struct {
	Repo domain.UserRepository
}

func (uc RegisterUser) Execute(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return domain.User{}, domain.ErrValidation
	}
	return uc.Repo.Add(ctx, email, password)
}

// IssueToken authenticates by email and password and returns a signed token.
type IssueToken struct {
	Repo   domain.UserRepository
	Tokens TokenIssuer
}

// Execute maps both unknown email and wrong password to ErrForbidden so the
// API does not reveal which one failed.
func (uc IssueToken) Execute(ctx context.Context, email, password string) (string, error) {
	user, err := uc.Repo.GetBy(ctx, "email", email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrForbidden
	}
	if err != nil {
		return "", err
	}
	if user.Password != password {
		return "", domain.ErrForbidden
	}
	return uc.Tokens.Issue(user.ID)
}
