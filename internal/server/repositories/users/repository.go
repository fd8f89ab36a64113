// Package users declares and implements the credential store: persistence of
// user accounts, their password hashes and their security question/answer.
package users

import (
	"context"

	"github.com/dmitrijs2005/consejo/internal/server/models"
)

// Repository is the credential store contract. Lookups by username are exact
// and case-sensitive. Missing rows are reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, hash string) error

	// UpdateSecurityQA writes the question and the answer hash in a single
	// statement, so readers never observe one without the other.
	UpdateSecurityQA(ctx context.Context, id string, question string, answerHash string) error
}
