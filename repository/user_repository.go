// Package repository is the persistence layer. Services depend on the
// interfaces declared here; each backend (SQLite, MongoDB, Redis) lives in
// its own file.
package repository

import (
	"context"

	"github.com/Ajay-css/chatify/models"
)

// UserRepository stores chat accounts.
type UserRepository interface {
	// Create assigns ID and timestamps. A taken email is pkg.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ListExcept returns every user but excludeID, ordered by full name.
	ListExcept(ctx context.Context, excludeID string) ([]models.User, error)
}
