// Package units provides persistence for consejos comunales, the
// organizational units user accounts belong to.
package units

import (
	"context"

	"github.com/dmitrijs2005/consejo/internal/server/models"
)

// Repository looks up and creates consejos comunales.
type Repository interface {
	// FindByName returns the unit with the exact given name, or
	// common.ErrorNotFound.
	FindByName(ctx context.Context, name string) (*models.Unit, error)

	// Create inserts unit, assigning an ID when empty.
	Create(ctx context.Context, unit *models.Unit) (*models.Unit, error)
}
