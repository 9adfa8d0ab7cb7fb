// Package address persists addresses.
package address

import (
	"context"

	"personsync/internal/address/models"
	id "personsync/pkg/domain"
)

// Store returns sentinel.ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, a *models.Address) error
	Update(ctx context.Context, a *models.Address) error
	Delete(ctx context.Context, addressID id.AddressID) error
	FindByID(ctx context.Context, addressID id.AddressID) (*models.Address, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Address, error)
}
