package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
	"github.com/atinyakov/wishkeeper/internal/models"
)

// WishlistRepository defines the persistence operations needed by the WishlistService.
type WishlistRepository interface {
	QueryByOwner(ctx context.Context, ownerID string) ([]models.Record, error)
	Create(ctx context.Context, ownerID string, p models.Product) (string, error)
	Delete(ctx context.Context, ownerID, remoteID string) error
}

// WishlistService implements the per-user wishlist collection.
type WishlistService struct {
	repo WishlistRepository
}

// NewWishlistService constructs a WishlistService with the provided repository.
func NewWishlistService(repo WishlistRepository) *WishlistService {
	return &WishlistService{repo: repo}
}

// List returns every live record of ownerID.
func (s *WishlistService) List(ctx context.Context, ownerID string) ([]models.Record, error) {
	return s.repo.QueryByOwner(ctx, ownerID)
}

// Add stores p in the collection of ownerID and returns the record id.
// Adding a product already in the collection returns the existing id.
func (s *WishlistService) Add(ctx context.Context, ownerID string, p models.Product) (string, error) {
	if err := validate.Struct(p); err != nil {
		return "", apperrors.InvalidInput(describe(err))
	}
	return s.repo.Create(ctx, ownerID, p)
}

// Remove deletes the record remoteID of ownerID. Missing records are not an error.
func (s *WishlistService) Remove(ctx context.Context, ownerID, remoteID string) error {
	if strings.TrimSpace(remoteID) == "" {
		return apperrors.InvalidInput("record id is required")
	}
	return s.repo.Delete(ctx, ownerID, remoteID)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid product"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return "invalid product: " + strings.Join(parts, ", ")
}
