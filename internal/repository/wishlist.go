package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/atinyakov/wishkeeper/internal/models"
)

// PostgresWishlistRepository implements the per-user wishlist collection.
type PostgresWishlistRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresWishlistRepository creates a new PostgresWishlistRepository using the provided *sql.DB.
func NewPostgresWishlistRepository(db *sql.DB) *PostgresWishlistRepository {
	return &PostgresWishlistRepository{DB: db}
}

// QueryByOwner returns the live records of ownerID, oldest first.
func (r *PostgresWishlistRepository) QueryByOwner(ctx context.Context, ownerID string) ([]models.Record, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, product_id, name, price, image, description, category, rating, created_at
		  FROM wishlists
		 WHERE user_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var (
			rec    models.Record
			rating sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.RemoteID, &rec.OwnerID, &rec.Product.ID, &rec.Product.Name, &rec.Product.Price,
			&rec.Product.Image, &rec.Product.Description, &rec.Product.Category, &rating, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan wishlist record: %w", err)
		}
		if rating.Valid {
			v := rating.Float64
			rec.Product.Rating = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist rows: %w", err)
	}
	return records, nil
}

// Create stores product in the collection of ownerID and returns the record id.
// If a live record for the same product already exists its id is returned instead.
func (r *PostgresWishlistRepository) Create(ctx context.Context, ownerID string, p models.Product) (string, error) {
	var rating sql.NullFloat64
	if p.Rating != nil {
		rating = sql.NullFloat64{Float64: *p.Rating, Valid: true}
	}

	var id string
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO wishlists (id, user_id, product_id, name, price, image, description, category, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, product_id) WHERE deleted_at IS NULL
		DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`, uuid.NewString(), ownerID, p.ID, p.Name, p.Price, p.Image, p.Description, p.Category, rating).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create wishlist record: %w", err)
	}
	return id, nil
}

// Delete soft-deletes the record remoteID owned by ownerID.
// Deleting a missing or foreign record is not an error.
func (r *PostgresWishlistRepository) Delete(ctx context.Context, ownerID, remoteID string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE wishlists SET deleted_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, remoteID, ownerID)
	if err != nil {
		return fmt.Errorf("delete wishlist record: %w", err)
	}
	return nil
}
