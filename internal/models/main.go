// Package models defines the core data structures for users, products and wishlist records.
package models

import "time"

// DefaultRating is reported for products whose rating is unknown.
const DefaultRating = 4.0

// User represents a registered account on the server.
type User struct {
	// ID is the server-assigned unique identifier for the user.
	ID string `json:"uid"`
	// Email is the address the user registered with.
	Email string `json:"email"`
	// CreatedAt is the registration time.
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated end user as seen by the client.
// A signed-out client has a nil *Identity.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// SameAs reports whether both identities refer to the same user.
// Two nil identities are the same; a nil and a non-nil one are not.
func (i *Identity) SameAs(other *Identity) bool {
	if i == nil || other == nil {
		return i == nil && other == nil
	}
	return i.UID == other.UID
}

// Product is a catalog entity. It is immutable from the wishlist's point of view.
type Product struct {
	// ID is the opaque, stable catalog identifier.
	ID string `json:"id" yaml:"id" validate:"required,max=128"`
	// Name is the display name.
	Name string `json:"name" yaml:"name" validate:"required,max=256"`
	// Price is the non-negative unit price.
	Price float64 `json:"price" yaml:"price" validate:"gte=0"`
	// Image is the URI of the product picture.
	Image string `json:"image" yaml:"image" validate:"omitempty,max=2048"`
	// Description is free text shown on the details screen.
	Description string `json:"description" yaml:"description"`
	// Category is a free-text label, grouped case-insensitively.
	Category string `json:"category" yaml:"category" validate:"max=128"`
	// Rating is optional; see EffectiveRating.
	Rating *float64 `json:"rating,omitempty" yaml:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// EffectiveRating returns the product rating, or DefaultRating when absent.
func (p Product) EffectiveRating() float64 {
	if p.Rating == nil {
		return DefaultRating
	}
	return *p.Rating
}

// Entry is a wishlisted product together with the id of its remote record.
type Entry struct {
	Product
	// RemoteID identifies the record in the remote collection. Empty until persisted.
	RemoteID string `json:"remote_id,omitempty"`
}

// Persisted reports whether the entry has been confirmed by the remote collection.
func (e Entry) Persisted() bool {
	return e.RemoteID != ""
}

// Record is one document of the per-user remote wishlist collection.
type Record struct {
	// RemoteID is the server-assigned record id, distinct from Product.ID.
	RemoteID string `json:"remote_id"`
	// OwnerID is the UID of the user owning the record.
	OwnerID string `json:"owner_id"`
	// Product holds the product fields captured at the time of wishlisting.
	Product Product `json:"product"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
}

// Entry converts the record into a local wishlist entry.
func (r Record) Entry() Entry {
	return Entry{Product: r.Product, RemoteID: r.RemoteID}
}
