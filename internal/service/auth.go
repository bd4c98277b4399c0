// Package service provides the server business logic for registration,
// certificate login and the per-user wishlist collection, delegating
// persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/atinyakov/wishkeeper/internal/apperrors"
	"github.com/atinyakov/wishkeeper/internal/models"
)

var validate = validator.New()

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// CreateUser stores a new user; a taken email yields an AlreadyExists error.
	CreateUser(ctx context.Context, id, email string) (*models.User, error)
	// GetByID returns the user or a NotFound error.
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// CertIssuer signs client certificates for new users.
type CertIssuer interface {
	IssueClient(uid, email string) (certPEM, keyPEM []byte, err error)
}

// Registration is the outcome of a successful sign-up.
type Registration struct {
	User    models.User
	CertPEM []byte
	KeyPEM  []byte
}

// AuthService registers users and resolves certificate identities.
type AuthService struct {
	repo   UserRepository
	issuer CertIssuer
}

// NewAuthService constructs a new AuthService.
func NewAuthService(repo UserRepository, issuer CertIssuer) *AuthService {
	return &AuthService{repo: repo, issuer: issuer}
}

// Register creates a user for email and issues its client certificate.
// The email is trimmed and lower-cased before use.
func (s *AuthService) Register(ctx context.Context, email string) (*Registration, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return nil, apperrors.InvalidInput("a valid email is required")
	}

	uid := uuid.NewString()
	certPEM, keyPEM, err := s.issuer.IssueClient(uid, email)
	if err != nil {
		return nil, fmt.Errorf("issue certificate: %w", err)
	}

	u, err := s.repo.CreateUser(ctx, uid, email)
	if err != nil {
		return nil, err
	}
	return &Registration{User: *u, CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

// Login resolves the identity presented by a client certificate to a
// registered user.
func (s *AuthService) Login(ctx context.Context, id models.Identity) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id.UID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized("unknown user")
	}
	if err != nil {
		return nil, err
	}
	if id.Email != "" && !strings.EqualFold(id.Email, u.Email) {
		return nil, apperrors.Unauthorized("certificate does not match user")
	}
	return u, nil
}
