// Package remote implements the wishlist store's remote item collection over
// the WishKeeper HTTPS API. Requests go through a circuit breaker so a failing
// server is not hammered by every user action.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/models"
)

const maxErrorBody = 1024

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	Name string
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval clears the closed-state counters; 0 never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the breaker settings used by the client.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "wishlist-api",
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

type response struct {
	status int
	body   []byte
}

// Repository is a wishlist.RemoteItemRepository backed by the server API.
// The owner is established by the client certificate of the underlying
// http.Client.
type Repository struct {
	client  *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[response]
	log     *zap.Logger
}

// New creates a Repository for the server at baseURL.
func New(client *http.Client, baseURL string, cfg BreakerConfig, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Repository{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		breaker: gobreaker.NewCircuitBreaker[response](settings),
		log:     log,
	}
}

// State reports the breaker state.
func (r *Repository) State() gobreaker.State {
	return r.breaker.State()
}

// QueryByOwner fetches GET /api/wishlist. Records of any other owner are
// rejected since they mean the certificate does not belong to ownerID.
func (r *Repository) QueryByOwner(ctx context.Context, ownerID string) ([]models.Record, error) {
	resp, err := r.do(ctx, http.MethodGet, "/api/wishlist", nil)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("query wishlist: %w", statusError(resp))
	}

	var records []models.Record
	if err := json.Unmarshal(resp.body, &records); err != nil {
		return nil, fmt.Errorf("query wishlist: invalid response: %w", err)
	}
	for _, rec := range records {
		if rec.OwnerID != ownerID {
			return nil, fmt.Errorf("query wishlist: record %s belongs to another user", rec.RemoteID)
		}
	}
	return records, nil
}

// Create posts product to POST /api/wishlist and returns the record id.
func (r *Repository) Create(ctx context.Context, ownerID string, product models.Product) (string, error) {
	body, err := json.Marshal(map[string]any{"product": product})
	if err != nil {
		return "", fmt.Errorf("create wishlist record: %w", err)
	}

	resp, err := r.do(ctx, http.MethodPost, "/api/wishlist", body)
	if err != nil {
		return "", fmt.Errorf("create wishlist record: %w", err)
	}
	if resp.status != http.StatusCreated && resp.status != http.StatusOK {
		return "", fmt.Errorf("create wishlist record: %w", statusError(resp))
	}

	var out struct {
		RemoteID string `json:"remote_id"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return "", fmt.Errorf("create wishlist record: invalid response: %w", err)
	}
	r.log.Debug("wishlist record created", zap.String("owner", ownerID), zap.String("remote_id", out.RemoteID))
	return out.RemoteID, nil
}

// Delete calls DELETE /api/wishlist/{remoteID}. A 404 counts as success.
func (r *Repository) Delete(ctx context.Context, remoteID string) error {
	resp, err := r.do(ctx, http.MethodDelete, "/api/wishlist/"+url.PathEscape(remoteID), nil)
	if err != nil {
		return fmt.Errorf("delete wishlist record: %w", err)
	}
	switch resp.status {
	case http.StatusNoContent, http.StatusOK, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete wishlist record: %w", statusError(resp))
	}
}

// do executes one request through the breaker. Transport errors and 5xx
// responses count as breaker failures; 4xx responses do not.
func (r *Repository) do(ctx context.Context, method, path string, body []byte) (response, error) {
	return r.breaker.Execute(func() (response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
		if err != nil {
			return response{}, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := r.client.Do(req)
		if err != nil {
			return response{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, fmt.Errorf("read response: %w", err)
		}
		out := response{status: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return response{}, statusError(out)
		}
		return out, nil
	})
}

// StatusError is a non-success HTTP response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

func statusError(resp response) error {
	return NewStatusError(resp.status, resp.body)
}

// NewStatusError builds a StatusError from a response status and body,
// preferring the "message" field of a JSON error body.
func NewStatusError(status int, body []byte) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	msg := strings.TrimSpace(string(body))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	return &StatusError{Status: status, Message: msg}
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
