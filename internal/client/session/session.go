// Package session tracks the signed-in user of the client. It signs in with
// the client certificate, persists the identity in a sealed session file
// and notifies subscribers of every identity change.
package session

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/client/remote"
	"github.com/atinyakov/wishkeeper/internal/models"
)

// Session is the client's authentication state. It satisfies
// wishlist.AuthSession.
type Session struct {
	client  *http.Client
	baseURL string
	path    string
	aead    cipher.AEAD
	log     *zap.Logger

	// pubMu serializes identity transitions with their notifications so
	// subscribers observe changes in order.
	pubMu sync.Mutex

	mu        sync.Mutex
	current   *models.Identity
	listeners map[int]func(*models.Identity)
	nextID    int
}

// New creates a signed-out session. client must present the certificate
// whose PEM is certPEM; the session file at path is sealed with a key
// derived from it.
func New(client *http.Client, baseURL, path string, certPEM []byte, log *zap.Logger) (*Session, error) {
	aead, err := newAEAD(certPEM)
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		path:      path,
		aead:      aead,
		log:       log,
		listeners: make(map[int]func(*models.Identity)),
	}, nil
}

// Current returns the signed-in identity or nil.
func (s *Session) Current() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.current)
}

// Subscribe calls listener with the current identity and then after every
// change. Listeners must not call SignIn, SignOut or Restore.
func (s *Session) Subscribe(listener func(*models.Identity)) func() {
	s.pubMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	current := copyIdentity(s.current)
	s.mu.Unlock()
	listener(current)
	s.pubMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignIn presents the client certificate to POST /api/login, persists the
// resulting identity and publishes it.
func (s *Session) SignIn(ctx context.Context) (*models.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/login", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, remote.NewStatusError(resp.StatusCode, data)
	}

	var id models.Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if id.UID == "" {
		return nil, errors.New("server returned no uid")
	}

	if err := s.save(id); err != nil {
		s.log.Warn("session not persisted", zap.Error(err))
	}
	s.publish(&id)
	s.log.Info("signed in", zap.String("uid", id.UID))
	return copyIdentity(&id), nil
}

// SignOut forgets the identity and removes the session file.
func (s *Session) SignOut() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	s.publish(nil)
	if err != nil {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Restore reads the sealed session file and publishes the stored identity.
// A missing file leaves the session signed out.
func (s *Session) Restore() (*models.Identity, error) {
	sealed, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	plain, err := open(s.aead, sealed)
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	var id models.Identity
	if err := json.Unmarshal(plain, &id); err != nil || id.UID == "" {
		return nil, errors.New("corrupt session file")
	}

	s.publish(&id)
	return copyIdentity(&id), nil
}

func (s *Session) save(id models.Identity) error {
	plain, err := json.Marshal(id)
	if err != nil {
		return err
	}
	sealed, err := seal(s.aead, plain)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, sealed, 0o600)
}

func (s *Session) publish(id *models.Identity) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.current = copyIdentity(id)
	listeners := make([]func(*models.Identity), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(copyIdentity(id))
	}
}

func copyIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
