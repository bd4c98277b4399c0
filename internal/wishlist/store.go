// Package wishlist keeps the signed-in user's wishlist in memory and
// reconciles it with the remote per-user item collection.
//
// The Store is the single source of truth for "is product P wishlisted by
// the current user". Reads are synchronous and safe from any goroutine.
// Mutations persist to the remote collection first and touch local state
// only after the remote call has been confirmed.
package wishlist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/models"
)

// RemoteItemRepository is the per-user keyed document collection the store
// is reconciled against.
type RemoteItemRepository interface {
	// QueryByOwner returns all records owned by ownerID.
	QueryByOwner(ctx context.Context, ownerID string) ([]models.Record, error)
	// Create stores product under ownerID and returns the server-assigned record id.
	Create(ctx context.Context, ownerID string, product models.Product) (string, error)
	// Delete removes the record. Deleting a missing record succeeds.
	Delete(ctx context.Context, remoteID string) error
}

// AuthSession supplies the current identity and reports its changes.
type AuthSession interface {
	// Subscribe calls listener once with the current identity and then on
	// every change. The returned function stops the notifications.
	Subscribe(listener func(*models.Identity)) (unsubscribe func())
}

// LoadState describes the reconciliation status of the store.
type LoadState int

const (
	// StateIdle is the initial state, before any identity has been delivered.
	StateIdle LoadState = iota
	// StateLoading means the wishlist of the current identity is being queried.
	StateLoading
	// StateReady means entries reflect the remote collection of the current
	// identity, or nobody is signed in.
	StateReady
	// StateError means the last load failed; State.LoadErr holds the cause.
	StateError
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a point-in-time snapshot of the store.
type State struct {
	Identity  *models.Identity
	Entries   []models.Entry
	LoadState LoadState
	// LoadErr holds the LoadFailed error while LoadState is StateError.
	LoadErr error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and mutation outcomes.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Store owns the in-memory view of the current user's wishlist.
type Store struct {
	repo RemoteItemRepository
	log  *zap.Logger

	mu        sync.Mutex
	identity  *models.Identity
	entries   []models.Entry
	loadState LoadState
	loadErr   error
	// gen is bumped on every identity transition; in-flight work carries the
	// generation it was issued under and its result is dropped on mismatch.
	gen      uint64
	inFlight map[string]uint64

	// pending snapshots are delivered to listeners in transition order by
	// whichever goroutine holds the draining flag.
	pending  []State
	draining bool

	listenersMu  sync.Mutex
	listeners    map[int]func(State)
	nextListener int
}

// New creates a store in the Idle state with no identity and no entries.
func New(repo RemoteItemRepository, opts ...Option) *Store {
	s := &Store{
		repo:      repo,
		log:       zap.NewNop(),
		entries:   []models.Entry{},
		loadState: StateIdle,
		inFlight:  make(map[string]uint64),
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach subscribes the store to session. Every identity change is applied
// to the store state immediately, in callback order; the remote load it
// triggers runs on its own goroutine.
func (s *Store) Attach(ctx context.Context, session AuthSession) (detach func()) {
	return session.Subscribe(func(identity *models.Identity) {
		if load := s.switchIdentity(identity); load != nil {
			go load(ctx)
		}
	})
}

// OnIdentityChanged moves the store to identity and, if needed, reloads the
// wishlist for it. It returns once the load it started has been applied or
// discarded. Calling it with the current identity is a no-op.
func (s *Store) OnIdentityChanged(ctx context.Context, identity *models.Identity) {
	if load := s.switchIdentity(identity); load != nil {
		load(ctx)
	}
}

// Reload re-queries the remote collection for the current identity and
// returns once the result has been applied. It is meant for retrying after
// a failed load. It is rejected with OperationInProgress while a load or a
// mutation of the current identity is running.
func (s *Store) Reload(ctx context.Context) error {
	const op = "reload"

	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return newError(Unauthenticated, op, "", nil)
	}
	if s.loadState == StateLoading || s.busyLocked() {
		s.mu.Unlock()
		return newError(OperationInProgress, op, "", nil)
	}
	load := s.beginLoadLocked(s.identity)
	s.commitLocked()
	load(ctx)
	return nil
}

// switchIdentity applies the synchronous part of an identity change and
// returns the remote load to run, or nil when no load is needed.
func (s *Store) switchIdentity(identity *models.Identity) func(context.Context) {
	s.mu.Lock()

	if identity == nil {
		if s.identity == nil && s.loadState == StateReady {
			s.mu.Unlock()
			return nil
		}
		s.gen++
		s.identity = nil
		s.entries = []models.Entry{}
		s.loadState = StateReady
		s.loadErr = nil
		s.log.Debug("wishlist cleared on sign-out")
		s.commitLocked()
		return nil
	}

	if s.identity.SameAs(identity) && s.loadState != StateIdle {
		s.mu.Unlock()
		return nil
	}

	id := *identity
	s.gen++
	load := s.beginLoadLocked(&id)
	s.commitLocked()
	return load
}

// beginLoadLocked moves the store to Loading for identity under the current
// generation. s.mu must be held.
func (s *Store) beginLoadLocked(identity *models.Identity) func(context.Context) {
	gen := s.gen
	s.identity = identity
	s.entries = []models.Entry{}
	s.loadState = StateLoading
	s.loadErr = nil

	owner := identity.UID
	return func(ctx context.Context) {
		s.load(ctx, gen, owner)
	}
}

func (s *Store) load(ctx context.Context, gen uint64, owner string) {
	records, err := s.repo.QueryByOwner(ctx, owner)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Debug("discarding superseded wishlist load", zap.String("owner", owner))
		return
	}

	if err != nil {
		s.entries = []models.Entry{}
		s.loadState = StateError
		s.loadErr = newError(LoadFailed, "load", "", err)
		s.log.Warn("wishlist load failed", zap.String("owner", owner), zap.Error(err))
		s.commitLocked()
		return
	}

	entries := make([]models.Entry, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.Product.ID]; dup {
			s.log.Warn("duplicate wishlist record ignored",
				zap.String("owner", owner),
				zap.String("product_id", rec.Product.ID),
				zap.String("remote_id", rec.RemoteID))
			continue
		}
		seen[rec.Product.ID] = struct{}{}
		entries = append(entries, rec.Entry())
	}

	s.entries = entries
	s.loadState = StateReady
	s.log.Debug("wishlist loaded", zap.String("owner", owner), zap.Int("entries", len(entries)))
	s.commitLocked()
}

// IsWishlisted reports whether productID is on the current user's wishlist.
// It is false whenever the store is not Ready or nobody is signed in.
func (s *Store) IsWishlisted(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity == nil || s.loadState != StateReady {
		return false
	}
	return s.indexLocked(productID) >= 0
}

// Add persists product to the remote collection and then appends it to the
// local entries. Adding a product that is already wishlisted succeeds
// without any remote call.
func (s *Store) Add(ctx context.Context, product models.Product) error {
	const op = "add"

	s.mu.Lock()
	if err := s.guardLocked(op, product.ID); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.indexLocked(product.ID) >= 0 {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	owner := s.identity.UID
	s.inFlight[product.ID] = gen
	s.mu.Unlock()

	remoteID, err := s.repo.Create(ctx, owner, product)

	s.mu.Lock()
	s.releaseLocked(product.ID, gen)
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("wishlist add failed", zap.String("product_id", product.ID), zap.Error(err))
		return newError(RemoteWriteFailed, op, product.ID, err)
	}
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Debug("discarding add issued under a previous identity",
			zap.String("owner", owner), zap.String("product_id", product.ID))
		return nil
	}
	if remoteID == "" {
		s.log.Warn("remote create returned no id", zap.String("product_id", product.ID))
	}
	if s.indexLocked(product.ID) < 0 {
		s.entries = append(s.entries, models.Entry{Product: product, RemoteID: remoteID})
	}
	s.commitLocked()
	return nil
}

// Remove deletes the remote record for productID and then drops the local
// entry. Removing a product that is not wishlisted succeeds without any
// remote call.
func (s *Store) Remove(ctx context.Context, productID string) error {
	const op = "remove"

	s.mu.Lock()
	if err := s.guardLocked(op, productID); err != nil {
		s.mu.Unlock()
		return err
	}
	idx := s.indexLocked(productID)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	entry := s.entries[idx]
	if !entry.Persisted() {
		s.mu.Unlock()
		return newError(EntryNotPersisted, op, productID, nil)
	}
	gen := s.gen
	s.inFlight[productID] = gen
	s.mu.Unlock()

	err := s.repo.Delete(ctx, entry.RemoteID)

	s.mu.Lock()
	s.releaseLocked(productID, gen)
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("wishlist remove failed",
			zap.String("product_id", productID),
			zap.String("remote_id", entry.RemoteID),
			zap.Error(err))
		return newError(RemoteWriteFailed, op, productID, err)
	}
	if s.gen != gen {
		s.mu.Unlock()
		s.log.Debug("discarding remove issued under a previous identity", zap.String("product_id", productID))
		return nil
	}
	if i := s.indexLocked(productID); i >= 0 {
		s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	}
	s.commitLocked()
	return nil
}

// guardLocked checks the preconditions shared by Add and Remove.
func (s *Store) guardLocked(op, productID string) error {
	if s.identity == nil {
		return newError(Unauthenticated, op, productID, nil)
	}
	switch s.loadState {
	case StateLoading:
		return newError(OperationInProgress, op, productID, nil)
	case StateError:
		// entries are unknown until a successful Reload
		var cause error
		if le, ok := s.loadErr.(*Error); ok {
			cause = le.Err
		}
		return newError(LoadFailed, op, productID, cause)
	}
	if g, busy := s.inFlight[productID]; busy && g == s.gen {
		return newError(OperationInProgress, op, productID, nil)
	}
	return nil
}

// busyLocked reports whether a mutation issued under the current identity
// is still waiting for the remote collection.
func (s *Store) busyLocked() bool {
	for _, g := range s.inFlight {
		if g == s.gen {
			return true
		}
	}
	return false
}

func (s *Store) releaseLocked(productID string, gen uint64) {
	if g, ok := s.inFlight[productID]; ok && g == gen {
		delete(s.inFlight, productID)
	}
}

func (s *Store) indexLocked(productID string) int {
	for i := range s.entries {
		if s.entries[i].ID == productID {
			return i
		}
	}
	return -1
}

// Entries returns a copy of the current entries in insertion order.
func (s *Store) Entries() []models.Entry {
	return s.GetState().Entries
}

// GetState returns a snapshot of the store.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{
		Entries:   make([]models.Entry, len(s.entries)),
		LoadState: s.loadState,
		LoadErr:   s.loadErr,
	}
	copy(st.Entries, s.entries)
	if s.identity != nil {
		id := *s.identity
		st.Identity = &id
	}
	return st
}

// Subscribe registers listener to be called with a snapshot after every
// state transition. Snapshots queued while a listener runs are delivered
// after it returns.
func (s *Store) Subscribe(listener func(State)) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// commitLocked queues a snapshot for listeners and releases s.mu.
func (s *Store) commitLocked() {
	s.pending = append(s.pending, s.snapshotLocked())
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		st := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.deliver(st)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Store) deliver(st State) {
	s.listenersMu.Lock()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}
