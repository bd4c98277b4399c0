package wishlist

import (
	"errors"
	"fmt"
)

// Kind classifies wishlist failures.
type Kind int

const (
	// Unauthenticated means a mutation was attempted with no signed-in identity.
	Unauthenticated Kind = iota + 1
	// RemoteWriteFailed means the remote create or delete call failed.
	RemoteWriteFailed
	// EntryNotPersisted means a remove targeted an entry without a remote id.
	EntryNotPersisted
	// OperationInProgress means another operation on the same product
	// (or the identity load) has not finished yet. Reload reports it while
	// any mutation is pending.
	OperationInProgress
	// LoadFailed means the identity-triggered load failed. State.LoadErr
	// carries it, and mutations report it until a Reload succeeds.
	LoadFailed
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrUnauthenticated     = errors.New("not signed in")
	ErrRemoteWriteFailed   = errors.New("remote write failed")
	ErrEntryNotPersisted   = errors.New("entry not persisted yet")
	ErrOperationInProgress = errors.New("operation in progress")
	ErrLoadFailed          = errors.New("wishlist load failed")
)

func (k Kind) sentinel() error {
	switch k {
	case Unauthenticated:
		return ErrUnauthenticated
	case RemoteWriteFailed:
		return ErrRemoteWriteFailed
	case EntryNotPersisted:
		return ErrEntryNotPersisted
	case OperationInProgress:
		return ErrOperationInProgress
	case LoadFailed:
		return ErrLoadFailed
	default:
		return nil
	}
}

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "Unauthenticated"
	case RemoteWriteFailed:
		return "RemoteWriteFailed"
	case EntryNotPersisted:
		return "EntryNotPersisted"
	case OperationInProgress:
		return "OperationInProgress"
	case LoadFailed:
		return "LoadFailed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the structured failure returned by Store operations.
type Error struct {
	Kind      Kind
	Op        string
	ProductID string
	// Err is the underlying cause, if any.
	Err error
}

func newError(kind Kind, op, productID string, cause error) *Error {
	return &Error{Kind: kind, Op: op, ProductID: productID, Err: cause}
}

func (e *Error) Error() string {
	msg := "wishlist " + e.Op
	if e.ProductID != "" {
		msg += " " + e.ProductID
	}
	msg += ": " + e.Kind.sentinel().Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of a wishlist error, or 0 if err is not one.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return 0
}
