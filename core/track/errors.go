package track

import "fmt"

// TrackErrorKind enumerates the track's own error conditions.
type TrackErrorKind uint8

const (
	// ErrNotFound: a borrow or read targeted an address the store does
	// not have.
	ErrNotFound TrackErrorKind = iota
	// ErrReentrancy: a borrow targeted an address already Borrowed.
	ErrReentrancy
)

// TrackError is returned by the track's read/write/borrow operations.
type TrackError struct {
	Kind    TrackErrorKind
	Address Address
}

func (e *TrackError) Error() string {
	switch e.Kind {
	case ErrReentrancy:
		return fmt.Sprintf("track: reentrancy on %s", e.Address)
	default:
		return fmt.Sprintf("track: not found: %s", e.Address)
	}
}

// IsReentrancy reports whether err is a reentrancy TrackError.
func IsReentrancy(err error) bool {
	te, ok := err.(*TrackError)
	return ok && te.Kind == ErrReentrancy
}

// IsNotFound reports whether err is a not-found TrackError.
func IsNotFound(err error) bool {
	te, ok := err.(*TrackError)
	return ok && te.Kind == ErrNotFound
}

func notFoundErr(addr Address) error   { return &TrackError{Kind: ErrNotFound, Address: addr} }
func reentrancyErr(addr Address) error { return &TrackError{Kind: ErrReentrancy, Address: addr} }

// --- ResourceManager domain errors -------------------------------

// InvalidDivisibilityError: a declared divisibility is outside 0..=18.
type InvalidDivisibilityError struct{ Divisibility uint8 }

func (e *InvalidDivisibilityError) Error() string {
	return fmt.Sprintf("resource manager: invalid divisibility %d", e.Divisibility)
}

// InvalidAmountError: an amount failed the divisibility/sign check.
type InvalidAmountError struct {
	Amount       Decimal
	Divisibility uint8
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("resource manager: invalid amount %s for divisibility %d", e.Amount, e.Divisibility)
}

// MaxMintAmountExceededError: a single mint call exceeded the per-call cap.
type MaxMintAmountExceededError struct{ Amount Decimal }

func (e *MaxMintAmountExceededError) Error() string {
	return fmt.Sprintf("resource manager: mint amount %s exceeds cap", e.Amount)
}

// ResourceTypeDoesNotMatchError: a mint/burn call targeted the wrong
// resource-type variant.
type ResourceTypeDoesNotMatchError struct{}

func (e *ResourceTypeDoesNotMatchError) Error() string {
	return "resource manager: resource type does not match"
}

// InvalidNonFungibleDataError: a non-fungible blob referenced a
// bucket/proof/kv-store/vault id (leak prevention).
type InvalidNonFungibleDataError struct{ Reason string }

func (e *InvalidNonFungibleDataError) Error() string {
	return fmt.Sprintf("resource manager: invalid non-fungible data: %s", e.Reason)
}

// NonFungibleAlreadyExistsError: mint targeted an id already present.
type NonFungibleAlreadyExistsError struct{ Id string }

func (e *NonFungibleAlreadyExistsError) Error() string {
	return fmt.Sprintf("resource manager: non-fungible %q already exists", e.Id)
}

// InvalidMethodError: a dispatch name is in neither method table.
type InvalidMethodError struct{ Method string }

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("resource manager: invalid method %q", e.Method)
}

// InvalidRequestDataError: an argument blob failed canonical decoding.
type InvalidRequestDataError struct{ Err error }

func (e *InvalidRequestDataError) Error() string {
	return fmt.Sprintf("resource manager: invalid request data: %v", e.Err)
}

func (e *InvalidRequestDataError) Unwrap() error { return e.Err }

// NonFungibleNotFoundError: an update/read targeted a missing id.
type NonFungibleNotFoundError struct{ Id string }

func (e *NonFungibleNotFoundError) Error() string {
	return fmt.Sprintf("resource manager: non-fungible %q not found", e.Id)
}
