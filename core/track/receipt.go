package track

import "github.com/sirupsen/logrus"

// OperationKind tags the four shapes a commit receipt's operation log can
// hold.
type OperationKind uint8

const (
	OpDown OperationKind = iota
	OpVirtualDown
	OpUp
	OpVirtualUp
)

// SubstateOperation is one entry in a TrackReceipt's operation log, drained
// in Down, VirtualDown, Up, VirtualUp order.
type SubstateOperation struct {
	Kind OperationKind

	Down        PhysicalSubstateId // OpDown
	VirtualDown VirtualSubstateId  // OpVirtualDown

	UpAddress Address           // OpUp, when Key == nil
	UpValue   SubstateValue     // OpUp
	VirtualUp VirtualSubstateId // OpVirtualUp (space creation only)

	// Space names which keyed space an OpVirtualDown/OpUp/OpVirtualUp
	// belongs to. A substate store keyed by Address (rather than by a
	// resolved physical id alone) needs the space's own address to route
	// the operation, so the track carries it alongside the op.
	Space Address

	// Key is set on an OpUp produced by set_key_value: the full up
	// address is Space.Encode() followed by Key, not UpAddress. nil for
	// every other Up and for every other op kind.
	Key []byte
}

// LogEntry is one line emitted through the track's own log, independent
// of the ambient logrus logging the host process uses for its own
// diagnostics.
type LogEntry struct {
	Level   logrus.Level
	Message string
}

// TrackReceipt is everything a committed transaction produced: the new
// addresses it allocated, the logs it emitted, and the ordered substate
// operations that replay its effect against the store.
type TrackReceipt struct {
	NewAddresses []Address
	Logs         []LogEntry
	Operations   []SubstateOperation

	// NewSpaces lists the keyed spaces (KeyValueStore/NonFungibleSet)
	// materialized this transaction, in the same order as their
	// space-creation OpVirtualUp entries in Operations.
	NewSpaces []Address

	// Borrowed carries whatever was still checked out (locked or
	// owning-borrowed) when ToReceipt drained the overlay. Its emptiness
	// is a post-condition of a well-behaved transaction; a non-empty set
	// here indicates a caller bug upstream.
	Borrowed *BorrowedSNodes
}

// BorrowedSNodes is the set of addresses currently checked out under
// take_lock/borrow_global_mut_value. It exists as its own type, rather
// than a bare map, so Track's invariant ("every borrowed address is
// released by the time Commit runs") has one obvious place to assert
// against.
type BorrowedSNodes struct {
	set map[Address]struct{}
}

// NewBorrowedSNodes returns an empty borrow set.
func NewBorrowedSNodes() *BorrowedSNodes {
	return &BorrowedSNodes{set: make(map[Address]struct{})}
}

// Insert marks addr as borrowed.
func (b *BorrowedSNodes) Insert(addr Address) { b.set[addr] = struct{}{} }

// Remove marks addr as released.
func (b *BorrowedSNodes) Remove(addr Address) { delete(b.set, addr) }

// Contains reports whether addr is currently borrowed.
func (b *BorrowedSNodes) Contains(addr Address) bool {
	_, ok := b.set[addr]
	return ok
}

// Empty reports whether nothing remains borrowed.
func (b *BorrowedSNodes) Empty() bool { return len(b.set) == 0 }

// Addresses returns the currently borrowed addresses, order unspecified.
func (b *BorrowedSNodes) Addresses() []Address {
	out := make([]Address, 0, len(b.set))
	for addr := range b.set {
		out = append(out, addr)
	}
	return out
}
