package track

// ValueId names a value a transaction has created but not yet placed at
// a global address — an index into the pending set a Track accumulates
// between native_create and native_globalize.
type ValueId int

// SystemAPI is the surface a ResourceManager (or any other native
// component) uses to talk to its owning Track, kept separate from
// Track's own exported methods so callers only see the operations a
// native component is meant to drive (External Interfaces).
type SystemAPI interface {
	// CreateNode stages value as a not-yet-addressed new value and
	// returns a handle to it (native_create).
	CreateNode(value SubstateValue) ValueId

	// GlobalizeNode assigns id a permanent address, turning its staged
	// value into a real Up (and, for a space-bearing kind, a VirtualUp)
	// at commit time (native_globalize).
	GlobalizeNode(id ValueId, addr Address) error

	// BorrowNode takes the single-writer lock on addr and returns the
	// current value (borrow_native_value); the caller must eventually
	// call ReturnNode with the same address.
	BorrowNode(addr Address) (*SubstateValue, error)

	// ReturnNode releases the lock taken by BorrowNode, committing value
	// as the new in-flight state at addr (return_native_value).
	ReturnNode(addr Address, value SubstateValue) error

	// GetNonFungible reads one entry out of a resource's non-fungible
	// space without taking the resource manager's own lock.
	GetNonFungible(resource ResourceAddress, id string) (*NonFungible, bool)

	// SetNonFungible writes (or tombstones, when nf is nil) one entry in
	// a resource's non-fungible space.
	SetNonFungible(resource ResourceAddress, id string, nf *NonFungible)

	// NewResourceAddressFor allocates the next deterministic resource
	// address for this transaction, for a node about to be globalized.
	NewResourceAddressFor() ResourceAddress

	// NewBucketId allocates a transient bucket id.
	NewBucketId() BucketId

	// NewProofId allocates a transient proof id.
	NewProofId() ProofId
}
