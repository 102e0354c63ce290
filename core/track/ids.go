package track

import "fmt"

// TxHash identifies the transaction a track is executing for; it seeds
// every deterministic id the track allocates.
type TxHash [32]byte

func (h TxHash) String() string { return fmt.Sprintf("%x", h[:]) }

// PackageAddress, ComponentAddress, ResourceAddress, VaultId and
// KeyValueStoreId are all 32-byte ids produced by the IdAllocator. Using
// Keccak256 output width for all of them keeps derivation uniform (see
// IdAllocator.derive).
type (
	PackageAddress   [32]byte
	ComponentAddress [32]byte
	ResourceAddress  [32]byte
	VaultId          [32]byte
	KeyValueStoreId  [32]byte
)

// BucketId and ProofId are transient, per-process identifiers that are
// never persisted and never keyed by transaction hash.
type (
	BucketId uint64
	ProofId  uint64
)

// PhysicalSubstateId locates a concrete prior write in the substate
// store: the transaction that produced it and the position within that
// transaction's Up log.
type PhysicalSubstateId struct {
	TxHash TxHash
	Index  uint32
}

// SubstateParentId names the parent of a virtual substate id: either a
// physical substate already durable in the store, or one of the new
// virtual spaces created earlier in the current transaction.
type SubstateParentId struct {
	exists bool
	Phys   PhysicalSubstateId // valid when exists
	NewIdx int                // valid when !exists: index into this track's up-spaces
}

// ExistingParent wraps a physical id as an Exists parent.
func ExistingParent(id PhysicalSubstateId) SubstateParentId {
	return SubstateParentId{exists: true, Phys: id}
}

// NewParent wraps an index into the current transaction's newly created
// virtual spaces as a New parent.
func NewParent(index int) SubstateParentId {
	return SubstateParentId{exists: false, NewIdx: index}
}

// IsExisting reports whether the parent refers to a durable physical id.
func (p SubstateParentId) IsExisting() bool { return p.exists }

// VirtualSubstateId identifies a position inside a keyed space that has
// not yet been materialized at the physical level.
type VirtualSubstateId struct {
	Parent SubstateParentId
	Key    []byte
}
