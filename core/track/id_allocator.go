package track

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
)

// spaceTag separates the monotonic counter per id kind so that two kinds
// allocated from the same transaction hash never collide.
type spaceTag uint8

const (
	spacePackage spaceTag = iota
	spaceComponent
	spaceResource
	spaceVault
	spaceKVStore
	spaceUUID
)

// IdAllocator derives deterministic per-transaction identifiers. A fresh
// IdAllocator is created per Track; the same sequence of calls against
// the same transaction hash always produces the same ids, which is what
// lets two runs of one transaction against equal stores produce
// byte-identical receipts.
//
// Bucket and proof ids are the one exception: they are transient,
// in-process container handles that never reach the substate store, so
// there is nothing for them to be deterministic against. Those are drawn
// from uuid.New() rather than a counter keyed off the transaction hash.
type IdAllocator struct {
	counters [spaceUUID + 1]uint32
}

// NewIdAllocator returns a ready-to-use allocator with all counters at
// zero.
func NewIdAllocator() *IdAllocator { return &IdAllocator{} }

// derive hashes (txHash, tag, counter) with Keccak256 over the RLP
// encoding of the triple. The counter for tag is incremented exactly
// once per call.
func (a *IdAllocator) derive(txHash TxHash, tag spaceTag) [32]byte {
	counter := a.counters[tag]
	a.counters[tag]++

	payload := struct {
		TxHash  []byte
		Tag     uint8
		Counter uint32
	}{TxHash: txHash[:], Tag: uint8(tag), Counter: counter}

	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		// The payload is a fixed, rlp-safe shape; encoding cannot fail.
		panic("track: id allocator rlp encode: " + err.Error())
	}
	return crypto.Keccak256Hash(encoded)
}

// NewPackageAddress derives the next deterministic package address.
func (a *IdAllocator) NewPackageAddress(txHash TxHash) PackageAddress {
	return PackageAddress(a.derive(txHash, spacePackage))
}

// NewComponentAddress derives the next deterministic component address.
func (a *IdAllocator) NewComponentAddress(txHash TxHash) ComponentAddress {
	return ComponentAddress(a.derive(txHash, spaceComponent))
}

// NewResourceAddress derives the next deterministic resource address.
func (a *IdAllocator) NewResourceAddress(txHash TxHash) ResourceAddress {
	return ResourceAddress(a.derive(txHash, spaceResource))
}

// NewVaultId derives the next deterministic vault id.
func (a *IdAllocator) NewVaultId(txHash TxHash) VaultId {
	return VaultId(a.derive(txHash, spaceVault))
}

// NewKVStoreId derives the next deterministic key-value store id.
func (a *IdAllocator) NewKVStoreId(txHash TxHash) KeyValueStoreId {
	return KeyValueStoreId(a.derive(txHash, spaceKVStore))
}

// NewUUID derives the next deterministic 128-bit uuid, taking the low 16
// bytes of the derivation hash.
func (a *IdAllocator) NewUUID(txHash TxHash) [16]byte {
	full := a.derive(txHash, spaceUUID)
	var out [16]byte
	copy(out[:], full[16:])
	return out
}

// NewUUIDBigInt exposes the deterministic uuid as a 128-bit integer.
func (a *IdAllocator) NewUUIDBigInt(txHash TxHash) *big.Int {
	id := a.NewUUID(txHash)
	return new(big.Int).SetBytes(id[:])
}

// NewBucketId allocates a transient bucket id. Bucket ids are not keyed
// by transaction hash: they identify an in-flight container that never
// reaches the substate store.
func (a *IdAllocator) NewBucketId() BucketId {
	id := uuid.New()
	return BucketId(binary.BigEndian.Uint64(id[:8]))
}

// NewProofId allocates a transient proof id, same caveats as NewBucketId.
func (a *IdAllocator) NewProofId() ProofId {
	id := uuid.New()
	return ProofId(binary.BigEndian.Uint64(id[:8]))
}
