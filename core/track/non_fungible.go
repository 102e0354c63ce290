package track

// NonFungibleData is the decoded form of an immutable or mutable data
// blob supplied to mint/update_non_fungible_data. Real wasm argument
// decoding is the execution engine's job; callers
// hand the track the already-decoded value together with whatever
// native ids it referenced, and the track enforces the leak-prevention
// rule against those ids.
type NonFungibleData struct {
	Raw        []byte
	BucketIDs  []BucketId
	ProofIDs   []ProofId
	VaultIDs   []VaultId
	KVStoreIDs []KeyValueStoreId
}

// validate rejects any blob that references a bucket, proof, kv-store or
// vault id — non-fungible data must not smuggle a live container out of
// the transaction.
func (d NonFungibleData) validate() error {
	switch {
	case len(d.BucketIDs) > 0:
		return &InvalidNonFungibleDataError{Reason: "references a bucket id"}
	case len(d.ProofIDs) > 0:
		return &InvalidNonFungibleDataError{Reason: "references a proof id"}
	case len(d.VaultIDs) > 0:
		return &InvalidNonFungibleDataError{Reason: "references a vault id"}
	case len(d.KVStoreIDs) > 0:
		return &InvalidNonFungibleDataError{Reason: "references a key-value store id"}
	default:
		return nil
	}
}

// NonFungible is the substate value stored per non-fungible id.
type NonFungible struct {
	Immutable []byte
	Mutable   []byte
}

// NewNonFungible constructs a NonFungible from already-validated data.
func NewNonFungible(immutable, mutable []byte) *NonFungible {
	return &NonFungible{Immutable: immutable, Mutable: mutable}
}

// SetMutableData replaces the mutable half (update_non_fungible_data).
func (n *NonFungible) SetMutableData(data []byte) { n.Mutable = data }

func (n *NonFungible) clone() *NonFungible {
	if n == nil {
		return nil
	}
	cp := *n
	return &cp
}
