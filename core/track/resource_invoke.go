package track

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// Wire shapes for the resource manager's dispatch surface. Arguments
// arrive as canonical RLP blobs from the invoking process; a blob that
// fails to decode surfaces as InvalidRequestDataError.

// MintKind selects which arm of MintParams is populated.
const (
	MintKindFungible uint8 = iota
	MintKindNonFungible
)

// MetadataEntry is one metadata key/value pair on the wire. Maps are not
// RLP-serializable, so callers pass metadata as an entry list.
type MetadataEntry struct {
	Key   string
	Value string
}

// AuthSeedEntry seeds one AuthKey's MethodAccessRule on the wire.
type AuthSeedEntry struct {
	Key              uint8
	Auth             uint8
	MutabilityLocked bool
	MutabilityRule   uint8
}

// MintNonFungibleEntry is one non-fungible id with its immutable and
// mutable data halves.
type MintNonFungibleEntry struct {
	Id        string
	Immutable []byte
	Mutable   []byte
}

// MintParams carries either a fungible amount or a non-fungible entry
// list, selected by Kind.
type MintParams struct {
	Kind      uint8
	AmountRaw []byte
	Entries   []MintNonFungibleEntry
}

// ResourceManagerCreateInput is the argument blob of the static "create"
// entry point.
type ResourceManagerCreateInput struct {
	ResourceKind uint8
	Divisibility uint8
	Metadata     []MetadataEntry
	Auth         []AuthSeedEntry
	HasMint      bool
	Mint         MintParams
}

// ResourceManagerCreateOutput is what the static "create" entry returns:
// the published resource address and, when mint params were supplied, the
// bucket holding the initial supply.
type ResourceManagerCreateOutput struct {
	ResourceAddress ResourceAddress
	Bucket          *BucketId
}

// ResourceManagerBurnInput is the argument blob of "burn".
type ResourceManagerBurnInput struct {
	AmountRaw []byte
}

// ResourceManagerUpdateMetadataInput is the argument blob of
// "update_metadata".
type ResourceManagerUpdateMetadataInput struct {
	Metadata []MetadataEntry
}

// ResourceManagerUpdateNonFungibleDataInput is the argument blob of
// "update_non_fungible_data".
type ResourceManagerUpdateNonFungibleDataInput struct {
	Id      string
	Mutable []byte
}

// ResourceManagerNonFungibleInput names one non-fungible id, the
// argument blob of "non_fungible_exists" and "non_fungible_data".
type ResourceManagerNonFungibleInput struct {
	Id string
}

type rlpResourceTypeOutput struct {
	Kind         uint8
	Divisibility uint8
}

type rlpNonFungibleDataOutput struct {
	Immutable []byte
	Mutable   []byte
}

func metadataFromEntries(entries []MetadataEntry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out
}

func authSeedsFromEntries(entries []AuthSeedEntry) map[AuthKey]AuthSeed {
	out := make(map[AuthKey]AuthSeed, len(entries))
	for _, e := range entries {
		mutability := Locked()
		if !e.MutabilityLocked {
			mutability = Mutable(AccessRule(e.MutabilityRule))
		}
		out[AuthKey(e.Key)] = AuthSeed{Auth: AccessRule(e.Auth), Mutability: mutability}
	}
	return out
}

func mintEntriesFromWire(entries []MintNonFungibleEntry) map[string]NonFungibleEntry {
	out := make(map[string]NonFungibleEntry, len(entries))
	for _, e := range entries {
		out[e.Id] = NonFungibleEntry{
			Immutable: NonFungibleData{Raw: e.Immutable},
			Mutable:   NonFungibleData{Raw: e.Mutable},
		}
	}
	return out
}

func mustEncode(payload any) []byte {
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		panic("track: rlp encode dispatch output: " + err.Error())
	}
	return encoded
}

// mint applies params against the borrowed manager, returning the bucket
// holding the minted units.
func (r *ResourceManager) mint(self ResourceAddress, params MintParams, sys SystemAPI) (BucketId, error) {
	switch params.Kind {
	case MintKindFungible:
		amount := NewDecimalFromRaw(new(big.Int).SetBytes(params.AmountRaw))
		if err := r.MintFungible(amount); err != nil {
			return 0, err
		}
	case MintKindNonFungible:
		if _, err := r.MintNonFungibles(self, mintEntriesFromWire(params.Entries), sys); err != nil {
			return 0, err
		}
	default:
		return 0, &InvalidRequestDataError{Err: fmt.Errorf("unknown mint kind %d", params.Kind)}
	}
	return sys.NewBucketId(), nil
}

// StaticMain is the resource manager's static entry point. The only
// recognized method is "create": build a manager from the decoded input,
// stage it as a native node, globalize it at a freshly allocated resource
// address, run the optional initial mint, and hand back the address plus
// the bucket the mint filled.
func StaticMain(method string, arg []byte, sys SystemAPI) (ResourceManagerCreateOutput, error) {
	if method != "create" {
		return ResourceManagerCreateOutput{}, &InvalidMethodError{Method: method}
	}
	var in ResourceManagerCreateInput
	if err := rlp.DecodeBytes(arg, &in); err != nil {
		return ResourceManagerCreateOutput{}, &InvalidRequestDataError{Err: err}
	}

	var resourceType ResourceType
	switch ResourceKind(in.ResourceKind) {
	case ResourceFungible:
		rt, err := NewFungibleResourceType(in.Divisibility)
		if err != nil {
			return ResourceManagerCreateOutput{}, err
		}
		resourceType = rt
	case ResourceNonFungible:
		resourceType = NewNonFungibleResourceType()
	default:
		return ResourceManagerCreateOutput{}, &InvalidRequestDataError{Err: &ResourceTypeDoesNotMatchError{}}
	}

	rm := New(resourceType, metadataFromEntries(in.Metadata), authSeedsFromEntries(in.Auth))
	node := sys.CreateNode(ResourceValue(rm))
	resourceAddr := sys.NewResourceAddressFor()
	if err := sys.GlobalizeNode(node, ResourceAddr(resourceAddr)); err != nil {
		return ResourceManagerCreateOutput{}, err
	}

	out := ResourceManagerCreateOutput{ResourceAddress: resourceAddr}
	if in.HasMint {
		ref, err := sys.BorrowNode(ResourceAddr(resourceAddr))
		if err != nil {
			return ResourceManagerCreateOutput{}, err
		}
		bucket, err := ref.ResourceManagerMut().mint(resourceAddr, in.Mint, sys)
		if rerr := sys.ReturnNode(ResourceAddr(resourceAddr), *ref); rerr != nil {
			return ResourceManagerCreateOutput{}, rerr
		}
		if err != nil {
			return ResourceManagerCreateOutput{}, err
		}
		out.Bucket = &bucket
	}
	return out, nil
}

// Main dispatches one resource-manager method call: borrow the manager at
// resource, execute the named method against the decoded argument, return
// the manager, and hand back the RLP-encoded result. An unrecognized name
// is InvalidMethodError.
func Main(resource ResourceAddress, method string, arg []byte, sys SystemAPI) ([]byte, error) {
	addr := ResourceAddr(resource)
	ref, err := sys.BorrowNode(addr)
	if err != nil {
		return nil, err
	}
	out, err := dispatch(ref.ResourceManagerMut(), resource, method, arg, sys)
	if rerr := sys.ReturnNode(addr, *ref); rerr != nil {
		return nil, rerr
	}
	return out, err
}

func dispatch(r *ResourceManager, self ResourceAddress, method string, arg []byte, sys SystemAPI) ([]byte, error) {
	switch method {
	case "mint":
		var in MintParams
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		bucket, err := r.mint(self, in, sys)
		if err != nil {
			return nil, err
		}
		return mustEncode(uint64(bucket)), nil

	case "burn":
		var in ResourceManagerBurnInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		r.Burn(NewDecimalFromRaw(new(big.Int).SetBytes(in.AmountRaw)))
		return nil, nil

	case "update_auth":
		var in resourceManagerUpdateAuthInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		r.UpdateAuth(AuthKey(in.Method), AccessRule(in.AccessRule))
		return nil, nil

	case "lock_auth":
		var in resourceManagerLockAuthInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		r.LockAuth(AuthKey(in.Method))
		return nil, nil

	case "update_metadata":
		var in ResourceManagerUpdateMetadataInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		r.UpdateMetadata(metadataFromEntries(in.Metadata))
		return nil, nil

	case "update_non_fungible_data":
		var in ResourceManagerUpdateNonFungibleDataInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		if err := r.UpdateNonFungibleData(self, in.Id, NonFungibleData{Raw: in.Mutable}, sys); err != nil {
			return nil, err
		}
		return nil, nil

	case "non_fungible_exists":
		var in ResourceManagerNonFungibleInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		return mustEncode(r.NonFungibleExists(self, in.Id, sys)), nil

	case "non_fungible_data":
		var in ResourceManagerNonFungibleInput
		if err := rlp.DecodeBytes(arg, &in); err != nil {
			return nil, &InvalidRequestDataError{Err: err}
		}
		immutable, mutable, err := r.NonFungibleDataOf(self, in.Id, sys)
		if err != nil {
			return nil, err
		}
		return mustEncode(rlpNonFungibleDataOutput{Immutable: immutable, Mutable: mutable}), nil

	case "metadata":
		entries := make([]MetadataEntry, 0, len(r.metadata))
		for k, v := range r.metadata {
			entries = append(entries, MetadataEntry{Key: k, Value: v})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
		return mustEncode(entries), nil

	case "resource_type":
		rt := r.ResourceTypeOf()
		return mustEncode(rlpResourceTypeOutput{Kind: uint8(rt.Kind), Divisibility: rt.Divisibility}), nil

	case "total_supply":
		return mustEncode(r.TotalSupply().BigInt().Bytes()), nil

	case "create_bucket":
		return mustEncode(uint64(sys.NewBucketId())), nil

	case "create_vault":
		node := sys.CreateNode(VaultValue(&VaultData{ResourceAddress: self, Amount: ZeroDecimal()}))
		return mustEncode(uint64(node)), nil

	default:
		return nil, &InvalidMethodError{Method: method}
	}
}
