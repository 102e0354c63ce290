package track

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// AddressKind tags the closed union of substate address shapes.
type AddressKind uint8

const (
	AddressPackage AddressKind = iota
	AddressGlobalComponent
	AddressLocalComponent
	AddressResource
	AddressVault
	AddressKeyValueStore
	AddressNonFungibleSet
)

func (k AddressKind) String() string {
	switch k {
	case AddressPackage:
		return "Package"
	case AddressGlobalComponent:
		return "GlobalComponent"
	case AddressLocalComponent:
		return "LocalComponent"
	case AddressResource:
		return "Resource"
	case AddressVault:
		return "Vault"
	case AddressKeyValueStore:
		return "KeyValueStore"
	case AddressNonFungibleSet:
		return "NonFungibleSet"
	default:
		return "Unknown"
	}
}

// Address is the tagged union of every substate address shape the track
// mediates. Every field is a fixed-size array, so Address itself is
// comparable and can be used directly as a Go map key.
type Address struct {
	Kind AddressKind

	Package   PackageAddress   // Package
	Component ComponentAddress // GlobalComponent; parent of LocalComponent/Vault/KeyValueStore
	Child     ComponentAddress // LocalComponent only
	Resource  ResourceAddress  // Resource, NonFungibleSet
	Vault     VaultId          // Vault
	KVStore   KeyValueStoreId  // KeyValueStore
}

// PackageAddr builds a Package address.
func PackageAddr(p PackageAddress) Address { return Address{Kind: AddressPackage, Package: p} }

// GlobalComponentAddr builds a GlobalComponent address.
func GlobalComponentAddr(c ComponentAddress) Address {
	return Address{Kind: AddressGlobalComponent, Component: c}
}

// LocalComponentAddr builds a LocalComponent address, child of parent.
func LocalComponentAddr(parent, child ComponentAddress) Address {
	return Address{Kind: AddressLocalComponent, Component: parent, Child: child}
}

// ResourceAddr builds a Resource address.
func ResourceAddr(r ResourceAddress) Address { return Address{Kind: AddressResource, Resource: r} }

// VaultAddr builds a Vault address, owned by a component.
func VaultAddr(component ComponentAddress, vault VaultId) Address {
	return Address{Kind: AddressVault, Component: component, Vault: vault}
}

// KeyValueStoreAddr builds a KeyValueStore address, owned by a component.
func KeyValueStoreAddr(component ComponentAddress, kv KeyValueStoreId) Address {
	return Address{Kind: AddressKeyValueStore, Component: component, KVStore: kv}
}

// NonFungibleSetAddr builds the space address for a resource's
// non-fungible ids.
func NonFungibleSetAddr(r ResourceAddress) Address {
	return Address{Kind: AddressNonFungibleSet, Resource: r}
}

func rlpBytes(b []byte) []byte {
	encoded, err := rlp.EncodeToBytes(b)
	if err != nil {
		panic("track: rlp encode: " + err.Error())
	}
	return encoded
}

// Encode returns the canonical, deterministic byte encoding used both as
// the substate store key and as id-derivation input.
func (a Address) Encode() []byte {
	switch a.Kind {
	case AddressPackage:
		return rlpBytes(a.Package[:])
	case AddressGlobalComponent:
		return rlpBytes(a.Component[:])
	case AddressLocalComponent:
		out := rlpBytes(a.Component[:])
		return append(out, rlpBytes(a.Child[:])...)
	case AddressResource:
		return rlpBytes(a.Resource[:])
	case AddressVault:
		out := rlpBytes(a.Component[:])
		return append(out, rlpBytes(a.Vault[:])...)
	case AddressKeyValueStore:
		out := rlpBytes(a.Component[:])
		return append(out, rlpBytes(a.KVStore[:])...)
	case AddressNonFungibleSet:
		// A distinguished one-byte discriminator separates the space from
		// any concrete member key appended after it.
		return append(rlpBytes(a.Resource[:]), 0x00)
	default:
		panic(fmt.Sprintf("track: encode unknown address kind %v", a.Kind))
	}
}

func (a Address) String() string {
	return fmt.Sprintf("%s(%x)", a.Kind, a.Encode())
}
