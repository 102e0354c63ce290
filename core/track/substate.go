package track

import "github.com/ethereum/go-ethereum/rlp"

// SubstateValueKind tags the closed union of substate payloads.
type SubstateValueKind uint8

const (
	SVPackage SubstateValueKind = iota
	SVComponent
	SVResource
	SVVault
	SVNonFungible
	SVKeyValueStoreEntry
)

// PackageData is the minimal package substate: its code blob. Wasm
// validation/compilation is the execution engine's concern, not the
// track's.
type PackageData struct {
	Code []byte
}

// ComponentData is the minimal component substate: its opaque state
// blob, mutated only through SetState.
type ComponentData struct {
	State []byte
}

// SetState replaces the component's state bytes.
func (c *ComponentData) SetState(state []byte) { c.State = state }

// VaultData is the minimal vault substate. Bucket/vault/proof container
// arithmetic is explicitly out of scope; this carries just enough
// to exist as a substate that mint/burn flow through.
type VaultData struct {
	ResourceAddress ResourceAddress
	Amount          Decimal
	NonFungibleIDs  [][]byte
}

// SubstateValue is the tagged union every overlay slot holds. A nil
// NonFungible/KVEntry-with-Present=false represents a positively-absent
// entry (a tombstone write).
type SubstateValue struct {
	Kind SubstateValueKind

	Package     *PackageData
	Component   *ComponentData
	Resource    *ResourceManager
	Vault       *VaultData
	NonFungible *NonFungible // nil => None
	KVPresent   bool
	KVEntry     []byte // valid when KVPresent
}

func PackageValue(p *PackageData) SubstateValue      { return SubstateValue{Kind: SVPackage, Package: p} }
func ComponentValue(c *ComponentData) SubstateValue  { return SubstateValue{Kind: SVComponent, Component: c} }
func ResourceValue(r *ResourceManager) SubstateValue { return SubstateValue{Kind: SVResource, Resource: r} }
func VaultValue(v *VaultData) SubstateValue          { return SubstateValue{Kind: SVVault, Vault: v} }

// NonFungibleValue wraps a possibly-absent non-fungible.
func NonFungibleValue(n *NonFungible) SubstateValue {
	return SubstateValue{Kind: SVNonFungible, NonFungible: n}
}

// KeyValueEntryValue wraps a possibly-absent kv-store entry.
func KeyValueEntryValue(present bool, entry []byte) SubstateValue {
	return SubstateValue{Kind: SVKeyValueStoreEntry, KVPresent: present, KVEntry: entry}
}

func (v SubstateValue) clone() SubstateValue {
	cp := v
	if v.Resource != nil {
		cp.Resource = v.Resource.clone()
	}
	if v.NonFungible != nil {
		cp.NonFungible = v.NonFungible.clone()
	}
	return cp
}

// --- typed accessors, panicking on mismatch like vault()/resource_manager() ---

func (v *SubstateValue) VaultMut() *VaultData {
	if v.Kind != SVVault {
		panic("track: not a vault")
	}
	return v.Vault
}

func (v *SubstateValue) ResourceManagerMut() *ResourceManager {
	if v.Kind != SVResource {
		panic("track: not a resource manager")
	}
	return v.Resource
}

func (v *SubstateValue) ComponentMut() *ComponentData {
	if v.Kind != SVComponent {
		panic("track: not a component")
	}
	return v.Component
}

// --- canonical encoding ------------------------------------------------

type rlpKVEntry struct {
	Present bool
	Data    []byte
}

type rlpNonFungible struct {
	Present   bool
	Immutable []byte
	Mutable   []byte
}

// Encode returns the canonical, deterministic byte encoding used for the
// store value and for commit-receipt Up ops.
func (v SubstateValue) Encode() []byte {
	var payload any
	switch v.Kind {
	case SVPackage:
		payload = v.Package.Code
	case SVComponent:
		payload = v.Component.State
	case SVResource:
		return v.Resource.Encode()
	case SVVault:
		payload = struct {
			ResourceAddress []byte
			AmountRaw       []byte
			NonFungibleIDs  [][]byte
		}{
			ResourceAddress: v.Vault.ResourceAddress[:],
			AmountRaw:       v.Vault.Amount.BigInt().Bytes(),
			NonFungibleIDs:  v.Vault.NonFungibleIDs,
		}
	case SVNonFungible:
		if v.NonFungible == nil {
			payload = rlpNonFungible{Present: false}
		} else {
			payload = rlpNonFungible{Present: true, Immutable: v.NonFungible.Immutable, Mutable: v.NonFungible.Mutable}
		}
	case SVKeyValueStoreEntry:
		payload = rlpKVEntry{Present: v.KVPresent, Data: v.KVEntry}
	default:
		panic("track: encode unknown substate value kind")
	}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		panic("track: rlp encode substate value: " + err.Error())
	}
	return encoded
}
