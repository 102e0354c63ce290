package track

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type slotOrigin uint8

const (
	originStore slotOrigin = iota
	originNew
)

// slot is one address's overlay entry: the in-flight value plus enough
// bookkeeping to know whether a Down op is still owed to the receipt.
type slot struct {
	value  SubstateValue
	origin slotOrigin
	phys   PhysicalSubstateId // valid when origin == originStore
	downed bool
	locked bool
}

type keyedKey struct {
	space Address
	key   string
}

type keyedSlot struct {
	value SubstateValue
}

type pendingVirtualDown struct {
	space Address
	vid   VirtualSubstateId
}

// upRef is one entry in the track's unified up-insertion order: either a
// plain slot address or a keyed (space, key) pair. Keeping one ordering
// across both shapes is what lets ToReceipt drain plain and keyed
// writes as a single Up group while each kind still lives in its own
// typed map.
type upRef struct {
	keyed bool
	addr  Address  // valid when !keyed
	key   keyedKey // valid when keyed
}

// Track is the single-transaction overlay: every read faults at most
// once per address into this overlay, every write is staged here, and
// nothing reaches the backing store until ToReceipt is drained by the
// caller and applied.
type Track struct {
	store   SubstateStore
	txHash  TxHash
	ids     *IdAllocator
	metrics *Metrics

	logs         []LogEntry
	newAddresses []Address

	slots map[Address]*slot

	// ownedBorrowed holds values checked out through
	// BorrowGlobalMutValue, physically absent from slots until
	// ReturnBorrowedGlobalMutValue puts them back.
	ownedBorrowed map[Address]SubstateValue
	borrowMeta    map[Address]slot

	// keyed is the write overlay for keyed (space, key) pairs. keyedRead
	// is a pure read cache for store-faulted reads that have never been
	// written this transaction; it must never influence set_key_value's
	// down-decision.
	keyed         map[keyedKey]*keyedSlot
	keyedRead     map[keyedKey]SubstateValue
	downedVirtual []pendingVirtualDown

	// downed is the flat, chronological list of physical ids consumed
	// this transaction, from both slot faults and keyed faults.
	downed []PhysicalSubstateId

	// upOrder is the single insertion-ordered sequence every Up op drains
	// from at commit time, unifying slot and keyed entries.
	upOrder []upRef

	newSpaceIndex map[Address]int
	newSpaceOrder []Address

	pending     map[ValueId]SubstateValue
	nextValueID ValueId

	committed bool
}

// NewTrack opens a fresh overlay over store for one transaction
// identified by txHash. metrics may be nil.
func NewTrack(store SubstateStore, txHash TxHash, metrics *Metrics) *Track {
	return &Track{
		store:         store,
		txHash:        txHash,
		ids:           NewIdAllocator(),
		metrics:       metrics,
		slots:         make(map[Address]*slot),
		ownedBorrowed: make(map[Address]SubstateValue),
		borrowMeta:    make(map[Address]slot),
		keyed:         make(map[keyedKey]*keyedSlot),
		keyedRead:     make(map[keyedKey]SubstateValue),
		newSpaceIndex: make(map[Address]int),
		pending:       make(map[ValueId]SubstateValue),
	}
}

// Log appends one entry to the transaction's own log.
func (t *Track) Log(level logrus.Level, message string) {
	t.logs = append(t.logs, LogEntry{Level: level, Message: message})
}

func (t *Track) faultIn(addr Address) (*slot, error) {
	if s, ok := t.slots[addr]; ok {
		return s, nil
	}
	if _, ok := t.ownedBorrowed[addr]; ok {
		return nil, reentrancyErr(addr)
	}
	sub, phys, ok := t.store.GetSubstate(addr)
	if !ok {
		return nil, notFoundErr(addr)
	}
	// Copy the store's value so that writes to the slot never alias the
	// store's own component state.
	value := sub.Value.clone()
	if value.Component != nil {
		c := *value.Component
		value.Component = &c
	}
	s := &slot{value: value, origin: originStore, phys: phys}
	t.slots[addr] = s
	return s, nil
}

// BorrowGlobalValue performs a read-only fault-in of addr: a cloned
// snapshot of the current value, with no lock taken.
func (t *Track) BorrowGlobalValue(addr Address) (SubstateValue, error) {
	s, err := t.faultIn(addr)
	if err != nil {
		return SubstateValue{}, err
	}
	if s.locked {
		t.metrics.observeReentrancy()
		return SubstateValue{}, reentrancyErr(addr)
	}
	return s.value.clone(), nil
}

// TakeLock takes the exclusive single-writer lock on addr, faulting it in
// from the store if this is the first touch this transaction. Returns a
// reentrancy TrackError if addr is already locked or owning-borrowed.
func (t *Track) TakeLock(addr Address) error {
	s, err := t.faultIn(addr)
	if err != nil {
		return err
	}
	if s.locked {
		t.metrics.observeReentrancy()
		return reentrancyErr(addr)
	}
	s.locked = true
	if s.origin == originStore && !s.downed {
		s.downed = true
		t.downed = append(t.downed, s.phys)
		t.upOrder = append(t.upOrder, upRef{addr: addr})
		t.metrics.observeDown()
	}
	return nil
}

// ReadValue returns the current value at addr. addr must already be
// locked by TakeLock; calling this otherwise is a programming error, not
// a data condition, so it panics the same way the typed SubstateValue
// accessors do on a kind mismatch.
func (t *Track) ReadValue(addr Address) SubstateValue {
	s, ok := t.slots[addr]
	if !ok || !s.locked {
		panic("track: read_value on an address that is not locked")
	}
	return s.value.clone()
}

// WriteValue overwrites the locked value at addr.
func (t *Track) WriteValue(addr Address, value SubstateValue) {
	s, ok := t.slots[addr]
	if !ok || !s.locked {
		panic("track: write_value on an address that is not locked")
	}
	s.value = value
}

// WriteComponentValue is a convenience over WriteValue for the common
// case of replacing just a component's state bytes.
func (t *Track) WriteComponentValue(addr Address, state []byte) {
	s, ok := t.slots[addr]
	if !ok || !s.locked {
		panic("track: write_component_value on an address that is not locked")
	}
	if s.value.Kind != SVComponent {
		panic("track: write_component_value on a non-component address")
	}
	s.value.Component.SetState(state)
}

// ReleaseLock releases the lock taken by TakeLock.
func (t *Track) ReleaseLock(addr Address) {
	s, ok := t.slots[addr]
	if !ok || !s.locked {
		panic("track: release_lock on an address that is not locked")
	}
	s.locked = false
}

// BorrowGlobalMutValue takes addr's value out of the overlay entirely,
// the owning-move path kept separate from TakeLock/ReleaseLock because
// the two disciplines have different physical effects: a lock leaves the
// value in place, an owning borrow removes it until
// ReturnBorrowedGlobalMutValue puts it back.
func (t *Track) BorrowGlobalMutValue(addr Address) (SubstateValue, error) {
	if _, exists := t.ownedBorrowed[addr]; exists {
		t.metrics.observeReentrancy()
		return SubstateValue{}, reentrancyErr(addr)
	}
	s, err := t.faultIn(addr)
	if err != nil {
		return SubstateValue{}, err
	}
	if s.locked {
		t.metrics.observeReentrancy()
		return SubstateValue{}, reentrancyErr(addr)
	}
	if s.origin == originStore && !s.downed {
		s.downed = true
		t.downed = append(t.downed, s.phys)
		t.upOrder = append(t.upOrder, upRef{addr: addr})
		t.metrics.observeDown()
	}
	value := s.value
	t.ownedBorrowed[addr] = value
	t.borrowMeta[addr] = *s
	delete(t.slots, addr)
	return value, nil
}

// ReturnBorrowedGlobalMutValue puts a value checked out by
// BorrowGlobalMutValue back into the overlay.
func (t *Track) ReturnBorrowedGlobalMutValue(addr Address, value SubstateValue) error {
	if _, exists := t.ownedBorrowed[addr]; !exists {
		return fmt.Errorf("track: %s was not borrowed via borrow_global_mut_value", addr)
	}
	meta := t.borrowMeta[addr]
	delete(t.ownedBorrowed, addr)
	delete(t.borrowMeta, addr)
	meta.value = value
	t.slots[addr] = &meta
	return nil
}

func (t *Track) createNew(addr Address, value SubstateValue) {
	t.slots[addr] = &slot{value: value, origin: originNew, downed: true}
	t.upOrder = append(t.upOrder, upRef{addr: addr})
	t.newAddresses = append(t.newAddresses, addr)
}

// CreatePackage allocates a fresh package address and places value there
// as a brand-new slot (no Down is ever owed for it).
func (t *Track) CreatePackage(value PackageData) PackageAddress {
	id := t.ids.NewPackageAddress(t.txHash)
	t.createNew(PackageAddr(id), PackageValue(&value))
	return id
}

// CreateGlobalComponent allocates a fresh global component address.
func (t *Track) CreateGlobalComponent(value ComponentData) ComponentAddress {
	id := t.ids.NewComponentAddress(t.txHash)
	t.createNew(GlobalComponentAddr(id), ComponentValue(&value))
	return id
}

// CreateLocalComponent allocates a fresh component address local to
// parent (an object owned by another component, never globally routable
// on its own).
func (t *Track) CreateLocalComponent(parent ComponentAddress, value ComponentData) ComponentAddress {
	id := t.ids.NewComponentAddress(t.txHash)
	t.createNew(LocalComponentAddr(parent, id), ComponentValue(&value))
	return id
}

// CreateResource allocates a fresh resource address and places a new
// ResourceManager there. A non-fungible resource also gets its
// NonFungibleSet space materialized, so the first mint has somewhere to
// land.
func (t *Track) CreateResource(rm *ResourceManager) ResourceAddress {
	id := t.ids.NewResourceAddress(t.txHash)
	t.createNew(ResourceAddr(id), ResourceValue(rm))
	if rm.ResourceTypeOf().Kind == ResourceNonFungible {
		t.CreateKeySpace(NonFungibleSetAddr(id))
	}
	return id
}

// CreateVault allocates a fresh vault under owner.
func (t *Track) CreateVault(owner ComponentAddress, value VaultData) VaultId {
	id := t.ids.NewVaultId(t.txHash)
	t.createNew(VaultAddr(owner, id), VaultValue(&value))
	return id
}

// CreateKeySpace materializes a brand-new keyed space (a KeyValueStore or
// a resource's NonFungibleSet). The space itself carries no
// value; only the keys later written into it do.
func (t *Track) CreateKeySpace(space Address) {
	if _, ok := t.newSpaceIndex[space]; ok {
		return
	}
	t.newSpaceIndex[space] = len(t.newSpaceOrder)
	t.newSpaceOrder = append(t.newSpaceOrder, space)
}

func (t *Track) parentIDOf(space Address) SubstateParentId {
	if idx, ok := t.newSpaceIndex[space]; ok {
		return NewParent(idx)
	}
	if phys, ok := t.store.GetSpaceParent(space); ok {
		return ExistingParent(phys)
	}
	idx := len(t.newSpaceOrder)
	t.newSpaceIndex[space] = idx
	t.newSpaceOrder = append(t.newSpaceOrder, space)
	return NewParent(idx)
}

// ReadKeyValue reads one member of a keyed space. A key already written
// this transaction (via SetKeyValue) is served from the write overlay;
// otherwise a key found in the store is faulted in once per (space, key)
// and cached in a read-only cache that set_key_value's down-decision
// never consults — a read must never look like a prior write. A key
// absent from the store is not cached and is looked up again on each read.
// An absent key is not an error: it comes back as the space's tombstone
// value (an absent non-fungible or kv entry) with ok == false.
func (t *Track) ReadKeyValue(space Address, key []byte) (SubstateValue, bool) {
	k := keyedKey{space: space, key: string(key)}
	if s, ok := t.keyed[k]; ok {
		return s.value.clone(), true
	}
	if v, ok := t.keyedRead[k]; ok {
		return v.clone(), true
	}
	if _, isNew := t.newSpaceIndex[space]; isNew {
		return tombstoneFor(space), false
	}
	sub, _, ok := t.store.GetKeyedSubstate(space, key)
	if !ok {
		return tombstoneFor(space), false
	}
	t.keyedRead[k] = sub.Value
	return sub.Value.clone(), true
}

// tombstoneFor is the positively-absent value of a keyed space. Only the
// two keyed space kinds have one; any other parent is a caller bug.
func tombstoneFor(space Address) SubstateValue {
	switch space.Kind {
	case AddressNonFungibleSet:
		return NonFungibleValue(nil)
	case AddressKeyValueStore:
		return KeyValueEntryValue(false, nil)
	default:
		panic(fmt.Sprintf("track: %v is not a keyed space", space.Kind))
	}
}

// SetKeyValue writes one member of a keyed space. The first time this
// (space, key) pair is written this transaction, it resolves a down
// exactly like a plain address write does: if the full address is
// already materialized in the store, its phys_id becomes a physical
// Down; only a key genuinely absent from both the overlay and the store
// yields a VirtualDown. Overwriting a key already written earlier this
// same transaction never re-resolves a down for it.
func (t *Track) SetKeyValue(space Address, key []byte, value SubstateValue) {
	if space.Kind != AddressNonFungibleSet && space.Kind != AddressKeyValueStore {
		panic(fmt.Sprintf("track: %v is not a keyed space", space.Kind))
	}
	k := keyedKey{space: space, key: string(key)}
	if _, touched := t.keyed[k]; !touched {
		if _, phys, ok := t.store.GetKeyedSubstate(space, key); ok {
			t.downed = append(t.downed, phys)
			t.metrics.observeDown()
		} else {
			parent := t.parentIDOf(space)
			vid := VirtualSubstateId{Parent: parent, Key: append([]byte(nil), key...)}
			t.downedVirtual = append(t.downedVirtual, pendingVirtualDown{space: space, vid: vid})
			t.metrics.observeVirtualDown()
		}
		t.upOrder = append(t.upOrder, upRef{keyed: true, key: k})
	}
	t.keyed[k] = &keyedSlot{value: value}
}

// AdoptChildValues places freshly created values as children of owner:
// each Vault or local Component passed in is allocated its own fresh
// address under owner and staged as a new slot. Key-value store entries
// are adopted through CreateKeySpace and SetKeyValue instead, since they
// have no standalone address of their own.
func (t *Track) AdoptChildValues(owner ComponentAddress, children []SubstateValue) ([]Address, error) {
	placed := make([]Address, 0, len(children))
	for _, child := range children {
		switch child.Kind {
		case SVVault:
			id := t.ids.NewVaultId(t.txHash)
			addr := VaultAddr(owner, id)
			t.createNew(addr, child)
			placed = append(placed, addr)
		case SVComponent:
			id := t.ids.NewComponentAddress(t.txHash)
			addr := LocalComponentAddr(owner, id)
			t.createNew(addr, child)
			placed = append(placed, addr)
		default:
			return nil, fmt.Errorf("track: cannot adopt a %v value into component %s", child.Kind, GlobalComponentAddr(owner))
		}
	}
	return placed, nil
}

// --- id allocation wrappers (none of these records NewAddresses) -----

// NewResourceAddressFor derives the next resource address without
// placing a value, for callers that place the value themselves through
// GlobalizeNode. CreateResource allocates its own address instead.
func (t *Track) NewResourceAddressFor() ResourceAddress { return t.ids.NewResourceAddress(t.txHash) }

// NewBucketId allocates a transient bucket id via the track's allocator.
func (t *Track) NewBucketId() BucketId { return t.ids.NewBucketId() }

// NewProofId allocates a transient proof id via the track's allocator.
func (t *Track) NewProofId() ProofId { return t.ids.NewProofId() }

// CreateKVStore allocates a fresh key-value store id under owner and
// materializes its space in one step.
func (t *Track) CreateKVStore(owner ComponentAddress) KeyValueStoreId {
	id := t.ids.NewKVStoreId(t.txHash)
	t.CreateKeySpace(KeyValueStoreAddr(owner, id))
	return id
}

// NewUUID derives the next deterministic 128-bit uuid for this
// transaction.
func (t *Track) NewUUID() [16]byte { return t.ids.NewUUID(t.txHash) }

// ToReceipt drains the overlay into a TrackReceipt. It is an error
// to call this while any address remains locked or owning-borrowed — that
// indicates a caller forgot to release or return a value.
func (t *Track) ToReceipt() (TrackReceipt, error) {
	if t.committed {
		return TrackReceipt{}, fmt.Errorf("track: already committed")
	}

	borrowed := NewBorrowedSNodes()
	for addr, s := range t.slots {
		if s.locked {
			borrowed.Insert(addr)
		}
	}
	for addr := range t.ownedBorrowed {
		borrowed.Insert(addr)
	}
	if !borrowed.Empty() {
		return TrackReceipt{Borrowed: borrowed}, fmt.Errorf("track: %d address(es) still checked out at commit", len(borrowed.Addresses()))
	}

	var ops []SubstateOperation

	for _, phys := range t.downed {
		ops = append(ops, SubstateOperation{Kind: OpDown, Down: phys})
	}
	for _, pvd := range t.downedVirtual {
		ops = append(ops, SubstateOperation{Kind: OpVirtualDown, VirtualDown: pvd.vid, Space: pvd.space})
	}
	for _, ref := range t.upOrder {
		if ref.keyed {
			ks := t.keyed[ref.key]
			ops = append(ops, SubstateOperation{
				Kind:    OpUp,
				Space:   ref.key.space,
				Key:     []byte(ref.key.key),
				UpValue: ks.value.clone(),
			})
		} else {
			s := t.slots[ref.addr]
			ops = append(ops, SubstateOperation{Kind: OpUp, UpAddress: ref.addr, UpValue: s.value.clone()})
		}
		t.metrics.observeUp()
	}
	for _, space := range t.newSpaceOrder {
		ops = append(ops, SubstateOperation{Kind: OpVirtualUp, Space: space, VirtualUp: VirtualSubstateId{Parent: NewParent(t.newSpaceIndex[space]), Key: nil}})
		t.metrics.observeVirtualUp()
	}

	t.committed = true
	return TrackReceipt{
		NewAddresses: append([]Address(nil), t.newAddresses...),
		Logs:         append([]LogEntry(nil), t.logs...),
		Operations:   ops,
		NewSpaces:    append([]Address(nil), t.newSpaceOrder...),
		Borrowed:     borrowed,
	}, nil
}

// --- SystemAPI -----------------------------------------------------------

// CreateNode stages value as a not-yet-addressed new value (native_create).
func (t *Track) CreateNode(value SubstateValue) ValueId {
	id := t.nextValueID
	t.nextValueID++
	t.pending[id] = value
	return id
}

// GlobalizeNode assigns a staged node its permanent address
// (native_globalize).
func (t *Track) GlobalizeNode(id ValueId, addr Address) error {
	value, ok := t.pending[id]
	if !ok {
		return fmt.Errorf("track: no pending node %d", id)
	}
	delete(t.pending, id)
	t.createNew(addr, value)
	if value.Kind == SVResource && value.Resource.ResourceTypeOf().Kind == ResourceNonFungible {
		t.CreateKeySpace(NonFungibleSetAddr(addr.Resource))
	}
	return nil
}

// BorrowNode takes the lock on addr and returns its value
// (borrow_native_value).
func (t *Track) BorrowNode(addr Address) (*SubstateValue, error) {
	if err := t.TakeLock(addr); err != nil {
		return nil, err
	}
	v := t.ReadValue(addr)
	return &v, nil
}

// ReturnNode releases the lock taken by BorrowNode (return_native_value).
func (t *Track) ReturnNode(addr Address, value SubstateValue) error {
	t.WriteValue(addr, value)
	t.ReleaseLock(addr)
	return nil
}

// GetNonFungible reads one entry out of a resource's non-fungible space.
func (t *Track) GetNonFungible(resource ResourceAddress, id string) (*NonFungible, bool) {
	space := NonFungibleSetAddr(resource)
	v, ok := t.ReadKeyValue(space, []byte(id))
	if !ok || v.Kind != SVNonFungible {
		return nil, false
	}
	return v.NonFungible, v.NonFungible != nil
}

// SetNonFungible writes (or tombstones, when nf is nil) one entry in a
// resource's non-fungible space.
func (t *Track) SetNonFungible(resource ResourceAddress, id string, nf *NonFungible) {
	space := NonFungibleSetAddr(resource)
	t.SetKeyValue(space, []byte(id), NonFungibleValue(nf))
}

var _ SystemAPI = (*Track)(nil)
