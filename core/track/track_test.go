package track

import "testing"

type fakeStore struct {
	values        map[Address]Substate
	physical      map[Address]PhysicalSubstateId
	spaceParents  map[Address]PhysicalSubstateId
	keyed         map[Address]map[string]Substate
	keyedPhysical map[Address]map[string]PhysicalSubstateId
	epoch         uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:        make(map[Address]Substate),
		physical:      make(map[Address]PhysicalSubstateId),
		spaceParents:  make(map[Address]PhysicalSubstateId),
		keyed:         make(map[Address]map[string]Substate),
		keyedPhysical: make(map[Address]map[string]PhysicalSubstateId),
	}
}

func (s *fakeStore) GetSubstate(addr Address) (Substate, PhysicalSubstateId, bool) {
	sub, ok := s.values[addr]
	return sub, s.physical[addr], ok
}

func (s *fakeStore) GetKeyedSubstate(space Address, key []byte) (Substate, PhysicalSubstateId, bool) {
	members, ok := s.keyed[space]
	if !ok {
		return Substate{}, PhysicalSubstateId{}, false
	}
	sub, ok := members[string(key)]
	if !ok {
		return Substate{}, PhysicalSubstateId{}, false
	}
	return sub, s.keyedPhysical[space][string(key)], true
}

func (s *fakeStore) GetSpaceParent(space Address) (PhysicalSubstateId, bool) {
	phys, ok := s.spaceParents[space]
	return phys, ok
}

func (s *fakeStore) GetEpoch() uint64 { return s.epoch }

// commit is the same drain logic MemorySubstateStore.Commit performs,
// reimplemented here so track's own tests don't depend on a concrete
// store construction.
func (s *fakeStore) commit(txHash TxHash, receipt TrackReceipt) {
	var index uint32
	for _, op := range receipt.Operations {
		switch op.Kind {
		case OpUp:
			phys := PhysicalSubstateId{TxHash: txHash, Index: index}
			index++
			if op.Key != nil {
				members, ok := s.keyed[op.Space]
				if !ok {
					members = make(map[string]Substate)
					s.keyed[op.Space] = members
				}
				members[string(op.Key)] = Substate{Value: op.UpValue, Epoch: s.epoch}

				phyms, ok := s.keyedPhysical[op.Space]
				if !ok {
					phyms = make(map[string]PhysicalSubstateId)
					s.keyedPhysical[op.Space] = phyms
				}
				phyms[string(op.Key)] = phys
				continue
			}
			s.values[op.UpAddress] = Substate{Value: op.UpValue, Epoch: s.epoch}
			s.physical[op.UpAddress] = phys
		case OpVirtualUp:
			phys := PhysicalSubstateId{TxHash: txHash, Index: index}
			index++
			s.spaceParents[op.Space] = phys
		}
	}
}

func txHashFor(b byte) TxHash {
	var h TxHash
	h[0] = b
	return h
}

func TestBorrowGlobalValueOnMissingAddressIsNotFound(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(1), nil)

	missing := ResourceAddr(ResourceAddress{0x01})
	if _, err := tr.BorrowGlobalValue(missing); !IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestTakeLockTwiceInSameTransactionIsReentrancy(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(1), nil)

	rm := New(NewNonFungibleResourceType(), nil, fullyOpenAuth())
	resourceAddr := ResourceAddr(tr.CreateResource(rm))

	if err := tr.TakeLock(resourceAddr); err != nil {
		t.Fatalf("first take_lock should succeed: %v", err)
	}
	if err := tr.TakeLock(resourceAddr); !IsReentrancy(err) {
		t.Fatalf("expected reentrancy error on second take_lock, got %v", err)
	}
}

func TestCreateThenCommitEmitsUpWithNoDown(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(1), nil)

	addr := tr.CreateResource(New(NewNonFungibleResourceType(), nil, fullyOpenAuth()))
	receipt, err := tr.ToReceipt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ups, downs int
	for _, op := range receipt.Operations {
		switch op.Kind {
		case OpUp:
			ups++
		case OpDown:
			downs++
		}
	}
	if ups != 1 {
		t.Fatalf("expected exactly one up op, got %d", ups)
	}
	if downs != 0 {
		t.Fatalf("a brand-new address must never be downed, got %d down ops", downs)
	}
	if len(receipt.NewAddresses) != 1 || receipt.NewAddresses[0] != ResourceAddr(addr) {
		t.Fatalf("expected the new resource address in NewAddresses")
	}
}

func TestWriteThenReadRoundTripsAcrossTransactions(t *testing.T) {
	store := newFakeStore()

	tx1 := txHashFor(1)
	tr1 := NewTrack(store, tx1, nil)
	compAddr := tr1.CreateGlobalComponent(ComponentData{State: []byte("v1")})
	receipt1, err := tr1.ToReceipt()
	if err != nil {
		t.Fatalf("commit 1 failed: %v", err)
	}
	store.commit(tx1, receipt1)

	addr := GlobalComponentAddr(compAddr)
	tx2 := txHashFor(2)
	tr2 := NewTrack(store, tx2, nil)
	if err := tr2.TakeLock(addr); err != nil {
		t.Fatalf("take_lock failed: %v", err)
	}
	got := tr2.ReadValue(addr)
	if string(got.Component.State) != "v1" {
		t.Fatalf("expected to read back v1, got %q", got.Component.State)
	}
	tr2.WriteComponentValue(addr, []byte("v2"))
	tr2.ReleaseLock(addr)

	receipt2, err := tr2.ToReceipt()
	if err != nil {
		t.Fatalf("commit 2 failed: %v", err)
	}

	var downs, ups int
	for _, op := range receipt2.Operations {
		switch op.Kind {
		case OpDown:
			downs++
		case OpUp:
			ups++
		}
	}
	if downs != 1 {
		t.Fatalf("expected the pre-existing component to be downed once, got %d", downs)
	}
	if ups != 1 {
		t.Fatalf("expected exactly one up op, got %d", ups)
	}
}

func TestToReceiptFailsIfStillLocked(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(1), nil)
	addr := GlobalComponentAddr(tr.CreateGlobalComponent(ComponentData{State: []byte("x")}))

	if err := tr.TakeLock(addr); err != nil {
		t.Fatalf("take_lock failed: %v", err)
	}
	if _, err := tr.ToReceipt(); err == nil {
		t.Fatalf("expected ToReceipt to refuse while addr is still locked")
	}
}

func TestSetKeyValueOverwriteInSameTransactionEmitsOneVirtualDown(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(1), nil)

	resourceAddr := tr.NewResourceAddressFor()
	space := NonFungibleSetAddr(resourceAddr)
	tr.CreateKeySpace(space)

	nf1 := NewNonFungible([]byte("a"), []byte("a"))
	nf2 := NewNonFungible([]byte("a"), []byte("b"))
	tr.SetKeyValue(space, []byte("1"), NonFungibleValue(nf1))
	tr.SetKeyValue(space, []byte("1"), NonFungibleValue(nf2))

	got, ok := tr.ReadKeyValue(space, []byte("1"))
	if !ok || string(got.NonFungible.Mutable) != "b" {
		t.Fatalf("expected the second write to win")
	}

	receipt, err := tr.ToReceipt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var virtualDowns int
	for _, op := range receipt.Operations {
		if op.Kind == OpVirtualDown {
			virtualDowns++
		}
	}
	if virtualDowns != 1 {
		t.Fatalf("expected exactly one virtual-down for the overwritten key, got %d", virtualDowns)
	}
}

func TestBorrowGlobalMutValueThenReturnRoundTrips(t *testing.T) {
	store := newFakeStore()
	tr := NewTrack(store, txHashFor(1), nil)
	addr := GlobalComponentAddr(tr.CreateGlobalComponent(ComponentData{State: []byte("x")}))

	receipt, err := tr.ToReceipt()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.commit(txHashFor(1), receipt)

	tr2 := NewTrack(store, txHashFor(2), nil)
	value, err := tr2.BorrowGlobalMutValue(addr)
	if err != nil {
		t.Fatalf("borrow_global_mut_value failed: %v", err)
	}
	if _, err := tr2.BorrowGlobalMutValue(addr); !IsReentrancy(err) {
		t.Fatalf("expected reentrancy while already owning-borrowed, got %v", err)
	}
	value.Component.SetState([]byte("y"))
	if err := tr2.ReturnBorrowedGlobalMutValue(addr, value); err != nil {
		t.Fatalf("return_borrowed_global_mut_value failed: %v", err)
	}

	if _, err := tr2.ToReceipt(); err != nil {
		t.Fatalf("commit after return should succeed: %v", err)
	}
}

func TestReceiptOrdersDownsBeforeVirtualDownsBeforeUpsBeforeVirtualUps(t *testing.T) {
	store := newFakeStore()
	comp := GlobalComponentAddr(ComponentAddress{0xaa})
	store.values[comp] = Substate{Value: ComponentValue(&ComponentData{State: []byte("v1")})}
	store.physical[comp] = PhysicalSubstateId{TxHash: txHashFor(0x0f), Index: 7}

	tr := NewTrack(store, txHashFor(1), nil)
	if err := tr.TakeLock(comp); err != nil {
		t.Fatalf("take_lock failed: %v", err)
	}
	tr.WriteComponentValue(comp, []byte("v2"))
	tr.ReleaseLock(comp)

	res := tr.NewResourceAddressFor()
	space := NonFungibleSetAddr(res)
	tr.CreateKeySpace(space)
	tr.SetKeyValue(space, []byte("k"), NonFungibleValue(NewNonFungible([]byte("i"), []byte("m"))))

	receipt, err := tr.ToReceipt()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if receipt.Operations[0].Kind != OpDown || receipt.Operations[0].Down.Index != 7 {
		t.Fatalf("expected the faulted component's Down(.., 7) first, got %+v", receipt.Operations[0])
	}
	last := OpDown
	for i, op := range receipt.Operations {
		if op.Kind < last {
			t.Fatalf("op %d of kind %d appears after kind %d; groups must be Down, VirtualDown, Up, VirtualUp", i, op.Kind, last)
		}
		last = op.Kind
	}

	virtualDownAt, upAt := -1, -1
	for i, op := range receipt.Operations {
		switch {
		case op.Kind == OpVirtualDown && string(op.VirtualDown.Key) == "k":
			virtualDownAt = i
		case op.Kind == OpUp && string(op.Key) == "k":
			upAt = i
		}
	}
	if virtualDownAt == -1 || upAt == -1 || virtualDownAt >= upAt {
		t.Fatalf("a first-touch set_key_value must emit VirtualDown (%d) before its Up (%d)", virtualDownAt, upAt)
	}
}

func TestIdenticalTransactionsAgainstEqualStoresProduceIdenticalReceipts(t *testing.T) {
	runOnce := func() TrackReceipt {
		store := newFakeStore()
		tr := NewTrack(store, txHashFor(9), nil)
		tr.CreatePackage(PackageData{Code: []byte("code")})
		tr.CreateResource(New(NewNonFungibleResourceType(), nil, fullyOpenAuth()))
		receipt, err := tr.ToReceipt()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return receipt
	}

	r1 := runOnce()
	r2 := runOnce()

	if len(r1.NewAddresses) != len(r2.NewAddresses) {
		t.Fatalf("expected identical address counts, got %d vs %d", len(r1.NewAddresses), len(r2.NewAddresses))
	}
	for i := range r1.NewAddresses {
		if r1.NewAddresses[i] != r2.NewAddresses[i] {
			t.Fatalf("address %d diverged between identical runs: %s vs %s", i, r1.NewAddresses[i], r2.NewAddresses[i])
		}
	}
}
