package track

import "testing"

// countingStore wraps fakeStore to count how many plain reads reach the
// backing store through the cache.
type countingStore struct {
	*fakeStore
	gets int
}

func (s *countingStore) GetSubstate(addr Address) (Substate, PhysicalSubstateId, bool) {
	s.gets++
	return s.fakeStore.GetSubstate(addr)
}

func seedComponent(s *fakeStore, state string) Address {
	addr := GlobalComponentAddr(ComponentAddress{0xc0})
	s.values[addr] = Substate{Value: ComponentValue(&ComponentData{State: []byte(state)})}
	s.physical[addr] = PhysicalSubstateId{TxHash: txHashFor(0x0c), Index: 3}
	return addr
}

func TestCachingStoreServesRepeatReadsFromCache(t *testing.T) {
	inner := &countingStore{fakeStore: newFakeStore()}
	addr := seedComponent(inner.fakeStore, "v1")
	store := NewCachingStore(inner, 16)

	for i := 0; i < 3; i++ {
		sub, _, ok := store.GetSubstate(addr)
		if !ok || string(sub.Value.Component.State) != "v1" {
			t.Fatalf("read %d did not return the stored component", i)
		}
	}
	if inner.gets != 1 {
		t.Fatalf("expected exactly one backing-store read, got %d", inner.gets)
	}
}

func TestCachingStoreMissesAreNotCached(t *testing.T) {
	inner := &countingStore{fakeStore: newFakeStore()}
	store := NewCachingStore(inner, 16)

	missing := ResourceAddr(ResourceAddress{0x01})
	for i := 0; i < 2; i++ {
		if _, _, ok := store.GetSubstate(missing); ok {
			t.Fatalf("read %d unexpectedly found a value", i)
		}
	}
	if inner.gets != 2 {
		t.Fatalf("a miss must not be cached; expected 2 backing-store reads, got %d", inner.gets)
	}
}

func TestCachingStoreInvalidateReceiptExposesCommittedWrites(t *testing.T) {
	inner := &countingStore{fakeStore: newFakeStore()}
	addr := seedComponent(inner.fakeStore, "v1")
	store := NewCachingStore(inner, 16)

	tx1 := txHashFor(1)
	tr1 := NewTrack(store, tx1, nil)
	if err := tr1.TakeLock(addr); err != nil {
		t.Fatalf("take_lock failed: %v", err)
	}
	tr1.WriteComponentValue(addr, []byte("v2"))
	tr1.ReleaseLock(addr)
	receipt, err := tr1.ToReceipt()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	inner.commit(tx1, receipt)
	store.InvalidateReceipt(receipt)

	tr2 := NewTrack(store, txHashFor(2), nil)
	got, err := tr2.BorrowGlobalValue(addr)
	if err != nil {
		t.Fatalf("borrow_global_value failed: %v", err)
	}
	if string(got.Component.State) != "v2" {
		t.Fatalf("expected the committed write to be visible through the cache, got %q", got.Component.State)
	}
}
