package track

import "sync"

// MemorySubstateStore is the reference SubstateStore implementation: a
// set of mutex-protected in-process maps. The persistent substate store
// is an external collaborator the engine only needs as an interface;
// this is the concrete instance the CLI and tests drive it against.
type MemorySubstateStore struct {
	mu    sync.RWMutex
	epoch uint64

	values   map[Address]Substate
	physical map[Address]PhysicalSubstateId

	spaceParents  map[Address]PhysicalSubstateId
	keyedValues   map[Address]map[string]Substate
	keyedPhysical map[Address]map[string]PhysicalSubstateId
}

// NewMemorySubstateStore returns an empty store at epoch 0.
func NewMemorySubstateStore() *MemorySubstateStore {
	return &MemorySubstateStore{
		values:        make(map[Address]Substate),
		physical:      make(map[Address]PhysicalSubstateId),
		spaceParents:  make(map[Address]PhysicalSubstateId),
		keyedValues:   make(map[Address]map[string]Substate),
		keyedPhysical: make(map[Address]map[string]PhysicalSubstateId),
	}
}

func (s *MemorySubstateStore) GetSubstate(addr Address) (Substate, PhysicalSubstateId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.values[addr]
	if !ok {
		return Substate{}, PhysicalSubstateId{}, false
	}
	return sub, s.physical[addr], true
}

func (s *MemorySubstateStore) GetKeyedSubstate(space Address, key []byte) (Substate, PhysicalSubstateId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members, ok := s.keyedValues[space]
	if !ok {
		return Substate{}, PhysicalSubstateId{}, false
	}
	sub, ok := members[string(key)]
	if !ok {
		return Substate{}, PhysicalSubstateId{}, false
	}
	return sub, s.keyedPhysical[space][string(key)], true
}

func (s *MemorySubstateStore) GetSpaceParent(space Address) (PhysicalSubstateId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phys, ok := s.spaceParents[space]
	return phys, ok
}

func (s *MemorySubstateStore) GetEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// AdvanceEpoch increments the store's epoch, stamped onto every substate
// committed afterward.
func (s *MemorySubstateStore) AdvanceEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// Commit applies receipt's Up/VirtualUp operations, making them visible to
// every Track opened against this store afterward. Down/VirtualDown
// ops need no action here: they only ever reference physical ids this store
// already produced, and nothing reads a downed id again.
func (s *MemorySubstateStore) Commit(txHash TxHash, receipt TrackReceipt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var index uint32
	for _, op := range receipt.Operations {
		switch op.Kind {
		case OpUp:
			phys := PhysicalSubstateId{TxHash: txHash, Index: index}
			index++
			if op.Key != nil {
				members := s.keyedValues[op.Space]
				if members == nil {
					members = make(map[string]Substate)
					s.keyedValues[op.Space] = members
				}
				members[string(op.Key)] = Substate{Value: op.UpValue, Epoch: s.epoch}

				phyms := s.keyedPhysical[op.Space]
				if phyms == nil {
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
