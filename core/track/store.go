package track

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Substate is one physically-stored value together with the epoch that
// wrote it, the unit the read path works in.
type Substate struct {
	Value SubstateValue
	Epoch uint64
}

// SubstateStore is the durable state a Track overlays. Implementations
// need not be transaction-aware; the Track is the only thing that knows
// about borrowing, virtualization and commit receipts.
type SubstateStore interface {
	// GetSubstate returns the current physical value at addr together
	// with the physical id of the transaction that produced it, or
	// (_, _, false) if nothing has ever been written there.
	GetSubstate(addr Address) (Substate, PhysicalSubstateId, bool)

	// GetKeyedSubstate reads one member of a materialized keyed space
	// (a NonFungibleSet or KeyValueStore) together with the physical id
	// that produced it, the same shape GetSubstate returns, so a keyed
	// write can decide between a physical Down and a VirtualDown exactly
	// as a plain address write does.
	GetKeyedSubstate(space Address, key []byte) (Substate, PhysicalSubstateId, bool)

	// GetSpaceParent reports the physical id that materialized space,
	// or (_, false) if the space has never been written to.
	GetSpaceParent(space Address) (PhysicalSubstateId, bool)

	// GetEpoch returns the store's current epoch, stamped onto every
	// substate a Track commits through this store.
	GetEpoch() uint64
}

// CachingStore wraps a SubstateStore with a bounded read cache, so
// repeated borrow_global_value-style faults against hot addresses across
// many transactions don't all reach the backing store. A Track
// itself needs no such cache: its own overlay already serves every
// repeat read within one transaction.
type CachingStore struct {
	inner SubstateStore
	cache *lru.Cache[Address, cachedSubstate]
}

type cachedSubstate struct {
	substate Substate
	physical PhysicalSubstateId
}

// NewCachingStore wraps inner with an LRU cache holding up to size
// entries.
func NewCachingStore(inner SubstateStore, size int) *CachingStore {
	cache, err := lru.New[Address, cachedSubstate](size)
	if err != nil {
		// Only returns an error for a non-positive size.
		panic("track: new caching store: " + err.Error())
	}
	return &CachingStore{inner: inner, cache: cache}
}

func (c *CachingStore) GetSubstate(addr Address) (Substate, PhysicalSubstateId, bool) {
	if hit, ok := c.cache.Get(addr); ok {
		return hit.substate, hit.physical, true
	}
	sub, phys, ok := c.inner.GetSubstate(addr)
	if ok {
		c.cache.Add(addr, cachedSubstate{substate: sub, physical: phys})
	}
	return sub, phys, ok
}

// Invalidate drops addr from the cache, so the next fault against it
// reaches the backing store.
func (c *CachingStore) Invalidate(addr Address) { c.cache.Remove(addr) }

// InvalidateReceipt drops every plain address receipt upped from the
// cache. Callers apply a committed receipt to the backing store and then
// invalidate through here, so the next transaction's fault sees the
// committed values rather than a stale cache entry. Keyed entries need
// no invalidation: keyed reads always pass through to the backing store.
func (c *CachingStore) InvalidateReceipt(receipt TrackReceipt) {
	for _, op := range receipt.Operations {
		if op.Kind == OpUp && op.Key == nil {
			c.cache.Remove(op.UpAddress)
		}
	}
}

func (c *CachingStore) GetKeyedSubstate(space Address, key []byte) (Substate, PhysicalSubstateId, bool) {
	return c.inner.GetKeyedSubstate(space, key)
}

func (c *CachingStore) GetSpaceParent(space Address) (PhysicalSubstateId, bool) {
	return c.inner.GetSpaceParent(space)
}

func (c *CachingStore) GetEpoch() uint64 { return c.inner.GetEpoch() }

// Metrics are the counters a Track reports through for operational
// visibility. Downs and virtual downs are counted when the track records
// them, reentrancy faults when a borrow is rejected, and ups and virtual
// ups when ToReceipt drains the overlay; a track that is discarded without
// ToReceipt still contributes its downs and reentrancy faults. A nil
// *Metrics is valid and simply a no-op.
type Metrics struct {
	downs        prometheus.Counter
	virtualDowns prometheus.Counter
	ups          prometheus.Counter
	virtualUps   prometheus.Counter
	reentrancy   prometheus.Counter
}

// NewMetrics registers the track's counters against reg. Pass nil to get
// counters that are never exposed (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		downs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "track_substate_down_total",
			Help: "Substates downed (consumed), counted when a track records the down.",
		}),
		virtualDowns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "track_substate_virtual_down_total",
			Help: "Virtual-down operations, counted when a track records them.",
		}),
		ups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "track_substate_up_total",
			Help: "Substates upped (written) by committed transactions.",
		}),
		virtualUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "track_substate_virtual_up_total",
			Help: "Virtual-up operations recorded in commit receipts.",
		}),
		reentrancy: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "track_reentrancy_total",
			Help: "Borrow attempts rejected because the address was already borrowed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.downs, m.virtualDowns, m.ups, m.virtualUps, m.reentrancy)
	}
	return m
}

func (m *Metrics) observeDown() {
	if m != nil {
		m.downs.Inc()
	}
}

func (m *Metrics) observeVirtualDown() {
	if m != nil {
		m.virtualDowns.Inc()
	}
}

func (m *Metrics) observeUp() {
	if m != nil {
		m.ups.Inc()
	}
}

func (m *Metrics) observeVirtualUp() {
	if m != nil {
		m.virtualUps.Inc()
	}
}

func (m *Metrics) observeReentrancy() {
	if m != nil {
		m.reentrancy.Inc()
	}
}
