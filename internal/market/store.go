package market

import (
	"sort"
	"sync"

	"carbon-scribe/derivative-market/derivative-market-backend/pkg/identity"
)

// Store holds market items and the verified-contract set. Item ids are
// a monotonic counter starting at 1 and are never reused.
type Store interface {
	NextID() uint64
	Put(item *Item)
	Get(id uint64) (*Item, bool)
	List() []*Item

	VerifySource(ledgerID identity.Address)
	IsVerified(ledgerID identity.Address) bool
	Sources() []identity.Address
}

// MemoryStore is the in-process market store.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint64
	items    map[uint64]*Item
	verified map[identity.Address]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		items:    make(map[uint64]*Item),
		verified: make(map[identity.Address]struct{}),
	}
}

// NextID implements Store.
func (s *MemoryStore) NextID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// Put implements Store.
func (s *MemoryStore) Put(item *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.items[item.ID] = &copied
}

// Get implements Store. The returned item is a copy; mutations go back
// through Put.
func (s *MemoryStore) Get(id uint64) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	copied := *item
	return &copied, true
}

// List implements Store, ordered by id.
func (s *MemoryStore) List() []*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		copied := *item
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VerifySource implements Store. Idempotent.
func (s *MemoryStore) VerifySource(ledgerID identity.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[ledgerID] = struct{}{}
}

// IsVerified implements Store.
func (s *MemoryStore) IsVerified(ledgerID identity.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.verified[ledgerID]
	return ok
}

// Sources implements Store.
func (s *MemoryStore) Sources() []identity.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.Address, 0, len(s.verified))
	for addr := range s.verified {
		out = append(out, addr)
	}
	return out
}
