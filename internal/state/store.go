package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/courierops/dispatchd/core/model"
)

// Store is an in-memory snapshot of the fleet: orders and couriers as last
// reported by the surrounding application. The dispatch engine consumes
// read-only snapshots; Store owns the mutable side and serializes the commit
// of assignment decisions, so two concurrent evaluations preferring the same
// courier cannot both apply.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]model.Order
	couriers map[string]model.Courier
	versions map[string]uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders:   map[string]model.Order{},
		couriers: map[string]model.Courier{},
		versions: map[string]uint64{},
	}
}

// PutOrder inserts or replaces an order.
func (s *Store) PutOrder(o model.Order) {
	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()
}

// PutCourier inserts or replaces a courier snapshot and bumps its version.
// Any in-flight evaluation holding the previous version will fail to apply.
func (s *Store) PutCourier(c model.Courier) {
	s.mu.Lock()
	s.couriers[c.ID] = c
	s.versions[c.ID]++
	s.mu.Unlock()
}

// CourierVersion returns the current version of a courier's state.
func (s *Store) CourierVersion(id string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[id]
}

// Snapshot returns copies of the order map, the courier list and the courier
// versions observed at the same instant, for one engine evaluation. Couriers
// are sorted by ID for reproducible sweeps. The versions must be handed back
// to Apply so a concurrent courier update invalidates the decision.
func (s *Store) Snapshot() (map[string]model.Order, []model.Courier, map[string]uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make(map[string]model.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = o
	}
	couriers := make([]model.Courier, 0, len(s.couriers))
	versions := make(map[string]uint64, len(s.couriers))
	for id, c := range s.couriers {
		couriers = append(couriers, c)
		versions[id] = s.versions[id]
	}
	sort.Slice(couriers, func(i, j int) bool { return couriers[i].ID < couriers[j].ID })
	return orders, couriers, versions
}

// Unassigned lists orders still waiting for a courier, sorted by creation
// time so older orders are swept first.
func (s *Store) Unassigned() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.Status == model.OrderUnassigned {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Apply commits an assignment decision under the store lock: the order flips
// to ASSIGNED and the courier's open-order list grows by one. expectedVersion
// is the courier version observed when the evaluation's snapshot was taken; a
// mismatch means the courier changed underneath and the decision must be
// re-evaluated rather than committed blindly.
func (s *Store) Apply(res model.AssignmentResult, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[res.OrderID]
	if !ok {
		return fmt.Errorf("apply assignment: unknown order %s", res.OrderID)
	}
	if o.Status != model.OrderUnassigned {
		return fmt.Errorf("apply assignment: order %s is %s", res.OrderID, o.Status)
	}
	c, ok := s.couriers[res.CourierID]
	if !ok {
		return fmt.Errorf("apply assignment: unknown courier %s", res.CourierID)
	}
	if s.versions[res.CourierID] != expectedVersion {
		return fmt.Errorf("apply assignment: courier %s state changed (version %d, expected %d)",
			res.CourierID, s.versions[res.CourierID], expectedVersion)
	}

	o.Status = model.OrderAssigned
	s.orders[o.ID] = o

	c.AssignedOpenOrderIDs = append(append([]string{}, c.AssignedOpenOrderIDs...), o.ID)
	s.couriers[c.ID] = c
	s.versions[c.ID]++
	return nil
}
