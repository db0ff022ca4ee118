package records

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/courier/pkg/export"
)

// MemoryStore is an in-memory record store. It is used by tests and by
// one-shot CLI exports over an imported dump.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*export.OrderRecord
	customers map[string]*export.CustomerRecord
	exported  map[export.RecordType]map[string]struct{}
	failure   error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*export.OrderRecord),
		customers: make(map[string]*export.CustomerRecord),
		exported:  make(map[export.RecordType]map[string]struct{}),
	}
}

// SetFailure makes every call fail with a RecordStoreError wrapping err,
// simulating an unreachable store. A nil err restores normal operation.
func (s *MemoryStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *MemoryStore) fail(t export.RecordType, op string) error {
	if s.failure == nil {
		return nil
	}
	return export.NewRecordStoreError(t, op, s.failure)
}

// PutOrder implements Writer.
func (s *MemoryStore) PutOrder(_ context.Context, o *export.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(export.RecordTypeOrders, "put_order"); err != nil {
		return err
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

// PutCustomer implements Writer.
func (s *MemoryStore) PutCustomer(_ context.Context, c *export.CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(export.RecordTypeCustomers, "put_customer"); err != nil {
		return err
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

// DeleteOrder removes an order. Missing orders are ignored.
func (s *MemoryStore) DeleteOrder(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
}

// GetOrder implements export.RecordStore.
func (s *MemoryStore) GetOrder(_ context.Context, id string) (*export.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(export.RecordTypeOrders, "get_order"); err != nil {
		return nil, err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, export.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

// GetCustomer implements export.RecordStore.
func (s *MemoryStore) GetCustomer(_ context.Context, id string) (*export.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(export.RecordTypeCustomers, "get_customer"); err != nil {
		return nil, err
	}
	c, ok := s.customers[id]
	if !ok {
		return nil, export.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

// QueryIDs implements export.RecordStore.
func (s *MemoryStore) QueryIDs(_ context.Context, t export.RecordType, filter export.QueryFilter) ([]export.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(t, "query_ids"); err != nil {
		return nil, err
	}

	orders := make([]*export.OrderRecord, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	sortOrders(orders)

	var ids []export.Identifier
	switch t {
	case export.RecordTypeOrders:
		for _, o := range orders {
			if !matchOrder(o, filter) {
				continue
			}
			ids = append(ids, export.Identifier{ID: o.ID})
		}

	case export.RecordTypeCustomers:
		customers := make([]*export.CustomerRecord, 0, len(s.customers))
		for _, c := range s.customers {
			customers = append(customers, c)
		}
		sort.Slice(customers, func(i, j int) bool {
			if !customers[i].DateRegistered.Equal(customers[j].DateRegistered) {
				return customers[i].DateRegistered.Before(customers[j].DateRegistered)
			}
			return customers[i].ID < customers[j].ID
		})
		for _, c := range customers {
			if inRange(c.DateRegistered, filter) {
				ids = append(ids, export.Identifier{ID: c.ID})
			}
		}
		ids = append(ids, guestIdentifiers(orders, filter)...)

	default:
		return nil, export.NewRecordStoreError(t, "query_ids", errUnknownType)
	}

	if filter.OnlyNew {
		ids = s.withoutExported(t, ids)
	}
	return limit(ids, filter.Limit), nil
}

// ListMetaKeys implements export.RecordStore.
func (s *MemoryStore) ListMetaKeys(_ context.Context, t export.RecordType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.fail(t, "list_meta_keys"); err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	switch t {
	case export.RecordTypeOrders:
		for _, o := range s.orders {
			for k := range o.Metadata {
				set[k] = struct{}{}
			}
		}
	case export.RecordTypeCustomers:
		for _, c := range s.customers {
			for k := range c.Metadata {
				set[k] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// MarkExported implements export.RecordStore.
func (s *MemoryStore) MarkExported(_ context.Context, t export.RecordType, ids []export.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(t, "mark_exported"); err != nil {
		return err
	}
	if s.exported[t] == nil {
		s.exported[t] = make(map[string]struct{})
	}
	for _, id := range ids {
		s.exported[t][id.String()] = struct{}{}
	}
	return nil
}

// IsExported reports whether the identifier carries the exported flag.
func (s *MemoryStore) IsExported(t export.RecordType, id export.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.exported[t][id.String()]
	return ok
}

func (s *MemoryStore) withoutExported(t export.RecordType, ids []export.Identifier) []export.Identifier {
	out := ids[:0]
	for _, id := range ids {
		if _, done := s.exported[t][id.String()]; !done {
			out = append(out, id)
		}
	}
	return out
}
