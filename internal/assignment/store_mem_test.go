package assignment

import (
	"context"
	"sort"
	"sync"
)

// memStore 内存版 Store，用于脱离数据库测试 Ledger/Resolver/Service。
type memStore struct {
	mu   sync.Mutex
	data map[string]*Assignment
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{data: make(map[string]*Assignment)}
}

func (s *memStore) listActive(vehicleID, excludeID string) []Assignment {
	var out []Assignment
	for _, a := range s.data {
		if a.VehicleID != vehicleID || a.Cancelled {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out
}

func (s *memStore) ListActive(ctx context.Context, vehicleID, excludeID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listActive(vehicleID, excludeID), nil
}

func (s *memStore) ListActiveLocked(ctx context.Context, vehicleID, excludeID string) ([]Assignment, error) {
	return s.ListActive(ctx, vehicleID, excludeID)
}

func (s *memStore) ListByVehicle(ctx context.Context, vehicleID string, offset, limit int) ([]Assignment, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, a := range s.data {
		if a.VehicleID == vehicleID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[j].StartAt.Before(out[i].StartAt)
	})
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memStore) Get(ctx context.Context, id string) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) Create(ctx context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.data[a.ID] = &cp
	return nil
}

func (s *memStore) Save(ctx context.Context, a *Assignment) error {
	return s.Create(ctx, a)
}

func (s *memStore) Mutate(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}
