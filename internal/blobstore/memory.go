package blobstore

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// DefaultMemoryQuota is the quota reported by Memory stores.
const DefaultMemoryQuota = 512 << 20

// Memory is an in-process Store. Data is lost on Close.
type Memory struct {
	mu    sync.RWMutex
	data  map[DB]map[string]map[string][]byte
	Quota uint64
}

// NewMemory returns an empty Memory store with every schema's stores created.
func NewMemory() *Memory {
	m := &Memory{
		data:  make(map[DB]map[string]map[string][]byte),
		Quota: DefaultMemoryQuota,
	}
	for _, schema := range Schemas {
		stores := make(map[string]map[string][]byte, len(schema.Stores))
		for _, s := range schema.Stores {
			stores[s] = make(map[string][]byte)
		}
		m.data[schema.DB] = stores
	}
	return m
}

func (m *Memory) check(ctx context.Context, db DB, store string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkStore(db, store)
}

func (m *Memory) Get(ctx context.Context, db DB, store, key string) ([]byte, error) {
	if err := m.check(ctx, db, store); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[db][store][key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

func (m *Memory) GetAll(ctx context.Context, db DB, store string) ([]Record, error) {
	if err := m.check(ctx, db, store); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.data[db][store]
	records := make([]Record, 0, len(bucket))
	for _, k := range slices.Sorted(maps.Keys(bucket)) {
		records = append(records, Record{Key: k, Value: slices.Clone(bucket[k])})
	}
	return records, nil
}

func (m *Memory) Put(ctx context.Context, db DB, store, key string, value []byte) error {
	if err := m.check(ctx, db, store); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[db][store][key] = slices.Clone(value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, db DB, store, key string) error {
	if err := m.check(ctx, db, store); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[db][store], key)
	return nil
}

func (m *Memory) Clear(ctx context.Context, db DB, store string) error {
	if err := m.check(ctx, db, store); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data[db][store])
	return nil
}

// EstimateUsage reports the total size of stored values against Quota.
func (m *Memory) EstimateUsage(ctx context.Context) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var used uint64
	for _, stores := range m.data {
		for _, bucket := range stores {
			for k, v := range bucket {
				used += uint64(len(k) + len(v))
			}
		}
	}
	quota := m.Quota
	if quota < used {
		quota = used
	}
	return Usage{UsedBytes: used, QuotaBytes: quota}, nil
}

func (m *Memory) Close() error {
	return nil
}
