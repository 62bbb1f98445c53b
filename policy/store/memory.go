// Package store provides Store implementations.
package store

import (
	"cmp"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/insurance-policy/policy"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps policies in a map guarded by a single RWMutex.
// Every method copies on the way in and out, so callers never share
// a mutable instance with the store.
type Memory struct {
	mu       sync.RWMutex
	policies map[int64]policy.Policy
	nextID   int64
	now      func() time.Time
	err      error
}

// NewMemory creates an empty store. IDs start at 1.
func NewMemory() *Memory {
	return &Memory{
		policies: make(map[int64]policy.Policy),
		nextID:   1,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// SetUnavailable makes every subsequent call fail with ErrStoreUnavailable
// wrapping err. Pass nil to recover.
func (m *Memory) SetUnavailable(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) check(op string) error {
	if m.err != nil {
		return policy.Unavailable(op, m.err)
	}
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check("ping")
}

func (m *Memory) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("exists"); err != nil {
		return false, err
	}
	_, ok := m.policies[id]
	return ok, nil
}

// Save inserts when p.ID is nil, otherwise updates the matching entry.
func (m *Memory) Save(_ context.Context, p policy.Policy) (policy.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("save"); err != nil {
		return policy.Policy{}, err
	}

	p = policy.Normalize(p.Clone())
	now := m.now().UTC().Truncate(policy.Precision)

	if p.ID == nil {
		id := m.nextID
		m.nextID++
		p.ID = &id
		p.CreationDate = now
		p.UpdateDate = now
		m.policies[id] = p
		return p.Clone(), nil
	}

	existing, ok := m.policies[*p.ID]
	if !ok {
		return policy.Policy{}, policy.ErrNotFound
	}
	p.CreationDate = existing.CreationDate
	p.UpdateDate = policy.NextUpdateDate(existing.UpdateDate, now)
	m.policies[*p.ID] = p
	return p.Clone(), nil
}

func (m *Memory) FindByID(_ context.Context, id int64) (*policy.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("find"); err != nil {
		return nil, err
	}
	p, ok := m.policies[id]
	if !ok {
		return nil, nil
	}
	p = p.Clone()
	return &p, nil
}

func (m *Memory) FindAll(_ context.Context, req policy.PageRequest) (policy.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("find all"); err != nil {
		return policy.Page{}, err
	}

	all := make([]policy.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		all = append(all, p.Clone())
	}
	sort.SliceStable(all, func(i, j int) bool {
		return less(all[i], all[j], req.Sort)
	})

	page := policy.Page{
		Content: []policy.Policy{},
		Total:   int64(len(all)),
		Page:    req.Page,
		Size:    req.Size,
	}
	start := req.Offset()
	if req.Size <= 0 || start < 0 || start >= len(all) {
		return page, nil
	}
	end := len(all)
	if req.Size < end-start {
		end = start + req.Size
	}
	page.Content = all[start:end]
	return page, nil
}

// DeleteByID removes the entry. Missing ids are not an error.
func (m *Memory) DeleteByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete"); err != nil {
		return err
	}
	delete(m.policies, id)
	return nil
}

func (m *Memory) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("count"); err != nil {
		return 0, err
	}
	return int64(len(m.policies)), nil
}

// less orders by each sort key in turn, then by id.
func less(a, b policy.Policy, orders []policy.SortOrder) bool {
	for _, o := range orders {
		c := compare(a, b, o.Field)
		if c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	return *a.ID < *b.ID
}

func compare(a, b policy.Policy, field string) int {
	switch field {
	case policy.SortByID:
		return cmp.Compare(*a.ID, *b.ID)
	case policy.SortByPolicyName:
		return cmp.Compare(a.PolicyName, b.PolicyName)
	case policy.SortByStatus:
		return cmp.Compare(a.Status, b.Status)
	case policy.SortByCoverageStartDate:
		return a.CoverageStartDate.Compare(b.CoverageStartDate)
	case policy.SortByCoverageEndDate:
		return a.CoverageEndDate.Compare(b.CoverageEndDate)
	case policy.SortByCreationDate:
		return a.CreationDate.Compare(b.CreationDate)
	case policy.SortByUpdateDate:
		return a.UpdateDate.Compare(b.UpdateDate)
	}
	return 0
}

// Reset drops every policy. The id sequence keeps counting, matching
// the SQLite store where AUTOINCREMENT never hands out an old id.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("reset"); err != nil {
		return err
	}
	m.policies = make(map[int64]policy.Policy)
	return nil
}
