package sqlite

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/insurance-policy/policy"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func samplePolicy(name string) policy.Policy {
	return policy.Policy{
		PolicyName:        name,
		Status:            policy.StatusActive,
		CoverageStartDate: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		CoverageEndDate:   time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// SAVE
// =============================================================================

func TestStore_Insert_AssignsIDAndTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, samplePolicy("Home Cover"))
	require.NoError(t, err)
	require.NotNil(t, saved.ID)
	assert.Equal(t, int64(1), *saved.ID)
	assert.True(t, saved.CreationDate.Equal(saved.UpdateDate))

	found, err := store.FindByID(ctx, *saved.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, saved, *found)
}

func TestStore_Update_KeepsCreationDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	frozen := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return frozen }

	saved, err := store.Save(ctx, samplePolicy("Home Cover"))
	require.NoError(t, err)

	saved.PolicyName = "Renamed"
	saved.Status = policy.StatusExpired
	saved.CreationDate = time.Time{}
	updated, err := store.Save(ctx, saved)
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.PolicyName)
	assert.Equal(t, frozen, updated.CreationDate)
	assert.True(t, updated.UpdateDate.After(frozen), "update date must move past %s", frozen)

	found, err := store.FindByID(ctx, *saved.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, *found)
}

func TestStore_Update_UnknownID(t *testing.T) {
	store := newTestStore(t)
	p := samplePolicy("ghost")
	id := int64(404)
	p.ID = &id

	_, err := store.Save(context.Background(), p)
	assert.ErrorIs(t, err, policy.ErrNotFound)
}

func TestStore_IDsNotReusedAfterDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Save(ctx, samplePolicy("a"))
	require.NoError(t, err)
	b, err := store.Save(ctx, samplePolicy("b"))
	require.NoError(t, err)
	require.NoError(t, store.DeleteByID(ctx, *b.ID))
	c, err := store.Save(ctx, samplePolicy("c"))
	require.NoError(t, err)

	assert.Less(t, *a.ID, *b.ID)
	assert.Less(t, *b.ID, *c.ID)
}

// =============================================================================
// READ / DELETE
// =============================================================================

func TestStore_ExistsDeleteCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, samplePolicy("a"))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, *saved.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.DeleteByID(ctx, *saved.ID))
	require.NoError(t, store.DeleteByID(ctx, *saved.ID), "second delete is a no-op")

	ok, err = store.Exists(ctx, *saved.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := store.FindByID(ctx, *saved.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_FindAll_PagingAndSort(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"delta", "alpha", "charlie", "bravo"} {
		_, err := store.Save(ctx, samplePolicy(name))
		require.NoError(t, err)
	}

	page, err := store.FindAll(ctx, policy.PageRequest{Page: 0, Size: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	require.Len(t, page.Content, 3)
	assert.Equal(t, "delta", page.Content[0].PolicyName)

	page, err = store.FindAll(ctx, policy.PageRequest{
		Page: 1,
		Size: 2,
		Sort: []policy.SortOrder{{Field: policy.SortByPolicyName}},
	})
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "charlie", page.Content[0].PolicyName)
	assert.Equal(t, "delta", page.Content[1].PolicyName)

	page, err = store.FindAll(ctx, policy.PageRequest{
		Size: 1,
		Sort: []policy.SortOrder{{Field: policy.SortByID, Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "bravo", page.Content[0].PolicyName)
}

func TestStore_FindAll_HugePageIsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.Save(ctx, samplePolicy("a"))
	require.NoError(t, err)

	page, err := store.FindAll(ctx, policy.PageRequest{Page: math.MaxInt, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Empty(t, page.Content)
}

func TestStore_FindAll_Empty(t *testing.T) {
	store := newTestStore(t)

	page, err := store.FindAll(context.Background(), policy.PageRequest{Size: 20})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
}

func TestStore_UnreadableTimestamp_IsReported(t *testing.T) {
	// GIVEN: A row whose update_date is not in the stored layout
	// WHEN: Reading or updating it
	// THEN: The failure surfaces instead of a zero time

	store := newTestStore(t)
	ctx := context.Background()
	saved, err := store.Save(ctx, samplePolicy("a"))
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx,
		"UPDATE "+table+" SET update_date = 'last tuesday' WHERE id = ?", *saved.ID)
	require.NoError(t, err)

	found, err := store.FindByID(ctx, *saved.ID)
	assert.Nil(t, found)
	assert.ErrorIs(t, err, policy.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "update_date")

	_, err = store.FindAll(ctx, policy.PageRequest{Size: 10})
	assert.ErrorIs(t, err, policy.ErrStoreUnavailable)

	_, err = store.Save(ctx, saved)
	assert.ErrorIs(t, err, policy.ErrStoreUnavailable)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestStore_ClosedDatabase_Unavailable(t *testing.T) {
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Count(context.Background())
	assert.ErrorIs(t, err, policy.ErrStoreUnavailable)
	assert.ErrorIs(t, store.Ping(context.Background()), policy.ErrStoreUnavailable)
}

func TestNew_Concurrent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store, err := New(ctx, filepath.Join(dir, fmt.Sprintf("policies-%d.db", i)))
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = store.Save(ctx, samplePolicy("concurrent"))
			store.Close()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "store %d", i)
	}
}

func TestStore_FileDatabase_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "policies.db")

	store, err := New(ctx, path)
	require.NoError(t, err)
	saved, err := store.Save(ctx, samplePolicy("durable"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindByID(ctx, *saved.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "durable", found.PolicyName)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, samplePolicy("a"))
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	second, err := store.Save(ctx, samplePolicy("b"))
	require.NoError(t, err)
	assert.Greater(t, *second.ID, *first.ID)
}
