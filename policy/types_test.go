package policy_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/insurance-policy/policy"
	"github.com/warp/insurance-policy/policy/store"
	"pgregory.net/rapid"
)

// =============================================================================
// IDENTITY
// =============================================================================

func TestPolicy_Equal_ByIDOnly(t *testing.T) {
	a := homeCover()
	a.ID = ptr(int64(1))
	b := homeCover()
	b.ID = ptr(int64(1))
	b.PolicyName = "Different"
	c := homeCover()
	c.ID = ptr(int64(2))

	assert.True(t, a.Equal(&b))
	assert.False(t, a.Equal(&c))
}

func TestPolicy_Equal_TransientNeverEqual(t *testing.T) {
	transient := homeCover()
	twin := homeCover()
	persisted := homeCover()
	persisted.ID = ptr(int64(1))

	assert.False(t, transient.Equal(&transient))
	assert.False(t, transient.Equal(&twin))
	assert.False(t, transient.Equal(&persisted))
	assert.False(t, persisted.Equal(&transient))
	assert.False(t, persisted.Equal(nil))
}

func TestPolicy_Clone_DoesNotShareID(t *testing.T) {
	p := homeCover()
	p.ID = ptr(int64(7))

	c := p.Clone()
	*c.ID = 8

	assert.Equal(t, int64(7), *p.ID)
}

func TestStatusOf(t *testing.T) {
	s := policy.StatusOf(" expired ")
	assert.Equal(t, policy.StatusExpired, s)
	assert.True(t, s.Valid())

	assert.False(t, policy.StatusOf("LAPSED").Valid())
}

func TestParseSortOrder(t *testing.T) {
	o, err := policy.ParseSortOrder("policyName,desc")
	require.NoError(t, err)
	assert.Equal(t, policy.SortOrder{Field: policy.SortByPolicyName, Desc: true}, o)

	o, err = policy.ParseSortOrder("id")
	require.NoError(t, err)
	assert.Equal(t, policy.SortOrder{Field: policy.SortByID}, o)

	_, err = policy.ParseSortOrder("premium")
	assert.True(t, policy.IsClientError(err))

	_, err = policy.ParseSortOrder("id,sideways")
	assert.True(t, policy.IsClientError(err))
}

func TestNextUpdateDate_StrictlyIncreases(t *testing.T) {
	prev := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, policy.NextUpdateDate(prev, prev).After(prev))
	assert.True(t, policy.NextUpdateDate(prev, prev.Add(-time.Hour)).After(prev))
	assert.Equal(t, prev.Add(time.Second), policy.NextUpdateDate(prev, prev.Add(time.Second)))
}

func TestPageRequest_Offset_Saturates(t *testing.T) {
	assert.Equal(t, 0, policy.PageRequest{Page: 0, Size: 20}.Offset())
	assert.Equal(t, 40, policy.PageRequest{Page: 2, Size: 20}.Offset())
	assert.Equal(t, 0, policy.PageRequest{Page: 3, Size: 0}.Offset())
	assert.Equal(t, math.MaxInt, policy.PageRequest{Page: math.MaxInt, Size: 2}.Offset())
	assert.Equal(t, math.MaxInt, policy.PageRequest{Page: math.MaxInt/3 + 1, Size: 3}.Offset())
}

// =============================================================================
// PATCH PROPERTIES
// =============================================================================

func drawTime(t *rapid.T, label string) time.Time {
	secs := rapid.Int64Range(0, 4_000_000_000).Draw(t, label)
	return time.Unix(secs, 0).UTC()
}

func drawPatch(t *rapid.T) policy.Patch {
	var pt policy.Patch
	if rapid.Bool().Draw(t, "has_name") {
		pt.PolicyName = ptr(rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,20}`).Draw(t, "name"))
	}
	if rapid.Bool().Draw(t, "has_status") {
		pt.Status = ptr(rapid.SampledFrom(policy.Statuses).Draw(t, "status"))
	}
	if rapid.Bool().Draw(t, "has_start") {
		pt.CoverageStartDate = ptr(drawTime(t, "start"))
	}
	if rapid.Bool().Draw(t, "has_end") {
		pt.CoverageEndDate = ptr(drawTime(t, "end"))
	}
	return pt
}

func TestPatch_ApplyTo_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := policy.Policy{
			ID:                ptr(rapid.Int64Range(1, 1_000_000).Draw(t, "id")),
			PolicyName:        "Base",
			Status:            policy.StatusActive,
			CoverageStartDate: drawTime(t, "base_start"),
			CoverageEndDate:   drawTime(t, "base_end"),
			CreationDate:      drawTime(t, "created"),
			UpdateDate:        drawTime(t, "updated"),
		}
		pt := drawPatch(t)

		merged := base.Clone()
		pt.ApplyTo(&merged)

		if *merged.ID != *base.ID {
			t.Fatalf("id changed: %d -> %d", *base.ID, *merged.ID)
		}
		if !merged.CreationDate.Equal(base.CreationDate) || !merged.UpdateDate.Equal(base.UpdateDate) {
			t.Fatalf("managed timestamps changed")
		}

		wantName := base.PolicyName
		if pt.PolicyName != nil {
			wantName = *pt.PolicyName
		}
		if merged.PolicyName != wantName {
			t.Fatalf("policyName = %q, want %q", merged.PolicyName, wantName)
		}

		wantStatus := base.Status
		if pt.Status != nil {
			wantStatus = *pt.Status
		}
		if merged.Status != wantStatus {
			t.Fatalf("status = %s, want %s", merged.Status, wantStatus)
		}

		wantStart := base.CoverageStartDate
		if pt.CoverageStartDate != nil {
			wantStart = *pt.CoverageStartDate
		}
		if !merged.CoverageStartDate.Equal(wantStart) {
			t.Fatalf("coverageStartDate = %s, want %s", merged.CoverageStartDate, wantStart)
		}

		wantEnd := base.CoverageEndDate
		if pt.CoverageEndDate != nil {
			wantEnd = *pt.CoverageEndDate
		}
		if !merged.CoverageEndDate.Equal(wantEnd) {
			t.Fatalf("coverageEndDate = %s, want %s", merged.CoverageEndDate, wantEnd)
		}
	})
}

func TestService_Patch_Property_UpdateDateStrictlyIncreases(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mem := store.NewMemory().WithClock(frozenClock)
		svc := policy.NewService(mem)
		ctx := context.Background()

		created, err := svc.Create(ctx, homeCover())
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		prev := created
		steps := rapid.IntRange(1, 5).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			patched, err := svc.Patch(ctx, *created.ID, policy.PatchRequest{ID: created.ID, Patch: drawPatch(t)})
			if err != nil {
				t.Fatalf("patch %d: %v", i, err)
			}
			if !patched.UpdateDate.After(prev.UpdateDate) {
				t.Fatalf("updateDate did not increase: %s -> %s", prev.UpdateDate, patched.UpdateDate)
			}
			if !patched.CreationDate.Equal(created.CreationDate) {
				t.Fatalf("creationDate changed")
			}
			prev = patched
		}
	})
}
