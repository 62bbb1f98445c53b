/*
store.go - Persistence contract for policies

PURPOSE:
  Defines the interface between the service and whatever holds the
  authoritative copy of each policy. No business rules live behind it.

CONTRACT:
  Save inserts when ID is nil: the store assigns the next ID and sets
  CreationDate and UpdateDate to the same instant. Save with an ID updates
  the matching row: CreationDate is kept, UpdateDate strictly increases.
  Updating an ID with no row returns ErrNotFound.

  DeleteByID is idempotent. FindByID returns (nil, nil) when absent.

  Every driver-level failure is reported as ErrStoreUnavailable.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - policy/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: The only consumer
*/
package policy

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists policies.
type Store interface {
	Exists(ctx context.Context, id int64) (bool, error)

	// Save inserts or updates and returns the stored copy.
	Save(ctx context.Context, p Policy) (Policy, error)

	FindByID(ctx context.Context, id int64) (*Policy, error)

	// FindAll returns one page ordered by req.Sort (id ascending by default).
	FindAll(ctx context.Context, req PageRequest) (Page, error)

	DeleteByID(ctx context.Context, id int64) error

	Count(ctx context.Context) (int64, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// PAGING
// =============================================================================

// Sortable fields, using the JSON names clients send.
const (
	SortByID                = "id"
	SortByPolicyName        = "policyName"
	SortByStatus            = "status"
	SortByCoverageStartDate = "coverageStartDate"
	SortByCoverageEndDate   = "coverageEndDate"
	SortByCreationDate      = "creationDate"
	SortByUpdateDate        = "updateDate"
)

var sortFields = map[string]bool{
	SortByID:                true,
	SortByPolicyName:        true,
	SortByStatus:            true,
	SortByCoverageStartDate: true,
	SortByCoverageEndDate:   true,
	SortByCreationDate:      true,
	SortByUpdateDate:        true,
}

// SortOrder is one sort key.
type SortOrder struct {
	Field string
	Desc  bool
}

// ParseSortOrder parses "field" or "field,asc" / "field,desc".
func ParseSortOrder(raw string) (SortOrder, error) {
	field, dir, _ := strings.Cut(raw, ",")
	field = strings.TrimSpace(field)
	if !sortFields[field] {
		return SortOrder{}, invalid(fmt.Sprintf("unknown sort field %q", field))
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return SortOrder{Field: field}, nil
	case "desc":
		return SortOrder{Field: field, Desc: true}, nil
	default:
		return SortOrder{}, invalid(fmt.Sprintf("unknown sort direction %q", dir))
	}
}

// PageRequest selects one zero-based page.
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

// Offset is the number of records skipped before this page. It saturates
// at math.MaxInt instead of overflowing.
func (r PageRequest) Offset() int {
	if r.Page <= 0 || r.Size <= 0 {
		return 0
	}
	if r.Page > math.MaxInt/r.Size {
		return math.MaxInt
	}
	return r.Page * r.Size
}

// Page is one slice of the ordered policy collection.
type Page struct {
	Content []Policy
	Total   int64
	Page    int
	Size    int
}

// =============================================================================
// CLOCK
// =============================================================================

// Precision is the timestamp resolution every store keeps.
const Precision = time.Microsecond

// Normalize converts the coverage dates to UTC at store precision, so the
// copy Save returns matches what a later read gives back.
func Normalize(p Policy) Policy {
	p.CoverageStartDate = p.CoverageStartDate.UTC().Truncate(Precision)
	p.CoverageEndDate = p.CoverageEndDate.UTC().Truncate(Precision)
	return p
}

// NextUpdateDate returns now, bumped past prev when the clock has not moved
// far enough. Stores use it so UpdateDate strictly increases on every save.
func NextUpdateDate(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(Precision)
	}
	return now
}
