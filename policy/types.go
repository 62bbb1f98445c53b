/*
types.go - Insurance policy record and partial-update patch

PURPOSE:
  Defines the single persisted entity of the service (Policy) and the
  optional-field structure used for partial updates (Patch).

IDENTITY:
  A Policy is Transient while ID is nil and Persisted once the store has
  assigned one. Two policies are equal only when both carry an ID and the
  IDs match. A transient policy is never equal to anything, itself included.

TIMESTAMPS:
  CreationDate and UpdateDate belong to the store. The service never reads
  them from a client; the store overwrites them on every Save.

PATCH SEMANTICS:
  Patch carries pointers for the four mutable fields. A nil pointer means
  "leave unchanged". There is no way to clear a field through a patch.

SEE ALSO:
  - store.go: Store contract that assigns IDs and timestamps
  - service.go: Uses Validate and ApplyTo
*/
package policy

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the lifecycle status of an insurance policy.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every accepted status in display order.
var Statuses = []Status{StatusActive, StatusInactive, StatusExpired, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// StatusOf normalizes a client-supplied string without checking it.
// Matching is case-insensitive; surrounding whitespace is ignored.
// Unknown values are rejected later by Validate.
func StatusOf(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}

// =============================================================================
// POLICY
// =============================================================================

// Policy is one insurance policy.
type Policy struct {
	ID                *int64
	PolicyName        string
	Status            Status
	CoverageStartDate time.Time
	CoverageEndDate   time.Time
	CreationDate      time.Time
	UpdateDate        time.Time
}

// IsPersisted reports whether the store has assigned an ID.
func (p *Policy) IsPersisted() bool {
	return p != nil && p.ID != nil
}

// Equal compares by identity only.
func (p *Policy) Equal(other *Policy) bool {
	if !p.IsPersisted() || !other.IsPersisted() {
		return false
	}
	return *p.ID == *other.ID
}

// Clone returns a copy that shares no pointers with p.
func (p Policy) Clone() Policy {
	if p.ID != nil {
		id := *p.ID
		p.ID = &id
	}
	return p
}

// Validate checks the fields required on create and full update.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.PolicyName) == "" {
		return invalid("policyName can not be blank")
	}
	if p.Status == "" {
		return invalid("status is required")
	}
	if !p.Status.Valid() {
		return invalid(fmt.Sprintf("unknown status %q", p.Status))
	}
	if p.CoverageStartDate.IsZero() {
		return invalid("coverageStartDate is required")
	}
	if p.CoverageEndDate.IsZero() {
		return invalid("coverageEndDate is required")
	}
	return nil
}

func (p Policy) String() string {
	id := "<nil>"
	if p.ID != nil {
		id = fmt.Sprint(*p.ID)
	}
	return fmt.Sprintf("Policy{id=%s, policyName=%q, status=%s, coverageStartDate=%s, coverageEndDate=%s}",
		id, p.PolicyName, p.Status,
		p.CoverageStartDate.Format(time.RFC3339), p.CoverageEndDate.Format(time.RFC3339))
}

// =============================================================================
// PATCH
// =============================================================================

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	PolicyName        *string
	Status            *Status
	CoverageStartDate *time.Time
	CoverageEndDate   *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (pt Patch) IsEmpty() bool {
	return pt.PolicyName == nil && pt.Status == nil &&
		pt.CoverageStartDate == nil && pt.CoverageEndDate == nil
}

// Validate checks only the fields that are present.
func (pt Patch) Validate() error {
	if pt.PolicyName != nil && strings.TrimSpace(*pt.PolicyName) == "" {
		return invalid("policyName can not be blank")
	}
	if pt.Status != nil && !pt.Status.Valid() {
		return invalid(fmt.Sprintf("unknown status %q", *pt.Status))
	}
	if pt.CoverageStartDate != nil && pt.CoverageStartDate.IsZero() {
		return invalid("coverageStartDate can not be zero")
	}
	if pt.CoverageEndDate != nil && pt.CoverageEndDate.IsZero() {
		return invalid("coverageEndDate can not be zero")
	}
	return nil
}

// ApplyTo overwrites the mutable fields of p that are present in the patch.
// ID, CreationDate and UpdateDate are never touched.
func (pt Patch) ApplyTo(p *Policy) {
	if pt.PolicyName != nil {
		p.PolicyName = *pt.PolicyName
	}
	if pt.Status != nil {
		p.Status = *pt.Status
	}
	if pt.CoverageStartDate != nil {
		p.CoverageStartDate = *pt.CoverageStartDate
	}
	if pt.CoverageEndDate != nil {
		p.CoverageEndDate = *pt.CoverageEndDate
	}
}
