/*
service.go - Request-handling rules for insurance policies

PURPOSE:
  The one component with decision logic. It checks identity rules on
  create/update/patch, merges partial updates, and delegates persistence
  to a Store. It holds no state between calls.

OPERATIONS:
  Create  - id must be absent
  Update  - body id present and equal to path id, row must exist
  Patch   - same checks as Update, then merge present fields only
  List    - one page; filter and eager-load are accepted and inert
  Get     - ErrNotFound when absent
  Delete  - idempotent

MISSING ROW ON MUTATE:
  Update and Patch report a missing row as ErrNotFound, the same outcome
  Get uses, whether it is caught by the existence check or by the store
  during the write.

ATOMICITY:
  Each operation performs at most one store mutation, so a failed call
  never leaves a partial write behind.
*/
package policy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Service implements the policy operations on top of a Store.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for per-operation debug lines.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = l.With().Str("component", "policy-service").Logger()
	}
}

// NewService creates a service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PatchRequest is a partial update addressed by the id carried in the body.
type PatchRequest struct {
	ID *int64
	Patch
}

// ListQuery carries paging plus the two advisory list flags.
type ListQuery struct {
	PageRequest
	Filter    string
	EagerLoad bool
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Create persists a new policy.
func (s *Service) Create(ctx context.Context, p Policy) (Policy, error) {
	s.logger.Debug().Stringer("policy", p).Msg("create policy")

	if p.ID != nil {
		return Policy{}, invalid("a new record cannot already have an id")
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return s.store.Save(ctx, stripManaged(p))
}

// Update replaces every mutable field of the policy at pathID.
func (s *Service) Update(ctx context.Context, pathID int64, p Policy) (Policy, error) {
	s.logger.Debug().Int64("id", pathID).Stringer("policy", p).Msg("update policy")

	if err := s.checkIdentity(ctx, pathID, p.ID); err != nil {
		return Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}

	saved, err := s.store.Save(ctx, stripManaged(p))
	if IsNotFound(err) {
		return Policy{}, notFound("entity not found")
	}
	return saved, err
}

// Patch merges the fields present in req into the policy at pathID.
func (s *Service) Patch(ctx context.Context, pathID int64, req PatchRequest) (Policy, error) {
	s.logger.Debug().Int64("id", pathID).Bool("empty", req.IsEmpty()).Msg("patch policy")

	if err := s.checkIdentity(ctx, pathID, req.ID); err != nil {
		return Policy{}, err
	}
	if err := req.Patch.Validate(); err != nil {
		return Policy{}, err
	}

	existing, err := s.store.FindByID(ctx, pathID)
	if err != nil {
		return Policy{}, err
	}
	if existing == nil {
		// Deleted between the existence check and the load.
		return Policy{}, notFound("entity not found")
	}

	merged := existing.Clone()
	req.Patch.ApplyTo(&merged)

	saved, err := s.store.Save(ctx, merged)
	if IsNotFound(err) {
		return Policy{}, notFound("entity not found")
	}
	return saved, err
}

// Delete removes the policy. Deleting a missing id succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.logger.Debug().Int64("id", id).Msg("delete policy")
	return s.store.DeleteByID(ctx, id)
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Get returns the policy with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Policy, error) {
	s.logger.Debug().Int64("id", id).Msg("get policy")

	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	if p == nil {
		return Policy{}, notFound("entity not found")
	}
	return *p, nil
}

// List returns one page of policies.
// There are no related entities, so EagerLoad has no effect.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	s.logger.Debug().
		Int("page", q.Page).
		Int("size", q.Size).
		Str("filter", q.Filter).
		Bool("eagerload", q.EagerLoad).
		Msg("list policies")

	return s.store.FindAll(ctx, q.PageRequest)
}

// Count returns the number of stored policies.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

// checkIdentity enforces, in order: body id present, body id equal to the
// path id, row exists.
func (s *Service) checkIdentity(ctx context.Context, pathID int64, bodyID *int64) error {
	if bodyID == nil {
		return invalid("invalid id")
	}
	if *bodyID != pathID {
		return invalid("invalid id")
	}
	ok, err := s.store.Exists(ctx, pathID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("entity not found")
	}
	return nil
}

// stripManaged drops store-owned timestamps a caller may have set.
func stripManaged(p Policy) Policy {
	p = p.Clone()
	p.CreationDate = time.Time{}
	p.UpdateDate = time.Time{}
	return p
}
