/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication and the conversions
  to and from the policy package types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

READ-ONLY FIELDS:
  PolicyRequest has no creationDate/updateDate fields, so values a client
  sends for them are dropped by the decoder and never reach the service.

VALIDATION:
  Field rules live in the policy package. Conversion never fails: the
  status string is only normalized, so the service can run its identity
  checks before any field is judged.
*/
package api

import (
	"time"

	"github.com/warp/insurance-policy/policy"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID                *int64        `json:"id"`
	PolicyName        string        `json:"policyName"`
	Status            policy.Status `json:"status"`
	CoverageStartDate time.Time     `json:"coverageStartDate"`
	CoverageEndDate   time.Time     `json:"coverageEndDate"`
	CreationDate      time.Time     `json:"creationDate"`
	UpdateDate        time.Time     `json:"updateDate"`
}

// PolicyRequest is the body of POST, PUT and PATCH.
// Every field is optional at the JSON level; which ones are required
// depends on the operation.
type PolicyRequest struct {
	ID                *int64     `json:"id"`
	PolicyName        *string    `json:"policyName"`
	Status            *string    `json:"status"`
	CoverageStartDate *time.Time `json:"coverageStartDate"`
	CoverageEndDate   *time.Time `json:"coverageEndDate"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPolicyDTO(p policy.Policy) PolicyDTO {
	return PolicyDTO{
		ID:                p.ID,
		PolicyName:        p.PolicyName,
		Status:            p.Status,
		CoverageStartDate: p.CoverageStartDate,
		CoverageEndDate:   p.CoverageEndDate,
		CreationDate:      p.CreationDate,
		UpdateDate:        p.UpdateDate,
	}
}

func toPolicyDTOs(ps []policy.Policy) []PolicyDTO {
	dtos := make([]PolicyDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPolicyDTO(p)
	}
	return dtos
}

// toPolicy builds a full record. Missing or unknown values are carried
// through and rejected by policy.Validate, after the identity checks.
func (r PolicyRequest) toPolicy() policy.Policy {
	p := policy.Policy{ID: r.ID}
	if r.PolicyName != nil {
		p.PolicyName = *r.PolicyName
	}
	if r.Status != nil {
		p.Status = policy.StatusOf(*r.Status)
	}
	if r.CoverageStartDate != nil {
		p.CoverageStartDate = *r.CoverageStartDate
	}
	if r.CoverageEndDate != nil {
		p.CoverageEndDate = *r.CoverageEndDate
	}
	return p
}

// toPatchRequest keeps absent fields absent.
func (r PolicyRequest) toPatchRequest() policy.PatchRequest {
	req := policy.PatchRequest{
		ID: r.ID,
		Patch: policy.Patch{
			PolicyName:        r.PolicyName,
			CoverageStartDate: r.CoverageStartDate,
			CoverageEndDate:   r.CoverageEndDate,
		},
	}
	if r.Status != nil {
		s := policy.StatusOf(*r.Status)
		req.Status = &s
	}
	return req
}
