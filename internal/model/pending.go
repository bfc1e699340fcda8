package model

import (
	"fmt"
	"strings"
	"time"
)

// RegistrationDraft holds the account details an unauthenticated user
// entered before registering. At least one of FirstName/Nickname is
// required; LastName is optional.
type RegistrationDraft struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName builds the full name from first-name/nickname plus the
// optional last name. A blank last name adds no separator.
func (r RegistrationDraft) DisplayName() string {
	first := strings.TrimSpace(r.FirstName)
	if first == "" {
		first = strings.TrimSpace(r.Nickname)
	}
	last := strings.TrimSpace(r.LastName)
	if last == "" {
		return first
	}
	return first + " " + last
}

// StepResponse records the answer given on one step.
type StepResponse struct {
	StepID string      `json:"step_id"`
	Value  AnswerValue `json:"value"`
}

// PendingPayload is the full questionnaire state carried by a pending
// registration record until the account exists.
type PendingPayload struct {
	Registration   RegistrationDraft `json:"registration"`
	FormOfAddress  FormOfAddress     `json:"form_of_address,omitempty"`
	EntryPoint     string            `json:"entry_point,omitempty"`
	Path           Path              `json:"path"`
	Responses      []StepResponse    `json:"responses"`
	NeutralVisited bool              `json:"neutral_visited,omitempty"`
}

// ValidationError reports which payload fields failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, msg))
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// Validate checks the payload against the expected schema, returning a
// *ValidationError with field-level detail on failure.
func (p PendingPayload) Validate() error {
	fields := map[string]string{}

	email := strings.TrimSpace(p.Registration.Email)
	switch {
	case email == "":
		fields["registration.email"] = "required"
	case !strings.Contains(email, "@"):
		fields["registration.email"] = "not an email address"
	}
	if strings.TrimSpace(p.Registration.FirstName) == "" && strings.TrimSpace(p.Registration.Nickname) == "" {
		fields["registration.first_name"] = "first name or nickname required"
	}
	switch p.Path {
	case PathA, PathB, PathC:
	default:
		fields["path"] = "must be A, B or C"
	}
	if len(p.Responses) == 0 {
		fields["responses"] = "at least one response required"
	}
	for i, r := range p.Responses {
		if r.StepID == "" {
			fields[fmt.Sprintf("responses[%d].step_id", i)] = "required"
		}
	}
	if p.FormOfAddress != "" && p.FormOfAddress != AddressDu && p.FormOfAddress != AddressSie {
		fields["form_of_address"] = "must be du or sie"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// PendingRecord is a single-use, time-boxed handoff of an unauthenticated
// user's answers. At most one active (unconsumed, unexpired) record exists
// per email; consumption is guarded by a conditional write on ConsumedAt.
type PendingRecord struct {
	Token      string         `json:"token"`
	Email      string         `json:"email"`
	Payload    PendingPayload `json:"payload"`
	ExpiresAt  time.Time      `json:"expires_at"`
	ConsumedAt *time.Time     `json:"consumed_at,omitempty"`
	ConsumedBy string         `json:"consumed_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Active reports whether the record is still redeemable at the given time.
func (r PendingRecord) Active(now time.Time) bool {
	return r.ConsumedAt == nil && now.Before(r.ExpiresAt)
}
