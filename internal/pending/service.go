// Package pending implements the deferred registration handoff: single-use,
// time-boxed tokens that carry an unauthenticated user's answers until
// their account exists.
package pending

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/patabrava/nality-sub002/internal/model"
)

// DefaultTTL is how long an issued pending record stays redeemable.
const DefaultTTL = 7 * 24 * time.Hour

// Token-lifecycle errors. Each maps to a distinct user-facing message and
// none is retried automatically.
var (
	ErrTokenInvalid              = eris.New("pending token invalid or already used")
	ErrTokenExpired              = eris.New("pending token expired")
	ErrPayloadInvalid            = eris.New("stored payload invalid")
	ErrAccountMismatch           = eris.New("pending token belongs to a different account")
	ErrAddressPreferenceRequired = eris.New("address preference required")
)

// Store is the persistence surface the handoff needs.
type Store interface {
	CreatePending(ctx context.Context, rec model.PendingRecord) error
	GetPending(ctx context.Context, token string) (*model.PendingRecord, error)
	ExpireActivePending(ctx context.Context, email string, at time.Time) (int64, error)
	ConsumePending(ctx context.Context, token, userID string, at time.Time) (bool, error)
	CompleteUserOnboarding(ctx context.Context, userID string, c model.UserCompletion) error
}

// Service issues and redeems pending registration records.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a Service. A non-positive ttl falls back to DefaultTTL.
func NewService(st Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: st, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// IssueResult is returned from Issue.
type IssueResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue validates the payload, expires every active pending record for
// the normalized email and inserts a fresh single-use record. At any
// instant at most one record per email is redeemable.
func (s *Service) Issue(ctx context.Context, payload model.PendingPayload) (*IssueResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Registration.Email))
	payload.Registration.Email = email
	now := s.now()

	expired, err := s.store.ExpireActivePending(ctx, email, now)
	if err != nil {
		return nil, eris.Wrapf(err, "pending: expire active for %s", email)
	}
	if expired > 0 {
		zap.L().Info("expired prior pending records",
			zap.String("email", email),
			zap.Int64("count", expired),
		)
	}

	rec := model.PendingRecord{
		Token:     uuid.New().String(),
		Email:     email,
		Payload:   payload,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreatePending(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "pending: create record")
	}

	return &IssueResult{Token: rec.Token, ExpiresAt: rec.ExpiresAt}, nil
}

// FinalizeRequest finalizes onboarding for an authenticated user, either
// from a direct payload or by redeeming a pending token.
type FinalizeRequest struct {
	UserID            string
	UserEmail         string
	PendingToken      string
	AddressPreference model.FormOfAddress
	Direct            *model.PendingPayload
}

// FinalizeResult is returned from Finalize. The private answer payload is
// deliberately absent.
type FinalizeResult struct {
	UserID      string    `json:"userId"`
	CompletedAt time.Time `json:"completedAt"`
}

// Finalize writes the merged onboarding result onto the user record and,
// when a pending token was used, consumes it exactly once. Losing the
// consume race after the user write succeeded is logged, not failed.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	if req.UserID == "" {
		return nil, eris.New("pending: user id required")
	}

	var payload model.PendingPayload
	switch {
	case req.PendingToken != "":
		rec, err := s.store.GetPending(ctx, req.PendingToken)
		if err != nil {
			return nil, eris.Wrap(err, "pending: lookup token")
		}
		if rec == nil || rec.ConsumedAt != nil {
			return nil, ErrTokenInvalid
		}
		now := s.now()
		if !rec.ExpiresAt.After(now) {
			return nil, ErrTokenExpired
		}
		if err := rec.Payload.Validate(); err != nil {
			return nil, eris.Wrap(ErrPayloadInvalid, err.Error())
		}
		if req.UserEmail != "" && rec.Email != "" &&
			!strings.EqualFold(strings.TrimSpace(req.UserEmail), rec.Email) {
			return nil, ErrAccountMismatch
		}
		payload = rec.Payload

	case req.Direct != nil:
		if err := req.Direct.Validate(); err != nil {
			return nil, err
		}
		payload = *req.Direct

	default:
		return nil, eris.New("pending: payload or token required")
	}

	pref := req.AddressPreference
	if pref == "" {
		pref = payload.FormOfAddress
	}
	if pref == "" {
		return nil, ErrAddressPreferenceRequired
	}

	privatePayload, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "pending: marshal private payload")
	}

	completedAt := s.now()
	completion := model.UserCompletion{
		FullName:       payload.Registration.DisplayName(),
		FormOfAddress:  pref,
		CompletedAt:    completedAt,
		PrivatePayload: privatePayload,
	}
	if err := s.store.CompleteUserOnboarding(ctx, req.UserID, completion); err != nil {
		return nil, eris.Wrapf(err, "pending: complete onboarding for %s", req.UserID)
	}

	if req.PendingToken != "" {
		consumed, err := s.store.ConsumePending(ctx, req.PendingToken, req.UserID, completedAt)
		if err != nil {
			zap.L().Error("pending consume failed after user write",
				zap.String("user_id", req.UserID),
				zap.Error(err),
			)
		} else if !consumed {
			zap.L().Warn("pending consume guard lost",
				zap.String("user_id", req.UserID),
			)
		}
	}

	return &FinalizeResult{UserID: req.UserID, CompletedAt: completedAt}, nil
}
