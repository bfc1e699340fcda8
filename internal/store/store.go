// Package store provides persistence for onboarding answers, pending
// registration records and the user destination tables.
package store

import (
	"context"
	"time"

	"github.com/patabrava/nality-sub002/internal/model"
)

// AnswerStore covers the raw-answer lifecycle used by the conversion
// pipeline: answers are created once and mutated only by marking them
// extracted, which is the pipeline's idempotency guard.
type AnswerStore interface {
	CreateAnswer(ctx context.Context, a model.OnboardingAnswer) (*model.OnboardingAnswer, error)
	// ListAnswers returns a user's answers in creation order.
	ListAnswers(ctx context.Context, userID string) ([]model.OnboardingAnswer, error)
	MarkAnswerExtracted(ctx context.Context, answerID string, dest model.Destination, at time.Time) error
}

// PendingStore covers the single-use pending registration records.
type PendingStore interface {
	CreatePending(ctx context.Context, rec model.PendingRecord) error
	// GetPending returns nil without error when no record has the token.
	GetPending(ctx context.Context, token string) (*model.PendingRecord, error)
	// ExpireActivePending consumes every currently-active record for an
	// email and reports how many it touched.
	ExpireActivePending(ctx context.Context, email string, at time.Time) (int64, error)
	// ConsumePending marks a record consumed under a guard that it is not
	// consumed yet. Exactly one of two racing calls sees true.
	ConsumePending(ctx context.Context, token, userID string, at time.Time) (bool, error)
}

// UserStore covers the destination tables conversion and finalize write to.
type UserStore interface {
	// UpdateUserIdentity merges non-empty extracted fields onto the user
	// row, creating it if needed.
	UpdateUserIdentity(ctx context.Context, userID string, id model.ExtractedIdentity, birth model.ExtractedBirthData) error
	AppendProfileEntry(ctx context.Context, e model.ProfileEntry) error
	CreateLifeEvents(ctx context.Context, events []model.LifeEvent) error
	CompleteUserOnboarding(ctx context.Context, userID string, c model.UserCompletion) error
	// GetUser returns the public projection of a user record; the private
	// onboarding payload is never part of it.
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Store is the full persistence interface for the onboarding pipeline.
type Store interface {
	AnswerStore
	PendingStore
	UserStore

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
