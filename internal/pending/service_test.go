package pending

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patabrava/nality-sub002/internal/model"
)

// memStore is an in-memory Store mirroring the conditional-consume
// semantics of the real backends.
type memStore struct {
	records     map[string]*model.PendingRecord
	completions map[string]model.UserCompletion
	consumeErr  error
}

func newMemStore() *memStore {
	return &memStore{
		records:     map[string]*model.PendingRecord{},
		completions: map[string]model.UserCompletion{},
	}
}

func (s *memStore) CreatePending(ctx context.Context, rec model.PendingRecord) error {
	r := rec
	s.records[rec.Token] = &r
	return nil
}

func (s *memStore) GetPending(ctx context.Context, token string) (*model.PendingRecord, error) {
	r, ok := s.records[token]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ExpireActivePending(ctx context.Context, email string, at time.Time) (int64, error) {
	var n int64
	for _, r := range s.records {
		if r.Email == email && r.ConsumedAt == nil {
			t := at
			r.ConsumedAt = &t
			n++
		}
	}
	return n, nil
}

func (s *memStore) ConsumePending(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	if s.consumeErr != nil {
		return false, s.consumeErr
	}
	r, ok := s.records[token]
	if !ok || r.ConsumedAt != nil {
		return false, nil
	}
	t := at
	r.ConsumedAt = &t
	r.ConsumedBy = userID
	return true, nil
}

func (s *memStore) CompleteUserOnboarding(ctx context.Context, userID string, c model.UserCompletion) error {
	s.completions[userID] = c
	return nil
}

func testPayload() model.PendingPayload {
	return model.PendingPayload{
		Registration: model.RegistrationDraft{
			Email:     "Max@Example.com",
			FirstName: "Max",
			LastName:  "Mustermann",
		},
		FormOfAddress: model.AddressDu,
		Path:          model.PathA,
		Responses: []model.StepResponse{
			{StepID: "A2", Value: model.SingleAnswer("du")},
		},
	}
}

func newTestService(st Store) *Service {
	return NewService(st, DefaultTTL)
}

func TestIssue_NormalizesEmailAndSetsExpiry(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	res, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	rec := st.records[res.Token]
	require.NotNil(t, rec)
	assert.Equal(t, "max@example.com", rec.Email)
	assert.Equal(t, "max@example.com", rec.Payload.Registration.Email)
	assert.WithinDuration(t, time.Now().UTC().Add(DefaultTTL), res.ExpiresAt, time.Minute)
}

func TestIssue_ExpiresPriorActiveRecords(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	first, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	assert.NotNil(t, st.records[first.Token].ConsumedAt, "older record must be expired")
	assert.Nil(t, st.records[second.Token].ConsumedAt)
}

func TestIssue_RejectsInvalidPayload(t *testing.T) {
	svc := newTestService(newMemStore())

	p := testPayload()
	p.Registration.Email = "not-an-email"

	_, err := svc.Issue(context.Background(), p)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "registration.email")
}

func TestFinalize_WithToken(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	res, err := svc.Finalize(context.Background(), FinalizeRequest{
		UserID:       "u1",
		UserEmail:    "max@example.com",
		PendingToken: issued.Token,
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.False(t, res.CompletedAt.IsZero())

	c, ok := st.completions["u1"]
	require.True(t, ok)
	assert.Equal(t, "Max Mustermann", c.FullName)
	assert.Equal(t, model.AddressDu, c.FormOfAddress)

	rec := st.records[issued.Token]
	assert.NotNil(t, rec.ConsumedAt)
	assert.Equal(t, "u1", rec.ConsumedBy)
}

func TestFinalize_TokenSingleUse(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", PendingToken: issued.Token})
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), FinalizeRequest{UserID: "u2", PendingToken: issued.Token})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestFinalize_UnknownToken(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", PendingToken: "nope"})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestFinalize_ExpiredToken(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)
	st.records[issued.Token].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err = svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", PendingToken: issued.Token})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestFinalize_EmailMismatch(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), FinalizeRequest{
		UserID:       "u1",
		UserEmail:    "someone-else@example.com",
		PendingToken: issued.Token,
	})
	assert.ErrorIs(t, err, ErrAccountMismatch)
	assert.Empty(t, st.completions)
}

func TestFinalize_EmailMatchIsCaseInsensitive(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), FinalizeRequest{
		UserID:       "u1",
		UserEmail:    "MAX@EXAMPLE.COM",
		PendingToken: issued.Token,
	})
	assert.NoError(t, err)
}

func TestFinalize_AddressPreferenceResolution(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	// Request override beats the stored payload preference.
	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)
	_, err = svc.Finalize(context.Background(), FinalizeRequest{
		UserID:            "u1",
		PendingToken:      issued.Token,
		AddressPreference: model.AddressSie,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AddressSie, st.completions["u1"].FormOfAddress)

	// Neither override nor payload preference: refused.
	p := testPayload()
	p.FormOfAddress = ""
	_, err = svc.Finalize(context.Background(), FinalizeRequest{UserID: "u2", Direct: &p})
	assert.ErrorIs(t, err, ErrAddressPreferenceRequired)
}

func TestFinalize_DirectPayload(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	p := testPayload()
	res, err := svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", Direct: &p})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.Contains(t, st.completions, "u1")
}

func TestFinalize_DirectPayloadValidated(t *testing.T) {
	svc := newTestService(newMemStore())

	p := testPayload()
	p.Responses = nil
	_, err := svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", Direct: &p})
	var ve *model.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestFinalize_RequiresUserAndSource(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Finalize(context.Background(), FinalizeRequest{PendingToken: "t"})
	assert.Error(t, err)

	_, err = svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1"})
	assert.Error(t, err)
}

func TestFinalize_ConsumeGuardLossDoesNotFail(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	// A consume failure after the user write is logged, not surfaced.
	st.consumeErr = assert.AnError

	res, err := svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", PendingToken: issued.Token})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Contains(t, st.completions, "u1")
}

func TestFinalize_PrivatePayloadCarriesAnswers(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)

	issued, err := svc.Issue(context.Background(), testPayload())
	require.NoError(t, err)

	res, err := svc.Finalize(context.Background(), FinalizeRequest{UserID: "u1", PendingToken: issued.Token})
	require.NoError(t, err)

	var stored model.PendingPayload
	require.NoError(t, json.Unmarshal(st.completions["u1"].PrivatePayload, &stored))
	assert.Equal(t, "max@example.com", stored.Registration.Email)
	require.Len(t, stored.Responses, 1)

	// The finalize result never echoes the payload.
	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(out), "responses"))
	assert.False(t, strings.Contains(string(out), "max@example.com"))
}
