package model

import "time"

// FormOfAddress is the user's preferred address style (informal/formal).
type FormOfAddress string

const (
	AddressDu  FormOfAddress = "du"
	AddressSie FormOfAddress = "sie"
)

// LanguageStyle is the user's preferred narration style.
type LanguageStyle string

const (
	StyleProsa    LanguageStyle = "prosa"
	StyleFachlich LanguageStyle = "fachlich"
	StyleLocker   LanguageStyle = "locker"
)

// ExtractedIdentity holds identity fields parsed from free text.
// Zero-valued fields mean the corresponding cue was absent.
type ExtractedIdentity struct {
	FormOfAddress FormOfAddress `json:"form_of_address,omitempty"`
	LanguageStyle LanguageStyle `json:"language_style,omitempty"`
	FullName      string        `json:"full_name,omitempty"`
}

// Empty reports whether no identity field was extracted.
func (e ExtractedIdentity) Empty() bool {
	return e.FormOfAddress == "" && e.LanguageStyle == "" && e.FullName == ""
}

// ExtractedBirthData holds birth fields parsed from free text.
// BirthDate, when set, is an ISO-8601 date (YYYY-MM-DD).
type ExtractedBirthData struct {
	BirthDate  string `json:"birth_date,omitempty"`
	BirthPlace string `json:"birth_place,omitempty"`
}

// Empty reports whether no birth field was extracted.
func (e ExtractedBirthData) Empty() bool {
	return e.BirthDate == "" && e.BirthPlace == ""
}

// LifeEvent is one durable timeline event produced by the event splitter.
type LifeEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	Category    string    `json:"category,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileEntry is one free-text note appended to the user's profile.
type ProfileEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// UserCompletion is the merged result written onto the user record when
// onboarding finalizes. PrivatePayload captures the full original answers
// and must never be exposed through any public read path.
type UserCompletion struct {
	FullName       string        `json:"full_name"`
	FormOfAddress  FormOfAddress `json:"form_of_address"`
	CompletedAt    time.Time     `json:"completed_at"`
	PrivatePayload []byte        `json:"-"`
}

// User is the public projection of a user destination record. It
// deliberately has no field for the private onboarding payload.
type User struct {
	ID                    string        `json:"id"`
	Email                 string        `json:"email,omitempty"`
	FullName              string        `json:"full_name,omitempty"`
	FormOfAddress         FormOfAddress `json:"form_of_address,omitempty"`
	LanguageStyle         LanguageStyle `json:"language_style,omitempty"`
	BirthDate             string        `json:"birth_date,omitempty"`
	BirthPlace            string        `json:"birth_place,omitempty"`
	OnboardingComplete    bool          `json:"onboarding_complete"`
	OnboardingCompletedAt *time.Time    `json:"onboarding_completed_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}
