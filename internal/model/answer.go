package model

import (
	"strings"
	"time"
)

// AnswerKind discriminates the variants of AnswerValue.
type AnswerKind string

const (
	AnswerSingle       AnswerKind = "single"
	AnswerMulti        AnswerKind = "multi"
	AnswerDemographics AnswerKind = "demographics"
)

// FieldValue holds one demographics field answer: a single string for
// plain fields, a set of strings for multi-valued fields.
type FieldValue struct {
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Empty reports whether the field carries no usable value.
func (f FieldValue) Empty() bool {
	if len(f.Values) > 0 {
		return false
	}
	return strings.TrimSpace(f.Value) == ""
}

// AnswerValue is the tagged-variant answer for one step: a single string
// choice, a set of choices (order irrelevant), or a demographic map.
type AnswerValue struct {
	Kind    AnswerKind            `json:"kind"`
	Choice  string                `json:"choice,omitempty"`
	Choices []string              `json:"choices,omitempty"`
	Fields  map[string]FieldValue `json:"fields,omitempty"`
}

// SingleAnswer builds a single-choice answer value.
func SingleAnswer(choice string) AnswerValue {
	return AnswerValue{Kind: AnswerSingle, Choice: choice}
}

// MultiAnswer builds a set-valued answer value.
func MultiAnswer(choices ...string) AnswerValue {
	return AnswerValue{Kind: AnswerMulti, Choices: choices}
}

// DemographicsAnswer builds a demographics answer value.
func DemographicsAnswer(fields map[string]FieldValue) AnswerValue {
	return AnswerValue{Kind: AnswerDemographics, Fields: fields}
}

// OnboardingAnswer is one persisted raw answer. It is created when a step
// is answered and mutated only by the conversion pipeline, which sets
// Extracted, ExtractedAt and Destination exactly once.
type OnboardingAnswer struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	QuestionTopic string       `json:"question_topic"`
	AnswerText    string       `json:"answer_text"`
	Extracted     bool         `json:"extracted"`
	ExtractedAt   *time.Time   `json:"extracted_at,omitempty"`
	Destination   Destination  `json:"destination,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
