// Package model defines the domain types for the alternate onboarding pipeline.
package model

// Path identifies one of the three fixed branches through the questionnaire.
type Path string

const (
	PathA Path = "A"
	PathB Path = "B"
	PathC Path = "C"
)

// StepKind types a step by the shape of answer it accepts.
type StepKind string

const (
	StepInfo         StepKind = "info"
	StepSingle       StepKind = "single"
	StepMulti        StepKind = "multi"
	StepDecision     StepKind = "decision"
	StepDemographics StepKind = "demographics"
)

// DemographicField declares one input field of a demographics step.
type DemographicField struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Multi bool   `json:"multi,omitempty" yaml:"multi,omitempty"`
}

// Step is one question/screen within a path. Steps are immutable and
// defined at build time; each belongs to exactly one path.
type Step struct {
	ID      string             `json:"id" yaml:"id"`
	Kind    StepKind           `json:"kind" yaml:"kind"`
	Topic   string             `json:"topic,omitempty" yaml:"topic,omitempty"`
	Prompt  string             `json:"prompt" yaml:"prompt"`
	Choices []string           `json:"choices,omitempty" yaml:"choices,omitempty"`
	Fields  []DemographicField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Stage names a state of the onboarding state machine.
type Stage string

const (
	StageEntry        Stage = "entry"
	StagePath         Stage = "path"
	StageNeutral      Stage = "neutral"
	StageRegistration Stage = "registration"
	StageCompleted    Stage = "completed"
)

// RegistrationSource tags how the registration stage was entered, which
// determines where back-navigation from registration lands.
type RegistrationSource string

const (
	SourcePath    RegistrationSource = "path"
	SourceNeutral RegistrationSource = "neutral"
)

// Location is a resolved position in the onboarding state machine.
type Location struct {
	Stage  Stage              `json:"stage"`
	Path   Path               `json:"path,omitempty"`
	StepID string             `json:"step_id,omitempty"`
	Source RegistrationSource `json:"source,omitempty"`
}
