// Package flow defines the branching questionnaire graph and the pure
// navigation and validation rules over it.
package flow

import "github.com/patabrava/nality-sub002/internal/model"

// Designated decision choices that divert navigation off the default
// fixed-order advance.
const (
	// ChoiceStartStorytelling on A4 diverts to the neutral storytelling
	// block instead of registration.
	ChoiceStartStorytelling = "erzaehlung_starten"
	// ChoiceJumpToNeutral on B4 diverts to the neutral block.
	ChoiceJumpToNeutral = "neutral_erzaehlen"
	// ChoiceRegister is the plain continue-to-registration decision.
	ChoiceRegister = "registrieren"
	// ChoiceContinue advances to the next step of the path.
	ChoiceContinue = "weiter"
)

// pathA is the guided timeline path.
var pathA = []model.Step{
	{
		ID:     "A1",
		Kind:   model.StepInfo,
		Prompt: "Willkommen bei Nality. Wir begleiten dich Schritt für Schritt durch deine Lebensgeschichte.",
	},
	{
		ID:      "A2",
		Kind:    model.StepSingle,
		Topic:   "identity",
		Prompt:  "Wie dürfen wir dich ansprechen?",
		Choices: []string{"du", "sie"},
	},
	{
		ID:      "A3",
		Kind:    model.StepMulti,
		Topic:   "influences",
		Prompt:  "Welche Lebensbereiche sind dir am wichtigsten?",
		Choices: []string{"familie", "beruf", "bildung", "werte", "herkunft"},
	},
	{
		ID:      "A4",
		Kind:    model.StepDecision,
		Prompt:  "Wie möchtest du weitermachen?",
		Choices: []string{ChoiceRegister, ChoiceStartStorytelling},
	},
}

// pathB is the exploratory path.
var pathB = []model.Step{
	{
		ID:     "B1",
		Kind:   model.StepInfo,
		Prompt: "Schön, dass du da bist. Lass uns mit ein paar Fragen zu deiner Geschichte beginnen.",
	},
	{
		ID:      "B2",
		Kind:    model.StepSingle,
		Topic:   "origins",
		Prompt:  "Wo liegen deine Wurzeln?",
		Choices: []string{"hier_geboren", "zugezogen", "eingewandert", "viel_umgezogen"},
	},
	{
		ID:      "B3",
		Kind:    model.StepMulti,
		Topic:   "values",
		Prompt:  "Welche Werte haben dein Leben geprägt?",
		Choices: []string{"ehrlichkeit", "freiheit", "familie", "bildung", "glaube", "mut"},
	},
	{
		ID:      "B4",
		Kind:    model.StepDecision,
		Prompt:  "Möchtest du weiter Fragen beantworten oder frei erzählen?",
		Choices: []string{ChoiceContinue, ChoiceJumpToNeutral},
	},
	{
		ID:     "B5",
		Kind:   model.StepDemographics,
		Topic:  "origins",
		Prompt: "Noch ein paar Angaben zu dir.",
		Fields: []model.DemographicField{
			{ID: "birth_year", Label: "Geburtsjahr"},
			{ID: "birth_place", Label: "Geburtsort"},
			{ID: "languages", Label: "Sprachen", Multi: true},
		},
	},
}

// pathC is the fast path.
var pathC = []model.Step{
	{
		ID:     "C1",
		Kind:   model.StepDemographics,
		Topic:  "identity",
		Prompt: "Die wichtigsten Angaben zu deiner Person.",
		Fields: []model.DemographicField{
			{ID: "name", Label: "Name"},
			{ID: "birth_year", Label: "Geburtsjahr"},
		},
	},
	{
		ID:      "C2",
		Kind:    model.StepDecision,
		Prompt:  "Bereit, dein Konto anzulegen?",
		Choices: []string{ChoiceRegister},
	},
}

var paths = map[model.Path][]model.Step{
	model.PathA: pathA,
	model.PathB: pathB,
	model.PathC: pathC,
}

// neutralReturnSteps anchors where each path resumes after a detour
// through the neutral storytelling block.
var neutralReturnSteps = map[model.Path]string{
	model.PathA: "A4",
	model.PathB: "B4",
	model.PathC: "C2",
}

// PathSteps returns the fixed ordered step list of a path.
func PathSteps(p model.Path) []model.Step {
	return paths[p]
}

// StepByID looks up a step within a path.
func StepByID(p model.Path, stepID string) (model.Step, bool) {
	for _, s := range paths[p] {
		if s.ID == stepID {
			return s, true
		}
	}
	return model.Step{}, false
}

// stepIndex returns the position of a step in its path, or -1.
func stepIndex(p model.Path, stepID string) int {
	for i, s := range paths[p] {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}
