package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patabrava/nality-sub002/internal/model"
)

func mustStep(t *testing.T, p model.Path, id string) model.Step {
	t.Helper()
	s, ok := StepByID(p, id)
	require.True(t, ok, "step %s/%s", p, id)
	return s
}

func TestIsStepResponseValid(t *testing.T) {
	infoStep := mustStep(t, model.PathA, "A1")
	singleStep := mustStep(t, model.PathA, "A2")
	multiStep := mustStep(t, model.PathA, "A3")
	decisionStep := mustStep(t, model.PathA, "A4")
	demoStep := mustStep(t, model.PathB, "B5")

	tests := []struct {
		name  string
		step  model.Step
		value model.AnswerValue
		want  bool
	}{
		{"info always valid", infoStep, model.AnswerValue{}, true},
		{"single with choice", singleStep, model.SingleAnswer("du"), true},
		{"single blank", singleStep, model.SingleAnswer("  "), false},
		{"multi with choices", multiStep, model.MultiAnswer("familie", "beruf"), true},
		{"multi empty", multiStep, model.MultiAnswer(), false},
		{"decision with choice", decisionStep, model.SingleAnswer(ChoiceRegister), true},
		{"decision blank", decisionStep, model.AnswerValue{}, false},
		{
			"demographics complete",
			demoStep,
			model.DemographicsAnswer(map[string]model.FieldValue{
				"birth_year":  {Value: "1993"},
				"birth_place": {Value: "Berlin"},
				"languages":   {Values: []string{"deutsch", "englisch"}},
			}),
			true,
		},
		{
			"demographics missing field",
			demoStep,
			model.DemographicsAnswer(map[string]model.FieldValue{
				"birth_year": {Value: "1993"},
			}),
			false,
		},
		{
			"demographics multi field needs values",
			demoStep,
			model.DemographicsAnswer(map[string]model.FieldValue{
				"birth_year":  {Value: "1993"},
				"birth_place": {Value: "Berlin"},
				"languages":   {Value: "deutsch"},
			}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStepResponseValid(tt.step, tt.value))
		})
	}
}

func TestIsStepResponseValid_VacuousDemographics(t *testing.T) {
	step := model.Step{ID: "X1", Kind: model.StepDemographics}
	assert.True(t, IsStepResponseValid(step, model.AnswerValue{}))
}

func TestResolveNextLocation_DefaultAdvance(t *testing.T) {
	loc := ResolveNextLocation(model.PathA, "A1", model.AnswerValue{})
	assert.Equal(t, model.StagePath, loc.Stage)
	assert.Equal(t, "A2", loc.StepID)

	loc = ResolveNextLocation(model.PathB, "B4", model.SingleAnswer(ChoiceContinue))
	assert.Equal(t, model.StagePath, loc.Stage)
	assert.Equal(t, "B5", loc.StepID)
}

func TestResolveNextLocation_NeutralDiversions(t *testing.T) {
	loc := ResolveNextLocation(model.PathA, "A4", model.SingleAnswer(ChoiceStartStorytelling))
	assert.Equal(t, model.StageNeutral, loc.Stage)
	assert.Equal(t, model.PathA, loc.Path)

	loc = ResolveNextLocation(model.PathB, "B4", model.SingleAnswer(ChoiceJumpToNeutral))
	assert.Equal(t, model.StageNeutral, loc.Stage)

	// The same choice string on the wrong step advances normally.
	loc = ResolveNextLocation(model.PathB, "B2", model.SingleAnswer(ChoiceJumpToNeutral))
	assert.Equal(t, model.StagePath, loc.Stage)
	assert.Equal(t, "B3", loc.StepID)
}

func TestResolveNextLocation_PastLastStep(t *testing.T) {
	loc := ResolveNextLocation(model.PathA, "A4", model.SingleAnswer(ChoiceRegister))
	assert.Equal(t, model.StageRegistration, loc.Stage)
	assert.Equal(t, model.SourcePath, loc.Source)

	loc = ResolveNextLocation(model.PathC, "C2", model.SingleAnswer(ChoiceRegister))
	assert.Equal(t, model.StageRegistration, loc.Stage)
}

func TestResolveBackStepID(t *testing.T) {
	assert.Equal(t, "", ResolveBackStepID(model.PathA, "A1"))
	assert.Equal(t, "A1", ResolveBackStepID(model.PathA, "A2"))
	assert.Equal(t, "B4", ResolveBackStepID(model.PathB, "B5"))
	assert.Equal(t, "", ResolveBackStepID(model.PathA, "unknown"))
}

func TestNeutralReturnStepID(t *testing.T) {
	assert.Equal(t, "A4", NeutralReturnStepID(model.PathA))
	assert.Equal(t, "B4", NeutralReturnStepID(model.PathB))
	assert.Equal(t, "C2", NeutralReturnStepID(model.PathC))
}

func TestRegistrationBackTarget(t *testing.T) {
	loc := RegistrationBackTarget(model.PathA, model.SourceNeutral)
	assert.Equal(t, model.StageNeutral, loc.Stage)

	loc = RegistrationBackTarget(model.PathB, model.SourcePath)
	assert.Equal(t, model.StagePath, loc.Stage)
	assert.Equal(t, "B5", loc.StepID)
}

func TestPathSteps_UniqueIDs(t *testing.T) {
	for _, p := range []model.Path{model.PathA, model.PathB, model.PathC} {
		seen := map[string]bool{}
		for _, s := range PathSteps(p) {
			require.False(t, seen[s.ID], "duplicate step id %s in path %s", s.ID, p)
			seen[s.ID] = true
		}
	}
}
