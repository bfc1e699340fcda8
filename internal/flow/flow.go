package flow

import (
	"strings"

	"github.com/patabrava/nality-sub002/internal/model"
)

// IsStepResponseValid reports whether a value satisfies a step's answer
// shape. Info steps are always valid. Single and decision steps require a
// non-empty trimmed string. Multi steps require a non-empty set.
// Demographics steps require every declared field to carry a value; a
// demographics step declaring no fields is vacuously valid.
func IsStepResponseValid(step model.Step, v model.AnswerValue) bool {
	switch step.Kind {
	case model.StepInfo:
		return true
	case model.StepSingle, model.StepDecision:
		return strings.TrimSpace(v.Choice) != ""
	case model.StepMulti:
		return len(v.Choices) > 0
	case model.StepDemographics:
		for _, f := range step.Fields {
			fv, ok := v.Fields[f.ID]
			if !ok || fv.Empty() {
				return false
			}
			if f.Multi && len(fv.Values) == 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ResolveNextLocation computes where the flow goes after answering a step.
// The default is the next step in the path's fixed order; past the last
// step the flow enters registration with source "path". A4's storytelling
// choice and B4's neutral-jump choice divert to the neutral stage instead.
func ResolveNextLocation(p model.Path, stepID string, v model.AnswerValue) model.Location {
	switch {
	case p == model.PathA && stepID == "A4" && v.Choice == ChoiceStartStorytelling:
		return model.Location{Stage: model.StageNeutral, Path: p}
	case p == model.PathB && stepID == "B4" && v.Choice == ChoiceJumpToNeutral:
		return model.Location{Stage: model.StageNeutral, Path: p}
	}

	idx := stepIndex(p, stepID)
	steps := paths[p]
	if idx >= 0 && idx+1 < len(steps) {
		return model.Location{Stage: model.StagePath, Path: p, StepID: steps[idx+1].ID}
	}
	return model.Location{Stage: model.StageRegistration, Path: p, Source: model.SourcePath}
}

// ResolveBackStepID returns the previous step id in the path's fixed
// order, or "" when already at the first step.
func ResolveBackStepID(p model.Path, stepID string) string {
	idx := stepIndex(p, stepID)
	if idx <= 0 {
		return ""
	}
	return paths[p][idx-1].ID
}

// NeutralReturnStepID is the anchor step a user resumes at when returning
// from the neutral storytelling block to their path.
func NeutralReturnStepID(p model.Path) string {
	return neutralReturnSteps[p]
}

// RegistrationBackTarget resolves back-navigation out of the registration
// stage. Entered via the neutral detour it returns to the neutral stage;
// otherwise it returns to the path at its registration anchor step.
func RegistrationBackTarget(p model.Path, source model.RegistrationSource) model.Location {
	if source == model.SourceNeutral {
		return model.Location{Stage: model.StageNeutral, Path: p}
	}
	steps := paths[p]
	anchor := ""
	if len(steps) > 0 {
		anchor = steps[len(steps)-1].ID
	}
	return model.Location{Stage: model.StagePath, Path: p, StepID: anchor}
}
