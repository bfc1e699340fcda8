package flow

import (
	"strings"

	"github.com/patabrava/nality-sub002/internal/model"
)

// ToggleMultiValue returns a new multi answer with the option added if
// absent or removed if present. The input value is not mutated.
func ToggleMultiValue(v model.AnswerValue, option string) model.AnswerValue {
	out := model.AnswerValue{Kind: model.AnswerMulti}
	found := false
	for _, c := range v.Choices {
		if c == option {
			found = true
			continue
		}
		out.Choices = append(out.Choices, c)
	}
	if !found {
		out.Choices = append(out.Choices, option)
	}
	return out
}

// UpdateDemographicValue returns a new demographics answer with one field
// replaced, preserving all other fields. The input value is not mutated.
func UpdateDemographicValue(v model.AnswerValue, fieldID string, fv model.FieldValue) model.AnswerValue {
	fields := make(map[string]model.FieldValue, len(v.Fields)+1)
	for k, val := range v.Fields {
		fields[k] = val
	}
	fields[fieldID] = fv
	return model.AnswerValue{Kind: model.AnswerDemographics, Fields: fields}
}

// HasAnsweredSelection reports whether any value is non-empty: the single
// choice, any set member, or any demographic field. Used to gate
// can-advance UI state, not persistence.
func HasAnsweredSelection(v model.AnswerValue) bool {
	if strings.TrimSpace(v.Choice) != "" {
		return true
	}
	if len(v.Choices) > 0 {
		return true
	}
	for _, fv := range v.Fields {
		if !fv.Empty() {
			return true
		}
	}
	return false
}
