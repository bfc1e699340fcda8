package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patabrava/nality-sub002/internal/model"
)

func TestToggleMultiValue(t *testing.T) {
	v := model.MultiAnswer("familie")

	v2 := ToggleMultiValue(v, "beruf")
	assert.ElementsMatch(t, []string{"familie", "beruf"}, v2.Choices)

	v3 := ToggleMultiValue(v2, "familie")
	assert.Equal(t, []string{"beruf"}, v3.Choices)

	// Input is never mutated.
	assert.Equal(t, []string{"familie"}, v.Choices)
}

func TestToggleMultiValue_FromEmpty(t *testing.T) {
	v := ToggleMultiValue(model.AnswerValue{}, "werte")
	assert.Equal(t, model.AnswerMulti, v.Kind)
	assert.Equal(t, []string{"werte"}, v.Choices)
}

func TestUpdateDemographicValue(t *testing.T) {
	v := model.DemographicsAnswer(map[string]model.FieldValue{
		"birth_year": {Value: "1993"},
	})

	v2 := UpdateDemographicValue(v, "birth_place", model.FieldValue{Value: "Berlin"})
	assert.Equal(t, "1993", v2.Fields["birth_year"].Value)
	assert.Equal(t, "Berlin", v2.Fields["birth_place"].Value)

	v3 := UpdateDemographicValue(v2, "birth_year", model.FieldValue{Value: "1994"})
	assert.Equal(t, "1994", v3.Fields["birth_year"].Value)

	// Input is never mutated.
	assert.Equal(t, "1993", v.Fields["birth_year"].Value)
	assert.NotContains(t, v.Fields, "birth_place")
}

func TestHasAnsweredSelection(t *testing.T) {
	assert.False(t, HasAnsweredSelection(model.AnswerValue{}))
	assert.False(t, HasAnsweredSelection(model.SingleAnswer("   ")))
	assert.True(t, HasAnsweredSelection(model.SingleAnswer("du")))
	assert.True(t, HasAnsweredSelection(model.MultiAnswer("familie")))
	assert.False(t, HasAnsweredSelection(model.DemographicsAnswer(map[string]model.FieldValue{
		"birth_year": {},
	})))
	assert.True(t, HasAnsweredSelection(model.DemographicsAnswer(map[string]model.FieldValue{
		"birth_year": {Value: "1993"},
	})))
}
