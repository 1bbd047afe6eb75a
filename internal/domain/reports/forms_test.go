package reports

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
)

func TestKnownFields_EverySpecialtyHasEightKeys(t *testing.T) {
	for _, s := range identity.Specialties {
		fields, err := KnownFields(s)
		require.NoError(t, err, s)
		assert.Len(t, fields, 8, s)
		assert.Equal(t, "motivoConsulta", fields[0].Key, s)
	}

	_, err := KnownFields("odontologia")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestNewTechnicalReport_SetsFields(t *testing.T) {
	tech, err := NewTechnicalReport(identity.Kinesiology, map[string]string{
		"motivoConsulta": "Marcha en puntas de pie",
		"marcha":         "Apoyo en antepié bilateral",
	})
	require.NoError(t, err)

	form, ok := tech.Form.(*KinesiologyForm)
	require.True(t, ok, "expected *KinesiologyForm, got %T", tech.Form)
	assert.Equal(t, "Marcha en puntas de pie", form.MotivoConsulta)
	assert.Equal(t, "Apoyo en antepié bilateral", form.Marcha)
	assert.Equal(t, identity.Kinesiology, tech.Specialty())
	assert.Equal(t, "Apoyo en antepié bilateral", tech.Get("marcha"))
	assert.Equal(t, "", tech.Get("tonoMuscular"))
}

func TestNewTechnicalReport_RejectsUnknownKeys(t *testing.T) {
	_, err := NewTechnicalReport(identity.Psychology, map[string]string{
		"motivoConsulta": "x",
		"articulacion":   "belongs to speech therapy",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "articulacion")
}

func TestTechnicalReport_JSON(t *testing.T) {
	tech, err := NewTechnicalReport(identity.ChildNeurology, map[string]string{
		"diagnostico": "TEA nivel 1",
		"medicacion":  "Ninguna",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(tech)
	require.NoError(t, err)

	var decoded TechnicalReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, tech.Fields(), decoded.Fields())
	assert.Equal(t, identity.ChildNeurology, decoded.Specialty())
}

func TestTechnicalReport_JSONAcceptsDisplayName(t *testing.T) {
	var tech TechnicalReport
	err := json.Unmarshal([]byte(`{"specialty":"Fonoaudiología","fields":{"motivoConsulta":"Tartamudez"}}`), &tech)
	require.NoError(t, err)
	assert.Equal(t, identity.SpeechTherapy, tech.Specialty())
	assert.Equal(t, "Tartamudez", tech.Get("motivoConsulta"))
}

func TestTechnicalReport_JSONRejects(t *testing.T) {
	cases := map[string]string{
		"unknown specialty": `{"specialty":"odontologia","fields":{}}`,
		"unknown field":     `{"specialty":"psicologia","fields":{"marcha":"x"}}`,
		"not an object":     `"psicologia"`,
	}
	for name, in := range cases {
		var tech TechnicalReport
		assert.Error(t, json.Unmarshal([]byte(in), &tech), name)
	}
}

func TestTechnicalReport_NullIsZero(t *testing.T) {
	var tech TechnicalReport
	require.NoError(t, json.Unmarshal([]byte(`null`), &tech))
	assert.True(t, tech.IsZero())
	assert.Empty(t, tech.Fields())

	raw, err := json.Marshal(tech)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}
