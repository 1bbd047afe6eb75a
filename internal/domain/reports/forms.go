package reports

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
)

// field is one named free-text entry of a technical form.
type field struct {
	Key   string
	Label string
	Value *string
}

// TechnicalForm is the specialty-specific body of a technical report. The
// set of implementations is closed: one per specialty.
type TechnicalForm interface {
	Specialty() identity.Specialty
	fields() []field
}

type PsychologyForm struct {
	MotivoConsulta        string
	Antecedentes          string
	ObservacionConducta   string
	EvaluacionEmocional   string
	TecnicasAplicadas     string
	ImpresionDiagnostica  string
	ObjetivosTerapeuticos string
	Recomendaciones       string
}

func (f *PsychologyForm) Specialty() identity.Specialty { return identity.Psychology }

func (f *PsychologyForm) fields() []field {
	return []field{
		{"motivoConsulta", "Motivo de consulta", &f.MotivoConsulta},
		{"antecedentes", "Antecedentes", &f.Antecedentes},
		{"observacionConducta", "Observación de conducta", &f.ObservacionConducta},
		{"evaluacionEmocional", "Evaluación emocional", &f.EvaluacionEmocional},
		{"tecnicasAplicadas", "Técnicas aplicadas", &f.TecnicasAplicadas},
		{"impresionDiagnostica", "Impresión diagnóstica", &f.ImpresionDiagnostica},
		{"objetivosTerapeuticos", "Objetivos terapéuticos", &f.ObjetivosTerapeuticos},
		{"recomendaciones", "Recomendaciones", &f.Recomendaciones},
	}
}

type PsychopedagogyForm struct {
	MotivoConsulta         string
	DesempenoEscolar       string
	ProcesosCognitivos     string
	Lectoescritura         string
	Matematica             string
	AtencionMemoria        string
	EstrategiasAprendizaje string
	RecomendacionesEscuela string
}

func (f *PsychopedagogyForm) Specialty() identity.Specialty { return identity.Psychopedagogy }

func (f *PsychopedagogyForm) fields() []field {
	return []field{
		{"motivoConsulta", "Motivo de consulta", &f.MotivoConsulta},
		{"desempenoEscolar", "Desempeño escolar", &f.DesempenoEscolar},
		{"procesosCognitivos", "Procesos cognitivos", &f.ProcesosCognitivos},
		{"lectoescritura", "Lectoescritura", &f.Lectoescritura},
		{"matematica", "Matemática", &f.Matematica},
		{"atencionMemoria", "Atención y memoria", &f.AtencionMemoria},
		{"estrategiasAprendizaje", "Estrategias de aprendizaje", &f.EstrategiasAprendizaje},
		{"recomendacionesEscuela", "Recomendaciones para la escuela", &f.RecomendacionesEscuela},
	}
}

type SpeechTherapyForm struct {
	MotivoConsulta        string
	LenguajeComprensivo   string
	LenguajeExpresivo     string
	Articulacion          string
	Fluidez               string
	ComunicacionSocial    string
	AlimentacionDeglucion string
	PlanTratamiento       string
}

func (f *SpeechTherapyForm) Specialty() identity.Specialty { return identity.SpeechTherapy }

func (f *SpeechTherapyForm) fields() []field {
	return []field{
		{"motivoConsulta", "Motivo de consulta", &f.MotivoConsulta},
		{"lenguajeComprensivo", "Lenguaje comprensivo", &f.LenguajeComprensivo},
		{"lenguajeExpresivo", "Lenguaje expresivo", &f.LenguajeExpresivo},
		{"articulacion", "Articulación", &f.Articulacion},
		{"fluidez", "Fluidez", &f.Fluidez},
		{"comunicacionSocial", "Comunicación social", &f.ComunicacionSocial},
		{"alimentacionDeglucion", "Alimentación y deglución", &f.AlimentacionDeglucion},
		{"planTratamiento", "Plan de tratamiento", &f.PlanTratamiento},
	}
}

type KinesiologyForm struct {
	MotivoConsulta         string
	EvaluacionPostural     string
	TonoMuscular           string
	MotricidadGruesa       string
	MotricidadFina         string
	EquilibrioCoordinacion string
	Marcha                 string
	PlanTratamiento        string
}

func (f *KinesiologyForm) Specialty() identity.Specialty { return identity.Kinesiology }

func (f *KinesiologyForm) fields() []field {
	return []field{
		{"motivoConsulta", "Motivo de consulta", &f.MotivoConsulta},
		{"evaluacionPostural", "Evaluación postural", &f.EvaluacionPostural},
		{"tonoMuscular", "Tono muscular", &f.TonoMuscular},
		{"motricidadGruesa", "Motricidad gruesa", &f.MotricidadGruesa},
		{"motricidadFina", "Motricidad fina", &f.MotricidadFina},
		{"equilibrioCoordinacion", "Equilibrio y coordinación", &f.EquilibrioCoordinacion},
		{"marcha", "Marcha", &f.Marcha},
		{"planTratamiento", "Plan de tratamiento", &f.PlanTratamiento},
	}
}

type ChildNeurologyForm struct {
	MotivoConsulta          string
	AntecedentesPerinatales string
	DesarrolloPsicomotor    string
	ExamenNeurologico       string
	EstudiosComplementarios string
	Diagnostico             string
	Medicacion              string
	Indicaciones            string
}

func (f *ChildNeurologyForm) Specialty() identity.Specialty { return identity.ChildNeurology }

func (f *ChildNeurologyForm) fields() []field {
	return []field{
		{"motivoConsulta", "Motivo de consulta", &f.MotivoConsulta},
		{"antecedentesPerinatales", "Antecedentes perinatales", &f.AntecedentesPerinatales},
		{"desarrolloPsicomotor", "Desarrollo psicomotor", &f.DesarrolloPsicomotor},
		{"examenNeurologico", "Examen neurológico", &f.ExamenNeurologico},
		{"estudiosComplementarios", "Estudios complementarios", &f.EstudiosComplementarios},
		{"diagnostico", "Diagnóstico", &f.Diagnostico},
		{"medicacion", "Medicación", &f.Medicacion},
		{"indicaciones", "Indicaciones", &f.Indicaciones},
	}
}

// newForm returns an empty form for s.
func newForm(s identity.Specialty) (TechnicalForm, error) {
	switch s {
	case identity.Psychology:
		return &PsychologyForm{}, nil
	case identity.Psychopedagogy:
		return &PsychopedagogyForm{}, nil
	case identity.SpeechTherapy:
		return &SpeechTherapyForm{}, nil
	case identity.Kinesiology:
		return &KinesiologyForm{}, nil
	case identity.ChildNeurology:
		return &ChildNeurologyForm{}, nil
	}
	return nil, apperr.Validation("unknown specialty %q", s)
}

// FieldInfo describes one key of a technical form.
type FieldInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// KnownFields lists the documented keys of the form for s, in form order.
func KnownFields(s identity.Specialty) ([]FieldInfo, error) {
	form, err := newForm(s)
	if err != nil {
		return nil, err
	}
	fs := form.fields()
	out := make([]FieldInfo, len(fs))
	for i, f := range fs {
		out[i] = FieldInfo{Key: f.Key, Label: f.Label}
	}
	return out, nil
}

// TechnicalReport holds the technical form of a report. Its JSON form is
// {"specialty": "...", "fields": {"key": "value", ...}}.
type TechnicalReport struct {
	Form TechnicalForm
}

// NewTechnicalReport builds the form for specialty from a flat field map.
// Keys outside the specialty's form are rejected.
func NewTechnicalReport(specialty identity.Specialty, values map[string]string) (TechnicalReport, error) {
	form, err := newForm(specialty)
	if err != nil {
		return TechnicalReport{}, err
	}
	byKey := make(map[string]*string)
	for _, f := range form.fields() {
		byKey[f.Key] = f.Value
	}
	var unknown []string
	for k, v := range values {
		dst, ok := byKey[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		*dst = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return TechnicalReport{}, apperr.Validation("unknown %s fields: %v", specialty, unknown)
	}
	return TechnicalReport{Form: form}, nil
}

// Specialty returns the form's specialty, or "" when no form is set.
func (t TechnicalReport) Specialty() identity.Specialty {
	if t.Form == nil {
		return ""
	}
	return t.Form.Specialty()
}

func (t TechnicalReport) IsZero() bool { return t.Form == nil }

// Fields returns the flat key to value view of the form.
func (t TechnicalReport) Fields() map[string]string {
	out := make(map[string]string)
	if t.Form == nil {
		return out
	}
	for _, f := range t.Form.fields() {
		out[f.Key] = *f.Value
	}
	return out
}

// Get returns the value stored under key.
func (t TechnicalReport) Get(key string) string {
	if t.Form == nil {
		return ""
	}
	for _, f := range t.Form.fields() {
		if f.Key == key {
			return *f.Value
		}
	}
	return ""
}

// Section is a labelled block of text in a rendered report.
type Section struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sections returns the form's fields in form order with their labels.
func (t TechnicalReport) Sections() []Section {
	if t.Form == nil {
		return nil
	}
	fs := t.Form.fields()
	out := make([]Section, len(fs))
	for i, f := range fs {
		out[i] = Section{Key: f.Key, Label: f.Label, Value: *f.Value}
	}
	return out
}

type technicalJSON struct {
	Specialty identity.Specialty `json:"specialty"`
	Fields    map[string]string  `json:"fields"`
}

func (t TechnicalReport) MarshalJSON() ([]byte, error) {
	if t.Form == nil {
		return []byte("null"), nil
	}
	return json.Marshal(technicalJSON{Specialty: t.Specialty(), Fields: t.Fields()})
}

func (t *TechnicalReport) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Form = nil
		return nil
	}
	var raw technicalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("technical report: %w", err)
	}
	s, err := identity.ParseSpecialty(string(raw.Specialty))
	if err != nil {
		return err
	}
	parsed, err := NewTechnicalReport(s, raw.Fields)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
