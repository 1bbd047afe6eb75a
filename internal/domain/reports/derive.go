package reports

import (
	"fmt"
	"strings"
)

// Boilerplate used for general-report slots a technical form does not cover.
const (
	defaultFortalezas      = "Se muestra predispuesto/a al trabajo propuesto y establece un buen vínculo con el/la profesional."
	defaultRecomendaciones = "Sostener la asistencia regular a las sesiones y mantener una comunicación fluida con el equipo tratante."
	defaultActividades     = "Compartir momentos de juego y lectura en familia, respetando los tiempos del niño/a."
	defaultProximosPasos   = "Continuar con el tratamiento y realizar una nueva evaluación de seguimiento."
	defaultProgresos       = "Se observa una evolución acorde al proceso terapéutico iniciado."
	defaultAreas           = "Los objetivos de trabajo se definirán al completar la evaluación."
)

// DeriveGeneralReport maps a technical report onto the family-facing general
// report. Every derived slot overwrites the matching slot of current;
// ObservacionesAdicionales is always carried over unchanged.
func DeriveGeneralReport(tech TechnicalReport, current GeneralReport) GeneralReport {
	var out GeneralReport
	switch f := tech.Form.(type) {
	case *PsychologyForm:
		out = GeneralReport{
			SituacionActual:        situation("psicología", f.MotivoConsulta, f.EvaluacionEmocional),
			ProgresosObservados:    orDefault(f.ObservacionConducta, defaultProgresos),
			Fortalezas:             defaultFortalezas,
			AreasATrabajar:         orDefault(f.ObjetivosTerapeuticos, "Regulación emocional y habilidades sociales."),
			RecomendacionesFamilia: orDefault(f.Recomendaciones, defaultRecomendaciones),
			ActividadesCasa:        "Propiciar espacios de diálogo donde pueda expresar lo que siente, validando sus emociones.",
			ProximosPasos:          defaultProximosPasos,
		}
	case *PsychopedagogyForm:
		out = GeneralReport{
			SituacionActual:        situation("psicopedagogía", f.MotivoConsulta, f.DesempenoEscolar),
			ProgresosObservados:    orDefault(f.ProcesosCognitivos, defaultProgresos),
			Fortalezas:             orDefault(f.EstrategiasAprendizaje, defaultFortalezas),
			AreasATrabajar:         orDefault(joinNonEmpty(f.Lectoescritura, f.Matematica, f.AtencionMemoria), defaultAreas),
			RecomendacionesFamilia: orDefault(f.RecomendacionesEscuela, defaultRecomendaciones),
			ActividadesCasa:        "Acompañar las tareas escolares en un espacio tranquilo, con rutinas y tiempos breves de trabajo.",
			ProximosPasos:          "Coordinar acciones con la institución escolar y continuar con el tratamiento psicopedagógico.",
		}
	case *SpeechTherapyForm:
		out = GeneralReport{
			SituacionActual:        situation("fonoaudiología", f.MotivoConsulta, ""),
			ProgresosObservados:    orDefault(joinNonEmpty(f.LenguajeComprensivo, f.LenguajeExpresivo), defaultProgresos),
			Fortalezas:             orDefault(f.ComunicacionSocial, defaultFortalezas),
			AreasATrabajar:         orDefault(joinNonEmpty(f.Articulacion, f.Fluidez, f.AlimentacionDeglucion), defaultAreas),
			RecomendacionesFamilia: "Hablarle de frente, con frases cortas y claras, dándole tiempo para responder sin completar sus palabras.",
			ActividadesCasa:        "Leer cuentos, cantar canciones y jugar a nombrar objetos cotidianos.",
			ProximosPasos:          orDefault(f.PlanTratamiento, defaultProximosPasos),
		}
	case *KinesiologyForm:
		out = GeneralReport{
			SituacionActual:        situation("kinesiología", f.MotivoConsulta, f.EvaluacionPostural),
			ProgresosObservados:    orDefault(joinNonEmpty(f.MotricidadGruesa, f.MotricidadFina), defaultProgresos),
			Fortalezas:             defaultFortalezas,
			AreasATrabajar:         orDefault(joinNonEmpty(f.TonoMuscular, f.EquilibrioCoordinacion, f.Marcha), defaultAreas),
			RecomendacionesFamilia: "Favorecer el juego activo al aire libre y cuidar las posturas durante las actividades sentadas.",
			ActividadesCasa:        "Juegos de equilibrio, trepar, saltar y circuitos simples en casa o en la plaza.",
			ProximosPasos:          orDefault(f.PlanTratamiento, defaultProximosPasos),
		}
	case *ChildNeurologyForm:
		out = GeneralReport{
			SituacionActual:        situation("neurología infantil", f.MotivoConsulta, f.Diagnostico),
			ProgresosObservados:    orDefault(f.DesarrolloPsicomotor, defaultProgresos),
			Fortalezas:             defaultFortalezas,
			AreasATrabajar:         orDefault(f.ExamenNeurologico, "Seguimiento del desarrollo neurológico."),
			RecomendacionesFamilia: medication(f.Medicacion),
			ActividadesCasa:        "Mantener rutinas de sueño y alimentación regulares.",
			ProximosPasos:          orDefault(joinNonEmpty(f.Indicaciones, f.EstudiosComplementarios), defaultProximosPasos),
		}
	default:
		return current
	}
	out.ObservacionesAdicionales = current.ObservacionesAdicionales
	return out
}

func situation(specialty, motive, detail string) string {
	motive = strings.TrimSpace(motive)
	var s string
	if motive == "" {
		s = fmt.Sprintf("Se encuentra en proceso de evaluación en %s.", specialty)
	} else {
		s = fmt.Sprintf("Consulta en %s por %s.", specialty, strings.TrimSuffix(strings.ToLower(motive), "."))
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		s += " " + detail
	}
	return s
}

func medication(m string) string {
	if strings.TrimSpace(m) == "" {
		return defaultRecomendaciones
	}
	return "Administrar la medicación indicada (" + strings.TrimSpace(m) + ") respetando dosis y horarios. " + defaultRecomendaciones
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// joinNonEmpty joins the non-blank values as separate sentences.
func joinNonEmpty(vs ...string) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
