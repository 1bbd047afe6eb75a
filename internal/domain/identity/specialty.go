package identity

import (
	"strings"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// Specialty is one of the center's five clinical disciplines.
type Specialty string

const (
	Psychology     Specialty = "psicologia"
	Psychopedagogy Specialty = "psicopedagogia"
	SpeechTherapy  Specialty = "fonoaudiologia"
	Kinesiology    Specialty = "kinesiologia"
	ChildNeurology Specialty = "neurologia_infantil"
)

// Specialties lists every specialty in display order.
var Specialties = []Specialty{Psychology, Psychopedagogy, SpeechTherapy, Kinesiology, ChildNeurology}

var specialtyNames = map[Specialty]string{
	Psychology:     "Psicología",
	Psychopedagogy: "Psicopedagogía",
	SpeechTherapy:  "Fonoaudiología",
	Kinesiology:    "Kinesiología",
	ChildNeurology: "Neurología Infantil",
}

// DisplayName returns the Spanish name shown to users.
func (s Specialty) DisplayName() string { return specialtyNames[s] }

func (s Specialty) Valid() bool {
	_, ok := specialtyNames[s]
	return ok
}

// ParseSpecialty accepts either the code or the display name, ignoring case.
func ParseSpecialty(v string) (Specialty, error) {
	v = strings.TrimSpace(v)
	for s, name := range specialtyNames {
		if strings.EqualFold(v, string(s)) || strings.EqualFold(v, name) {
			return s, nil
		}
	}
	return "", apperr.Validation("unknown specialty %q", v)
}
