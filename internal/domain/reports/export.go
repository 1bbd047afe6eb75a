package reports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/blobstore"
)

// mdRenderer converts report markdown to HTML. Raw HTML in user text is
// dropped by goldmark's default (unsafe disabled) renderer.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// View is the complete, already-formatted content of an exported report.
type View struct {
	ReportID     uuid.UUID         `json:"report_id"`
	PatientID    uuid.UUID         `json:"patient_id"`
	Title        string            `json:"title"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	Date         string            `json:"date"`
	Patient      PatientHeader     `json:"patient"`
	Professional ProfessionalBlock `json:"professional"`
	Technical    []Section         `json:"technical"`
	General      []Section         `json:"general"`
	Interconsult *Interconsult     `json:"interconsult,omitempty"`
}

type PatientHeader struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"document_number,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	Age            int    `json:"age,omitempty"`
}

type ProfessionalBlock struct {
	Name          string `json:"name"`
	Specialty     string `json:"specialty"`
	LicenseNumber string `json:"license_number,omitempty"`
}

// View assembles everything needed to render report id.
func (s *Service) View(ctx context.Context, id uuid.UUID) (*View, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patient, err := s.directory.GetPatient(ctx, r.PatientID)
	if err != nil {
		return nil, err
	}
	professional, err := s.directory.GetProfessional(ctx, r.ProfessionalID)
	if err != nil {
		return nil, err
	}

	day := r.CreatedAt
	if r.SavedAt != nil {
		day = *r.SavedAt
	}
	date := calendar.DateOf(day)

	v := &View{
		ReportID:  r.ID,
		PatientID: r.PatientID,
		Title:     fmt.Sprintf("Informe de %s", r.Specialty.DisplayName()),
		Type:      r.Type.DisplayName(),
		Status:    r.Status,
		Date:      date.Time().Format("02/01/2006"),
		Patient: PatientHeader{
			Name:           patient.FullName(),
			DocumentNumber: patient.DocumentNumber,
		},
		Professional: ProfessionalBlock{
			Name:          professional.FullName(),
			Specialty:     professional.Specialty.DisplayName(),
			LicenseNumber: professional.LicenseNumber,
		},
		Technical:    r.Technical.Sections(),
		General:      r.General.Sections(),
		Interconsult: r.Interconsult,
	}
	if patient.BirthDate != nil && !patient.BirthDate.IsZero() {
		v.Patient.BirthDate = patient.BirthDate.Time().Format("02/01/2006")
		v.Patient.Age = patient.AgeOn(date)
	}
	return v, nil
}

// Markdown renders v as a markdown document.
func (v *View) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(v.Title))
	fmt.Fprintf(&b, "**Tipo:** %s  \n", escapeMarkdown(v.Type))
	fmt.Fprintf(&b, "**Fecha:** %s\n\n", v.Date)

	b.WriteString("## Paciente\n\n")
	fmt.Fprintf(&b, "**Nombre:** %s  \n", escapeMarkdown(v.Patient.Name))
	if v.Patient.DocumentNumber != "" {
		fmt.Fprintf(&b, "**DNI:** %s  \n", escapeMarkdown(v.Patient.DocumentNumber))
	}
	if v.Patient.BirthDate != "" {
		fmt.Fprintf(&b, "**Fecha de nacimiento:** %s (%d años)  \n", v.Patient.BirthDate, v.Patient.Age)
	}
	b.WriteString("\n## Profesional\n\n")
	fmt.Fprintf(&b, "**Nombre:** %s  \n", escapeMarkdown(v.Professional.Name))
	fmt.Fprintf(&b, "**Especialidad:** %s  \n", escapeMarkdown(v.Professional.Specialty))
	if v.Professional.LicenseNumber != "" {
		fmt.Fprintf(&b, "**Matrícula:** %s  \n", escapeMarkdown(v.Professional.LicenseNumber))
	}

	writeSections(&b, "Informe técnico", v.Technical)
	writeSections(&b, "Informe para la familia", v.General)

	if ic := v.Interconsult; ic != nil {
		b.WriteString("\n## Interconsulta\n\n")
		names := make([]string, len(ic.Specialties))
		for i, sp := range ic.Specialties {
			names[i] = sp.DisplayName()
		}
		fmt.Fprintf(&b, "**Especialidades:** %s  \n", escapeMarkdown(strings.Join(names, ", ")))
		if ic.Reason != "" {
			fmt.Fprintf(&b, "**Motivo:** %s  \n", escapeMarkdown(ic.Reason))
		}
		if ic.Response != "" {
			fmt.Fprintf(&b, "**Respuesta:** %s  \n", escapeMarkdown(ic.Response))
		}
	}
	return b.String()
}

func writeSections(b *strings.Builder, title string, sections []Section) {
	fmt.Fprintf(b, "\n## %s\n", title)
	for _, s := range sections {
		if strings.TrimSpace(s.Value) == "" {
			continue
		}
		fmt.Fprintf(b, "\n### %s\n\n%s\n", s.Label, escapeMarkdown(s.Value))
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "#", `\#`,
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "|", `\|`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// HTML renders v as a standalone HTML document.
func (v *View) HTML() ([]byte, error) {
	var body bytes.Buffer
	if err := mdRenderer.Convert([]byte(v.Markdown()), &body); err != nil {
		return nil, err
	}
	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html lang=\"es\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", htmlEscaper.Replace(v.Title))
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.Bytes(), nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;")

// Export renders report id to HTML and stores it in the blob store. Lookup
// misses are returned as they are; rendering and storage failures are
// reported as export errors.
func (s *Service) Export(ctx context.Context, id uuid.UUID, createdBy string) (*blobstore.BlobMetadata, error) {
	v, err := s.View(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, apperr.Export(fmt.Errorf("no blob store configured"), "export report %s", id)
	}
	doc, err := v.HTML()
	if err != nil {
		return nil, apperr.Export(err, "render report %s", id)
	}

	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    exportFileName(v, time.Now()),
		ContentType: "text/html; charset=utf-8",
		PatientID:   v.PatientID.String(),
		ReportID:    id.String(),
		CreatedBy:   createdBy,
	}, bytes.NewReader(doc))
	if err != nil {
		return nil, apperr.Export(err, "store report %s", id)
	}
	s.logger.Info().Str("report_id", id.String()).Str("blob_id", meta.ID).Int64("size", meta.Size).Msg("report exported")
	return meta, nil
}

func exportFileName(v *View, now time.Time) string {
	name := strings.ToLower(strings.Join(strings.Fields(v.Patient.Name), "-"))
	if name == "" {
		name = "paciente"
	}
	return fmt.Sprintf("informe-%s-%s.html", name, now.Format("20060102"))
}
