package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(t)
	return NewHandler(f.svc), f, echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asProfessional(req *http.Request, professionalID uuid.UUID) *http.Request {
	claims := &auth.Claims{Roles: []string{auth.RoleProfessional}, ProfessionalID: professionalID.String()}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func asSecretary(req *http.Request) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Roles: []string{auth.RoleSecretary}}))
}

func TestHandler_CreateReport(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","professional_id":"` + f.professional.ID.String() +
		`","type":"evaluacion_inicial","technical":{"specialty":"fonoaudiologia","fields":{"motivoConsulta":"Dificultad articulatoria"}}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(asProfessional(jsonRequest(http.MethodPost, body), f.professional.ID), rec)

	if err := h.CreateReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var r Report
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Status != StatusDraft || !strings.Contains(r.General.SituacionActual, "dificultad articulatoria") {
		t.Errorf("unexpected report %+v", r)
	}
}

func TestHandler_CreateReport_UnknownField(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","professional_id":"` + f.professional.ID.String() +
		`","type":"seguimiento","technical":{"specialty":"fonoaudiologia","fields":{"marcha":"x"}}}`
	c := e.NewContext(asProfessional(jsonRequest(http.MethodPost, body), f.professional.ID), httptest.NewRecorder())

	err := h.CreateReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_CreateReport_OtherProfessionalForbidden(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","professional_id":"` + uuid.NewString() +
		`","type":"seguimiento","technical":{"specialty":"fonoaudiologia","fields":{"motivoConsulta":"Control"}}}`
	c := e.NewContext(asProfessional(jsonRequest(http.MethodPost, body), f.professional.ID), httptest.NewRecorder())

	err := h.CreateReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if _, total, _ := f.svc.List(context.Background(), Filter{}, 0, 0); total != 0 {
		t.Errorf("expected no report stored, got %d", total)
	}
}

func TestHandler_CreateReport_AuthorFromToken(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","type":"seguimiento","technical":{"specialty":"fonoaudiologia","fields":{"motivoConsulta":"Control"}}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(asProfessional(jsonRequest(http.MethodPost, body), f.professional.ID), rec)

	if err := h.CreateReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var r Report
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.ProfessionalID != f.professional.ID {
		t.Errorf("expected author %s, got %s", f.professional.ID, r.ProfessionalID)
	}
}

func TestHandler_CreateReport_UnlinkedToken(t *testing.T) {
	h, f, e := newTestHandler(t)

	body := `{"patient_id":"` + f.patient.ID.String() + `","professional_id":"` + f.professional.ID.String() +
		`","type":"seguimiento","technical":{"specialty":"fonoaudiologia","fields":{"motivoConsulta":"Control"}}}`
	req := jsonRequest(http.MethodPost, body)
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Roles: []string{auth.RoleProfessional}}))
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestHandler_WritesRequireAuthor(t *testing.T) {
	h, f, e := newTestHandler(t)
	r := f.report(t)

	other := &identity.Professional{FirstName: "Marcos", LastName: "Paz", Specialty: identity.SpeechTherapy, LicenseNumber: "MP 9876"}
	if err := f.people.CreateProfessional(context.Background(), other); err != nil {
		t.Fatalf("create professional: %v", err)
	}

	routes := map[string]struct {
		handler echo.HandlerFunc
		body    string
	}{
		"update":       {h.UpdateReport, `{"version":1}`},
		"save":         {h.SaveReport, `{}`},
		"interconsult": {h.RequestInterconsult, `{"specialties":["psicologia"],"reason":"x"}`},
		"visibility":   {h.SetVisibility, `{"visible_to_family":false}`},
	}
	for name, tc := range routes {
		t.Run(name, func(t *testing.T) {
			c := e.NewContext(asProfessional(jsonRequest(http.MethodPost, tc.body), other.ID), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(r.ID.String())

			err := tc.handler(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %v", err)
			}
		})
	}

	c := e.NewContext(asSecretary(jsonRequest(http.MethodPost, `{}`)), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.SaveReport(c); err != nil {
		t.Fatalf("secretary save: %v", err)
	}
}

func TestHandler_ResolveInterconsult_ConsultedSpecialty(t *testing.T) {
	h, f, e := newTestHandler(t)
	ctx := context.Background()
	r := f.savedReport(t)
	if _, err := f.svc.RequestInterconsult(ctx, r.ID, []identity.Specialty{identity.Psychology}, "Evaluar ansiedad"); err != nil {
		t.Fatalf("request interconsult: %v", err)
	}

	outsider := &identity.Professional{FirstName: "Ana", LastName: "Ruiz", Specialty: identity.Kinesiology, LicenseNumber: "MP 1111"}
	psychologist := &identity.Professional{FirstName: "Sofía", LastName: "Díaz", Specialty: identity.Psychology, LicenseNumber: "MP 2222"}
	for _, p := range []*identity.Professional{outsider, psychologist} {
		if err := f.people.CreateProfessional(ctx, p); err != nil {
			t.Fatalf("create professional: %v", err)
		}
	}

	body := `{"response":"Sin hallazgos"}`
	c := e.NewContext(asProfessional(jsonRequest(http.MethodPost, body), outsider.ID), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	err := h.ResolveInterconsult(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(asProfessional(jsonRequest(http.MethodPost, body), psychologist.ID), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.ResolveInterconsult(c); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetReport_NotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("7c1f1c4e-6b55-4a57-9d9e-2f2f1c1e0a11")

	err := h.GetReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_SaveTwiceConflicts(t *testing.T) {
	h, f, e := newTestHandler(t)
	r := f.report(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(asProfessional(httptest.NewRequest(http.MethodPost, "/", nil), f.professional.ID), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	if err := h.SaveReport(c); err != nil {
		t.Fatalf("save: %v", err)
	}

	c = e.NewContext(asProfessional(httptest.NewRequest(http.MethodPost, "/", nil), f.professional.ID), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	err := h.SaveReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestHandler_Derive(t *testing.T) {
	h, _, e := newTestHandler(t)

	body := `{"technical":{"specialty":"kinesiologia","fields":{"motivoConsulta":"Hipotonía"}},"general":{"observacionesAdicionales":"nota"}}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.DeriveGeneralReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var g GeneralReport
	json.Unmarshal(rec.Body.Bytes(), &g)
	if g.SituacionActual != "Consulta en kinesiología por hipotonía." || g.ObservacionesAdicionales != "nota" {
		t.Errorf("unexpected derived report %+v", g)
	}
}

func TestHandler_Derive_MissingTechnical(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(jsonRequest(http.MethodPost, `{}`), httptest.NewRecorder())

	err := h.DeriveGeneralReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_Export(t *testing.T) {
	h, f, e := newTestHandler(t)
	r := f.savedReport(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())

	if err := h.ExportReport(c); err != nil {
		t.Fatalf("export: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	f.svc.blobs = failingBlobs{}
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(r.ID.String())
	err := h.ExportReport(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
}

func TestHandler_GetKnownFields(t *testing.T) {
	h, _, e := newTestHandler(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("specialty")
	c.SetParamValues("Neurología Infantil")
	if err := h.GetKnownFields(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fields []FieldInfo
	json.Unmarshal(rec.Body.Bytes(), &fields)
	if len(fields) != 8 || fields[1].Key != "antecedentesPerinatales" {
		t.Errorf("unexpected fields %+v", fields)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("specialty")
	c.SetParamValues("odontologia")
	err := h.GetKnownFields(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_ListReports_BadSpecialty(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?specialty=odontologia", nil), httptest.NewRecorder())

	err := h.ListReports(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
