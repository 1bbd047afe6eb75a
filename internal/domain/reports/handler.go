package reports

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – all staff
	readGroup := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleSecretary))
	readGroup.GET("/reports", h.ListReports)
	readGroup.GET("/reports/:id", h.GetReport)
	readGroup.GET("/reports/:id/view", h.GetReportView)
	readGroup.GET("/report-fields/:specialty", h.GetKnownFields)
	readGroup.POST("/reports/:id/export", h.ExportReport)

	// Authoring endpoints – professionals
	writeGroup := api.Group("", auth.RequireRole(auth.RoleProfessional))
	writeGroup.POST("/reports", h.CreateReport)
	writeGroup.POST("/reports/derive", h.DeriveGeneralReport)
	writeGroup.PUT("/reports/:id", h.UpdateReport)
	writeGroup.POST("/reports/:id/save", h.SaveReport)
	writeGroup.POST("/reports/:id/interconsult", h.RequestInterconsult)
	writeGroup.POST("/reports/:id/interconsult/resolve", h.ResolveInterconsult)
	writeGroup.PATCH("/reports/:id/visibility", h.SetVisibility)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// callerProfessional returns the professional a caller's token is linked to.
// restricted is false for secretaries and administrators, who may act on
// any professional's reports.
func callerProfessional(ctx context.Context) (id uuid.UUID, restricted bool, err error) {
	if auth.HasRole(ctx, auth.RoleSecretary) {
		return uuid.Nil, false, nil
	}
	id, err = uuid.Parse(auth.ProfessionalIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, true, echo.NewHTTPError(http.StatusForbidden, "token is not linked to a professional")
	}
	return id, true, nil
}

// authorize lets the report's author through. consulted also admits the
// professionals an interconsult was addressed to.
func (h *Handler) authorize(ctx context.Context, id uuid.UUID, consulted bool) error {
	pid, restricted, err := callerProfessional(ctx)
	if err != nil || !restricted {
		return err
	}
	if err := h.svc.CheckAuthor(ctx, id, pid, consulted); err != nil {
		return apperr.HTTP(err)
	}
	return nil
}

func (h *Handler) CreateReport(c echo.Context) error {
	var r Report
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	pid, restricted, err := callerProfessional(ctx)
	if err != nil {
		return err
	}
	if restricted {
		if r.ProfessionalID != uuid.Nil && r.ProfessionalID != pid {
			return echo.NewHTTPError(http.StatusForbidden, "professional_id does not match the caller")
		}
		r.ProfessionalID = pid
	}
	if err := h.svc.Create(ctx, &r); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)

	var (
		f   Filter
		err error
	)
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.ProfessionalID, err = optionalUUID(c, "professional_id"); err != nil {
		return err
	}
	if v := c.QueryParam("specialty"); v != "" {
		if f.Specialty, err = identity.ParseSpecialty(v); err != nil {
			return apperr.HTTP(err)
		}
	}
	f.Type = ReportType(c.QueryParam("type"))
	f.Status = c.QueryParam("status")

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c.Request().Context(), id, false); err != nil {
		return err
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Update(c.Request().Context(), id, p)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

type deriveRequest struct {
	Technical TechnicalReport `json:"technical"`
	General   GeneralReport   `json:"general"`
}

// DeriveGeneralReport handles POST /reports/derive, a stateless preview.
func (h *Handler) DeriveGeneralReport(c echo.Context) error {
	var req deriveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := h.svc.Derive(req.Technical, req.General)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) SaveReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c.Request().Context(), id, false); err != nil {
		return err
	}
	r, err := h.svc.Save(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

type interconsultRequest struct {
	Specialties []identity.Specialty `json:"specialties"`
	Reason      string               `json:"reason"`
}

func (h *Handler) RequestInterconsult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c.Request().Context(), id, false); err != nil {
		return err
	}
	var req interconsultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.RequestInterconsult(c.Request().Context(), id, req.Specialties, req.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

type resolveRequest struct {
	Response string `json:"response"`
}

func (h *Handler) ResolveInterconsult(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c.Request().Context(), id, true); err != nil {
		return err
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.ResolveInterconsult(c.Request().Context(), id, req.Response)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

type visibilityRequest struct {
	Visible bool `json:"visible_to_family"`
}

func (h *Handler) SetVisibility(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c.Request().Context(), id, false); err != nil {
		return err
	}
	var req visibilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.SetVisibility(c.Request().Context(), id, req.Visible)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) GetReportView(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.View(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

// ExportReport renders the report and returns the stored document's
// metadata; the document itself is served under /exports/:id.
func (h *Handler) ExportReport(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	meta, err := h.svc.Export(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, meta)
}

func (h *Handler) GetKnownFields(c echo.Context) error {
	s, err := identity.ParseSpecialty(c.Param("specialty"))
	if err != nil {
		return apperr.HTTP(err)
	}
	fields, err := KnownFields(s)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, fields)
}
