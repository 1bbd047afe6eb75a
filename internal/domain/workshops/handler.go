package workshops

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	readGroup.GET("/workshops", h.ListWorkshops)
	readGroup.GET("/workshops/:id", h.GetWorkshop)

	// Write endpoints – secretary
	writeGroup := api.Group("", auth.RequireRole(auth.RoleSecretary))
	writeGroup.POST("/workshops", h.CreateWorkshop)
	writeGroup.PUT("/workshops/:id", h.UpdateWorkshop)
	writeGroup.DELETE("/workshops/:id", h.DeactivateWorkshop)
	writeGroup.POST("/workshops/:id/enrollments", h.Enroll)
	writeGroup.DELETE("/workshops/:id/enrollments/:patient_id", h.Unenroll)
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) CreateWorkshop(c echo.Context) error {
	var w Workshop
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &w); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWorkshop(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	w, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) ListWorkshops(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{ActiveOnly: c.QueryParam("active") == "true"}
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"professional_id", &f.ProfessionalID}, {"patient_id", &f.PatientID}} {
		v := c.QueryParam(p.name)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
		}
		*p.dst = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateWorkshop(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var w Workshop
	if err := c.Bind(&w); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w.ID = id
	updated, err := h.svc.Update(c.Request().Context(), &w)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeactivateWorkshop(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type enrollRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
}

func (h *Handler) Enroll(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req enrollRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.Enroll(c.Request().Context(), id, req.PatientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) Unenroll(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	patientID, err := parseUUIDParam(c, "patient_id")
	if err != nil {
		return err
	}
	w, err := h.svc.Unenroll(c.Request().Context(), id, patientID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, w)
}
