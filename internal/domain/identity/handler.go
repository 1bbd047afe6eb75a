package identity

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
	readGroup.GET("/patients", h.SearchPatients)
	readGroup.GET("/patients/:id", h.GetPatient)
	readGroup.GET("/professionals", h.SearchProfessionals)
	readGroup.GET("/professionals/:id", h.GetProfessional)
	readGroup.GET("/insurance-providers", h.ListInsuranceProviders)
	readGroup.GET("/insurance-providers/:id", h.GetInsuranceProvider)
	readGroup.GET("/specialties", h.ListSpecialties)

	// Write endpoints – secretary (admin passes every gate)
	writeGroup := api.Group("", auth.RequireRole(auth.RoleSecretary))
	writeGroup.POST("/patients", h.CreatePatient)
	writeGroup.PUT("/patients/:id", h.UpdatePatient)
	writeGroup.DELETE("/patients/:id", h.DeactivatePatient)
	writeGroup.POST("/insurance-providers", h.CreateInsuranceProvider)
	writeGroup.PUT("/insurance-providers/:id", h.UpdateInsuranceProvider)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/professionals", h.CreateProfessional)
	adminGroup.PUT("/professionals/:id", h.UpdateProfessional)
	adminGroup.DELETE("/professionals/:id", h.DeactivateProfessional)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func searchParams(c echo.Context, keys ...string) map[string]string {
	params := make(map[string]string)
	for _, k := range keys {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	return params
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := searchParams(c, "name", "document", "active", "insurance_provider_id", "cud_status")
	patients, total, err := h.svc.SearchPatients(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivatePatient(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Professional Handlers --

func (h *Handler) CreateProfessional(c echo.Context) error {
	var p Professional
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProfessional(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfessional(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchProfessionals(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := searchParams(c, "name", "specialty", "active")
	items, total, err := h.svc.SearchProfessionals(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Professional
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.UpdateProfessional(c.Request().Context(), &p); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeactivateProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateProfessional(c.Request().Context(), id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListSpecialties returns the fixed specialty catalogue.
func (h *Handler) ListSpecialties(c echo.Context) error {
	type entry struct {
		Code Specialty `json:"code"`
		Name string    `json:"name"`
	}
	out := make([]entry, 0, len(Specialties))
	for _, s := range Specialties {
		out = append(out, entry{Code: s, Name: s.DisplayName()})
	}
	return c.JSON(http.StatusOK, out)
}

// -- Insurance Provider Handlers --

func (h *Handler) CreateInsuranceProvider(c echo.Context) error {
	var ip InsuranceProvider
	if err := c.Bind(&ip); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateInsuranceProvider(c.Request().Context(), &ip); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, ip)
}

func (h *Handler) GetInsuranceProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ip, err := h.svc.GetInsuranceProvider(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ip)
}

func (h *Handler) UpdateInsuranceProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var ip InsuranceProvider
	if err := c.Bind(&ip); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ip.ID = id
	if err := h.svc.UpdateInsuranceProvider(c.Request().Context(), &ip); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, ip)
}

func (h *Handler) ListInsuranceProviders(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInsuranceProviders(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
