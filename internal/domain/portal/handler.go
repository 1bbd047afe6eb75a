package portal

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – families and staff
	g := api.Group("/portal", auth.RequireRole(auth.RoleFamily, auth.RoleProfessional, auth.RoleSecretary))
	g.GET("", h.ListSummaries)
	g.GET("/patients/:id", h.GetSummary)
}

// ListSummaries returns one summary per child linked to the caller's token.
func (h *Handler) ListSummaries(c echo.Context) error {
	ctx := c.Request().Context()
	ids := auth.PatientIDsFromContext(ctx)
	out := make([]*Summary, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid patient id in token")
		}
		s, err := h.svc.Summary(ctx, id)
		if err != nil {
			return apperr.HTTP(err)
		}
		out = append(out, s)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if !auth.CanAccessPatient(ctx, id.String()) {
		return echo.NewHTTPError(http.StatusForbidden, "patient not linked to this account")
	}
	s, err := h.svc.Summary(ctx, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}
