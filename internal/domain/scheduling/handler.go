package scheduling

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/calendar"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
	// today returns the reference date used when a calendar request omits it.
	today func() calendar.Date
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, today: func() calendar.Date { return calendar.DateOf(time.Now()) }}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – all staff
	readGroup := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleSecretary))
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/calendar", h.GetCalendar)

	// Write endpoints – all staff
	writeGroup := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleSecretary))
	writeGroup.POST("/appointments", h.CreateAppointment)
	writeGroup.PATCH("/appointments/:id/status", h.UpdateStatus)
	writeGroup.PATCH("/appointments/:id/notes", h.UpdateNotes)
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

func optionalDate(c echo.Context, name string) (calendar.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(v)
	if err != nil {
		return calendar.Date{}, apperr.HTTP(err)
	}
	return d, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
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
	if f.From, err = optionalDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = optionalDate(c, "to"); err != nil {
		return err
	}
	if v := c.QueryParam("status"); v != "" {
		f.Statuses = strings.Split(v, ",")
	}

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.Reason)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) UpdateNotes(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateNotes(c.Request().Context(), id, req.Notes)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

// GetCalendar handles GET /calendar?date=YYYY-MM-DD&view=day|week|month&professional_id=...
func (h *Handler) GetCalendar(c echo.Context) error {
	ref, err := optionalDate(c, "date")
	if err != nil {
		return err
	}
	if ref.IsZero() {
		ref = h.today()
	}
	mode, err := calendar.ParseViewMode(c.QueryParam("view"))
	if err != nil {
		return apperr.HTTP(err)
	}
	professionalID, err := optionalUUID(c, "professional_id")
	if err != nil {
		return err
	}
	grid, err := h.svc.Calendar(c.Request().Context(), ref, mode, professionalID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, grid)
}
