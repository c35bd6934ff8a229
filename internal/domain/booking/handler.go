package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/pkg/pagination"
	"github.com/healthhub/healthhub/pkg/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/bookings")
	g.POST("", h.Create)
	g.GET("/mine", h.ListMine)
	g.GET("/:id", h.Get)
	g.PUT("/:id/status", h.UpdateStatus)

	doctor := g.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	doctor.GET("/doctor", h.ListForDoctor)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.Search)
	admin.PUT("/:id/doctor", h.AssignDoctor)
	admin.POST("/import-legacy", h.ImportLegacy)
}

func httpError(err error) error {
	switch {
	case validate.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "service not available")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func bookingID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.CreateBooking(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	uid, err := uuid.Parse(auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	items, err := h.svc.ListForPatient(ctx, uid, auth.EmailFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	items = Filter(items, c.QueryParam("q"), c.QueryParam("status"))
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

// ListForDoctor lists the signed-in doctor's bookings. Admins pass
// ?doctor_code= to view any doctor.
func (h *Handler) ListForDoctor(c echo.Context) error {
	ctx := c.Request().Context()
	code := h.svc.Actor(ctx).DoctorCode
	if auth.IsAdmin(ctx) && c.QueryParam("doctor_code") != "" {
		code = c.QueryParam("doctor_code")
	}
	items, err := h.svc.ListForDoctor(ctx, code)
	if err != nil {
		return httpError(err)
	}
	items = Filter(items, c.QueryParam("q"), c.QueryParam("status"))
	p := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(items, p), len(items), p.Limit, p.Offset))
}

func (h *Handler) Search(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), c.QueryParam("status"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

type assignRequest struct {
	DoctorCode string `json:"doctor_code"`
	DoctorName string `json:"doctor_name"`
}

func (h *Handler) AssignDoctor(c echo.Context) error {
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	b, err := h.svc.AssignDoctor(c.Request().Context(), id, req.DoctorCode, req.DoctorName)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ImportLegacy(c echo.Context) error {
	report, err := h.svc.ImportLegacy(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}
