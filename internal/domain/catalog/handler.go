package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	// Public reads
	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
	api.GET("/services", h.ListMedicalServices)
	api.GET("/services/:id", h.GetMedicalService)

	merchant := api.Group("", auth.RequireRole(auth.RoleMerchant))
	merchant.POST("/products", h.CreateProduct)
	merchant.PUT("/products/:id", h.UpdateProduct)
	merchant.DELETE("/products/:id", h.DeleteProduct)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/services", h.CreateMedicalService)
	admin.PUT("/services/:id", h.UpdateMedicalService)
}

func httpError(err error) error {
	switch {
	case validate.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Product Handlers --

func (h *Handler) CreateProduct(c echo.Context) error {
	var p Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateProduct(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProducts(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ProductFilter{
		MerchantID: c.QueryParam("merchant_id"),
		Category:   c.QueryParam("category"),
		ActiveOnly: c.QueryParam("include_inactive") != "true",
	}
	if v := c.QueryParam("rentable"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid rentable")
		}
		f.Rentable = &b
	}
	items, total, err := h.svc.ListProducts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	// Bind onto the stored product so omitted fields keep their values.
	p, err := h.svc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if err := c.Bind(p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p.ID = id
	if err := h.svc.UpdateProduct(c.Request().Context(), p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProduct(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteProduct(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Medical Service Handlers --

func (h *Handler) CreateMedicalService(c echo.Context) error {
	var ms MedicalService
	if err := c.Bind(&ms); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateMedicalService(c.Request().Context(), &ms); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, ms)
}

func (h *Handler) GetMedicalService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ms, err := h.svc.GetMedicalService(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ms)
}

func (h *Handler) ListMedicalServices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMedicalServices(c.Request().Context(),
		c.QueryParam("include_inactive") != "true", pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateMedicalService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ms, err := h.svc.GetMedicalService(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if err := c.Bind(ms); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ms.ID = id
	if err := h.svc.UpdateMedicalService(c.Request().Context(), ms); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ms)
}
