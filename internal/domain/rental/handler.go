package rental

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
	g := api.Group("/rentals")
	g.POST("/quote", h.Quote)
	g.POST("", h.Submit)
	g.GET("/mine", h.ListMine)
	g.GET("/:id", h.Get)
	g.PUT("/:id/status", h.UpdateStatus)

	merchant := g.Group("", auth.RequireRole(auth.RoleMerchant, auth.RoleAdmin))
	merchant.GET("/merchant", h.ListForMerchant)
	merchant.POST("/:id/verify-documents", h.VerifyDocuments)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", h.List)
}

func httpError(err error) error {
	switch {
	case validate.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, ErrNotRentable):
		return echo.NewHTTPError(http.StatusNotFound, ErrNotRentable.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict), errors.Is(err, ErrChequeRequired):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func rentalID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid rental id")
	}
	return id, nil
}

type quoteRequest struct {
	ProductID string `json:"product_id"`
	Duration  int    `json:"duration"`
}

func (h *Handler) Quote(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	q, err := h.svc.Quote(c.Request().Context(), req.ProductID, req.Duration)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.Submit(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListMine(c echo.Context) error {
	uid, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListForRequester(c.Request().Context(), uid, p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

// ListForMerchant lists requests for the caller's products. Admins pass
// ?merchant_id=.
func (h *Handler) ListForMerchant(c echo.Context) error {
	ctx := c.Request().Context()
	merchantID := auth.MerchantIDFromContext(ctx)
	if auth.IsAdmin(ctx) {
		merchantID = c.QueryParam("merchant_id")
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListForMerchant(ctx, merchantID, c.QueryParam("status"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) VerifyDocuments(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.VerifyDocuments(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := rentalID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	r, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.Note)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}
