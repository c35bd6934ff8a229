package payment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/domain/booking"
	"github.com/healthhub/healthhub/internal/domain/order"
	"github.com/healthhub/healthhub/internal/domain/rental"
	gateway "github.com/healthhub/healthhub/internal/platform/payment"
	"github.com/healthhub/healthhub/pkg/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/payment")
	g.GET("/config", h.Config)
	g.POST("/create-order", h.CreateOrder)
	g.POST("/initiate", h.Initiate)
	g.POST("/verify-payment", h.Verify)
	g.POST("/cancel", h.Cancel)
}

func httpError(err error) error {
	switch {
	case validate.IsValidation(err),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrVerificationFailed),
		errors.Is(err, gateway.ErrInvalidAmount):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotSignedIn):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, order.ErrNotFound), errors.Is(err, rental.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, rental.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Config())
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	o, err := h.svc.CreateOrder(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) Initiate(c echo.Context) error {
	var req InitiateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	opts, err := h.svc.InitiatePayment(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, opts)
}

func (h *Handler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.VerifyPayment(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type cancelRequest struct {
	OrderID string `json:"order_id"`
}

// Cancel acknowledges a dismissed checkout. It always answers 200; the body
// says the payment was not taken.
func (h *Handler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	err := h.svc.Cancel(c.Request().Context(), req.OrderID)
	if err != nil && !errors.Is(err, ErrPaymentCancelled) {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cancelled": true,
		"order_id":  req.OrderID,
		"message":   ErrPaymentCancelled.Error(),
	})
}
