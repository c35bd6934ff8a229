package cart

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/pkg/validate"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/cart")
	g.GET("", h.Get)
	g.POST("/items", h.AddItem)
	g.PUT("/items/:itemId", h.UpdateItem)
	g.DELETE("/items/:itemId", h.RemoveItem)
	g.DELETE("", h.Clear)
}

func httpError(err error) error {
	switch {
	case validate.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "item not available")
	case errors.Is(err, ErrItemNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func currentUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return id, nil
}

type addItemRequest struct {
	ItemID   string `json:"item_id"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Version  *int   `json:"version,omitempty"`
}

type quantityRequest struct {
	Quantity int  `json:"quantity"`
	Version  *int `json:"version,omitempty"`
}

type versionRequest struct {
	Version *int `json:"version,omitempty"`
}

func (h *Handler) Get(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	cart, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) AddItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req addItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cart, err := h.svc.AddToCart(c.Request().Context(), uid, req.Type, req.ItemID, req.Quantity, req.Version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cart, err := h.svc.UpdateQuantity(c.Request().Context(), uid, c.Param("itemId"), req.Quantity, req.Version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) RemoveItem(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req versionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cart, err := h.svc.RemoveFromCart(c.Request().Context(), uid, c.Param("itemId"), req.Version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *Handler) Clear(c echo.Context) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req versionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cart, err := h.svc.ClearCart(c.Request().Context(), uid, req.Version)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cart)
}
