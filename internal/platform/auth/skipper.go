package auth

import (
	"github.com/labstack/echo/v4"
)

// publicRoutes lists "METHOD path" pairs (echo route patterns) that bypass
// authentication: health checks, sign-up/sign-in, the catalog and the
// doctor directory shown to anonymous visitors, and the contact form.
var publicRoutes = map[string]bool{
	"GET /health":             true,
	"GET /health/db":          true,
	"POST /api/auth/signup":   true,
	"POST /api/auth/signin":   true,
	"GET /api/products":       true,
	"GET /api/products/:id":   true,
	"GET /api/services":       true,
	"GET /api/services/:id":   true,
	"GET /api/doctors":        true,
	"POST /api/contact":       true,
	"POST /api/rentals/quote": true,
	"GET /api/payment/config": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

// IsPublicRoute reports whether method + route pattern is public.
func IsPublicRoute(method, path string) bool {
	return publicRoutes[method+" "+path]
}
