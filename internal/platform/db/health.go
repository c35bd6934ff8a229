package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// Pinger is a dependency that can report liveness (redis, mongo, ...).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// CheckDependencies pings each dependency and returns per-name status plus
// overall health.
func CheckDependencies(ctx context.Context, deps map[string]Pinger) (map[string]string, bool) {
	result := make(map[string]string, len(deps))
	healthy := true
	for name, dep := range deps {
		if dep == nil {
			result[name] = "disabled"
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			result[name] = err.Error()
			healthy = false
			continue
		}
		result[name] = "ok"
	}
	return result, healthy
}

// HealthHandler returns a handler for the dependency health check endpoint.
func HealthHandler(pool *pgxpool.Pool, deps map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		all := map[string]Pinger{"postgres": PingFunc(pool.Ping)}
		for name, dep := range deps {
			all[name] = dep
		}
		checks, healthy := CheckDependencies(ctx, all)
		stats := GetPoolStats(pool)
		stats.Healthy = stats.Healthy && checks["postgres"] == "ok"

		status, code := "healthy", http.StatusOK
		if !healthy {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"status": status,
			"checks": checks,
			"pool":   stats,
		})
	}
}
