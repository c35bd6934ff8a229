package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/healthhub/healthhub/internal/config"
	"github.com/healthhub/healthhub/internal/domain/booking"
	"github.com/healthhub/healthhub/internal/domain/cart"
	"github.com/healthhub/healthhub/internal/domain/catalog"
	"github.com/healthhub/healthhub/internal/domain/contact"
	"github.com/healthhub/healthhub/internal/domain/identity"
	"github.com/healthhub/healthhub/internal/domain/order"
	"github.com/healthhub/healthhub/internal/domain/payment"
	"github.com/healthhub/healthhub/internal/domain/rental"
	"github.com/healthhub/healthhub/internal/platform/auth"
	"github.com/healthhub/healthhub/internal/platform/db"
	"github.com/healthhub/healthhub/internal/platform/idverify"
	"github.com/healthhub/healthhub/internal/platform/legacy"
	"github.com/healthhub/healthhub/internal/platform/logging"
	"github.com/healthhub/healthhub/internal/platform/middleware"
	gateway "github.com/healthhub/healthhub/internal/platform/payment"
	"github.com/healthhub/healthhub/migrations"
	"github.com/healthhub/healthhub/pkg/idgen"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthhub-server",
		Short: "HealthHub API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(legacyCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Options{Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
}

func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func legacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Work with the legacy booking collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Copy legacy bookings and appointments into the bookings table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.MongoURL == "" {
				return fmt.Errorf("MONGO_URL is required for legacy import")
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.bookings.ImportLegacy(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Scanned %d, imported %d, skipped %d, invoice ids reissued %d.\n",
				report.Scanned, report.Imported, report.Skipped, report.Reissued)
			return nil
		},
	})
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create development data",
	}

	doctorsCmd := &cobra.Command{
		Use:   "doctors",
		Short: "Create test doctor accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed test accounts in production")
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			doctors, err := a.identity.CreateTestDoctors(ctx, count)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %-32s %s\n", "CODE", "EMAIL", "PASSWORD")
			for _, d := range doctors {
				code := ""
				if d.User.DoctorCode != nil {
					code = *d.User.DoctorCode
				}
				fmt.Printf("%-10s %-32s %s\n", code, d.User.Email, d.Password)
			}
			return nil
		},
	}
	doctorsCmd.Flags().Int("count", 3, "Number of doctor accounts to create")
	cmd.AddCommand(doctorsCmd)
	return cmd
}

// app holds the connected backends and the domain services built on them.
type app struct {
	pool     *pgxpool.Pool
	redis    *redis.Client
	mongo    *mongo.Client
	sessions auth.SessionStore
	tokens   *auth.TokenIssuer
	logger   zerolog.Logger

	identity *identity.Service
	catalog  *catalog.Service
	carts    *cart.Service
	bookings *booking.Service
	orders   *order.Service
	rentals  *rental.Service
	payments *payment.Service
	contacts *contact.Service
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.pool = pool
	logger.Info().Msg("connected to database")

	if cfg.RedisURL != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rdb
		a.sessions = auth.NewRedisSessionStore(rdb)
		logger.Info().Msg("using redis session store")
	} else {
		a.sessions = auth.NewMemorySessionStore()
		logger.Warn().Msg("REDIS_URL not set; sessions are kept in memory")
	}

	var store legacy.Store
	if cfg.MongoURL != "" {
		client, mdb, err := legacy.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mongo = client
		store = legacy.NewMongoStore(mdb)
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to legacy store")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSigningKey, cfg.JWTTTL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tokens = tokens

	a.wire(cfg, db.PoolTxRunner{Pool: pool}, store)
	return a, nil
}

// wire builds the domain services over the connected backends.
func (a *app) wire(cfg *config.Config, tx db.TxRunner, store legacy.Store) {
	ids := idgen.New()

	a.identity = identity.NewService(identity.NewUserRepoPG(a.pool), tx, a.sessions, a.tokens, ids, a.logger,
		identity.Options{MaxAttempts: cfg.LoginMaxAttempts, Lockout: cfg.LoginLockout, DoctorCodes: cfg.DoctorCodes()})
	a.catalog = catalog.NewService(catalog.NewProductRepoPG(a.pool), catalog.NewServiceRepoPG(a.pool))
	a.carts = cart.NewService(cart.NewRepoPG(a.pool), a.catalog, a.logger)
	a.bookings = booking.NewService(booking.NewRepoPG(a.pool), tx, a.catalog, store, ids,
		booking.DoctorCodes{ByEmail: cfg.DoctorCodes(), Default: cfg.DefaultDoctorCode}, a.logger)
	a.orders = order.NewService(order.NewRepoPG(a.pool), tx, a.catalog, a.carts, ids, a.logger)
	a.rentals = rental.NewService(rental.NewRepoPG(a.pool), tx, a.catalog,
		idverify.NewMockVerifier(cfg.IDVerifyDelay), a.logger)

	gw := gateway.New(gateway.Config{
		KeyID:        cfg.PaymentKeyID,
		KeySecret:    cfg.PaymentKeySecret,
		BaseURL:      cfg.PaymentBaseURL,
		MockFallback: cfg.PaymentMockFallback,
	}, a.logger.With().Str("component", "gateway").Logger())
	a.payments = payment.NewService(payment.NewRepoPG(a.pool), tx, gw, map[string]payment.Payable{
		payment.TargetBooking: a.bookings,
		payment.TargetOrder:   a.orders,
		payment.TargetRental:  a.rentals,
	}, a.logger)
	a.contacts = contact.NewService(contact.NewRepoPG(a.pool), a.logger)
}

func (a *app) Close() {
	if a.mongo != nil {
		a.mongo.Disconnect(context.Background())
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if m, ok := a.sessions.(*auth.MemorySessionStore); ok {
		m.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// dependencies lists the backends reported by /health/db. Unconfigured
// ones report "disabled".
func (a *app) dependencies() map[string]db.Pinger {
	deps := map[string]db.Pinger{"redis": nil, "mongo": nil}
	if a.redis != nil {
		rdb := a.redis
		deps["redis"] = db.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if a.mongo != nil {
		client := a.mongo
		deps["mongo"] = db.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) })
	}
	return deps
}

func newRouter(a *app, cfg *config.Config) *echo.Echo {
	logger := a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "15M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(auth.Authenticate(a.tokens, a.sessions, auth.AuthSkipper))
	e.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool, a.dependencies()))
	}

	identity.NewHandler(a.identity).RegisterRoutes(api)
	catalog.NewHandler(a.catalog).RegisterRoutes(api)
	cart.NewHandler(a.carts).RegisterRoutes(api)
	booking.NewHandler(a.bookings).RegisterRoutes(api)
	order.NewHandler(a.orders).RegisterRoutes(api)
	rental.NewHandler(a.rentals).RegisterRoutes(api)
	payment.NewHandler(a.payments).RegisterRoutes(api)
	contact.NewHandler(a.contacts).RegisterRoutes(api)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.Close()

	e := newRouter(a, cfg)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
