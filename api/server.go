package api

import (
	"context"
	"strings"
	"time"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/auth/middleware/jwtware"
	"github.com/finguard/finguard-server/internal/database"
	"github.com/finguard/finguard-server/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// Options holds everything the HTTP surface is assembled from
type Options struct {
	Debug       bool
	BasePath    string
	CORSOrigins []string
	Logger      *zap.Logger
	DB          *bun.DB
	Verifier    auth.TokenVerifier
	Users       *UsersController
	Expenses    *ExpensesController
}

// New builds the fiber app with middlewares and every route mounted under
// BasePath.
func New(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "finguard",
		DisableStartupMessage: true,
		ErrorHandler:          NewErrorHandler(logger, opts.Debug),
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(opts.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(requestLogger(logger))
	// recover sits inside the logger so a panic still gets logged and timed
	app.Use(recover.New())

	app.Get("/healthz", health(opts.DB))
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	protected := jwtware.New(jwtware.Config{
		Verifier: opts.Verifier,
		// token failures render through the app error handler
		ErrorHandler: func(_ *fiber.Ctx, err error) error {
			return err
		},
	})

	RegisterRoutes(app.Group(opts.BasePath), protected, opts.Users, opts.Expenses)

	return app
}

// RegisterRoutes mounts the users and expenses endpoints on r
func RegisterRoutes(r fiber.Router, protected fiber.Handler, users *UsersController, exp *ExpensesController) {
	userRoutes := r.Group("/users")
	userRoutes.Post("/register", users.Register).Name("users.register")
	userRoutes.Post("/login", users.Login).Name("users.login")
	userRoutes.Get("/me", protected, users.Me).Name("users.me")

	expenseRoutes := r.Group("/expenses", protected)
	expenseRoutes.Get("/", exp.List).Name("expenses.list")
	expenseRoutes.Post("/", exp.Create).Name("expenses.create")
	expenseRoutes.Get("/:id", exp.Get).Name("expenses.get")
	expenseRoutes.Put("/:id", exp.Update).Name("expenses.update")
	expenseRoutes.Delete("/:id", exp.Delete).Name("expenses.delete")
}

func health(db *bun.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// requestLogger logs each request and feeds the latency histogram. Errors are
// rendered here so the logged status is the one the client sees.
func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		metrics.ObserveRequest(c.Method(), route, status, elapsed)

		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.Any("request_id", c.Locals(requestid.ConfigDefault.ContextKey)),
		)

		return nil
	}
}

func corsOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
