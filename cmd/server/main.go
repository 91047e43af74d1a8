package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finguard/finguard-server/api"
	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/expenses"
	"github.com/finguard/finguard-server/internal/config"
	"github.com/finguard/finguard-server/internal/database"
	"github.com/finguard/finguard-server/internal/logger"
	"github.com/finguard/finguard-server/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	config      config.Config
	logger      *zap.Logger
	db          *bun.DB
	repo        auth.RepositoryManager
	tokens      *auth.TokenService
	credentials *auth.CredentialStore
	expenses    *expenses.Service
	srv         *fiber.App
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	lgr, err := logger.New(cfg.Log.Env, cfg.Log.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lgr.Sync() }()

	if cfg.Log.Debug {
		redacted := cfg
		redacted.Auth.SigningKey = "<redacted>"
		redacted.Database.DSN = "<redacted>"
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(redacted))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		lgr.Fatal("persistence setup failed", zap.Error(err))
	}
	defer app.db.Close()

	if err := WithAuth(ctx, app); err != nil {
		lgr.Fatal("auth setup failed", zap.Error(err))
	}

	WithExpenses(app)
	WithHTTPServer(app)

	go func() {
		lgr.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("base_path", cfg.Server.BasePath))
		if err := app.srv.Listen(cfg.Server.Addr); err != nil {
			lgr.Fatal("server stopped", zap.Error(err))
		}
	}()

	sig := WaitExitSignal()
	lgr.Info("shutting down", zap.String("signal", sig.String()))

	timeout := time.Duration(cfg.Server.ShutdownSeconds) * time.Second
	if err := app.srv.ShutdownWithTimeout(timeout); err != nil {
		lgr.Error("shutdown failed", zap.Error(err))
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := database.Open(ctx, app.config.Database)
	if err != nil {
		return err
	}

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return err
	}

	app.logger.Info("migrations applied",
		zap.String("driver", app.config.Database.Driver),
		zap.Strings("migrations", applied),
	)

	app.db = db
	return nil
}

func WithAuth(_ context.Context, app *App) error {
	authLogger := logger.NewAdapter(app.logger, "auth")

	hasher, err := auth.NewHasher(app.config.HasherConfig())
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(app.config.TokenConfig(), auth.WithTokenLogger(authLogger))
	if err != nil {
		return err
	}

	app.repo = auth.NewRepositoryManager(app.db)
	app.repo.MustValidate()

	app.tokens = tokens
	app.credentials = auth.NewCredentialStore(
		app.repo,
		hasher,
		auth.WithCredentialLogger(authLogger),
		auth.WithActivitySink(activitySink(app)),
		auth.WithHashidUserIDs(app.config.Auth.HashidUserIDs),
	)

	return nil
}

func WithExpenses(app *App) {
	scope := app.config.ReadScope()
	if scope == auth.ReadScopeGlobal {
		app.logger.Warn("expenses read scope is global: every authenticated user can read every expense")
	}

	expLogger := logger.NewAdapter(app.logger, "expenses")

	app.expenses = expenses.NewService(
		expenses.NewRepository(app.db),
		app.repo,
		auth.NewGuard(scope),
		expenses.WithLogger(expLogger),
		expenses.WithActivitySink(activitySink(app)),
	)
}

func WithHTTPServer(app *App) {
	debug := app.config.Log.Debug
	basePath := app.config.Server.BasePath

	app.srv = api.New(api.Options{
		Debug:       debug,
		BasePath:    basePath,
		CORSOrigins: app.config.Server.CORSOrigins,
		Logger:      app.logger.Named("http"),
		DB:          app.db,
		Verifier:    app.tokens,
		Users: api.NewUsersController(func(c *api.UsersController) *api.UsersController {
			c.Debug = debug
			c.Logger = logger.NewAdapter(app.logger, "users:ctrl")
			c.Credentials = app.credentials
			c.Tokens = app.tokens
			c.Expenses = app.expenses
			return c
		}),
		Expenses: api.NewExpensesController(func(c *api.ExpensesController) *api.ExpensesController {
			c.Logger = logger.NewAdapter(app.logger, "expenses:ctrl")
			c.Expenses = app.expenses
			c.BasePath = basePath
			return c
		}),
	})
}

func activitySink(app *App) auth.ActivitySink {
	return auth.MultiActivitySink{
		logger.NewActivitySink(app.logger),
		metrics.ActivitySink{},
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
