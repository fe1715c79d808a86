package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lovetextforher/lovetext/app/controllers"
	"github.com/lovetextforher/lovetext/app/repository"
	"github.com/lovetextforher/lovetext/internal/pkg/billing"
	"github.com/lovetextforher/lovetext/internal/pkg/cache"
	"github.com/lovetextforher/lovetext/internal/pkg/compose"
	"github.com/lovetextforher/lovetext/internal/pkg/database"
	"github.com/lovetextforher/lovetext/internal/pkg/dispatch"
	"github.com/lovetextforher/lovetext/internal/pkg/env"
	"github.com/lovetextforher/lovetext/internal/pkg/metrics/counter"
	"github.com/lovetextforher/lovetext/internal/pkg/router"
	"github.com/lovetextforher/lovetext/internal/pkg/sender"
	"github.com/lovetextforher/lovetext/internal/pkg/session"
)

func main() {
	app, manager, err := NewApplication()
	if err != nil {
		log.Fatal(err)
	}

	manager.Start()

	// Graceful shutdown: stop accepting requests, then drain the workers.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
	manager.Stop()
}

// NewApplication wires every component by hand and returns the HTTP app plus
// the background-worker manager. There are no package-level singletons; all
// handles flow through constructors.
func NewApplication() (*fiber.App, *dispatch.Manager, error) {
	env.SetupEnvFile()

	db, err := database.Connect()
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}

	rdb, err := cache.New(
		env.GetEnv("CACHE_HOST", "127.0.0.1"),
		env.GetEnv("CACHE_PORT", "6379"),
		env.GetEnv("CACHE_PASSWORD", ""),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: %w", err)
	}

	store := session.NewStoreFromAddr(
		env.GetEnv("CACHE_HOST", "127.0.0.1"),
		env.GetEnv("CACHE_PORT", "6379"),
		env.GetEnv("CACHE_PASSWORD", ""),
	)

	repos := repository.NewRepositories(db)

	mailer := sender.NewSMTPMailer(sender.SMTPConfig{
		Host:     env.GetEnv("SMTP_HOST", "127.0.0.1"),
		Port:     env.GetEnv("SMTP_PORT", "25"),
		Username: env.GetEnv("SMTP_USER", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   env.GetEnv("SMTP_SENDER", "love@lovetextforher.com"),
	})

	var sms sender.SMSSender
	if endpoint := env.GetEnv("SMS_ENDPOINT", ""); endpoint != "" {
		sms = sender.NewHTTPSMSSender(sender.SMSConfig{
			Endpoint:  endpoint,
			AccountID: env.GetEnv("SMS_ACCOUNT_ID", ""),
			AuthToken: env.GetEnv("SMS_AUTH_TOKEN", ""),
			From:      env.GetEnv("SMS_FROM", ""),
		})
	}

	plans := billing.NewPlanResolver(
		env.GetEnv("BILLING_PRICE_TRIAL", ""),
		env.GetEnv("BILLING_PRICE_BASIC", ""),
		env.GetEnv("BILLING_PRICE_PLUS", ""),
	)
	billingSvc := billing.NewServiceFromDB(db, plans)

	sends := counter.NewSendCounter(rdb)
	dispatcher := dispatch.NewDispatcher(
		repos.Recipient,
		repos.User,
		repos.MessageLog,
		compose.NewComposer(),
		mailer,
		sms,
		sends,
		envInt("DISPATCH_WORKERS", 5),
	)
	manager := dispatch.NewManager(
		dispatcher,
		billingSvc,
		time.Duration(envInt("DISPATCH_INTERVAL_SECONDS", 60))*time.Second,
		time.Duration(envInt("TRIAL_SWEEP_INTERVAL_MINUTES", 60))*time.Minute,
	)

	app := fiber.New(fiber.Config{
		AppName: "lovetextforher",
	})
	app.Use(recover.New(), logger.New())

	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	if basePath := findBasePath(); basePath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	}

	router.InstallRouter(app, router.Deps{
		Store:         store,
		Auth:          controllers.NewAuthController(repos.User, store),
		Recipients:    controllers.NewRecipientController(repos.User, repos.Recipient),
		Billing:       controllers.NewBillingController(billingSvc, env.GetEnv("BILLING_WEBHOOK_SECRET", "")),
		Unsubscribe:   controllers.NewUnsubscribeController(repos.Recipient),
		PasswordReset: controllers.NewPasswordResetController(repos.User, repos.PasswordReset, mailer, env.GetEnv("APP_BASE_URL", "http://localhost:4000")),
		Cart:          controllers.NewCartController(repos.Cart),
		Admin:         controllers.NewAdminController(repos.User),
		Stats:         controllers.NewStatsController(repos.MessageLog, sends),
	})

	return app, manager, nil
}

// findBasePath locates the project root relative to the working directory so
// the binary runs both from the repo root and from cmd/lovetext.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if _, err := os.Stat(path + "public"); err == nil {
			return path
		}
	}
	return ""
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil && v > 0 {
		return v
	}
	return def
}
