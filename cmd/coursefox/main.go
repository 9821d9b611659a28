package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/ManuelReschke/CourseFox/app/controllers"
	"github.com/ManuelReschke/CourseFox/app/repository"
	"github.com/ManuelReschke/CourseFox/internal/pkg/cache"
	"github.com/ManuelReschke/CourseFox/internal/pkg/constants"
	"github.com/ManuelReschke/CourseFox/internal/pkg/database"
	"github.com/ManuelReschke/CourseFox/internal/pkg/enrollment"
	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
	"github.com/ManuelReschke/CourseFox/internal/pkg/gatewaysettings"
	"github.com/ManuelReschke/CourseFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CourseFox/internal/pkg/mail"
	"github.com/ManuelReschke/CourseFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/CourseFox/internal/pkg/payment"
	"github.com/ManuelReschke/CourseFox/internal/pkg/paystack"
	"github.com/ManuelReschke/CourseFox/internal/pkg/poller"
	"github.com/ManuelReschke/CourseFox/internal/pkg/router"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
	"github.com/ManuelReschke/CourseFox/internal/pkg/session"
)

func main() {
	app, manager := NewApplication()
	manager.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		manager.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	redisClient := cache.GetClient()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/coursefox to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	cipher, err := security.NewSecretCipherFromEnv()
	if err != nil {
		log.Fatalf("Settings cipher: %v", err)
	}

	repos := repository.NewRepositories(db)
	settings := gatewaysettings.NewStoreFromDB(db, cipher)
	writer := enrollment.NewWriterFromDB(db)
	processor := paystack.NewClientFromEnv()
	counters := counter.New(redisClient)

	payCfg := payment.Config{
		GatewayName:     env.GetEnv("PAYMENT_GATEWAY_NAME", payment.DefaultGatewayName),
		CallbackBaseURL: env.GetEnv("APP_URL", "http://localhost:4000"),
		CallTimeout:     env.GetEnvSeconds("PAYSTACK_TIMEOUT_SECONDS", payment.DefaultCallTimeout),
	}
	initiator := payment.NewInitiator(repos.Course, writer, settings, processor, repos.CheckoutSession, payCfg)
	receiver := payment.NewReceiver(settings, security.NewHMACSHA512Signer(), processor, writer, repos.CheckoutSession, payCfg)
	reconciler := payment.NewReconciler(settings, processor, writer, repos.CheckoutSession, payCfg)

	manager := jobqueue.NewManager(
		redisClient,
		env.GetEnvInt("JOBQUEUE_WORKERS", jobqueue.DefaultWorkers),
		reconciler,
		counters,
		time.Duration(env.GetEnvInt("RECONCILE_SWEEP_INTERVAL_MINUTES", 10))*time.Minute,
	)

	pollCfg := poller.Config{Interval: poller.DefaultInterval, Timeout: poller.DefaultTimeout}
	payments := controllers.NewPaymentController(initiator, receiver, writer, counters, pollCfg)
	if mailer := mail.NewSMTPMailerFromEnv(); mailer != nil {
		payments.WithReceipts(mailer, payCfg.CallbackBaseURL)
	}
	admin := controllers.NewAdminPaymentController(settings, repos.CheckoutSession, manager.GetQueue(), counters)

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     html.New(basePath+"views", ".html"),
		BodyLimit: 1 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: constants.DocsAPIPrefix + "/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Deps{
		Sessions: session.NewSessionStore(redisClient),
		Users:    repos.User,
		Payments: payments,
		Admin:    admin,
	})

	return app, manager
}
