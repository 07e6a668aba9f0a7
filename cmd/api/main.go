package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Jagadeesh-777/patient-docs-portal/docs"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/config"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/database"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/database/migration"
	handlers "github.com/Jagadeesh-777/patient-docs-portal/internal/http/handler"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/http/middleware"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/otel"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/repository"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/repository/postgres"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/repository/sqlite"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/service"
	"github.com/Jagadeesh-777/patient-docs-portal/internal/storage"
)

// @title Patient Docs Portal API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()
	loc := time.UTC

	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Metadata database: SQLite file by default, PostgreSQL when configured.
	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.MetadataDriver, loc); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Blob storage: local directory by default, S3-compatible when configured.
	var blobStore storage.BlobStore
	switch cfg.BlobBackend {
	case config.BlobBackendMinIO:
		blobStore, err = storage.NewMinIO(cfg.MinIO)
	default:
		blobStore, err = storage.NewLocal(cfg.StorageDir)
	}
	if err != nil {
		log.Fatalf("failed to initialize blob storage: %v", err)
	}

	var docRepo repository.DocumentRepository
	switch cfg.MetadataDriver {
	case config.MetadataDriverPostgres:
		docRepo = postgres.NewDocumentPostgres(db)
	default:
		docRepo = sqlite.NewDocumentSQLite(db)
	}

	docSvc := service.NewDocumentService(blobStore, docRepo, cfg.MaxUploadBytes)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Leave headroom for multipart framing; the service enforces the
		// per-file ceiling itself.
		BodyLimit: int(cfg.MaxUploadBytes) + 1<<20,
	})

	// Register global middleware.
	// RequestID adds/propagates X-Request-ID and stores it in context.
	app.Use(middleware.RequestID())
	// JSON logger for structured request logs.
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	promMW, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}
	app.Use(promMW.Handler())

	// Register HTTP routes with injected service.
	handlers.RegisterRoutes(app, db, docSvc)

	// Swagger UI with dynamic host and scheme.
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
