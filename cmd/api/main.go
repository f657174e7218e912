//	@title			Cargohold API
//	@version		1.0
//	@description	Multi-tenant object storage with signed-URL access control.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Project API key (or admin JWT on /api/admin routes). Format: **Bearer {key}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/cargohold/service/internal/admin"
	"github.com/cargohold/service/internal/bucket"
	"github.com/cargohold/service/internal/config"
	"github.com/cargohold/service/internal/db"
	"github.com/cargohold/service/internal/gate"
	"github.com/cargohold/service/internal/health"
	appMiddleware "github.com/cargohold/service/internal/middleware"
	"github.com/cargohold/service/internal/object"
	"github.com/cargohold/service/internal/optimize"
	"github.com/cargohold/service/internal/project"
	"github.com/cargohold/service/internal/signing"
	"github.com/cargohold/service/internal/storage"

	_ "github.com/cargohold/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	store, err := newStorage(cfg)
	if err != nil {
		log.Fatalf("object storage init failed: %v", err)
	}

	// Wire dependencies: repository → service → handler
	projectRepo := project.NewRepository(pool)
	projectSvc := project.NewService(projectRepo)

	bucketRepo := bucket.NewRepository(pool)
	bucketSvc := bucket.NewService(bucketRepo)

	objectRepo := object.NewRepository(pool)
	objectSvc := object.NewService(objectRepo, bucketRepo, store, cfg)

	signer := signing.NewSigner(projectSvc)
	accessGate := gate.New(objectRepo, signer)
	objectHandler := object.NewHandler(objectSvc, accessGate, signer, cfg)

	adminRepo := admin.NewRepository(pool)
	adminSvc := admin.NewService(adminRepo, cfg)
	adminHandler := admin.NewHandler(adminSvc, projectSvc, bucketSvc)

	optimizeSvc := optimize.NewService(objectRepo, store, cfg)
	optimizeHandler := optimize.NewHandler(optimizeSvc, signer)

	healthHandler := health.NewHandler(pool, store)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(httprate.LimitByIP(300, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Check)

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		// Public signed/unsigned read path
		r.Get("/get-file", objectHandler.ServeFile)
		r.Get("/thumbnails/{id}/{variant}", optimizeHandler.ServeThumbnail)

		// Project-scoped operations, authenticated with a bearer API key
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAPIKey(projectSvc))
			r.Post("/upload", objectHandler.Upload)
			r.Get("/object", objectHandler.Download)
			r.Delete("/object", objectHandler.Delete)
			r.Get("/list", objectHandler.List)
			r.Post("/generate-signed-url", objectHandler.GenerateSignedURL)
			r.Post("/optimize", optimizeHandler.Optimize)
			r.Post("/optimize/batch", optimizeHandler.OptimizeBatch)
		})

		// Admin panel API
		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin(cfg.AdminJWTSecret))
				r.Get("/projects", adminHandler.ListProjects)
				r.Post("/projects", adminHandler.CreateProject)
				r.Delete("/projects/{id}", adminHandler.DeleteProject)
				r.Get("/buckets", adminHandler.ListBuckets)
				r.Post("/buckets", adminHandler.CreateBucket)
				r.Delete("/buckets/{id}", adminHandler.DeleteBucket)
				r.Get("/stats", adminHandler.GetStats)
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // large object downloads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s, storage=%s)", cfg.Port, cfg.AppEnv, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

// newStorage picks the byte store backend from configuration.
func newStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewMinioStorage(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageUseSSL,
		)
	}
	return storage.NewLocalStorage(cfg.StoragePath)
}
