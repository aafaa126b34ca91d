package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Krimson/neuro-risk/assessment-service/config"
	"github.com/Krimson/neuro-risk/assessment-service/internal/bootstrap"
	"github.com/Krimson/neuro-risk/assessment-service/internal/handler"
	"github.com/Krimson/neuro-risk/assessment-service/internal/telemetry"

	_ "github.com/Krimson/neuro-risk/assessment-service/docs" // Swagger docs
)

// @title Neuro Risk Assessment API
// @version 1.0
// @description Multi-modal movement-disorder risk screening.
// @description
// @description ## Inputs
// @description A hand-drawn spiral (required), an MRI slice (optional) and seven yes/no symptom answers.
// @description Each modality is classified independently and fused into a Low, Moderate or High risk tier.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@neurorisk.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[ERROR] Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		log.Printf("[WARN] Tracing disabled: %v", err)
	}

	hub := handler.NewHub()
	go hub.Run(ctx)

	app, err := bootstrap.Build(ctx, cfg, bootstrap.WithSinks(hub))
	if err != nil {
		log.Fatalf("[ERROR] Failed to build pipeline: %v", err)
	}

	httpHandler := handler.NewHTTPHandler(app.Service, app.Health, hub, cfg.MaxUploadBytes)
	if app.Cache != nil {
		httpHandler.AddStats("feature_cache", app.Cache)
	}

	router := mux.NewRouter()
	httpHandler.RegisterRoutes(router)

	// Swagger UI
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.EnableCORS(router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[INFO] Assessment service starting on port %s (classifier mode %s)", cfg.HTTPPort, cfg.ClassifierMode)
		log.Printf("[INFO] Swagger UI at http://localhost:%s/swagger/index.html", cfg.HTTPPort)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[ERROR] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Server forced to shutdown: %v", err)
	}
	cancel()

	if err := app.Close(); err != nil {
		log.Printf("[WARN] Failed to release resources: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("[WARN] Failed to flush traces: %v", err)
	}

	log.Println("[INFO] Server exited gracefully")
}
