package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"

	"github.com/Krimson/neuro-risk/assessment-service/internal/inference"
	"github.com/Krimson/neuro-risk/assessment-service/internal/telemetry"
	inferencev1 "github.com/Krimson/neuro-risk/proto/inference"
)

type stubConfig struct {
	Port         string  `env:"INFERENCE_PORT" envDefault:"50052"`
	Seed         int64   `env:"STUB_SEED" envDefault:"1"`
	Noise        float64 `env:"STUB_NOISE" envDefault:"0.5"`
	OTELEndpoint string  `env:"OTEL_EXPORTER_ENDPOINT" envDefault:""`
}

func main() {
	var cfg stubConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("[ERROR] Failed to parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, "inference-stub")
	if err != nil {
		log.Printf("[WARN] Tracing disabled: %v", err)
	} else {
		defer shutdownTracing(context.Background())
	}

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatalf("[ERROR] Failed to listen: %v", err)
	}

	srv, hs := inference.NewServer(inference.NewStub(cfg.Seed, cfg.Noise))

	go func() {
		<-ctx.Done()
		log.Println("[INFO] Shutting down inference stub...")
		hs.SetNotServingStatus(inferencev1.ServiceName)
		srv.GracefulStop()
	}()

	log.Printf("[INFO] Inference stub listening at %v (noise %.2f)", lis.Addr(), cfg.Noise)
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("[ERROR] Failed to serve: %v", err)
	}
	log.Println("[INFO] Inference stub stopped")
}
