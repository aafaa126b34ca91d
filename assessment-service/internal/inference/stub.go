// Package inference is a stand-in for the remote inference service, used in
// development and by the remote classifier tests.
package inference

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Krimson/neuro-risk/assessment-service/internal/health"
	inferencev1 "github.com/Krimson/neuro-risk/proto/inference"
)

// Gain задает, насколько среднее признаков сдвигает оценку от 0.5
const Gain = 8.0

// Stub оценивает вектор логистой от его среднего с необязательным шумом
type Stub struct {
	inferencev1.UnimplementedInferenceServiceServer

	mu    sync.Mutex
	rng   *rand.Rand
	noise float64
}

// NewStub возвращает детерминированную заглушку при noise == 0
func NewStub(seed int64, noise float64) *Stub {
	return &Stub{
		rng:   rand.New(rand.NewSource(seed)),
		noise: noise,
	}
}

// Predict реализует inference.v1.InferenceService/Predict
func (s *Stub) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := inferencev1.DecodeRequest(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if len(req.Features) == 0 {
		return nil, status.Error(codes.InvalidArgument, "features are empty")
	}

	p1 := s.score(req.Features)
	label := 0
	if p1 > 0.5 {
		label = 1
	}

	log.Printf("[INFO] Inference stub: %s, %d features, p=%.4f", req.Modality, len(req.Features), p1)

	return inferencev1.EncodeResponse(inferencev1.PredictResponse{
		Label:         label,
		Probabilities: []float64{1 - p1, p1},
	}), nil
}

func (s *Stub) score(features []float64) float64 {
	var sum float64
	for _, f := range features {
		sum += f
	}
	z := (sum/float64(len(features)) - 0.5) * Gain

	if s.noise > 0 {
		s.mu.Lock()
		z += (s.rng.Float64()*2 - 1) * s.noise
		s.mu.Unlock()
	}

	return 1 / (1 + math.Exp(-z))
}

// NewServer регистрирует stub, health-сервис и reflection на новом gRPC-сервере
func NewServer(stub *Stub) (*grpc.Server, *health.HealthServer) {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))

	hs := health.NewHealthServer()
	hs.SetServingStatus(inferencev1.ServiceName)

	inferencev1.RegisterInferenceServiceServer(srv, stub)
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}
