package inference

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Krimson/neuro-risk/assessment-service/internal/classifier"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
	inferencev1 "github.com/Krimson/neuro-risk/proto/inference"
)

func startStub(t *testing.T, stub *Stub) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewServer(stub)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStub_Score(t *testing.T) {
	stub := NewStub(1, 0)

	if p := stub.score([]float64{0.5, 0.5}); p != 0.5 {
		t.Errorf("Expected 0.5 for mean 0.5, got %v", p)
	}
	if p := stub.score([]float64{1, 1}); p < 0.98 {
		t.Errorf("Expected high score for bright features, got %v", p)
	}
	if p := stub.score([]float64{0, 0}); p > 0.02 {
		t.Errorf("Expected low score for dark features, got %v", p)
	}
}

func TestStub_NoiseStaysInRange(t *testing.T) {
	stub := NewStub(42, 2)
	for i := 0; i < 100; i++ {
		p := stub.score([]float64{0.5})
		if p < 0 || p > 1 {
			t.Fatalf("Score out of range: %v", p)
		}
	}
}

func TestStub_RejectsEmptyFeatures(t *testing.T) {
	conn := startStub(t, NewStub(1, 0))
	client := inferencev1.NewInferenceServiceClient(conn)

	_, err := client.Predict(context.Background(), inferencev1.EncodeRequest(inferencev1.PredictRequest{Modality: "spiral"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestStub_ServesHealth(t *testing.T) {
	conn := startStub(t, NewStub(1, 0))

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: inferencev1.ServiceName})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %v", resp.Status)
	}
}

func TestStub_WithRemoteModel(t *testing.T) {
	conn := startStub(t, NewStub(1, 0))
	model := classifier.NewRemoteModel(inferencev1.NewInferenceServiceClient(conn), models.ModalityMRI, 4)

	pred, err := model.Predict(context.Background(), []float64{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if pred.Label != 1 || len(pred.Probabilities) != 2 {
		t.Errorf("Unexpected prediction: %+v", pred)
	}

	if _, err := model.Predict(context.Background(), []float64{1}); err == nil {
		t.Error("Expected dimension mismatch before the call")
	}
}
