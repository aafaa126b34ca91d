package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/Krimson/neuro-risk/assessment-service/internal/health"
	"github.com/Krimson/neuro-risk/assessment-service/internal/service"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

type fakeAssessor struct {
	mu  sync.Mutex
	got []service.Request
	err error
}

func (f *fakeAssessor) Assess(ctx context.Context, req service.Request) (*models.FusionResult, error) {
	return f.AssessWithSink(ctx, req, nil)
}

func (f *fakeAssessor) AssessWithSink(ctx context.Context, req service.Request, extra service.Sink) (*models.FusionResult, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if req.Spiral == nil {
		return nil, models.ErrSpiralRequired
	}
	if extra != nil {
		extra.Consume(ctx, models.ModalityEvent{AssessmentID: "a-1", Modality: models.ModalitySpiral, Result: models.LabelPositive, Confidence: 0.9})
	}
	return &models.FusionResult{
		AssessmentID:        "a-1",
		Spiral:              models.ModalityResult{Result: models.LabelPositive, Confidence: 0.9, Weight: 0.2, Available: true},
		CombinedProbability: 0.85,
		RiskLevel:           models.RiskLevel{Level: models.RiskHigh, Class: models.ClassDanger},
	}, nil
}

func (f *fakeAssessor) GetStats() map[string]interface{} {
	return map[string]interface{}{"assessments": int64(1), "models": map[string]string{"spiral": "mock"}}
}

func (f *fakeAssessor) requests() []service.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.Request(nil), f.got...)
}

func newRouter(assessor Assessor, hs *health.HealthServer, hub *Hub) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(assessor, hs, hub, 1<<20).RegisterRoutes(router)
	return router
}

func multipartBody(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte("\x89PNG fake"))
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestCreateAssessment_RequiresSpiral(t *testing.T) {
	router := newRouter(&fakeAssessor{}, nil, nil)

	body, ct := multipartBody(t, map[string]string{"mri": "mri.png"}, map[string]string{"tremor": "yes"})
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if resp.Status != http.StatusBadRequest || resp.Error == "" {
		t.Errorf("Unexpected error body: %+v", resp)
	}
}

func TestCreateAssessment_RejectsExtension(t *testing.T) {
	assessor := &fakeAssessor{}
	router := newRouter(assessor, nil, nil)

	body, ct := multipartBody(t, map[string]string{"spiral": "spiral.exe"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	if len(assessor.requests()) != 0 {
		t.Error("Assessor should not be called for a rejected upload")
	}
}

func TestCreateAssessment_OK(t *testing.T) {
	assessor := &fakeAssessor{}
	router := newRouter(assessor, nil, nil)

	body, ct := multipartBody(t,
		map[string]string{"spiral": "spiral.PNG", "mri": "scan.jpg"},
		map[string]string{"tremor": "yes", "balance": "no"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result models.FusionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.AssessmentID != "a-1" || result.RiskLevel.Level != models.RiskHigh {
		t.Errorf("Unexpected result: %+v", result)
	}

	got := assessor.requests()
	if len(got) != 1 {
		t.Fatalf("Expected one assessment, got %d", len(got))
	}
	if got[0].Spiral.Filename != "spiral.PNG" || got[0].MRI == nil {
		t.Errorf("Unexpected samples: %+v", got[0])
	}
	if got[0].Answers["tremor"] != "yes" || got[0].Answers["fatigue"] != "" {
		t.Errorf("Unexpected answers: %v", got[0].Answers)
	}
	if len(got[0].Answers) != 7 {
		t.Errorf("Expected all 7 questions forwarded, got %d", len(got[0].Answers))
	}
}

func TestCreateAssessment_DropsUnsupportedMRI(t *testing.T) {
	assessor := &fakeAssessor{}
	router := newRouter(assessor, nil, nil)

	body, ct := multipartBody(t, map[string]string{"spiral": "spiral.png", "mri": "scan.dcm"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := assessor.requests()
	if len(got) != 1 {
		t.Fatalf("Expected one assessment, got %d", len(got))
	}
	if got[0].MRI != nil {
		t.Errorf("Unsupported MRI should be dropped, got %q", got[0].MRI.Filename)
	}
	if got[0].Spiral == nil {
		t.Error("Spiral should still be forwarded")
	}
}

func TestCreateAssessment_ForwardsAssessmentID(t *testing.T) {
	assessor := &fakeAssessor{}
	router := newRouter(assessor, nil, nil)

	id := "5f0c6a1e-8d3b-4c2a-9e7f-1a2b3c4d5e6f"
	body, ct := multipartBody(t, map[string]string{"spiral": "spiral.png"}, map[string]string{"assessment_id": id})
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := assessor.requests(); len(got) != 1 || got[0].ID != id {
		t.Errorf("Expected assessment id %q forwarded, got %+v", id, got)
	}
}

func TestCreateAssessment_InvalidAssessmentID(t *testing.T) {
	assessor := &fakeAssessor{err: fmt.Errorf("%w: %q", models.ErrInvalidID, "abc")}
	router := newRouter(assessor, nil, nil)

	body, ct := multipartBody(t, map[string]string{"spiral": "spiral.png"}, map[string]string{"assessment_id": "abc"})
	req := httptest.NewRequest(http.MethodPost, "/api/assessments", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestRespondJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, http.StatusOK, map[string]float64{"confidence": math.NaN()})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Body should be a JSON error: %v", err)
	}
	if resp.Status != http.StatusInternalServerError || resp.Details == "" {
		t.Errorf("Unexpected error body: %+v", resp)
	}
}

func TestGetQuestions(t *testing.T) {
	router := newRouter(&fakeAssessor{}, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/questions", nil))

	var resp models.QuestionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(resp.Questions) != 7 || resp.Questions[0] != "tremor" {
		t.Errorf("Unexpected questions: %v", resp.Questions)
	}
}

func TestHealthz(t *testing.T) {
	hs := health.NewHealthServer()
	hs.SetServingStatus("assessment")
	router := newRouter(&fakeAssessor{}, hs, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	hs.AddProbe("feature-cache", func(ctx context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with failing probe, got %d", rec.Code)
	}
}

type staticStats map[string]interface{}

func (s staticStats) GetStats() map[string]interface{} { return s }

func TestDebugStats(t *testing.T) {
	h := NewHTTPHandler(&fakeAssessor{}, nil, NewHub(), 1<<20)
	h.AddStats("feature_cache", staticStats{"backend": "memory"})
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/stats", nil))

	var stats map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	for _, key := range []string{"assessments", "feature_cache", "websocket", "timestamp"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("Missing %q in stats: %v", key, stats)
		}
	}
}

func TestEnableCORS(t *testing.T) {
	h := EnableCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Preflight should not reach the handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/assessments", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing CORS header")
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamAssessment(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeAssessor{}, nil, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/assessments"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	err = conn.WriteJSON(StreamRequest{
		Spiral:  &StreamImage{Filename: "spiral.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		Answers: map[string]string{"tremor": "yes"},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var first, second StreamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Read event failed: %v", err)
	}
	if first.Type != MessageEvent || first.Event == nil || first.Event.Modality != models.ModalitySpiral {
		t.Errorf("Unexpected first message: %+v", first)
	}

	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("Read result failed: %v", err)
	}
	if second.Type != MessageResult || second.Result == nil || second.Result.AssessmentID != "a-1" {
		t.Errorf("Unexpected second message: %+v", second)
	}
}

func TestStreamAssessment_MissingSpiral(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeAssessor{}, nil, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/assessments"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	conn.WriteJSON(StreamRequest{Answers: map[string]string{}})

	var msg StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if msg.Type != MessageError || msg.Error == nil || msg.Error.Status != http.StatusBadRequest {
		t.Errorf("Expected 400 error message, got %+v", msg)
	}
}

func TestStreamRequest_DropsUnsupportedMRI(t *testing.T) {
	req := StreamRequest{
		AssessmentID: "5f0c6a1e-8d3b-4c2a-9e7f-1a2b3c4d5e6f",
		Spiral:       &StreamImage{Filename: "spiral.png", Data: []byte{1}},
		MRI:          &StreamImage{Filename: "scan.dcm", Data: []byte{1}},
	}

	out, err := req.toServiceRequest()
	if err != nil {
		t.Fatalf("Unsupported MRI must not fail the request: %v", err)
	}
	if out.MRI != nil {
		t.Errorf("Expected MRI dropped, got %+v", out.MRI)
	}
	if out.Spiral == nil || out.ID != req.AssessmentID {
		t.Errorf("Unexpected request: %+v", out)
	}

	req.Spiral.Filename = "spiral.dcm"
	if _, err := req.toServiceRequest(); !errors.Is(err, models.ErrUnsupportedImage) {
		t.Errorf("Unsupported spiral should be rejected, got %v", err)
	}
}

func TestStreamReadLimit(t *testing.T) {
	for _, maxUpload := range []int64{1, 3, 1 << 20, 16 << 20} {
		encoded := int64(base64.StdEncoding.EncodedLen(int(maxUpload)))
		if got := streamReadLimit(maxUpload); got < 2*encoded {
			t.Errorf("streamReadLimit(%d) = %d, below two base64 images of %d", maxUpload, got, encoded)
		}
	}
}

func TestStreamAssessment_MaxSizeImages(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeAssessor{}, nil, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/assessments"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// newRouter allows 1 MiB uploads; two such images exceed 2 MiB in base64
	data := bytes.Repeat([]byte{0xAB}, 1<<20)
	err = conn.WriteJSON(StreamRequest{
		Spiral: &StreamImage{Filename: "spiral.png", Data: data},
		MRI:    &StreamImage{Filename: "mri.png", Data: data},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var msg StreamMessage
	for msg.Type != MessageResult {
		msg = StreamMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if msg.Type == MessageError {
			t.Fatalf("Unexpected error: %+v", msg.Error)
		}
	}
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(newRouter(&fakeAssessor{}, nil, hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/events?assessment_id=a-2"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("Client was not registered")
	}

	hub.Consume(ctx, models.ModalityEvent{AssessmentID: "other", Modality: models.ModalityMRI})
	hub.Consume(ctx, models.ModalityEvent{AssessmentID: "a-2", Modality: models.ModalitySymptoms, Result: models.LabelNegative})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e models.ModalityEvent
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if e.AssessmentID != "a-2" || e.Modality != models.ModalitySymptoms {
		t.Errorf("Expected filtered event for a-2, got %+v", e)
	}
}
