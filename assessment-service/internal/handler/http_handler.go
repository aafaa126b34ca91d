package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Krimson/neuro-risk/assessment-service/internal/health"
	"github.com/Krimson/neuro-risk/assessment-service/internal/imaging"
	"github.com/Krimson/neuro-risk/assessment-service/internal/service"
	"github.com/Krimson/neuro-risk/assessment-service/internal/symptoms"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Assessor проводит оценки. Реализуется service.AssessmentService
type Assessor interface {
	Assess(ctx context.Context, req service.Request) (*models.FusionResult, error)
	AssessWithSink(ctx context.Context, req service.Request, extra service.Sink) (*models.FusionResult, error)
	GetStats() map[string]interface{}
}

// StatsSource добавляет раздел в /debug/stats
type StatsSource interface {
	GetStats() map[string]interface{}
}

// HTTPHandler обслуживает REST API, websocket-потоки и служебные маршруты
type HTTPHandler struct {
	assessor  Assessor
	health    *health.HealthServer
	hub       *Hub
	maxUpload int64
	stats     map[string]StatsSource
}

// NewHTTPHandler создает обработчик. maxUpload ограничивает размер загрузки в байтах
func NewHTTPHandler(assessor Assessor, healthServer *health.HealthServer, hub *Hub, maxUpload int64) *HTTPHandler {
	return &HTTPHandler{
		assessor:  assessor,
		health:    healthServer,
		hub:       hub,
		maxUpload: maxUpload,
		stats:     make(map[string]StatsSource),
	}
}

// AddStats публикует source в /debug/stats под именем name
func (h *HTTPHandler) AddStats(name string, source StatsSource) {
	h.stats[name] = source
}

// RegisterRoutes регистрирует все маршруты сервиса
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assessments", h.CreateAssessment).Methods(http.MethodPost)
	api.HandleFunc("/questions", h.GetQuestions).Methods(http.MethodGet)

	router.HandleFunc("/ws/assessments", h.StreamAssessment).Methods(http.MethodGet)
	if h.hub != nil {
		router.HandleFunc("/ws/events", h.hub.HandleWebSocket).Methods(http.MethodGet)
	}

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	router.HandleFunc("/debug/stats", h.DebugStats).Methods(http.MethodGet)
}

// CreateAssessment проводит оценку по загруженным изображениям и ответам
// @Summary Run a risk screening
// @Description Accepts a spiral drawing (required), an MRI slice (optional) and the seven questionnaire answers, and returns the fused risk assessment
// @Tags Assessments
// @Accept multipart/form-data
// @Produce json
// @Param spiral formData file true "Hand-drawn spiral image"
// @Param mri formData file false "MRI slice, ignored when the extension is not allowed"
// @Param assessment_id formData string false "Client-chosen UUID for /ws/events filtering"
// @Param tremor formData string false "yes or no"
// @Param stiffness formData string false "yes or no"
// @Param slowness formData string false "yes or no"
// @Param balance formData string false "yes or no"
// @Param handwriting formData string false "yes or no"
// @Param speech formData string false "yes or no"
// @Param fatigue formData string false "yes or no"
// @Success 200 {object} models.FusionResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/assessments [post]
func (h *HTTPHandler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Upload too large", fmt.Sprintf("limit is %d bytes", h.maxUpload))
			return
		}
		respondError(w, http.StatusBadRequest, "Failed to parse form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	spiral, err := readUpload(r, "spiral")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid spiral upload", err.Error())
		return
	}
	if spiral == nil {
		respondError(w, http.StatusBadRequest, "Spiral drawing is required", "")
		return
	}

	mri, err := readUpload(r, "mri")
	if errors.Is(err, models.ErrUnsupportedImage) {
		log.Printf("[WARN] Ignoring MRI upload: %v", err)
		mri, err = nil, nil
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid MRI upload", err.Error())
		return
	}

	answers := make(map[string]string, len(symptoms.Questions))
	for _, q := range symptoms.Questions {
		answers[q] = r.FormValue(q)
	}

	result, err := h.assessor.Assess(r.Context(), service.Request{
		ID:      r.FormValue("assessment_id"),
		Spiral:  spiral,
		MRI:     mri,
		Answers: answers,
	})
	if err != nil {
		if errors.Is(err, models.ErrSpiralRequired) {
			respondError(w, http.StatusBadRequest, "Spiral drawing is required", "")
			return
		}
		if errors.Is(err, models.ErrInvalidID) {
			respondError(w, http.StatusBadRequest, "Invalid assessment_id", err.Error())
			return
		}
		log.Printf("[ERROR] Assessment failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Assessment failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// readUpload возвращает nil без ошибки, если поле отсутствует или пусто
func readUpload(r *http.Request, field string) (*models.ImageSample, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, nil
	}
	if !imaging.AllowedFile(header.Filename) {
		return nil, fmt.Errorf("%w: %s (allowed: %v)", models.ErrUnsupportedImage, header.Filename, imaging.AllowedExtensions)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &models.ImageSample{Filename: header.Filename, Data: data}, nil
}

// GetQuestions возвращает ключи анкеты
// @Summary List questionnaire keys
// @Tags Assessments
// @Produce json
// @Success 200 {object} models.QuestionsResponse
// @Router /api/questions [get]
func (h *HTTPHandler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.QuestionsResponse{
		Questions: symptoms.Questions,
		Answers:   []string{symptoms.AnswerYes, symptoms.AnswerNo},
	})
}

// Healthz сообщает состояние сервиса и его зависимостей
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /healthz [get]
func (h *HTTPHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	report := map[string]string{}
	healthy := true
	if h.health != nil {
		report, healthy = h.health.Report(r.Context())
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	respondJSON(w, status, map[string]interface{}{
		"status":   state,
		"services": report,
		"models":   h.assessor.GetStats()["models"],
	})
}

// DebugStats возвращает счетчики запросов и статистику зависимостей
// @Summary Service statistics
// @Tags System
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /debug/stats [get]
func (h *HTTPHandler) DebugStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"assessments": h.assessor.GetStats(),
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	for name, source := range h.stats {
		stats[name] = source.GetStats()
	}
	if h.hub != nil {
		stats["websocket"] = h.hub.GetStats()
	}
	respondJSON(w, http.StatusOK, stats)
}

// respondJSON кодирует ответ до записи статуса, чтобы ошибка кодирования
// стала 500, а не пустым 200
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
		body, _ = json.Marshal(models.ErrorResponse{
			Error:   "Failed to encode response",
			Details: err.Error(),
			Status:  http.StatusInternalServerError,
		})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, models.ErrorResponse{
		Error:   message,
		Details: details,
		Status:  status,
	})
}

// EnableCORS разрешает вызовы API из браузерных клиентов с других доменов
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
