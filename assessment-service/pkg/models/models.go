package models

import (
	"errors"
	"time"
)

// Modality - один входной канал оценки
type Modality string

const (
	ModalitySpiral   Modality = "spiral"
	ModalityMRI      Modality = "mri"
	ModalitySymptoms Modality = "symptoms"
)

// Метки исходов. Все, кроме Positive, Negative и Borderline, - деградированные
// состояния, которые клиент показывает как "анализ недоступен"
const (
	LabelPositive         = "Positive"
	LabelNegative         = "Negative"
	LabelBorderline       = "Borderline"
	LabelModelNotLoaded   = "Model not loaded"
	LabelExtractionFailed = "Failed to extract features"
	LabelPredictionError  = "Prediction error"
	LabelAnalysisError    = "Error in analysis"

	// LabelNotProvided - необязательная модальность не передана
	LabelNotProvided = "Not provided"
)

// ImageSample - загруженное изображение с исходным именем файла
type ImageSample struct {
	Filename string
	Data     []byte
}

// FeatureMethod задает способ получения FeatureVector из изображения
type FeatureMethod string

const (
	FeatureMethodHOG     FeatureMethod = "hog"
	FeatureMethodFlatten FeatureMethod = "flatten"
)

// FeatureVector - дескриптор фиксированной длины для классификатора
type FeatureVector struct {
	Method FeatureMethod
	Values []float64
}

// Len возвращает длину вектора
func (v FeatureVector) Len() int {
	return len(v.Values)
}

// ModalityOutcome - вердикт одного классификатора изображений
type ModalityOutcome struct {
	Label      string  `json:"result"`
	Confidence float64 `json:"confidence"`
}

// Degraded сообщает, что исход - состояние ошибки, а не вердикт
func (o ModalityOutcome) Degraded() bool {
	return !IsVerdict(o.Label)
}

// SymptomOutcome - вердикт правила анкеты
type SymptomOutcome struct {
	Label      string  `json:"result"`
	Confidence float64 `json:"confidence"`
	Urgent     bool    `json:"urgent"`
}

// Degraded сообщает, что анализ анкеты завершился ошибкой
func (o SymptomOutcome) Degraded() bool {
	return !IsVerdict(o.Label)
}

// IsVerdict сообщает, что label - Positive, Negative или Borderline
func IsVerdict(label string) bool {
	switch label {
	case LabelPositive, LabelNegative, LabelBorderline:
		return true
	}
	return false
}

// ModalityResult - одна строка итогового отчета
type ModalityResult struct {
	Result     string  `json:"result"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
	Available  bool    `json:"available"`
	Degraded   bool    `json:"degraded"`
}

// RiskLevel - уровень риска и класс, которым UI его окрашивает
type RiskLevel struct {
	Level string `json:"level"`
	Class string `json:"class"`
}

const (
	RiskLow      = "Low"
	RiskModerate = "Moderate"
	RiskHigh     = "High"

	ClassSuccess = "success"
	ClassWarning = "warning"
	ClassDanger  = "danger"
)

// FusionResult - итоговая запись оценки для клиентов
type FusionResult struct {
	AssessmentID        string         `json:"assessment_id"`
	Spiral              ModalityResult `json:"spiral"`
	MRI                 ModalityResult `json:"mri"`
	Symptoms            ModalityResult `json:"symptoms"`
	CombinedProbability float64        `json:"combined_probability"`
	RiskLevel           RiskLevel      `json:"risk_level"`
	UrgentConsultation  bool           `json:"urgent_consultation"`
	CreatedAt           time.Time      `json:"created_at"`
}

// ModalityEvent отправляется один раз на каждую завершенную модальность
type ModalityEvent struct {
	AssessmentID string    `json:"assessment_id"`
	Modality     Modality  `json:"modality"`
	Result       string    `json:"result"`
	Confidence   float64   `json:"confidence"`
	Urgent       bool      `json:"urgent,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	FinishedAt   time.Time `json:"finished_at"`
}

// ErrorResponse - тело любого ответа API с кодом не 2xx
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status"`
}

// QuestionsResponse - ключи анкеты, которые принимает API
type QuestionsResponse struct {
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

// Ошибки
var (
	ErrExtraction        = errors.New("feature extraction failed")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrPrediction        = errors.New("prediction failed")
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	ErrAnalysis          = errors.New("symptom analysis failed")
	ErrSpiralRequired    = errors.New("spiral drawing is required")
	ErrUnsupportedImage  = errors.New("unsupported image type")
	ErrInvalidID         = errors.New("assessment id must be a UUID")
)
