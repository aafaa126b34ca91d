// Package fusion combines per-modality outcomes into one risk verdict.
package fusion

import (
	"log"
	"time"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Weights - базовые доли модальностей до нормализации
type Weights struct {
	Spiral   float64
	MRI      float64
	Symptoms float64
}

// Sum возвращает сумму долей
func (w Weights) Sum() float64 {
	return w.Spiral + w.MRI + w.Symptoms
}

// Normalize приводит сумму весов к 1. Нулевые веса остаются нулевыми
func (w Weights) Normalize() Weights {
	sum := w.Sum()
	if sum <= 0 {
		return Weights{}
	}
	return Weights{
		Spiral:   w.Spiral / sum,
		MRI:      w.MRI / sum,
		Symptoms: w.Symptoms / sum,
	}
}

var (
	// WithMRI применяется, когда есть исход МРТ
	WithMRI = Weights{Spiral: 0.2, MRI: 0.1, Symptoms: 0.7}
	// WithoutMRI переносит долю МРТ на анкету
	WithoutMRI = Weights{Spiral: 0.2, MRI: 0, Symptoms: 0.8}
)

// Границы уровней риска по итоговой вероятности
const (
	LowBelow      = 0.2
	ModerateBelow = 0.5
)

// RiskLevelFor сопоставляет вероятности уровень риска
func RiskLevelFor(p float64) models.RiskLevel {
	switch {
	case p < LowBelow:
		return models.RiskLevel{Level: models.RiskLow, Class: models.ClassSuccess}
	case p < ModerateBelow:
		return models.RiskLevel{Level: models.RiskModerate, Class: models.ClassWarning}
	default:
		return models.RiskLevel{Level: models.RiskHigh, Class: models.ClassDanger}
	}
}

// Engine объединяет исходы. Состояния не хранит, безопасен для конкурентного использования
type Engine struct {
	now   func() time.Time
	debug bool
}

// NewEngine создает движок объединения
func NewEngine(debug bool) *Engine {
	return &Engine{
		now:   time.Now,
		debug: debug,
	}
}

// Fuse строит итоговую запись. mri равен nil, если МРТ не передана.
//
// CombinedProbability равна уверенности анкеты. Нормализованные веса
// возвращаются в отчете, но в вероятность не входят
func (e *Engine) Fuse(spiral models.ModalityOutcome, mri *models.ModalityOutcome, symptoms models.SymptomOutcome) models.FusionResult {
	base := WithoutMRI
	if mri != nil {
		base = WithMRI
	}
	w := base.Normalize()

	result := models.FusionResult{
		Spiral: models.ModalityResult{
			Result:     spiral.Label,
			Confidence: spiral.Confidence,
			Weight:     w.Spiral,
			Available:  true,
			Degraded:   spiral.Degraded(),
		},
		Symptoms: models.ModalityResult{
			Result:     symptoms.Label,
			Confidence: symptoms.Confidence,
			Weight:     w.Symptoms,
			Available:  true,
			Degraded:   symptoms.Degraded(),
		},
		CombinedProbability: symptoms.Confidence,
		UrgentConsultation:  symptoms.Urgent,
		CreatedAt:           e.now().UTC(),
	}

	if mri != nil {
		result.MRI = models.ModalityResult{
			Result:     mri.Label,
			Confidence: mri.Confidence,
			Weight:     w.MRI,
			Available:  true,
			Degraded:   mri.Degraded(),
		}
	} else {
		result.MRI = models.ModalityResult{Result: models.LabelNotProvided, Weight: 0}
	}

	result.RiskLevel = RiskLevelFor(result.CombinedProbability)

	if e.debug {
		log.Printf("[DEBUG] [FUSION] weights spiral=%.2f mri=%.2f symptoms=%.2f, probability=%.2f, risk=%s, urgent=%v",
			w.Spiral, w.MRI, w.Symptoms, result.CombinedProbability, result.RiskLevel.Level, result.UrgentConsultation)
	}

	return result
}
