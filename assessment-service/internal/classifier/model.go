package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Prediction - ответ бинарной модели на один вектор признаков
type Prediction struct {
	Label         int
	Probabilities []float64
}

// Model - обученный бинарный классификатор, общий для всех запросов
type Model interface {
	// Dimension is the feature length the model was trained on
	Dimension() int
	Predict(ctx context.Context, features []float64) (Prediction, error)
}

// Artifact - сериализованная LinearModel: коэффициенты логистической
// регрессии, выгруженные из ноутбука обучения
type Artifact struct {
	Modality  models.Modality      `json:"modality"`
	Method    models.FeatureMethod `json:"method"`
	Version   string               `json:"version,omitempty"`
	Dimension int                  `json:"dimension"`
	Weights   []float64            `json:"weights"`
	Intercept float64              `json:"intercept"`
}

// LinearModel - логистическая регрессия над вектором признаков
type LinearModel struct {
	artifact Artifact
}

// ParseArtifact декодирует и проверяет JSON-артефакт
func ParseArtifact(data []byte) (*LinearModel, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode artifact: %v", models.ErrModelUnavailable, err)
	}

	if a.Dimension <= 0 {
		return nil, fmt.Errorf("%w: artifact dimension %d", models.ErrModelUnavailable, a.Dimension)
	}
	if len(a.Weights) != a.Dimension {
		return nil, fmt.Errorf("%w: artifact has %d weights for dimension %d",
			models.ErrModelUnavailable, len(a.Weights), a.Dimension)
	}
	for i, w := range a.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is not finite", models.ErrModelUnavailable, i)
		}
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return nil, fmt.Errorf("%w: intercept is not finite", models.ErrModelUnavailable)
	}

	return &LinearModel{artifact: a}, nil
}

// Dimension возвращает ожидаемую длину вектора
func (m *LinearModel) Dimension() int {
	return m.artifact.Dimension
}

// Method возвращает дескриптор, на котором обучена модель
func (m *LinearModel) Method() models.FeatureMethod {
	return m.artifact.Method
}

// Version возвращает версию артефакта
func (m *LinearModel) Version() string {
	return m.artifact.Version
}

// Predict возвращает класс 1 при положительном решающем значении, а его
// сигмоиду - как вероятность класса 1
func (m *LinearModel) Predict(ctx context.Context, features []float64) (Prediction, error) {
	if len(features) != m.artifact.Dimension {
		return Prediction{}, fmt.Errorf("%w: %w: got %d, model expects %d",
			models.ErrPrediction, models.ErrDimensionMismatch, len(features), m.artifact.Dimension)
	}

	z := m.artifact.Intercept
	for i, x := range features {
		z += m.artifact.Weights[i] * x
	}
	if math.IsNaN(z) {
		return Prediction{}, fmt.Errorf("%w: decision value is NaN", models.ErrPrediction)
	}

	p1 := 1 / (1 + math.Exp(-z))
	label := 0
	if z > 0 {
		label = 1
	}

	return Prediction{
		Label:         label,
		Probabilities: []float64{1 - p1, p1},
	}, nil
}
