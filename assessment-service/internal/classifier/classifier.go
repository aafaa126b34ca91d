package classifier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Classifier превращает изображение в ModalityOutcome. Реализации не
// возвращают ошибок и не паникуют: сбои становятся деградированными исходами
type Classifier interface {
	Modality() models.Modality
	Classify(ctx context.Context, sample models.ImageSample) models.ModalityOutcome
}

// FeatureExtractor - часть imaging.Extractor, нужная классификатору
type FeatureExtractor interface {
	Extract(ctx context.Context, sample models.ImageSample, method models.FeatureMethod) (models.FeatureVector, error)
}

const (
	notLoadedConfidence  = 0.0
	extractionConfidence = 0.0
	// Neutral so a failed prediction does not lean the result either way
	predictionErrConfidence = 0.5
)

// ModelClassifier применяет обученную Model к извлеченным признакам
type ModelClassifier struct {
	modality  models.Modality
	method    models.FeatureMethod
	extractor FeatureExtractor
	model     Model
	loadErr   error
	timeout   time.Duration
	debug     bool
}

// ModelOption настраивает ModelClassifier
type ModelOption func(*ModelClassifier)

// WithTimeout ограничивает извлечение признаков и инференс по отдельности
func WithTimeout(d time.Duration) ModelOption {
	return func(c *ModelClassifier) {
		c.timeout = d
	}
}

// WithDebug включает [DEBUG] логи классификатора
func WithDebug(debug bool) ModelOption {
	return func(c *ModelClassifier) {
		c.debug = debug
	}
}

// NewModelClassifier создает классификатор модальности. При nil model или
// непустом loadErr классификатор навсегда остается в режиме "Model not loaded"
func NewModelClassifier(modality models.Modality, method models.FeatureMethod, extractor FeatureExtractor, model Model, loadErr error, opts ...ModelOption) *ModelClassifier {
	c := &ModelClassifier{
		modality:  modality,
		method:    method,
		extractor: extractor,
		model:     model,
		loadErr:   loadErr,
	}
	if loadErr != nil {
		c.model = nil
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Modality возвращает модальность классификатора
func (c *ModelClassifier) Modality() models.Modality {
	return c.modality
}

// Ready сообщает, загружена ли модель
func (c *ModelClassifier) Ready() bool {
	return c.model != nil
}

// LoadError возвращает причину, по которой модель недоступна
func (c *ModelClassifier) LoadError() error {
	if c.model != nil {
		return nil
	}
	if c.loadErr != nil {
		return c.loadErr
	}
	return models.ErrModelUnavailable
}

// Classify извлекает признаки из sample и оценивает их
func (c *ModelClassifier) Classify(ctx context.Context, sample models.ImageSample) models.ModalityOutcome {
	if c.model == nil {
		return models.ModalityOutcome{Label: models.LabelModelNotLoaded, Confidence: notLoadedConfidence}
	}

	features, err := callWithTimeout(ctx, c.timeout, func(ctx context.Context) (models.FeatureVector, error) {
		return c.extractor.Extract(ctx, sample, c.method)
	})
	if err != nil && isTimeout(err) {
		log.Printf("[ERROR] [%s] Feature extraction timed out for %s: %v", tag(c.modality), sample.Filename, err)
		return models.ModalityOutcome{Label: models.LabelPredictionError, Confidence: predictionErrConfidence}
	}

	return c.Evaluate(ctx, features, err)
}

// Evaluate превращает вектор признаков, или ошибку его вычисления, в исход
func (c *ModelClassifier) Evaluate(ctx context.Context, features models.FeatureVector, extractErr error) models.ModalityOutcome {
	if c.model == nil {
		return models.ModalityOutcome{Label: models.LabelModelNotLoaded, Confidence: notLoadedConfidence}
	}

	if extractErr != nil {
		log.Printf("[ERROR] [%s] Feature extraction failed: %v", tag(c.modality), extractErr)
		return models.ModalityOutcome{Label: models.LabelExtractionFailed, Confidence: extractionConfidence}
	}

	if features.Len() != c.model.Dimension() {
		log.Printf("[ERROR] [%s] %v: got %d features, model expects %d",
			tag(c.modality), models.ErrDimensionMismatch, features.Len(), c.model.Dimension())
		return models.ModalityOutcome{Label: models.LabelPredictionError, Confidence: predictionErrConfidence}
	}

	pred, err := callWithTimeout(ctx, c.timeout, func(ctx context.Context) (Prediction, error) {
		return c.model.Predict(ctx, features.Values)
	})
	if err != nil {
		log.Printf("[ERROR] [%s] Prediction error: %v", tag(c.modality), err)
		return models.ModalityOutcome{Label: models.LabelPredictionError, Confidence: predictionErrConfidence}
	}
	if err := checkProbabilities(pred.Probabilities); err != nil {
		log.Printf("[ERROR] [%s] Prediction error: %v", tag(c.modality), err)
		return models.ModalityOutcome{Label: models.LabelPredictionError, Confidence: predictionErrConfidence}
	}

	label := models.LabelNegative
	if pred.Label == 1 {
		label = models.LabelPositive
	}

	best := pred.Probabilities[0]
	for _, p := range pred.Probabilities[1:] {
		best = math.Max(best, p)
	}
	confidence := round2(best)

	if c.debug {
		log.Printf("[DEBUG] [%s] Model prediction: %s, confidence: %.2f", tag(c.modality), label, confidence)
	}

	return models.ModalityOutcome{Label: label, Confidence: confidence}
}

// callWithTimeout запускает fn в отдельной горутине, чтобы декодер или
// модель, игнорирующие контекст, не держали запрос дольше дедлайна.
// Паника внутри fn возвращается ошибкой
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{value: zero, err: fmt.Errorf("%w: panic: %v", models.ErrPrediction, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", models.ErrPrediction, ctx.Err())
	}
}

// checkProbabilities отклоняет пустое распределение и значения вне [0, 1]
func checkProbabilities(probs []float64) error {
	if len(probs) == 0 {
		return fmt.Errorf("%w: model returned no probabilities", models.ErrPrediction)
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return fmt.Errorf("%w: probability %d is %v, outside [0, 1]", models.ErrPrediction, i, p)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func tag(m models.Modality) string {
	return strings.ToUpper(string(m))
}
