package classifier

import (
	"context"
	"log"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// RandomSource выдает равномерные значения в [0, 1)
type RandomSource interface {
	Float64() float64
}

// MockClassifier ставит метку по подсказкам в имени файла. Заменяет
// настоящую модель в демо и когда артефакт не развернут
type MockClassifier struct {
	modality models.Modality

	mu  sync.Mutex
	rng RandomSource
}

// NewMockClassifier создает мок модальности. При nil rng используется
// источник, засеянный временем
func NewMockClassifier(modality models.Modality, rng RandomSource) *MockClassifier {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockClassifier{
		modality: modality,
		rng:      rng,
	}
}

// Modality возвращает модальность мока
func (m *MockClassifier) Modality() models.Modality {
	return m.modality
}

// Classify возвращает Negative для имен с "healthy", Positive для "patient"
// и Borderline для остальных
func (m *MockClassifier) Classify(ctx context.Context, sample models.ImageSample) (outcome models.ModalityOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] [%s] Mock analysis failed: %v", tag(m.modality), r)
			outcome = models.ModalityOutcome{Label: models.LabelAnalysisError, Confidence: predictionErrConfidence}
		}
	}()

	name := strings.ToLower(filepath.Base(sample.Filename))

	switch {
	case strings.Contains(name, "healthy"):
		return models.ModalityOutcome{Label: models.LabelNegative, Confidence: m.uniform(0.10, 0.20)}
	case strings.Contains(name, "patient"):
		return models.ModalityOutcome{Label: models.LabelPositive, Confidence: m.uniform(0.80, 1.00)}
	default:
		return models.ModalityOutcome{Label: models.LabelBorderline, Confidence: m.uniform(0.50, 0.65)}
	}
}

func (m *MockClassifier) uniform(lo, hi float64) float64 {
	m.mu.Lock()
	v := m.rng.Float64()
	m.mu.Unlock()
	return round2(lo + v*(hi-lo))
}
