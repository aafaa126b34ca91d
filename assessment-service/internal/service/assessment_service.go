package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Krimson/neuro-risk/assessment-service/internal/classifier"
	"github.com/Krimson/neuro-risk/assessment-service/internal/fusion"
	"github.com/Krimson/neuro-risk/assessment-service/internal/symptoms"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

const tracerName = "github.com/Krimson/neuro-risk/assessment-service/internal/service"

// Request - одна оценка: рисунок спирали, необязательный срез МРТ и ответы анкеты
type Request struct {
	// ID задается клиентом, чтобы подписаться на /ws/events до старта
	// оценки. Пустой ID генерируется сервисом.
	ID      string
	Spiral  *models.ImageSample
	MRI     *models.ImageSample
	Answers map[string]string
}

// AssessmentService выполняет анализ по модальностям и объединяет результаты
type AssessmentService struct {
	spiral   classifier.Classifier
	mri      classifier.Classifier
	scorer   *symptoms.Scorer
	engine   *fusion.Engine
	sink     Sink
	parallel bool
	tracer   trace.Tracer
	newID    func() string

	stats struct {
		mu       sync.RWMutex
		total    int64
		rejected int64
		urgent   int64
		degraded map[models.Modality]int64
		risk     map[string]int64
	}
}

// Option настраивает AssessmentService
type Option func(*AssessmentService)

// WithSink задает приемник всех событий модальностей
func WithSink(sink Sink) Option {
	return func(s *AssessmentService) {
		s.sink = sink
	}
}

// WithParallel запускает три анализа параллельно
func WithParallel(parallel bool) Option {
	return func(s *AssessmentService) {
		s.parallel = parallel
	}
}

// WithIDGenerator заменяет генератор ID оценок
func WithIDGenerator(newID func() string) Option {
	return func(s *AssessmentService) {
		s.newID = newID
	}
}

// NewAssessmentService создает сервис оценки
func NewAssessmentService(
	spiral classifier.Classifier,
	mri classifier.Classifier,
	scorer *symptoms.Scorer,
	engine *fusion.Engine,
	opts ...Option,
) *AssessmentService {
	s := &AssessmentService{
		spiral:   spiral,
		mri:      mri,
		scorer:   scorer,
		engine:   engine,
		parallel: true,
		tracer:   otel.Tracer(tracerName),
		newID:    uuid.NewString,
	}
	s.stats.degraded = make(map[models.Modality]int64)
	s.stats.risk = make(map[string]int64)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess проводит оценку
func (s *AssessmentService) Assess(ctx context.Context, req Request) (*models.FusionResult, error) {
	return s.AssessWithSink(ctx, req, nil)
}

// AssessWithSink проводит оценку и дополнительно сообщает extra о каждой
// завершенной модальности. События могут приходить из разных горутин
func (s *AssessmentService) AssessWithSink(ctx context.Context, req Request, extra Sink) (*models.FusionResult, error) {
	if req.Spiral == nil || len(req.Spiral.Data) == 0 {
		s.incrementRejected()
		return nil, models.ErrSpiralRequired
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	} else if _, err := uuid.Parse(id); err != nil {
		s.incrementRejected()
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}
	ctx, span := s.tracer.Start(ctx, "assessment.assess", trace.WithAttributes(
		attribute.String("assessment.id", id),
		attribute.Bool("assessment.mri_provided", req.MRI != nil),
	))
	defer span.End()

	sink := NewCompositeSink(s.sink, extra)
	started := time.Now()
	log.Printf("[INFO] Starting assessment %s (mri=%v, parallel=%v)", id, req.MRI != nil, s.parallel)

	var (
		spiralOut  models.ModalityOutcome
		mriOut     *models.ModalityOutcome
		symptomOut models.SymptomOutcome
	)

	tasks := []func(context.Context){
		func(ctx context.Context) {
			spiralOut = s.classify(ctx, id, s.spiral, *req.Spiral, sink)
		},
		func(ctx context.Context) {
			symptomOut = s.score(ctx, id, req.Answers, sink)
		},
	}
	if req.MRI != nil {
		mri := *req.MRI
		tasks = append(tasks, func(ctx context.Context) {
			out := s.classify(ctx, id, s.mri, mri, sink)
			mriOut = &out
		})
	}

	if s.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, task := range tasks {
			task := task
			g.Go(func() error {
				task(gctx)
				return nil
			})
		}
		// Tasks report failures as outcomes, Wait never returns an error
		_ = g.Wait()
	} else {
		for _, task := range tasks {
			task(ctx)
		}
	}

	result := s.engine.Fuse(spiralOut, mriOut, symptomOut)
	result.AssessmentID = id

	span.SetAttributes(
		attribute.Float64("assessment.combined_probability", result.CombinedProbability),
		attribute.String("assessment.risk_level", result.RiskLevel.Level),
		attribute.Bool("assessment.urgent", result.UrgentConsultation),
	)
	s.record(&result)

	log.Printf("[INFO] Assessment %s finished in %v: risk=%s probability=%.2f urgent=%v",
		id, time.Since(started).Round(time.Millisecond), result.RiskLevel.Level,
		result.CombinedProbability, result.UrgentConsultation)

	return &result, nil
}

func (s *AssessmentService) classify(ctx context.Context, id string, c classifier.Classifier, sample models.ImageSample, sink Sink) models.ModalityOutcome {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("assessment.%s", c.Modality()))
	defer span.End()

	started := time.Now()
	out := c.Classify(ctx, sample)

	span.SetAttributes(
		attribute.String("outcome.label", out.Label),
		attribute.Float64("outcome.confidence", out.Confidence),
	)
	if out.Degraded() {
		s.incrementDegraded(c.Modality())
		log.Printf("[WARN] [%s] Degraded outcome for %s: %s", modalityTag(c.Modality()), id, out.Label)
	}

	s.emit(ctx, sink, models.ModalityEvent{
		AssessmentID: id,
		Modality:     c.Modality(),
		Result:       out.Label,
		Confidence:   out.Confidence,
		DurationMS:   time.Since(started).Milliseconds(),
		FinishedAt:   time.Now().UTC(),
	})
	return out
}

func (s *AssessmentService) score(ctx context.Context, id string, raw map[string]string, sink Sink) models.SymptomOutcome {
	ctx, span := s.tracer.Start(ctx, "assessment.symptoms")
	defer span.End()

	started := time.Now()
	out := s.scorer.Score(symptoms.NormalizeAnswers(raw))

	span.SetAttributes(
		attribute.String("outcome.label", out.Label),
		attribute.Float64("outcome.confidence", out.Confidence),
		attribute.Bool("outcome.urgent", out.Urgent),
	)
	if out.Degraded() {
		s.incrementDegraded(models.ModalitySymptoms)
	}

	s.emit(ctx, sink, models.ModalityEvent{
		AssessmentID: id,
		Modality:     models.ModalitySymptoms,
		Result:       out.Label,
		Confidence:   out.Confidence,
		Urgent:       out.Urgent,
		DurationMS:   time.Since(started).Milliseconds(),
		FinishedAt:   time.Now().UTC(),
	})
	return out
}

func (s *AssessmentService) emit(ctx context.Context, sink Sink, e models.ModalityEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		log.Printf("[ERROR] Failed to publish %s event for %s: %v", e.Modality, e.AssessmentID, err)
	}
}

// ModelStatus описывает классификатор каждой модальности изображений
func (s *AssessmentService) ModelStatus() map[string]string {
	return map[string]string{
		string(models.ModalitySpiral): describe(s.spiral),
		string(models.ModalityMRI):    describe(s.mri),
	}
}

type readiness interface {
	Ready() bool
	LoadError() error
}

func describe(c classifier.Classifier) string {
	switch v := c.(type) {
	case *classifier.MockClassifier:
		return "mock"
	case readiness:
		if v.Ready() {
			return "ready"
		}
		return fmt.Sprintf("not loaded: %v", v.LoadError())
	}
	return "unknown"
}

func (s *AssessmentService) incrementRejected() {
	s.stats.mu.Lock()
	s.stats.rejected++
	s.stats.mu.Unlock()
}

func (s *AssessmentService) incrementDegraded(m models.Modality) {
	s.stats.mu.Lock()
	s.stats.degraded[m]++
	s.stats.mu.Unlock()
}

func (s *AssessmentService) record(r *models.FusionResult) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	s.stats.total++
	s.stats.risk[r.RiskLevel.Level]++
	if r.UrgentConsultation {
		s.stats.urgent++
	}
}

// GetStats возвращает счетчики запросов и статус моделей
func (s *AssessmentService) GetStats() map[string]interface{} {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	degraded := make(map[string]int64, len(s.stats.degraded))
	for m, n := range s.stats.degraded {
		degraded[string(m)] = n
	}
	risk := make(map[string]int64, len(s.stats.risk))
	for level, n := range s.stats.risk {
		risk[level] = n
	}

	return map[string]interface{}{
		"assessments": s.stats.total,
		"rejected":    s.stats.rejected,
		"urgent":      s.stats.urgent,
		"degraded":    degraded,
		"risk_levels": risk,
		"models":      s.ModelStatus(),
		"parallel":    s.parallel,
	}
}

func modalityTag(m models.Modality) string {
	switch m {
	case models.ModalitySpiral:
		return "SPIRAL"
	case models.ModalityMRI:
		return "MRI"
	}
	return "SYMPTOMS"
}
