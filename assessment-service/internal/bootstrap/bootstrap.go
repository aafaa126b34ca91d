// Package bootstrap assembles the assessment pipeline from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Krimson/neuro-risk/assessment-service/config"
	"github.com/Krimson/neuro-risk/assessment-service/internal/classifier"
	"github.com/Krimson/neuro-risk/assessment-service/internal/fusion"
	"github.com/Krimson/neuro-risk/assessment-service/internal/health"
	"github.com/Krimson/neuro-risk/assessment-service/internal/imaging"
	"github.com/Krimson/neuro-risk/assessment-service/internal/repository"
	"github.com/Krimson/neuro-risk/assessment-service/internal/service"
	"github.com/Krimson/neuro-risk/assessment-service/internal/symptoms"
	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
	inferencev1 "github.com/Krimson/neuro-risk/proto/inference"
)

// Methods - дескриптор, на котором обучена модель каждой модальности
var Methods = map[models.Modality]models.FeatureMethod{
	models.ModalitySpiral: models.FeatureMethodHOG,
	models.ModalityMRI:    models.FeatureMethodFlatten,
}

// ServiceName - запись health-check самого конвейера
const ServiceName = "assessment"

// Cache - кэш признаков с проверкой соединения, статистикой и закрытием
type Cache interface {
	imaging.FeatureCache
	CheckConnection(ctx context.Context) error
	GetStats() map[string]interface{}
	Close() error
}

// App - полностью собранный конвейер
type App struct {
	Service *service.AssessmentService
	Health  *health.HealthServer
	Cache   Cache

	closers []func() error
}

// Option настраивает Build
type Option func(*options)

type options struct {
	sinks []service.Sink
}

// WithSinks добавляет приемники событий модальностей
func WithSinks(sinks ...service.Sink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// Build собирает конвейер по cfg. Недоступные модели, кэш и реестр
// переводят конвейер в деградированный режим, а не ломают сборку
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Health: health.NewHealthServer()}

	app.Cache = app.buildCache(ctx, cfg)
	extractorOpts := []imaging.Option{}
	if app.Cache != nil {
		extractorOpts = append(extractorOpts, imaging.WithCache(app.Cache))
		app.Health.AddProbe("feature-cache", app.Cache.CheckConnection)
	}
	extractor := imaging.NewExtractor(cfg.ImageSize, extractorOpts...)

	spiral, mri, err := app.buildClassifiers(ctx, cfg, extractor)
	if err != nil {
		app.Close()
		return nil, err
	}

	sinks := []service.Sink{}
	if cfg.LogDebug {
		sinks = append(sinks, &service.LogSink{})
	}
	sinks = append(sinks, o.sinks...)

	app.Service = service.NewAssessmentService(
		spiral,
		mri,
		symptoms.NewScorer(cfg.LogDebug),
		fusion.NewEngine(cfg.LogDebug),
		service.WithSink(service.NewCompositeSink(sinks...)),
		service.WithParallel(cfg.AssessParallel),
	)
	app.Health.SetServingStatus(ServiceName)

	for modality, status := range app.Service.ModelStatus() {
		log.Printf("[INFO] %s classifier: %s", modality, status)
	}
	return app, nil
}

func (a *App) buildCache(ctx context.Context, cfg *config.Config) Cache {
	switch cfg.FeatureCache {
	case config.CacheRedis:
		cache := repository.NewRedisFeatureCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := cache.CheckConnection(pingCtx); err != nil {
			log.Printf("[WARN] Redis feature cache unavailable at %s: %v", cfg.RedisAddr, err)
		} else {
			log.Printf("[INFO] Connected to Redis feature cache at %s", cfg.RedisAddr)
		}
		a.closers = append(a.closers, cache.Close)
		return cache

	case config.CacheMemory:
		cache := repository.NewMemoryFeatureCache(cfg.CacheTTL)
		a.closers = append(a.closers, cache.Close)
		return cache
	}
	return nil
}

func (a *App) buildClassifiers(ctx context.Context, cfg *config.Config, extractor *imaging.Extractor) (classifier.Classifier, classifier.Classifier, error) {
	modelOpts := []classifier.ModelOption{
		classifier.WithTimeout(cfg.ModalityTimeout),
		classifier.WithDebug(cfg.LogDebug),
	}

	switch cfg.ClassifierMode {
	case config.ModeMock:
		return classifier.NewMockClassifier(models.ModalitySpiral, mockSource(cfg.MockSeed, 0)),
			classifier.NewMockClassifier(models.ModalityMRI, mockSource(cfg.MockSeed, 1)),
			nil

	case config.ModeRemote:
		conn, err := grpc.NewClient(cfg.InferenceAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to inference service %s: %w", cfg.InferenceAddr, err)
		}
		a.closers = append(a.closers, conn.Close)
		a.Health.AddProbe("inference", health.RemoteProbe(conn, inferencev1.ServiceName))
		log.Printf("[INFO] Using remote inference service at %s", cfg.InferenceAddr)

		client := inferencev1.NewInferenceServiceClient(conn)
		build := func(m models.Modality) classifier.Classifier {
			method := Methods[m]
			model := classifier.NewRemoteModel(client, m, extractor.Dimension(method))
			return classifier.NewModelClassifier(m, method, extractor, model, nil, modelOpts...)
		}
		return build(models.ModalitySpiral), build(models.ModalityMRI), nil
	}

	store, err := a.artifactStore(cfg)
	build := func(m models.Modality, seedOffset int64) classifier.Classifier {
		method := Methods[m]
		var (
			model   classifier.Model
			loadErr = err
		)
		if store != nil {
			var lm *classifier.LinearModel
			lm, loadErr = classifier.LoadModel(ctx, store, m, method, extractor.Dimension(method))
			if lm != nil {
				model = lm
				log.Printf("[INFO] Loaded %s model (version %q, %d features)", m, lm.Version(), lm.Dimension())
			}
		}

		if loadErr != nil {
			if cfg.ClassifierMode == config.ModeAuto {
				log.Printf("[WARN] %s model unavailable, falling back to mock: %v", m, loadErr)
				return classifier.NewMockClassifier(m, mockSource(cfg.MockSeed, seedOffset))
			}
			log.Printf("[WARN] %s model unavailable: %v", m, loadErr)
		}
		return classifier.NewModelClassifier(m, method, extractor, model, loadErr, modelOpts...)
	}

	return build(models.ModalitySpiral, 0), build(models.ModalityMRI, 1), nil
}

func (a *App) artifactStore(cfg *config.Config) (classifier.ArtifactStore, error) {
	if cfg.ArtifactSource == config.SourcePostgres {
		store, err := repository.NewPostgresArtifactStore(cfg.PostgresDSN, cfg.ArtifactVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: artifact registry: %v", models.ErrModelUnavailable, err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}

	return classifier.NewFileStore(cfg.ModelDir, map[models.Modality]string{
		models.ModalitySpiral: cfg.SpiralArtifact,
		models.ModalityMRI:    cfg.MRIArtifact,
	}), nil
}

// mockSource возвращает nil (источник от времени) при seed == 0
func mockSource(seed, offset int64) classifier.RandomSource {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed + offset))
}

// Close закрывает соединения в обратном порядке создания
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
