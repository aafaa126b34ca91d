package imaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// FeatureCache хранит вычисленные векторы признаков по ключу содержимого
type FeatureCache interface {
	GetFeatures(ctx context.Context, key string) ([]float64, bool, error)
	SetFeatures(ctx context.Context, key string, values []float64) error
}

// Extractor превращает изображения в векторы признаков при фиксированном разрешении
type Extractor struct {
	size  int
	hog   HOGConfig
	cache FeatureCache
}

// Option настраивает Extractor
type Option func(*Extractor)

// WithCache включает кэш признаков
func WithCache(cache FeatureCache) Option {
	return func(e *Extractor) {
		e.cache = cache
	}
}

// WithHOG заменяет параметры HOG по умолчанию
func WithHOG(cfg HOGConfig) Option {
	return func(e *Extractor) {
		e.hog = cfg
	}
}

// NewExtractor создает экстрактор, приводящий изображения к size x size
func NewExtractor(size int, opts ...Option) *Extractor {
	e := &Extractor{
		size: size,
		hog:  DefaultHOG,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension возвращает длину вектора, которую Extract дает для method
func (e *Extractor) Dimension(method models.FeatureMethod) int {
	switch method {
	case models.FeatureMethodHOG:
		return e.hog.Length(e.size, e.size)
	case models.FeatureMethodFlatten:
		return e.size * e.size
	}
	return 0
}

// Extract декодирует sample и вычисляет дескриптор. Любой сбой, включая
// панику декодера, возвращается ошибкой, оборачивающей models.ErrExtraction
func (e *Extractor) Extract(ctx context.Context, sample models.ImageSample, method models.FeatureMethod) (vec models.FeatureVector, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec = models.FeatureVector{}
			err = fmt.Errorf("%w: panic: %v", models.ErrExtraction, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return models.FeatureVector{}, fmt.Errorf("%w: %w", models.ErrExtraction, err)
	}

	key := e.cacheKey(sample.Data, method)
	if e.cache != nil {
		values, ok, err := e.cache.GetFeatures(ctx, key)
		if err != nil {
			log.Printf("[WARN] Feature cache lookup failed: %v", err)
		} else if ok && len(values) == e.Dimension(method) {
			return models.FeatureVector{Method: method, Values: values}, nil
		}
	}

	img, err := Decode(sample.Data)
	if err != nil {
		return models.FeatureVector{}, err
	}

	plane, err := Normalize(img, e.size)
	if err != nil {
		return models.FeatureVector{}, err
	}

	var values []float64
	switch method {
	case models.FeatureMethodHOG:
		values, err = HOG(plane, e.hog)
		if err != nil {
			return models.FeatureVector{}, err
		}
	case models.FeatureMethodFlatten:
		values = Flatten(plane)
	default:
		return models.FeatureVector{}, fmt.Errorf("%w: unknown feature method %q", models.ErrExtraction, method)
	}

	if e.cache != nil {
		if err := e.cache.SetFeatures(ctx, key, values); err != nil {
			log.Printf("[WARN] Feature cache store failed: %v", err)
		}
	}

	return models.FeatureVector{Method: method, Values: values}, nil
}

func (e *Extractor) cacheKey(data []byte, method models.FeatureMethod) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%d:%s", method, e.size, hex.EncodeToString(sum[:]))
}
