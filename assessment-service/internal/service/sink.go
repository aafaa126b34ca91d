package service

import (
	"context"
	"log"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Sink получает событие при завершении каждой модальности оценки
type Sink interface {
	Consume(ctx context.Context, e models.ModalityEvent) error
}

// SinkFunc адаптирует функцию к Sink
type SinkFunc func(ctx context.Context, e models.ModalityEvent) error

// Consume вызывает f
func (f SinkFunc) Consume(ctx context.Context, e models.ModalityEvent) error {
	return f(ctx, e)
}

// LogSink пишет события в лог
type LogSink struct{}

// Consume логирует событие с тегом [EVENT]
func (ls *LogSink) Consume(ctx context.Context, e models.ModalityEvent) error {
	log.Printf("[EVENT] assessment=%s modality=%s result=%q confidence=%.2f duration_ms=%d",
		e.AssessmentID,
		e.Modality,
		e.Result,
		e.Confidence,
		e.DurationMS)
	return nil
}

// CompositeSink рассылает событие нескольким приемникам. Ошибка одного
// не останавливает остальные
type CompositeSink struct {
	sinks []Sink
}

// NewCompositeSink пропускает nil-приемники
func NewCompositeSink(sinks ...Sink) *CompositeSink {
	cs := &CompositeSink{}
	for _, s := range sinks {
		if s != nil {
			cs.sinks = append(cs.sinks, s)
		}
	}
	return cs
}

// Consume передает e каждому приемнику и логирует их ошибки
func (cs *CompositeSink) Consume(ctx context.Context, e models.ModalityEvent) error {
	for _, sink := range cs.sinks {
		if err := sink.Consume(ctx, e); err != nil {
			log.Printf("[ERROR] Sink failed to consume %s event: %v", e.Modality, err)
		}
	}
	return nil
}
