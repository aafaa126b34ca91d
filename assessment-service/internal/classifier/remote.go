package classifier

import (
	"context"
	"fmt"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
	inferencev1 "github.com/Krimson/neuro-risk/proto/inference"
)

// RemoteModel передает предсказания в inference.v1.InferenceService
type RemoteModel struct {
	client    inferencev1.InferenceServiceClient
	modality  models.Modality
	dimension int
}

// NewRemoteModel создает удаленную модель с ожидаемой длиной вектора dimension
func NewRemoteModel(client inferencev1.InferenceServiceClient, modality models.Modality, dimension int) *RemoteModel {
	return &RemoteModel{
		client:    client,
		modality:  modality,
		dimension: dimension,
	}
}

// Dimension возвращает ожидаемую длину вектора
func (m *RemoteModel) Dimension() int {
	return m.dimension
}

// Predict вызывает Predict удаленного сервиса
func (m *RemoteModel) Predict(ctx context.Context, features []float64) (Prediction, error) {
	if len(features) != m.dimension {
		return Prediction{}, fmt.Errorf("%w: %w: got %d, model expects %d",
			models.ErrPrediction, models.ErrDimensionMismatch, len(features), m.dimension)
	}

	out, err := m.client.Predict(ctx, inferencev1.EncodeRequest(inferencev1.PredictRequest{
		Modality: string(m.modality),
		Features: features,
	}))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: remote predict: %w", models.ErrPrediction, err)
	}

	resp, err := inferencev1.DecodeResponse(out)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: decode response: %v", models.ErrPrediction, err)
	}

	return Prediction{
		Label:         resp.Label,
		Probabilities: resp.Probabilities,
	}, nil
}
