package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// ArtifactStore загружает сериализованную модель модальности
type ArtifactStore interface {
	LoadArtifact(ctx context.Context, modality models.Modality) ([]byte, error)
}

// FileStore читает артефакты из каталога, один файл на модальность
type FileStore struct {
	dir   string
	files map[models.Modality]string
}

// NewFileStore создает хранилище над dir. files сопоставляет модальности имя файла
func NewFileStore(dir string, files map[models.Modality]string) *FileStore {
	return &FileStore{
		dir:   dir,
		files: files,
	}
}

// LoadArtifact читает файл артефакта модальности
func (s *FileStore) LoadArtifact(ctx context.Context, modality models.Modality) ([]byte, error) {
	name, ok := s.files[modality]
	if !ok || name == "" {
		return nil, fmt.Errorf("no artifact configured for %s", modality)
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

// LoadModel загружает и проверяет артефакт модальности. Артефакт должен
// быть обучен на признаках method длины dimension, иначе возвращается
// models.ErrModelUnavailable и классификатор стартует в режиме
// "Model not loaded"
func LoadModel(ctx context.Context, store ArtifactStore, modality models.Modality, method models.FeatureMethod, dimension int) (*LinearModel, error) {
	data, err := store.LoadArtifact(ctx, modality)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrModelUnavailable, modality, err)
	}

	model, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", modality, err)
	}

	if model.Method() != "" && model.Method() != method {
		return nil, fmt.Errorf("%w: %s artifact was trained on %s features, pipeline extracts %s",
			models.ErrModelUnavailable, modality, model.Method(), method)
	}
	if model.Dimension() != dimension {
		return nil, fmt.Errorf("%w: %s artifact expects %d features, pipeline extracts %d: %w",
			models.ErrModelUnavailable, modality, model.Dimension(), dimension, models.ErrDimensionMismatch)
	}

	return model, nil
}
