package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// ErrArtifactNotFound возвращается, если нет артефакта для модальности и версии
var ErrArtifactNotFound = errors.New("artifact not found")

const createArtifactsTableSQL = `
CREATE TABLE IF NOT EXISTS model_artifacts (
    modality TEXT NOT NULL,
    version TEXT NOT NULL,
    artifact JSONB NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (modality, version)
);

CREATE INDEX IF NOT EXISTS idx_model_artifacts_created_at ON model_artifacts(modality, created_at DESC);
`

// PostgresArtifactStore - реестр артефактов классификаторов. При пустой
// версии отдает последний опубликованный артефакт модальности
type PostgresArtifactStore struct {
	db      *sql.DB
	version string
}

// NewPostgresArtifactStore подключается к PostgreSQL и создает таблицу артефактов
func NewPostgresArtifactStore(connStr, version string) (*PostgresArtifactStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if _, err := db.Exec(createArtifactsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &PostgresArtifactStore{db: db, version: version}, nil
}

// LoadArtifact возвращает артефакт модальности
func (r *PostgresArtifactStore) LoadArtifact(ctx context.Context, modality models.Modality) ([]byte, error) {
	var (
		data    []byte
		version string
		err     error
	)

	if r.version != "" {
		err = r.db.QueryRowContext(ctx,
			`SELECT artifact, version FROM model_artifacts WHERE modality = $1 AND version = $2`,
			string(modality), r.version,
		).Scan(&data, &version)
	} else {
		err = r.db.QueryRowContext(ctx,
			`SELECT artifact, version FROM model_artifacts WHERE modality = $1 ORDER BY created_at DESC LIMIT 1`,
			string(modality),
		).Scan(&data, &version)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrArtifactNotFound, modality, r.version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}

	log.Printf("[INFO] Loaded %s artifact version %s from PostgreSQL", modality, version)
	return data, nil
}

// SaveArtifact публикует артефакт, заменяя существующий той же версии
func (r *PostgresArtifactStore) SaveArtifact(ctx context.Context, modality models.Modality, version string, data []byte) error {
	query := `
    INSERT INTO model_artifacts (modality, version, artifact, created_at)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (modality, version)
    DO UPDATE SET artifact = $3, created_at = $4
    `

	if _, err := r.db.ExecContext(ctx, query, string(modality), version, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	log.Printf("[INFO] Published %s artifact version %s", modality, version)
	return nil
}

// Close закрывает соединение с базой
func (r *PostgresArtifactStore) Close() error {
	return r.db.Close()
}
