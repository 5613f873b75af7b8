package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Outcome values recorded against stage and upload results.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// StageResult records one pipeline stage's terminal result for an asset.
type StageResult struct {
	RunID        string
	AssetID      string
	Stage        string
	Attempts     int
	Outcome      string
	ErrorClass   string
	Message      string
	ArtifactPath string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// UploadResult records one upload attempt's terminal result for an asset.
type UploadResult struct {
	RunID      string
	AssetID    string
	Shop       string
	TemplateID string
	Attempts   int
	Outcome    string
	ErrorClass string
	Message    string
	FinishedAt time.Time
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// RecordStage appends a stage result.
func (s *Store) RecordStage(ctx context.Context, result StageResult) error {
	err := s.execWithRetry(
		ctx,
		`INSERT INTO stage_results (
            run_id, asset_id, stage, attempts, outcome,
            error_class, message, artifact_path, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.AssetID,
		result.Stage,
		result.Attempts,
		result.Outcome,
		nullableString(result.ErrorClass),
		nullableString(result.Message),
		nullableString(result.ArtifactPath),
		result.StartedAt.UTC().Format(time.RFC3339Nano),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert stage result: %w", err)
	}
	return nil
}

// RecordUpload appends an upload result.
func (s *Store) RecordUpload(ctx context.Context, result UploadResult) error {
	err := s.execWithRetry(
		ctx,
		`INSERT INTO upload_results (
            run_id, asset_id, shop, template_id, attempts,
            outcome, error_class, message, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.AssetID,
		result.Shop,
		nullableString(result.TemplateID),
		result.Attempts,
		result.Outcome,
		nullableString(result.ErrorClass),
		nullableString(result.Message),
		result.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert upload result: %w", err)
	}
	return nil
}

// RecentStages returns the most recent stage results, newest first.
func (s *Store) RecentStages(ctx context.Context, limit int) ([]StageResult, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, asset_id, stage, attempts, outcome,
                error_class, message, artifact_path, started_at, finished_at
         FROM stage_results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stage results: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		var (
			rec                         StageResult
			errClass, message, artifact sql.NullString
			startedAt, finishedAt       string
		)
		if err := rows.Scan(
			&rec.RunID, &rec.AssetID, &rec.Stage, &rec.Attempts, &rec.Outcome,
			&errClass, &message, &artifact, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		rec.ErrorClass = errClass.String
		rec.Message = message.String
		rec.ArtifactPath = artifact.String
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// RecentUploads returns the most recent upload results, newest first. An
// empty shop matches every shop.
func (s *Store) RecentUploads(ctx context.Context, shop string, limit int) ([]UploadResult, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, asset_id, shop, template_id, attempts,
                outcome, error_class, message, finished_at
         FROM upload_results
         WHERE (? = '' OR shop = ?)
         ORDER BY id DESC LIMIT ?`, shop, shop, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload results: %w", err)
	}
	defer rows.Close()

	var results []UploadResult
	for rows.Next() {
		var (
			rec                           UploadResult
			templateID, errClass, message sql.NullString
			finishedAt                    string
		)
		if err := rows.Scan(
			&rec.RunID, &rec.AssetID, &rec.Shop, &templateID, &rec.Attempts,
			&rec.Outcome, &errClass, &message, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upload result: %w", err)
		}
		rec.TemplateID = templateID.String
		rec.ErrorClass = errClass.String
		rec.Message = message.String
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		results = append(results, rec)
	}
	return results, rows.Err()
}

// UploadedToday counts successful uploads to a shop since local midnight.
// Shops with a daily submission limit consult this before starting a batch.
func (s *Store) UploadedToday(ctx context.Context, shop string) (int, error) {
	ctx = ensureContext(ctx)
	midnight := time.Now().Truncate(24 * time.Hour).UTC().Format(time.RFC3339Nano)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM upload_results
         WHERE shop = ? AND outcome = ? AND finished_at >= ?`,
		shop, OutcomeSuccess, midnight,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count daily uploads: %w", err)
	}
	return count, nil
}
