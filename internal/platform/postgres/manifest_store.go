package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/manifold-api/internal/domain"
	"github.com/phrazzld/manifold-api/internal/platform/logger"
	"github.com/phrazzld/manifold-api/internal/store"
)

// manifestColumns is the projection used by user-facing manifest lookups,
// with the project relation resolved through the group.
const manifestColumns = `
	m.id, m.group_id, m.file_name, m.extraction_status, m.text_extractor_id,
	m.ocr_result, m.ocr_quality_score, m.ocr_processed_at,
	g.project_id, p.llm_model_id,
	m.created_at, m.updated_at
`

// PostgresManifestStore implements the store.ManifestStore interface using
// PostgreSQL. User-scoped lookups enforce visibility through the project's
// owner; invisible manifests are indistinguishable from missing ones.
type PostgresManifestStore struct {
	db store.DBTX
}

// NewPostgresManifestStore creates a new PostgresManifestStore.
func NewPostgresManifestStore(db store.DBTX) *PostgresManifestStore {
	return &PostgresManifestStore{db: db}
}

// WithTx returns a new ManifestStore that uses the provided transaction.
func (s *PostgresManifestStore) WithTx(tx *sql.Tx) store.ManifestStore {
	return &PostgresManifestStore{db: tx}
}

// FindOne implements store.ManifestStore.
func (s *PostgresManifestStore) FindOne(ctx context.Context, userID, manifestID int64) (*domain.Manifest, error) {
	query := `
		SELECT ` + manifestColumns + `
		FROM manifests m
		JOIN groups g ON g.id = m.group_id
		JOIN projects p ON p.id = g.project_id
		WHERE m.id = $1 AND p.owner_user_id = $2
	`

	manifest, err := scanManifest(s.db.QueryRowContext(ctx, query, manifestID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to load manifest: %w", MapError(err))
	}
	return manifest, nil
}

// FindManyByIDs implements store.ManifestStore. Results follow the order
// of the requested ids; missing or invisible ids are omitted.
func (s *PostgresManifestStore) FindManyByIDs(ctx context.Context, userID int64, manifestIDs []int64) ([]*domain.Manifest, error) {
	if len(manifestIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + manifestColumns + `
		FROM manifests m
		JOIN groups g ON g.id = m.group_id
		JOIN projects p ON p.id = g.project_id
		WHERE m.id = ANY($1) AND p.owner_user_id = $2
		ORDER BY array_position($1, m.id)
	`

	rows, err := s.db.QueryContext(ctx, query, manifestIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifests: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectManifests(rows)
}

// GetGroup implements store.ManifestStore.
func (s *PostgresManifestStore) GetGroup(ctx context.Context, userID, groupID int64) (*domain.Group, error) {
	query := `
		SELECT g.id, g.project_id, g.name, p.llm_model_id
		FROM groups g
		JOIN projects p ON p.id = g.project_id
		WHERE g.id = $1 AND p.owner_user_id = $2
	`

	var group domain.Group
	err := s.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&group.ID,
		&group.ProjectID,
		&group.Name,
		&group.ProjectLLMModelID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", MapError(err))
	}
	return &group, nil
}

// FindForFilteredExtraction implements store.ManifestStore.
func (s *PostgresManifestStore) FindForFilteredExtraction(
	ctx context.Context,
	userID, groupID int64,
	filters store.ExtractionFilters,
	behavior store.ExtractionBehavior,
) ([]*domain.Manifest, error) {
	var (
		conditions = []string{"m.group_id = $1", "p.owner_user_id = $2"}
		args       = []any{groupID, userID}
	)

	if len(filters.Statuses) > 0 {
		args = append(args, filters.Statuses)
		conditions = append(conditions, fmt.Sprintf("m.extraction_status = ANY($%d)", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		conditions = append(conditions, fmt.Sprintf("m.file_name ILIKE $%d", len(args)))
	}
	if !behavior.IncludeCompleted {
		conditions = append(conditions, "m.extraction_status IS DISTINCT FROM 'completed'")
	}
	if !behavior.IncludeProcessing {
		conditions = append(conditions, "m.extraction_status IS DISTINCT FROM 'processing'")
	}

	query := `
		SELECT ` + manifestColumns + `
		FROM manifests m
		JOIN groups g ON g.id = m.group_id
		JOIN projects p ON p.id = g.project_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY m.id
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select manifests for extraction: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectManifests(rows)
}

// SetTextExtractor implements store.ManifestStore.
func (s *PostgresManifestStore) SetTextExtractor(ctx context.Context, userID, groupID int64, manifestIDs []int64, textExtractorID string) error {
	if len(manifestIDs) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)

	query := `
		UPDATE manifests m
		SET text_extractor_id = $1, updated_at = $2
		FROM groups g
		JOIN projects p ON p.id = g.project_id
		WHERE g.id = m.group_id
		  AND m.group_id = $3
		  AND m.id = ANY($4)
		  AND p.owner_user_id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		textExtractorID,
		time.Now().UTC(),
		groupID,
		manifestIDs,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set text extractor: %w", MapError(err))
	}

	if affected, err := result.RowsAffected(); err == nil {
		log.Debug("pinned text extractor for manifests",
			"group_id", groupID,
			"text_extractor_id", textExtractorID,
			"manifest_count", affected)
	}
	return nil
}

// GetOCRResult implements store.ManifestStore. Internal path: no user
// scoping, since cache reads happen on behalf of the system.
func (s *PostgresManifestStore) GetOCRResult(ctx context.Context, manifestID int64) (*domain.Manifest, error) {
	query := `
		SELECT id, ocr_result, ocr_quality_score, ocr_processed_at, updated_at
		FROM manifests
		WHERE id = $1
	`

	var manifest domain.Manifest
	err := s.db.QueryRowContext(ctx, query, manifestID).Scan(
		&manifest.ID,
		&manifest.OCRResult,
		&manifest.OCRQualityScore,
		&manifest.OCRProcessedAt,
		&manifest.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to load OCR result: %w", MapError(err))
	}
	return &manifest, nil
}

// GetOCRResults implements store.ManifestStore.
func (s *PostgresManifestStore) GetOCRResults(ctx context.Context, manifestIDs []int64) ([]*domain.Manifest, error) {
	if len(manifestIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, ocr_result, ocr_quality_score, ocr_processed_at, updated_at
		FROM manifests
		WHERE id = ANY($1) AND ocr_result IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, query, manifestIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load OCR results: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectOCRManifests(rows)
}

// ListRecentWithOCR implements store.ManifestStore.
func (s *PostgresManifestStore) ListRecentWithOCR(ctx context.Context, limit int) ([]*domain.Manifest, error) {
	query := `
		SELECT id, ocr_result, ocr_quality_score, ocr_processed_at, updated_at
		FROM manifests
		WHERE ocr_result IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests with OCR results: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	return collectOCRManifests(rows)
}

// CountWithOCR implements store.ManifestStore.
func (s *PostgresManifestStore) CountWithOCR(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM manifests WHERE ocr_result IS NOT NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count manifests with OCR results: %w", MapError(err))
	}
	return count, nil
}

// ProjectIDsForManifests implements store.ManifestStore.
func (s *PostgresManifestStore) ProjectIDsForManifests(ctx context.Context, manifestIDs []int64) (map[int64]int64, error) {
	if len(manifestIDs) == 0 {
		return map[int64]int64{}, nil
	}

	query := `
		SELECT m.id, g.project_id
		FROM manifests m
		LEFT JOIN groups g ON g.id = m.group_id
		WHERE m.id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, manifestIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest projects: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	projects := make(map[int64]int64, len(manifestIDs))
	for rows.Next() {
		var (
			manifestID int64
			projectID  *int64
		)
		if err := rows.Scan(&manifestID, &projectID); err != nil {
			return nil, fmt.Errorf("failed to scan manifest project row: %w", err)
		}
		if projectID != nil {
			projects[manifestID] = *projectID
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manifest project rows: %w", err)
	}
	return projects, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanManifest reads one row of the full manifest projection.
func scanManifest(row rowScanner) (*domain.Manifest, error) {
	var manifest domain.Manifest
	err := row.Scan(
		&manifest.ID,
		&manifest.GroupID,
		&manifest.FileName,
		&manifest.ExtractionStatus,
		&manifest.TextExtractorID,
		&manifest.OCRResult,
		&manifest.OCRQualityScore,
		&manifest.OCRProcessedAt,
		&manifest.ProjectID,
		&manifest.ProjectLLMModelID,
		&manifest.CreatedAt,
		&manifest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

// collectManifests drains rows of the full manifest projection.
func collectManifests(rows *sql.Rows) ([]*domain.Manifest, error) {
	var manifests []*domain.Manifest
	for rows.Next() {
		manifest, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan manifest row: %w", err)
		}
		manifests = append(manifests, manifest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manifest rows: %w", err)
	}
	return manifests, nil
}

// collectOCRManifests drains rows of the OCR projection.
func collectOCRManifests(rows *sql.Rows) ([]*domain.Manifest, error) {
	var manifests []*domain.Manifest
	for rows.Next() {
		var manifest domain.Manifest
		err := rows.Scan(
			&manifest.ID,
			&manifest.OCRResult,
			&manifest.OCRQualityScore,
			&manifest.OCRProcessedAt,
			&manifest.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan OCR result row: %w", err)
		}
		manifests = append(manifests, &manifest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate OCR result rows: %w", err)
	}
	return manifests, nil
}
