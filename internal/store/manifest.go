package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/manifold-api/internal/domain"
)

// ExtractionFilters narrows the manifests selected by filtered extraction.
// Zero values mean "no restriction".
type ExtractionFilters struct {
	// Statuses restricts to manifests whose extraction status is in the set.
	Statuses []string

	// Search restricts to manifests whose file name contains the substring.
	Search string
}

// ExtractionBehavior controls whether manifests that already have a result,
// or are currently being processed, are included in filtered extraction.
type ExtractionBehavior struct {
	IncludeCompleted  bool
	IncludeProcessing bool
}

// ManifestStore defines the interface for manifest data persistence.
// Lookups taking a userID enforce visibility: a manifest the user cannot
// see is reported as ErrManifestNotFound, never as a permission error.
// Version: 1.0
type ManifestStore interface {
	// FindOne retrieves a manifest by id, with its project relation
	// (ProjectID, ProjectLLMModelID) resolved.
	// Returns ErrManifestNotFound if the manifest does not exist or is
	// not visible to the user.
	FindOne(ctx context.Context, userID, manifestID int64) (*domain.Manifest, error)

	// FindManyByIDs retrieves the given manifests in one batch lookup,
	// preserving the order of ids. Missing or invisible ids are omitted.
	FindManyByIDs(ctx context.Context, userID int64, manifestIDs []int64) ([]*domain.Manifest, error)

	// GetGroup retrieves a group by id with its project relation resolved.
	// Returns ErrGroupNotFound if the group does not exist or is not
	// visible to the user.
	GetGroup(ctx context.Context, userID, groupID int64) (*domain.Group, error)

	// FindForFilteredExtraction selects the manifests in a group matching
	// the filters, constrained by the behavior flags.
	FindForFilteredExtraction(
		ctx context.Context,
		userID, groupID int64,
		filters ExtractionFilters,
		behavior ExtractionBehavior,
	) ([]*domain.Manifest, error)

	// SetTextExtractor pins the OCR engine for the given manifests. Applied
	// before enqueueing filtered extraction so consumers observe the
	// override.
	SetTextExtractor(ctx context.Context, userID, groupID int64, manifestIDs []int64, textExtractorID string) error

	// GetOCRResult retrieves the OCR-related fields of a manifest.
	// Returns ErrManifestNotFound if the manifest row does not exist; a
	// manifest without a recognition result is returned with a nil
	// OCRResult, which is not an error.
	GetOCRResult(ctx context.Context, manifestID int64) (*domain.Manifest, error)

	// GetOCRResults retrieves the OCR-related fields for many manifests in
	// one query. Manifests without a persisted result are omitted.
	GetOCRResults(ctx context.Context, manifestIDs []int64) ([]*domain.Manifest, error)

	// ListRecentWithOCR returns up to limit manifests that have a persisted
	// OCR result, ordered by most recently updated first.
	ListRecentWithOCR(ctx context.Context, limit int) ([]*domain.Manifest, error)

	// CountWithOCR returns the number of manifests with a persisted OCR
	// result.
	CountWithOCR(ctx context.Context) (int, error)

	// ProjectIDsForManifests resolves the owning project for each manifest
	// id through the group relation. Manifests with no project are absent
	// from the returned map.
	ProjectIDsForManifests(ctx context.Context, manifestIDs []int64) (map[int64]int64, error)

	// WithTx returns a new ManifestStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ManifestStore
}
