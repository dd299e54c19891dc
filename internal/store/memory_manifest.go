package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/manifold-api/internal/domain"
)

// SetExtractorCall records one SetTextExtractor invocation.
type SetExtractorCall struct {
	UserID          int64
	GroupID         int64
	ManifestIDs     []int64
	TextExtractorID string
}

// MemoryManifestStore is a deterministic in-memory ManifestStore used by
// unit tests and local runs. Visibility follows the same manifest, group,
// project, owner chain as the Postgres implementation.
type MemoryManifestStore struct {
	mu        sync.Mutex
	manifests map[int64]*domain.Manifest
	groups    map[int64]*domain.Group
	owners    map[int64]int64   // project id -> owner user id
	models    map[int64]*string // project id -> default LLM model id

	// Err, when set, makes every lookup fail with the given error.
	Err error

	// OCRResultReads counts single-manifest OCR reads, letting cache tests
	// assert on read-through behavior.
	OCRResultReads int

	// SetExtractorCalls records every SetTextExtractor call in order.
	SetExtractorCalls []SetExtractorCall
}

// NewMemoryManifestStore creates an empty in-memory store.
func NewMemoryManifestStore() *MemoryManifestStore {
	return &MemoryManifestStore{
		manifests: make(map[int64]*domain.Manifest),
		groups:    make(map[int64]*domain.Group),
		owners:    make(map[int64]int64),
		models:    make(map[int64]*string),
	}
}

// AddProject registers a project with its owner and default model id.
func (s *MemoryManifestStore) AddProject(projectID, ownerUserID int64, llmModelID *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[projectID] = ownerUserID
	s.models[projectID] = llmModelID
	// Groups registered before their project pick up the model here.
	for _, group := range s.groups {
		if group.ProjectID == projectID {
			group.ProjectLLMModelID = llmModelID
		}
	}
}

// AddGroup registers a group.
func (s *MemoryManifestStore) AddGroup(group domain.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := group
	if stored.ProjectLLMModelID == nil {
		if model, ok := s.models[group.ProjectID]; ok {
			stored.ProjectLLMModelID = model
		}
	}
	s.groups[group.ID] = &stored
}

// AddManifest registers a manifest.
func (s *MemoryManifestStore) AddManifest(manifest domain.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := manifest
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.manifests[manifest.ID] = &stored
}

// visibleManifest resolves a manifest with its project relation, nil when
// missing or invisible. Assumes s.mu held.
func (s *MemoryManifestStore) visibleManifest(userID, manifestID int64) *domain.Manifest {
	manifest, ok := s.manifests[manifestID]
	if !ok {
		return nil
	}
	group, ok := s.groups[manifest.GroupID]
	if !ok {
		return nil
	}
	if s.owners[group.ProjectID] != userID {
		return nil
	}

	resolved := *manifest
	projectID := group.ProjectID
	resolved.ProjectID = &projectID
	resolved.ProjectLLMModelID = group.ProjectLLMModelID
	return &resolved
}

// FindOne implements ManifestStore.
func (s *MemoryManifestStore) FindOne(ctx context.Context, userID, manifestID int64) (*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	manifest := s.visibleManifest(userID, manifestID)
	if manifest == nil {
		return nil, ErrManifestNotFound
	}
	return manifest, nil
}

// FindManyByIDs implements ManifestStore. Order follows the requested ids;
// missing or invisible ids are omitted.
func (s *MemoryManifestStore) FindManyByIDs(ctx context.Context, userID int64, manifestIDs []int64) ([]*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var manifests []*domain.Manifest
	for _, id := range manifestIDs {
		if manifest := s.visibleManifest(userID, id); manifest != nil {
			manifests = append(manifests, manifest)
		}
	}
	return manifests, nil
}

// GetGroup implements ManifestStore.
func (s *MemoryManifestStore) GetGroup(ctx context.Context, userID, groupID int64) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	group, ok := s.groups[groupID]
	if !ok || s.owners[group.ProjectID] != userID {
		return nil, ErrGroupNotFound
	}
	snapshot := *group
	return &snapshot, nil
}

// FindForFilteredExtraction implements ManifestStore.
func (s *MemoryManifestStore) FindForFilteredExtraction(
	ctx context.Context,
	userID, groupID int64,
	filters ExtractionFilters,
	behavior ExtractionBehavior,
) ([]*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var ids []int64
	for id, manifest := range s.manifests {
		if manifest.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []*domain.Manifest
	for _, id := range ids {
		manifest := s.visibleManifest(userID, id)
		if manifest == nil {
			continue
		}
		if !matchesFilters(manifest, filters, behavior) {
			continue
		}
		matched = append(matched, manifest)
	}
	return matched, nil
}

func matchesFilters(manifest *domain.Manifest, filters ExtractionFilters, behavior ExtractionBehavior) bool {
	status := ""
	if manifest.ExtractionStatus != nil {
		status = *manifest.ExtractionStatus
	}

	if len(filters.Statuses) > 0 {
		found := false
		for _, want := range filters.Statuses {
			if status == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.Search != "" &&
		!strings.Contains(strings.ToLower(manifest.FileName), strings.ToLower(filters.Search)) {
		return false
	}
	if !behavior.IncludeCompleted && status == "completed" {
		return false
	}
	if !behavior.IncludeProcessing && status == "processing" {
		return false
	}
	return true
}

// SetTextExtractor implements ManifestStore.
func (s *MemoryManifestStore) SetTextExtractor(ctx context.Context, userID, groupID int64, manifestIDs []int64, textExtractorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	s.SetExtractorCalls = append(s.SetExtractorCalls, SetExtractorCall{
		UserID:          userID,
		GroupID:         groupID,
		ManifestIDs:     append([]int64(nil), manifestIDs...),
		TextExtractorID: textExtractorID,
	})
	for _, id := range manifestIDs {
		if manifest, ok := s.manifests[id]; ok && manifest.GroupID == groupID {
			extractor := textExtractorID
			manifest.TextExtractorID = &extractor
		}
	}
	return nil
}

// GetOCRResult implements ManifestStore.
func (s *MemoryManifestStore) GetOCRResult(ctx context.Context, manifestID int64) (*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	s.OCRResultReads++
	manifest, ok := s.manifests[manifestID]
	if !ok {
		return nil, ErrManifestNotFound
	}
	snapshot := *manifest
	return &snapshot, nil
}

// GetOCRResults implements ManifestStore.
func (s *MemoryManifestStore) GetOCRResults(ctx context.Context, manifestIDs []int64) ([]*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var manifests []*domain.Manifest
	for _, id := range manifestIDs {
		manifest, ok := s.manifests[id]
		if !ok || !manifest.HasOCRResult() {
			continue
		}
		snapshot := *manifest
		manifests = append(manifests, &snapshot)
	}
	return manifests, nil
}

// ListRecentWithOCR implements ManifestStore.
func (s *MemoryManifestStore) ListRecentWithOCR(ctx context.Context, limit int) ([]*domain.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var manifests []*domain.Manifest
	for _, manifest := range s.manifests {
		if manifest.HasOCRResult() {
			snapshot := *manifest
			manifests = append(manifests, &snapshot)
		}
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].UpdatedAt.After(manifests[j].UpdatedAt)
	})
	if len(manifests) > limit {
		manifests = manifests[:limit]
	}
	return manifests, nil
}

// CountWithOCR implements ManifestStore.
func (s *MemoryManifestStore) CountWithOCR(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	count := 0
	for _, manifest := range s.manifests {
		if manifest.HasOCRResult() {
			count++
		}
	}
	return count, nil
}

// ProjectIDsForManifests implements ManifestStore.
func (s *MemoryManifestStore) ProjectIDsForManifests(ctx context.Context, manifestIDs []int64) (map[int64]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	projects := make(map[int64]int64)
	for _, id := range manifestIDs {
		manifest, ok := s.manifests[id]
		if !ok {
			continue
		}
		if group, ok := s.groups[manifest.GroupID]; ok {
			projects[id] = group.ProjectID
		}
	}
	return projects, nil
}

// WithTx implements ManifestStore. The in-memory store has no transactions;
// it returns itself.
func (s *MemoryManifestStore) WithTx(tx *sql.Tx) ManifestStore {
	return s
}
