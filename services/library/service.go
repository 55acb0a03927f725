package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medialog/models"
)

var (
	ErrNotFound      = errors.New("library record not found")
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidKind   = errors.New("invalid media kind")
	ErrInvalidStatus = errors.New("invalid watch status")
	ErrTokenRequired = errors.New("access token is required")
)

// Store persists library records.
type Store interface {
	List() ([]models.MediaRecord, error)
	Get(id string) (*models.MediaRecord, error)
	Insert(rec *models.MediaRecord) error
	Update(rec *models.MediaRecord) error
	Delete(id string) error
	DeleteAll() error
	SaveBatch(created, updated []models.MediaRecord) error
}

// MetadataService supplies canonical provider metadata for records.
type MetadataService interface {
	Details(ctx context.Context, kind string, externalIDs map[string]string) (*models.MediaRecord, error)
	DecoratePosters(rec *models.MediaRecord)
}

// HistorySource fetches one status partition of an external watch history.
type HistorySource interface {
	AllItems(ctx context.Context, accessToken, kind, status string) ([]models.MediaRecord, error)
}

// Service owns the media library: reconciliation, merging, enrichment,
// bulk import and background refresh all go through it.
type Service struct {
	store   Store
	meta    MetadataService
	history HistorySource

	// importDelay spaces partition fetches during bulk import;
	// refreshDelay spaces per-record fetches during a full refresh.
	importDelay  time.Duration
	refreshDelay time.Duration

	tasksMu sync.RWMutex
	tasks   map[string]*models.RefreshTask
}

// NewService wires the library service. history may be nil when no import
// source is configured; ImportSimkl then fails with ErrNotConfigured-style
// errors from the source itself.
func NewService(store Store, meta MetadataService, history HistorySource) *Service {
	return &Service{
		store:        store,
		meta:         meta,
		history:      history,
		importDelay:  150 * time.Millisecond,
		refreshDelay: 250 * time.Millisecond,
		tasks:        make(map[string]*models.RefreshTask),
	}
}

// List returns every library record, most recently updated first.
func (s *Service) List() ([]models.MediaRecord, error) {
	return s.store.List()
}

// Get returns one record by id, enriching it on the way out when its
// metadata is still thin.
func (s *Service) Get(ctx context.Context, id string) (*models.MediaRecord, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return s.EnsureEnriched(ctx, rec), nil
}

// Add inserts a record, or merges it into an existing one when the
// reconciler finds a match. The returned bool reports whether a new
// record was created.
func (s *Service) Add(ctx context.Context, incoming models.MediaRecord) (*models.MediaRecord, bool, error) {
	if incoming.Title == "" {
		return nil, false, ErrTitleRequired
	}
	if incoming.Kind == "" {
		incoming.Kind = models.KindMovie
	}
	if !models.ValidKind(incoming.Kind) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidKind, incoming.Kind)
	}
	if incoming.Status != "" && !models.ValidStatus(incoming.Status) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidStatus, incoming.Status)
	}

	snapshot, err := s.store.List()
	if err != nil {
		return nil, false, err
	}
	candidates := make([]*models.MediaRecord, 0, len(snapshot))
	for i := range snapshot {
		candidates = append(candidates, &snapshot[i])
	}

	target, isNew := Reconcile(&incoming, candidates)
	if isNew {
		if incoming.Status == "" {
			incoming.Status = models.StatusPlanToWatch
		}
		s.meta.DecoratePosters(&incoming)
		if err := s.store.Insert(&incoming); err != nil {
			return nil, false, err
		}
		return &incoming, true, nil
	}

	merge(target, &incoming, mergeOptions{})
	s.meta.DecoratePosters(target)
	if err := s.store.Update(target); err != nil {
		return nil, false, err
	}
	return target, false, nil
}

// UpdateUserState applies a partial user-state change. Nil fields are
// left as they are.
func (s *Service) UpdateUserState(id string, update models.UserStateUpdate) (*models.MediaRecord, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		if !models.ValidStatus(*update.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.Status)
		}
		rec.Status = *update.Status
	}
	if update.Rating != nil {
		rec.Rating = update.Rating
	}
	if update.Memo != nil {
		rec.Memo = *update.Memo
	}
	if update.WatchedAt != nil {
		rec.WatchedAt = update.WatchedAt
	}
	if err := s.store.Update(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes one record.
func (s *Service) Delete(id string) error {
	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	return s.store.Delete(id)
}

// Clear removes every record in the library.
func (s *Service) Clear() error {
	return s.store.DeleteAll()
}
