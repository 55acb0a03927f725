package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"medialog/models"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.MediaRecord
	order   []string
	listErr error
}

func newFakeStore(seed ...models.MediaRecord) *fakeStore {
	f := &fakeStore{records: make(map[string]models.MediaRecord)}
	for _, rec := range seed {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		f.records[rec.ID] = rec
		f.order = append(f.order, rec.ID)
	}
	return f
}

func (f *fakeStore) List() ([]models.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.MediaRecord, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.records[id])
	}
	return out, nil
}

func (f *fakeStore) Get(id string) (*models.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) Insert(rec *models.MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	f.records[rec.ID] = *rec
	f.order = append(f.order, rec.ID)
	return nil
}

func (f *fakeStore) Update(rec *models.MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.ID]; !ok {
		return fmt.Errorf("update: no record %s", rec.ID)
	}
	f.records[rec.ID] = *rec
	return nil
}

func (f *fakeStore) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) DeleteAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = make(map[string]models.MediaRecord)
	f.order = nil
	return nil
}

func (f *fakeStore) SaveBatch(created, updated []models.MediaRecord) error {
	for i := range created {
		rec := created[i]
		if err := f.Insert(&rec); err != nil {
			return err
		}
	}
	for i := range updated {
		if err := f.Update(&updated[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeMeta struct {
	mu         sync.Mutex
	details    map[string]models.MediaRecord // keyed by any external id
	detailsErr error
	calls      int
}

func (f *fakeMeta) Details(_ context.Context, _ string, externalIDs map[string]string) (*models.MediaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.detailsErr != nil {
		return nil, f.detailsErr
	}
	for _, id := range externalIDs {
		if rec, ok := f.details[id]; ok {
			out := rec
			return &out, nil
		}
	}
	return nil, errors.New("no details")
}

func (f *fakeMeta) DecoratePosters(*models.MediaRecord) {}

type fakeHistory struct {
	items map[string][]models.MediaRecord // keyed by kind/status
	fail  map[string]bool
	calls []string
}

func (f *fakeHistory) AllItems(_ context.Context, _, kind, status string) ([]models.MediaRecord, error) {
	key := kind + "/" + status
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return nil, errors.New("upstream 502")
	}
	return f.items[key], nil
}

func newTestService(store *fakeStore, meta *fakeMeta, history *fakeHistory) *Service {
	if meta == nil {
		meta = &fakeMeta{}
	}
	svc := NewService(store, meta, history)
	svc.importDelay = 0
	svc.refreshDelay = 0
	return svc
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestAddCreatesNewRecord(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, nil, nil)

	rec, created, err := svc.Add(context.Background(), models.MediaRecord{
		Title: "The Matrix",
		Kind:  models.KindMovie,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !created {
		t.Fatal("expected a new record")
	}
	if rec.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if rec.Status != models.StatusPlanToWatch {
		t.Fatalf("default status = %q, want %q", rec.Status, models.StatusPlanToWatch)
	}
}

func TestAddMergesIntoExistingByExternalID(t *testing.T) {
	existing := models.MediaRecord{
		Title:  "The Matrix (1999)",
		Kind:   models.KindMovie,
		Status: models.StatusCompleted,
		Rating: intPtr(9),
	}
	existing.SetExternalID(models.NamespaceTMDB, "603")
	store := newFakeStore(existing)
	svc := newTestService(store, nil, nil)

	incoming := models.MediaRecord{Title: "Matrix", Kind: models.KindMovie, Overview: "A hacker learns the truth."}
	incoming.SetExternalID(models.NamespaceTMDB, "603")

	rec, created, err := svc.Add(context.Background(), incoming)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if created {
		t.Fatal("expected a merge, not a create")
	}
	if rec.Overview != "A hacker learns the truth." {
		t.Fatalf("overview not filled: %q", rec.Overview)
	}
	if rec.Status != models.StatusCompleted || rec.Rating == nil || *rec.Rating != 9 {
		t.Fatal("manual add must not disturb user state")
	}

	all, _ := store.List()
	if len(all) != 1 {
		t.Fatalf("library size = %d, want 1", len(all))
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	svc := newTestService(newFakeStore(), nil, nil)

	if _, _, err := svc.Add(context.Background(), models.MediaRecord{Kind: models.KindMovie}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("missing title error = %v", err)
	}
	if _, _, err := svc.Add(context.Background(), models.MediaRecord{Title: "x", Kind: "vhs"}); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("bad kind error = %v", err)
	}
	if _, _, err := svc.Add(context.Background(), models.MediaRecord{Title: "x", Status: "binged"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status error = %v", err)
	}
}

func TestUpdateUserStatePartial(t *testing.T) {
	seed := models.MediaRecord{Title: "Akira", Kind: models.KindAnime, Status: models.StatusWatching, Memo: "rewatch"}
	store := newFakeStore(seed)
	svc := newTestService(store, nil, nil)
	id := store.order[0]

	rec, err := svc.UpdateUserState(id, models.UserStateUpdate{Rating: intPtr(10)})
	if err != nil {
		t.Fatalf("UpdateUserState: %v", err)
	}
	if rec.Rating == nil || *rec.Rating != 10 {
		t.Fatal("rating not applied")
	}
	if rec.Status != models.StatusWatching || rec.Memo != "rewatch" {
		t.Fatal("untouched fields must survive a partial update")
	}

	if _, err := svc.UpdateUserState(id, models.UserStateUpdate{Status: strPtr("binged")}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("invalid status error = %v", err)
	}
	if _, err := svc.UpdateUserState("missing", models.UserStateUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing record error = %v", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := newFakeStore(
		models.MediaRecord{Title: "One", Kind: models.KindMovie},
		models.MediaRecord{Title: "Two", Kind: models.KindShow},
	)
	svc := newTestService(store, nil, nil)

	if err := svc.Delete(store.order[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing error = %v", err)
	}
	if err := svc.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	all, _ := store.List()
	if len(all) != 0 {
		t.Fatalf("library size after clear = %d", len(all))
	}
}

func TestGetEnrichesThinRecord(t *testing.T) {
	thin := models.MediaRecord{Title: "Blade Runner", Kind: models.KindMovie}
	thin.SetExternalID(models.NamespaceTMDB, "78")
	store := newFakeStore(thin)

	full := models.MediaRecord{
		Title:    "Blade Runner",
		Kind:     models.KindMovie,
		Year:     intPtr(1982),
		Overview: "A blade runner must pursue replicants.",
		Director: "Ridley Scott",
	}
	meta := &fakeMeta{details: map[string]models.MediaRecord{"78": full}}
	svc := newTestService(store, meta, nil)

	rec, err := svc.Get(context.Background(), store.order[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Overview == "" || rec.Director != "Ridley Scott" {
		t.Fatal("enrichment did not fill descriptive fields")
	}

	// Enrichment must persist, so the second read skips the providers.
	if _, err := svc.Get(context.Background(), store.order[0]); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if meta.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", meta.calls)
	}
}

func TestGetEnrichmentPreservesUserCorrectedFields(t *testing.T) {
	// The user fixed the year by hand; the provider disagrees. Fill-if-absent
	// means the correction wins.
	thin := models.MediaRecord{Title: "Metropolis", Kind: models.KindMovie, Year: intPtr(1927)}
	thin.SetExternalID(models.NamespaceIMDB, "tt0017136")
	store := newFakeStore(thin)

	meta := &fakeMeta{details: map[string]models.MediaRecord{
		"tt0017136": {Title: "Metropolis", Kind: models.KindMovie, Year: intPtr(2001), Overview: "A futuristic city."},
	}}
	svc := newTestService(store, meta, nil)

	rec, err := svc.Get(context.Background(), store.order[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Year == nil || *rec.Year != 1927 {
		t.Fatalf("year = %v, want the stored 1927", rec.Year)
	}
	if rec.Overview != "A futuristic city." {
		t.Fatal("absent overview should still be filled")
	}
}

func TestGetDegradesWhenProvidersFail(t *testing.T) {
	thin := models.MediaRecord{Title: "Stalker", Kind: models.KindMovie}
	thin.SetExternalID(models.NamespaceTMDB, "1398")
	store := newFakeStore(thin)
	meta := &fakeMeta{detailsErr: errors.New("provider down")}
	svc := newTestService(store, meta, nil)

	rec, err := svc.Get(context.Background(), store.order[0])
	if err != nil {
		t.Fatalf("Get must not fail when enrichment does: %v", err)
	}
	if rec.Title != "Stalker" {
		t.Fatalf("stored record not returned: %+v", rec)
	}
}

func TestGetSkipsEnrichmentWithoutResolvableID(t *testing.T) {
	thin := models.MediaRecord{Title: "Home Movie", Kind: models.KindMovie}
	thin.SetExternalID(models.NamespaceSimkl, "99")
	store := newFakeStore(thin)
	meta := &fakeMeta{}
	svc := newTestService(store, meta, nil)

	if _, err := svc.Get(context.Background(), store.order[0]); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", meta.calls)
	}
}

func waitForTask(t *testing.T, svc *Service, id string) *models.RefreshTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := svc.Task(id)
		if err != nil {
			t.Fatalf("Task: %v", err)
		}
		if task.Status == models.TaskCompleted || task.Status == models.TaskFailed {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("refresh task did not finish")
	return nil
}
