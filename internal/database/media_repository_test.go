package database

import (
	"path/filepath"
	"testing"
	"time"

	"medialog/models"
)

// setupTestRepo creates a test database and media repository.
func setupTestRepo(t *testing.T) *MediaRepository {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewMediaRepository(db.Connection())
}

func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	repo := setupTestRepo(t)

	rec := &models.MediaRecord{
		Kind:  models.KindMovie,
		Title: "Inception",
	}

	if err := repo.Insert(rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if rec.ID == "" {
		t.Error("expected non-empty ID after insert")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)

	year := 2010
	runtime := 148
	rating := 9
	watched := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	rec := &models.MediaRecord{
		Kind:  models.KindMovie,
		Title: "Inception",
		Year:  &year,
		ExternalIDs: map[string]string{
			models.NamespaceTMDB: "27205",
			models.NamespaceIMDB: "tt1375666",
		},
		Overview:      "A thief who steals corporate secrets.",
		Genres:        []string{"Action", "Sci-Fi"},
		Runtime:       &runtime,
		Certification: "PG-13",
		Country:       "US",
		Director:      "Christopher Nolan",
		PosterURL:     "https://image.tmdb.org/t/p/w500/poster.jpg",
		Status:        models.StatusCompleted,
		Rating:        &rating,
		Memo:          "rewatch with commentary",
		WatchedAt:     &watched,
	}

	if err := repo.Insert(rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record to be retrievable")
	}

	if got.Title != "Inception" || got.Kind != models.KindMovie {
		t.Errorf("unexpected identity fields: %q %q", got.Title, got.Kind)
	}
	if got.Year == nil || *got.Year != 2010 {
		t.Errorf("unexpected year: %v", got.Year)
	}
	if got.ExternalIDs[models.NamespaceIMDB] != "tt1375666" {
		t.Errorf("unexpected external ids: %v", got.ExternalIDs)
	}
	if len(got.Genres) != 2 || got.Genres[0] != "Action" {
		t.Errorf("unexpected genres: %v", got.Genres)
	}
	if got.Rating == nil || *got.Rating != 9 {
		t.Errorf("unexpected rating: %v", got.Rating)
	}
	if got.Memo != "rewatch with commentary" {
		t.Errorf("unexpected memo: %q", got.Memo)
	}
	if got.WatchedAt == nil || !got.WatchedAt.Equal(watched) {
		t.Errorf("unexpected watched timestamp: %v", got.WatchedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := setupTestRepo(t)

	got, err := repo.Get("no-such-id")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing record, got %+v", got)
	}
}

func TestUpdatePersistsChanges(t *testing.T) {
	repo := setupTestRepo(t)

	rec := &models.MediaRecord{Kind: models.KindShow, Title: "Dark"}
	if err := repo.Insert(rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	rec.Overview = "A missing child sets four families on a hunt for answers."
	rec.Status = models.StatusWatching
	if err := repo.Update(rec); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.Get(rec.ID)
	if got.Overview == "" || got.Status != models.StatusWatching {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestUpdateMissingRecordFails(t *testing.T) {
	repo := setupTestRepo(t)

	rec := &models.MediaRecord{ID: "ghost", Kind: models.KindMovie, Title: "Ghost"}
	if err := repo.Update(rec); err == nil {
		t.Error("expected error updating a record that was never inserted")
	}
}

func TestDeleteAndDeleteAll(t *testing.T) {
	repo := setupTestRepo(t)

	a := &models.MediaRecord{Kind: models.KindMovie, Title: "A"}
	b := &models.MediaRecord{Kind: models.KindMovie, Title: "B"}
	repo.Insert(a)
	repo.Insert(b)

	if err := repo.Delete(a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got, _ := repo.Get(a.ID); got != nil {
		t.Error("expected deleted record to be gone")
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	records, _ := repo.List()
	if len(records) != 0 {
		t.Errorf("expected empty library, got %d records", len(records))
	}
}

func TestSaveBatchIsAtomic(t *testing.T) {
	repo := setupTestRepo(t)

	existing := &models.MediaRecord{Kind: models.KindMovie, Title: "The Matrix"}
	if err := repo.Insert(existing); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	existing.Status = models.StatusCompleted
	created := []models.MediaRecord{
		{Kind: models.KindMovie, Title: "Heat"},
		{Kind: models.KindAnime, Title: "Monster"},
	}

	if err := repo.SaveBatch(created, []models.MediaRecord{*existing}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	records, err := repo.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records after batch, got %d", len(records))
	}

	got, _ := repo.Get(existing.ID)
	if got.Status != models.StatusCompleted {
		t.Errorf("batch update not applied: status %q", got.Status)
	}
}
