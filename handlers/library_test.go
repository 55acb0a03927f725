package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"medialog/models"
	librarypkg "medialog/services/library"
)

type fakeLibraryService struct {
	records   []models.MediaRecord
	getErr    error
	addRec    *models.MediaRecord
	addNew    bool
	addErr    error
	updateRec *models.MediaRecord
	updateErr error
	deleteErr error

	lastAdd    models.MediaRecord
	lastUpdate models.UserStateUpdate
}

func (f *fakeLibraryService) List() ([]models.MediaRecord, error) {
	return f.records, nil
}

func (f *fakeLibraryService) Get(_ context.Context, id string) (*models.MediaRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, librarypkg.ErrNotFound
}

func (f *fakeLibraryService) Add(_ context.Context, incoming models.MediaRecord) (*models.MediaRecord, bool, error) {
	f.lastAdd = incoming
	return f.addRec, f.addNew, f.addErr
}

func (f *fakeLibraryService) UpdateUserState(_ string, update models.UserStateUpdate) (*models.MediaRecord, error) {
	f.lastUpdate = update
	return f.updateRec, f.updateErr
}

func (f *fakeLibraryService) Delete(string) error { return f.deleteErr }

func (f *fakeLibraryService) Clear() error { return nil }

type fakePosterResolver struct{}

func (fakePosterResolver) PosterFor(rec *models.MediaRecord) string {
	if rec.RatedPosterURL != "" {
		return rec.RatedPosterURL
	}
	return rec.PosterURL
}

func libraryFixture() []models.MediaRecord {
	year := 1999
	rating := 9
	watched := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	matrix := models.MediaRecord{
		ID:        "id-1",
		Kind:      models.KindMovie,
		Title:     "The Matrix",
		Year:      &year,
		PosterURL: "https://image.tmdb.org/t/p/w500/matrix.jpg",
		Status:    models.StatusCompleted,
		Rating:    &rating,
		WatchedAt: &watched,
	}
	matrix.SetExternalID(models.NamespaceIMDB, "tt0133093")
	matrix.SetExternalID(models.NamespaceTMDB, "603")

	bebop := models.MediaRecord{
		ID:     "id-2",
		Kind:   models.KindAnime,
		Title:  "Cowboy Bebop",
		Status: models.StatusWatching,
	}
	bebop.SetExternalID(models.NamespaceMAL, "1")
	return []models.MediaRecord{matrix, bebop}
}

func TestLibraryListFiltersByKindAndStatus(t *testing.T) {
	h := NewLibraryHandler(&fakeLibraryService{records: libraryFixture()}, fakePosterResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/library?kind=anime", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var got []recordResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Cowboy Bebop" {
		t.Fatalf("filtered list = %+v", got)
	}
}

func TestLibraryListIncludesResolvedPoster(t *testing.T) {
	h := NewLibraryHandler(&fakeLibraryService{records: libraryFixture()}, fakePosterResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	var got []recordResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Poster != "https://image.tmdb.org/t/p/w500/matrix.jpg" {
		t.Fatalf("poster = %q", got[0].Poster)
	}
}

func TestLibraryGetNotFound(t *testing.T) {
	h := NewLibraryHandler(&fakeLibraryService{records: libraryFixture()}, nil)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/library/nope", nil), map[string]string{"id": "nope"})
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestLibraryCreate(t *testing.T) {
	rec := libraryFixture()[0]
	svc := &fakeLibraryService{addRec: &rec, addNew: true}
	h := NewLibraryHandler(svc, nil)

	body := strings.NewReader(`{"title":"The Matrix","kind":"movie","status":"completed"}`)
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/library", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	if svc.lastAdd.Title != "The Matrix" || svc.lastAdd.Status != models.StatusCompleted {
		t.Fatalf("decoded record = %+v", svc.lastAdd)
	}
}

func TestLibraryCreateMergedReturnsOK(t *testing.T) {
	rec := libraryFixture()[0]
	h := NewLibraryHandler(&fakeLibraryService{addRec: &rec, addNew: false}, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/library", strings.NewReader(`{"title":"Matrix"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a merge", rr.Code)
	}
}

func TestLibraryCreateValidationError(t *testing.T) {
	h := NewLibraryHandler(&fakeLibraryService{addErr: librarypkg.ErrTitleRequired}, nil)

	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/library", strings.NewReader(`{}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestLibraryUpdateState(t *testing.T) {
	rec := libraryFixture()[0]
	svc := &fakeLibraryService{updateRec: &rec}
	h := NewLibraryHandler(svc, nil)

	req := mux.SetURLVars(
		httptest.NewRequest(http.MethodPatch, "/api/library/id-1", strings.NewReader(`{"rating":8,"memo":"solid"}`)),
		map[string]string{"id": "id-1"})
	rr := httptest.NewRecorder()
	h.UpdateState(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if svc.lastUpdate.Rating == nil || *svc.lastUpdate.Rating != 8 {
		t.Fatalf("update = %+v", svc.lastUpdate)
	}
	if svc.lastUpdate.Status != nil {
		t.Fatal("absent fields must decode as nil")
	}
}

func TestLibraryExportCSV(t *testing.T) {
	h := NewLibraryHandler(&fakeLibraryService{records: libraryFixture()}, nil)

	rr := httptest.NewRecorder()
	h.ExportCSV(rr, httptest.NewRequest(http.MethodGet, "/api/library/export.csv", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}

	rows, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("row count = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Type" || rows[0][4] != "IMDB" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][1] != "The Matrix" || rows[1][4] != "tt0133093" || rows[1][9] != "9" {
		t.Fatalf("first row = %v", rows[1])
	}
}
