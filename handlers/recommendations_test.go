package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"medialog/models"
	geminipkg "medialog/services/gemini"
)

type fakeRecommender struct {
	recs []geminipkg.Recommendation
	err  error

	called    bool
	lastSeeds []string
	lastKind  string
}

func (f *fakeRecommender) Recommend(_ context.Context, seeds []string, kind string) ([]geminipkg.Recommendation, error) {
	f.called = true
	f.lastSeeds = seeds
	f.lastKind = kind
	return f.recs, f.err
}

type fakeLister struct {
	records []models.MediaRecord
}

func (f *fakeLister) List() ([]models.MediaRecord, error) { return f.records, nil }

func TestRecommendationsSeedsFromWatchedTitles(t *testing.T) {
	rating := 9
	lister := &fakeLister{records: []models.MediaRecord{
		{Title: "Dropped Show", Kind: models.KindShow, Status: models.StatusDropped},
		{Title: "The Wire", Kind: models.KindShow, Status: models.StatusCompleted, Rating: &rating},
		{Title: "Backlog Movie", Kind: models.KindMovie, Status: models.StatusPlanToWatch},
		{Title: "Severance", Kind: models.KindShow, Status: models.StatusWatching},
	}}
	rec := &fakeRecommender{recs: []geminipkg.Recommendation{{Title: "Deadwood", Kind: "show"}}}
	h := NewRecommendationsHandler(rec, lister)

	rr := httptest.NewRecorder()
	h.Recommendations(rr, httptest.NewRequest(http.MethodGet, "/api/recommendations?kind=show", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(rec.lastSeeds) != 2 {
		t.Fatalf("seeds = %v", rec.lastSeeds)
	}
	if rec.lastSeeds[0] != "The Wire" {
		t.Fatalf("highly rated titles should lead the seeds: %v", rec.lastSeeds)
	}
}

func TestRecommendationsEmptyLibrarySkipsBackend(t *testing.T) {
	rec := &fakeRecommender{}
	h := NewRecommendationsHandler(rec, &fakeLister{})

	rr := httptest.NewRecorder()
	h.Recommendations(rr, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rec.called {
		t.Fatal("backend must not be called without seeds")
	}
	var got []geminipkg.Recommendation
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("results = %+v", got)
	}
}

func TestRecommendationsUnconfiguredBackend(t *testing.T) {
	lister := &fakeLister{records: []models.MediaRecord{
		{Title: "Heat", Kind: models.KindMovie, Status: models.StatusCompleted},
	}}
	h := NewRecommendationsHandler(&fakeRecommender{err: geminipkg.ErrNotConfigured}, lister)

	rr := httptest.NewRecorder()
	h.Recommendations(rr, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestRecommendationsExhaustedBackendReturnsEmptyList(t *testing.T) {
	lister := &fakeLister{records: []models.MediaRecord{
		{Title: "Heat", Kind: models.KindMovie, Status: models.StatusCompleted},
	}}
	// A rate-limited backend degrades to no recommendations, not an error.
	h := NewRecommendationsHandler(&fakeRecommender{recs: nil}, lister)

	rr := httptest.NewRecorder()
	h.Recommendations(rr, httptest.NewRequest(http.MethodGet, "/api/recommendations", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("body = %q, want an empty JSON array", body)
	}
}
