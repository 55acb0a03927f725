package library

import (
	"context"
	"log"

	"medialog/models"
)

// needsEnrichment reports whether a record is still thin enough to be
// worth a provider round trip: no overview yet, but at least one external
// id a provider can resolve.
func needsEnrichment(rec *models.MediaRecord) bool {
	if rec.Overview != "" {
		return false
	}
	for _, ns := range models.Namespaces {
		if ns == models.NamespaceSimkl {
			continue
		}
		if rec.ExternalID(ns) != "" {
			return true
		}
	}
	return false
}

// EnsureEnriched lazily backfills provider metadata for a record the
// first time it is read in detail. Enrichment fills absent fields only
// and degrades to the stored record when every provider fails.
func (s *Service) EnsureEnriched(ctx context.Context, rec *models.MediaRecord) *models.MediaRecord {
	if !needsEnrichment(rec) {
		return rec
	}

	details, err := s.meta.Details(ctx, rec.Kind, rec.ExternalIDs)
	if err != nil {
		log.Printf("[library] enrichment failed for %q: %v", rec.Title, err)
		return rec
	}

	merge(rec, details, mergeOptions{})
	s.meta.DecoratePosters(rec)
	if rec.ID != "" {
		if err := s.store.Update(rec); err != nil {
			log.Printf("[library] persisting enrichment for %q failed: %v", rec.Title, err)
		}
	}
	return rec
}
