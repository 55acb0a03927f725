package library

import "medialog/models"

// mergeOptions tunes how incoming data is folded into an existing record.
type mergeOptions struct {
	// importStatus lets an imported history item overwrite the stored
	// watch status. All other user state stays untouched regardless.
	importStatus bool
	// hardRefresh overwrites poster slots even when already populated,
	// used by forced refreshes to pick up replaced artwork.
	hardRefresh bool
}

// merge folds the incoming record into target. Descriptive fields are
// fill-if-absent, external ids are a union that never removes an existing
// mapping, and user state (rating, memo, watched-at) is never modified
// here.
func merge(target, incoming *models.MediaRecord, opts mergeOptions) {
	if target.Title == "" {
		target.Title = incoming.Title
	}
	if target.Year == nil && incoming.Year != nil {
		y := *incoming.Year
		target.Year = &y
	}
	if target.Overview == "" {
		target.Overview = incoming.Overview
	}
	if target.Runtime == nil && incoming.Runtime != nil {
		r := *incoming.Runtime
		target.Runtime = &r
	}
	if target.Certification == "" {
		target.Certification = incoming.Certification
	}
	if target.Country == "" {
		target.Country = incoming.Country
	}
	if target.Director == "" {
		target.Director = incoming.Director
	}
	if len(target.Genres) == 0 && len(incoming.Genres) > 0 {
		target.Genres = append([]string(nil), incoming.Genres...)
	}

	mergePoster(&target.PosterURL, incoming.PosterURL, opts.hardRefresh)
	mergePoster(&target.RatedPosterURL, incoming.RatedPosterURL, opts.hardRefresh)
	mergePoster(&target.FallbackPosterURL, incoming.FallbackPosterURL, opts.hardRefresh)

	for ns, id := range incoming.ExternalIDs {
		if id != "" && target.ExternalID(ns) == "" {
			target.SetExternalID(ns, id)
		}
	}

	if opts.importStatus && incoming.Status != "" {
		target.Status = incoming.Status
	}
}

func mergePoster(slot *string, url string, hardRefresh bool) {
	if url == "" {
		return
	}
	if hardRefresh || *slot == "" {
		*slot = url
	}
}
