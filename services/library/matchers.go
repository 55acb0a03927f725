package library

import (
	"medialog/models"
	"medialog/utils/similarity"
)

// matcher decides whether an incoming record and a library candidate
// describe the same logical title.
type matcher struct {
	name    string
	matches func(incoming, candidate *models.MediaRecord) bool
}

func namespaceMatcher(ns string) matcher {
	return matcher{
		name: "id-" + ns,
		matches: func(incoming, candidate *models.MediaRecord) bool {
			id := incoming.ExternalID(ns)
			return id != "" && id == candidate.ExternalID(ns)
		},
	}
}

// matchOrder is consulted front to back; the first matcher that pairs the
// incoming record with a candidate wins. External-id matchers run before
// the title fallback so an id agreement always beats a title collision.
var matchOrder = buildMatchers()

func buildMatchers() []matcher {
	ms := make([]matcher, 0, len(models.Namespaces)+1)
	for _, ns := range models.Namespaces {
		ms = append(ms, namespaceMatcher(ns))
	}
	ms = append(ms, matcher{
		name: "title-kind",
		matches: func(incoming, candidate *models.MediaRecord) bool {
			return incoming.Kind == candidate.Kind &&
				similarity.TitlesEqual(incoming.Title, candidate.Title)
		},
	})
	return ms
}

// Reconcile finds the library record the incoming one belongs to. It
// returns the matched record, or nil with isNew true when nothing in the
// candidate set corresponds to the incoming title.
func Reconcile(incoming *models.MediaRecord, candidates []*models.MediaRecord) (target *models.MediaRecord, isNew bool) {
	for _, m := range matchOrder {
		for _, candidate := range candidates {
			if m.matches(incoming, candidate) {
				return candidate, false
			}
		}
	}
	return nil, true
}
