package library

import (
	"context"
	"log"
	"time"

	"medialog/models"
	"medialog/utils/similarity"
)

// importKinds mirrors the history source's partitioning: every status is
// fetched once per kind.
var importKinds = []string{"movies", "shows", "anime"}

// ImportSimkl pulls the full watch history from the configured source and
// folds it into the library. Each kind/status partition is fetched
// independently; a failed partition is reported and skipped rather than
// aborting the run. All created and merged records are persisted in one
// batch at the end.
func (s *Service) ImportSimkl(ctx context.Context, accessToken string) (*models.ImportReport, error) {
	if accessToken == "" {
		return nil, ErrTokenRequired
	}

	snapshot, err := s.store.List()
	if err != nil {
		return nil, err
	}

	// The working set holds the pre-import library plus everything
	// created during this run, so duplicates inside the import stream
	// collapse into a single record.
	working := make([]*models.MediaRecord, 0, len(snapshot))
	for i := range snapshot {
		working = append(working, &snapshot[i])
	}
	var created []*models.MediaRecord
	dirty := make(map[string]*models.MediaRecord)

	report := &models.ImportReport{}
	first := true
	for _, kind := range importKinds {
		for _, status := range models.Statuses {
			if !first {
				time.Sleep(s.importDelay)
			}
			first = false

			items, err := s.history.AllItems(ctx, accessToken, kind, status)
			if err != nil {
				partition := kind + "/" + status
				log.Printf("[library] import partition %s failed: %v", partition, err)
				report.FailedPartitions = append(report.FailedPartitions, partition)
				continue
			}

			for i := range items {
				item := &items[i]
				report.TotalSeen++

				target, isNew := Reconcile(item, working)
				if isNew {
					if title, score, ok := nearMatch(item, working); ok {
						log.Printf("[library] import created %q; existing entry %q is a close title match (%.2f)",
							item.Title, title, score)
					}
					rec := *item
					s.meta.DecoratePosters(&rec)
					p := &rec
					created = append(created, p)
					working = append(working, p)
					report.Created++
					continue
				}

				merge(target, item, mergeOptions{importStatus: true})
				s.meta.DecoratePosters(target)
				if target.ID != "" {
					dirty[target.ID] = target
				}
				report.Merged++
			}
		}
	}

	createdRecs := make([]models.MediaRecord, 0, len(created))
	for _, rec := range created {
		createdRecs = append(createdRecs, *rec)
	}
	updatedRecs := make([]models.MediaRecord, 0, len(dirty))
	for _, rec := range dirty {
		updatedRecs = append(updatedRecs, *rec)
	}
	if err := s.store.SaveBatch(createdRecs, updatedRecs); err != nil {
		return nil, err
	}

	log.Printf("[library] import done: %d seen, %d created, %d merged, %d failed partitions",
		report.TotalSeen, report.Created, report.Merged, len(report.FailedPartitions))
	return report, nil
}

// nearMatchThreshold marks titles close enough to an existing same-kind entry
// to be worth flagging, without being merged automatically.
const nearMatchThreshold = 0.85

// nearMatch finds the closest same-kind title among the existing records for
// an item that is about to be created as new. Only near misses are reported;
// exact matches are already handled by reconciliation.
func nearMatch(item *models.MediaRecord, existing []*models.MediaRecord) (string, float64, bool) {
	var (
		bestTitle string
		bestScore float64
	)
	for _, rec := range existing {
		if rec.Kind != item.Kind {
			continue
		}
		if score := similarity.Similarity(item.Title, rec.Title); score > bestScore {
			bestTitle, bestScore = rec.Title, score
		}
	}
	if bestScore < nearMatchThreshold {
		return "", 0, false
	}
	return bestTitle, bestScore, true
}
