package library

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"medialog/models"
)

// RefreshAllMetadata starts a background pass that re-fetches provider
// metadata for every record and returns immediately with a task handle.
// hard forces poster slots to be overwritten with fresh artwork.
func (s *Service) RefreshAllMetadata(hard bool) (*models.RefreshStarted, error) {
	records, err := s.store.List()
	if err != nil {
		return nil, err
	}

	task := &models.RefreshTask{
		ID:        uuid.New().String(),
		Status:    models.TaskPending,
		Total:     len(records),
		StartedAt: time.Now().UTC(),
	}
	s.tasksMu.Lock()
	s.tasks[task.ID] = task
	s.tasksMu.Unlock()

	if len(records) == 0 {
		s.finishTask(task.ID, "")
		return &models.RefreshStarted{TaskID: task.ID, Total: 0, Processing: false}, nil
	}

	go s.runRefresh(task.ID, records, hard)
	return &models.RefreshStarted{TaskID: task.ID, Total: len(records), Processing: true}, nil
}

// Task returns a copy of a refresh task's current state.
func (s *Service) Task(id string) (*models.RefreshTask, error) {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *task
	return &snapshot, nil
}

func (s *Service) runRefresh(taskID string, records []models.MediaRecord, hard bool) {
	// Detached from the request that started it; the pass keeps running
	// after the caller's context is gone.
	ctx := context.Background()

	s.updateTask(taskID, func(t *models.RefreshTask) { t.Status = models.TaskRunning })

	for i := range records {
		if i > 0 {
			time.Sleep(s.refreshDelay)
		}
		rec := &records[i]

		details, err := s.meta.Details(ctx, rec.Kind, rec.ExternalIDs)
		if err != nil {
			log.Printf("[library] refresh skipped %q: %v", rec.Title, err)
			s.updateTask(taskID, func(t *models.RefreshTask) {
				t.Processed++
				t.Failed++
			})
			continue
		}

		merge(rec, details, mergeOptions{hardRefresh: hard})
		s.meta.DecoratePosters(rec)
		if err := s.store.Update(rec); err != nil {
			log.Printf("[library] refresh persist failed for %q: %v", rec.Title, err)
			s.updateTask(taskID, func(t *models.RefreshTask) {
				t.Processed++
				t.Failed++
			})
			continue
		}

		s.updateTask(taskID, func(t *models.RefreshTask) {
			t.Processed++
			t.Updated++
		})
	}

	s.finishTask(taskID, "")
	log.Printf("[library] refresh task %s finished", taskID)
}

func (s *Service) updateTask(id string, apply func(*models.RefreshTask)) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if task, ok := s.tasks[id]; ok {
		apply(task)
	}
}

func (s *Service) finishTask(id, errMsg string) {
	s.updateTask(id, func(t *models.RefreshTask) {
		now := time.Now().UTC()
		t.EndedAt = &now
		if errMsg != "" {
			t.Status = models.TaskFailed
			t.Error = errMsg
			return
		}
		t.Status = models.TaskCompleted
	})
}
