package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medialog/models"
)

// MediaRepository persists library records in the media table.
type MediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a repository over an open connection.
func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

const mediaColumns = `id, kind, title, year, external_ids, overview, genres, runtime,
	certification, country, director, poster_url, rated_poster_url, fallback_poster_url,
	status, rating, memo, watched_at, created_at, updated_at`

// List returns every library record, most recently updated first.
func (r *MediaRepository) List() ([]models.MediaRecord, error) {
	rows, err := r.db.Query(`SELECT ` + mediaColumns + ` FROM media ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	var records []models.MediaRecord
	for rows.Next() {
		rec, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Get returns the record with the given id, or nil when absent.
func (r *MediaRepository) Get(id string) (*models.MediaRecord, error) {
	row := r.db.QueryRow(`SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	rec, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media %s: %w", id, err)
	}
	return rec, nil
}

// Insert stores a new record, assigning an id and timestamps when unset.
func (r *MediaRepository) Insert(rec *models.MediaRecord) error {
	prepareForInsert(rec)

	args, err := insertArgs(rec)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(insertMediaSQL, args...); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

// Update rewrites an existing record and bumps its updated timestamp.
func (r *MediaRepository) Update(rec *models.MediaRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	externalIDs, genres, err := encodeJSONFields(rec)
	if err != nil {
		return err
	}

	res, err := r.db.Exec(`UPDATE media SET
		kind = ?, title = ?, year = ?, external_ids = ?, overview = ?, genres = ?,
		runtime = ?, certification = ?, country = ?, director = ?,
		poster_url = ?, rated_poster_url = ?, fallback_poster_url = ?,
		status = ?, rating = ?, memo = ?, watched_at = ?, updated_at = ?
		WHERE id = ?`,
		rec.Kind, rec.Title, rec.Year, externalIDs, rec.Overview, genres,
		rec.Runtime, rec.Certification, rec.Country, rec.Director,
		rec.PosterURL, rec.RatedPosterURL, rec.FallbackPosterURL,
		rec.Status, rec.Rating, rec.Memo, rec.WatchedAt, rec.UpdatedAt,
		rec.ID)
	if err != nil {
		return fmt.Errorf("update media %s: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update media %s: no such record", rec.ID)
	}
	return nil
}

// Delete removes a record by id.
func (r *MediaRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM media WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}

// DeleteAll clears the library.
func (r *MediaRepository) DeleteAll() error {
	if _, err := r.db.Exec(`DELETE FROM media`); err != nil {
		return fmt.Errorf("clear media: %w", err)
	}
	return nil
}

// SaveBatch persists one import run's results in a single transaction so a
// partial import never leaves the library half-written.
func (r *MediaRepository) SaveBatch(created, updated []models.MediaRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for i := range created {
		prepareForInsert(&created[i])
		args, err := insertArgs(&created[i])
		if err != nil {
			return err
		}
		if _, err := tx.Exec(insertMediaSQL, args...); err != nil {
			return fmt.Errorf("batch insert %q: %w", created[i].Title, err)
		}
	}

	for i := range updated {
		rec := &updated[i]
		rec.UpdatedAt = time.Now().UTC()
		externalIDs, genres, err := encodeJSONFields(rec)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE media SET
			kind = ?, title = ?, year = ?, external_ids = ?, overview = ?, genres = ?,
			runtime = ?, certification = ?, country = ?, director = ?,
			poster_url = ?, rated_poster_url = ?, fallback_poster_url = ?,
			status = ?, rating = ?, memo = ?, watched_at = ?, updated_at = ?
			WHERE id = ?`,
			rec.Kind, rec.Title, rec.Year, externalIDs, rec.Overview, genres,
			rec.Runtime, rec.Certification, rec.Country, rec.Director,
			rec.PosterURL, rec.RatedPosterURL, rec.FallbackPosterURL,
			rec.Status, rec.Rating, rec.Memo, rec.WatchedAt, rec.UpdatedAt,
			rec.ID); err != nil {
			return fmt.Errorf("batch update %q: %w", rec.Title, err)
		}
	}

	return tx.Commit()
}

const insertMediaSQL = `INSERT INTO media (` + mediaColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func prepareForInsert(rec *models.MediaRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
}

func insertArgs(rec *models.MediaRecord) ([]any, error) {
	externalIDs, genres, err := encodeJSONFields(rec)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.ID, rec.Kind, rec.Title, rec.Year, externalIDs, rec.Overview, genres,
		rec.Runtime, rec.Certification, rec.Country, rec.Director,
		rec.PosterURL, rec.RatedPosterURL, rec.FallbackPosterURL,
		rec.Status, rec.Rating, rec.Memo, rec.WatchedAt, rec.CreatedAt, rec.UpdatedAt,
	}, nil
}

func encodeJSONFields(rec *models.MediaRecord) (externalIDs, genres string, err error) {
	ids := rec.ExternalIDs
	if ids == nil {
		ids = map[string]string{}
	}
	idsRaw, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("encode external ids: %w", err)
	}

	gs := rec.Genres
	if gs == nil {
		gs = []string{}
	}
	genresRaw, err := json.Marshal(gs)
	if err != nil {
		return "", "", fmt.Errorf("encode genres: %w", err)
	}

	return string(idsRaw), string(genresRaw), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*models.MediaRecord, error) {
	var (
		rec          models.MediaRecord
		year         sql.NullInt64
		runtime      sql.NullInt64
		rating       sql.NullInt64
		watchedAt    sql.NullTime
		externalIDs  string
		genres       string
	)

	err := row.Scan(
		&rec.ID, &rec.Kind, &rec.Title, &year, &externalIDs, &rec.Overview, &genres,
		&runtime, &rec.Certification, &rec.Country, &rec.Director,
		&rec.PosterURL, &rec.RatedPosterURL, &rec.FallbackPosterURL,
		&rec.Status, &rating, &rec.Memo, &watchedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		rec.Year = &y
	}
	if runtime.Valid {
		m := int(runtime.Int64)
		rec.Runtime = &m
	}
	if rating.Valid {
		v := int(rating.Int64)
		rec.Rating = &v
	}
	if watchedAt.Valid {
		t := watchedAt.Time
		rec.WatchedAt = &t
	}

	if err := json.Unmarshal([]byte(externalIDs), &rec.ExternalIDs); err != nil {
		return nil, fmt.Errorf("decode external ids for %s: %w", rec.ID, err)
	}
	if len(rec.ExternalIDs) == 0 {
		rec.ExternalIDs = nil
	}
	if err := json.Unmarshal([]byte(genres), &rec.Genres); err != nil {
		return nil, fmt.Errorf("decode genres for %s: %w", rec.ID, err)
	}
	if len(rec.Genres) == 0 {
		rec.Genres = nil
	}

	return &rec, nil
}
