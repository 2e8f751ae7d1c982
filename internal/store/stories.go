package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dae9999nam/Memory-Garden/internal/models"
)

const storyColumns = `id, date, place, weather, notes, prompt, narrative_text, created_at, updated_at`

const photoColumns = `story_id, position, blob_id, original_name, mime_type, byte_length, sha256, stored_at`

const defaultListLimit = 100

// InsertStory creates a story and its photo rows in one transaction.
func (s *Store) InsertStory(ctx context.Context, record *models.StoryRecord) (err error) {
	if record == nil {
		return fmt.Errorf("story is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO stories (`+storyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Context.Date,
		record.Context.Place,
		record.Context.Weather,
		nullString(record.Context.Notes),
		record.Prompt,
		nullNarrative(record.NarrativeText),
		formatTime(record.CreatedAt),
		formatTime(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraint(err, "stories.id") {
			return fmt.Errorf("%w: %s", ErrConflict, record.ID)
		}
		return err
	}
	if err = insertPhotos(ctx, tx, record.ID, record.Photos); err != nil {
		return err
	}
	return tx.Commit()
}

// GetStory loads a story with its ordered photos; nil when absent.
func (s *Store) GetStory(ctx context.Context, id string) (*models.StoryRecord, error) {
	record, err := scanStory(s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
	if err != nil || record == nil {
		return nil, err
	}
	photos, err := s.listPhotos(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	record.Photos = photos[id]
	if record.Photos == nil {
		record.Photos = []models.PhotoBlobRef{}
	}
	return record, nil
}

// UpdateStory replaces every mutable column and the whole photo list.
func (s *Store) UpdateStory(ctx context.Context, record *models.StoryRecord) (err error) {
	if record == nil {
		return fmt.Errorf("story is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE stories
		SET date = ?, place = ?, weather = ?, notes = ?, prompt = ?, narrative_text = ?, updated_at = ?
		WHERE id = ?`,
		record.Context.Date,
		record.Context.Place,
		record.Context.Weather,
		nullString(record.Context.Notes),
		record.Prompt,
		nullNarrative(record.NarrativeText),
		formatTime(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, record.ID)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM story_photos WHERE story_id = ?`, record.ID); err != nil {
		return err
	}
	if err = insertPhotos(ctx, tx, record.ID, record.Photos); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteStory removes a story; photo rows cascade. Missing ids are ignored.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	return err
}

// ListStories returns stories newest first.
func (s *Store) ListStories(ctx context.Context, limit, offset int) ([]models.StoryRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+storyColumns+` FROM stories ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.StoryRecord
	var ids []string
	for rows.Next() {
		record, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
		ids = append(ids, record.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	photos, err := s.listPhotos(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Photos = photos[records[i].ID]
		if records[i].Photos == nil {
			records[i].Photos = []models.PhotoBlobRef{}
		}
	}
	return records, nil
}

// ListReferencedBlobIDs returns the blob id of every photo of every story.
func (s *Store) ListReferencedBlobIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blob_id FROM story_photos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) listPhotos(ctx context.Context, storyIDs []string) (map[string][]models.PhotoBlobRef, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(storyIDs)), ",")
	args := make([]any, len(storyIDs))
	for i, id := range storyIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+photoColumns+` FROM story_photos WHERE story_id IN (`+placeholders+`) ORDER BY story_id, position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]models.PhotoBlobRef{}
	for rows.Next() {
		var storyID, storedAt string
		var position int
		var sha sql.NullString
		var photo models.PhotoBlobRef
		if err := rows.Scan(&storyID, &position, &photo.BlobID, &photo.OriginalName, &photo.MimeType, &photo.ByteLength, &sha, &storedAt); err != nil {
			return nil, err
		}
		photo.SHA256 = sha.String
		if photo.StoredAt, err = parseTime(storedAt); err != nil {
			return nil, err
		}
		out[storyID] = append(out[storyID], photo)
	}
	return out, rows.Err()
}

func insertPhotos(ctx context.Context, tx *sql.Tx, storyID string, photos []models.PhotoBlobRef) error {
	if len(photos) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO story_photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, photo := range photos {
		if _, err := stmt.ExecContext(ctx,
			storyID,
			i,
			photo.BlobID,
			photo.OriginalName,
			photo.MimeType,
			photo.ByteLength,
			nullString(photo.SHA256),
			formatTime(photo.StoredAt),
		); err != nil {
			return fmt.Errorf("insert photo %s: %w", photo.BlobID, err)
		}
	}
	return nil
}

func scanStory(scanner interface {
	Scan(dest ...any) error
}) (*models.StoryRecord, error) {
	record := models.StoryRecord{}

	var notes, narrative sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&record.ID,
		&record.Context.Date,
		&record.Context.Place,
		&record.Context.Weather,
		&notes,
		&record.Prompt,
		&narrative,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	record.Context.Notes = notes.String
	if narrative.Valid {
		text := narrative.String
		record.NarrativeText = &text
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &record, nil
}

func nullNarrative(text *string) any {
	if text == nil {
		return nil
	}
	return *text
}

func isUniqueConstraint(err error, column string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
