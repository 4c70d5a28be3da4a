package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facetag/internal/models"
)

// FaceStats computes the detection-progress counters for the threshold
// trigger: total media, media covered by at least one face, total faces.
func (s *PostgresStore) FaceStats(ctx context.Context, eventID uuid.UUID) (models.FaceStats, error) {
	var st models.FaceStats
	err := s.q.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM media WHERE event_id = $1),
		   (SELECT COUNT(DISTINCT media_id) FROM faces WHERE event_id = $1),
		   (SELECT COUNT(*) FROM faces WHERE event_id = $1)`,
		eventID,
	).Scan(&st.TotalMedia, &st.ProcessedMedia, &st.TotalFaces)
	if err != nil {
		return models.FaceStats{}, fmt.Errorf("face stats: %w", err)
	}
	return st, nil
}

// ListUnprocessedMedia returns event media that have no detected face yet.
func (s *PostgresStore) ListUnprocessedMedia(ctx context.Context, eventID uuid.UUID) ([]models.Media, error) {
	rows, err := s.q.Query(ctx,
		`SELECT m.id, m.event_id, m.storage_path
		 FROM media m
		 WHERE m.event_id = $1
		   AND NOT EXISTS (SELECT 1 FROM faces f WHERE f.media_id = m.id)`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed media: %w", err)
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.EventID, &m.StoragePath); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

// GetMediaByIDs resolves storage paths for an explicit media batch, scoped to
// the event so one event cannot enqueue another event's media.
func (s *PostgresStore) GetMediaByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]models.Media, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, event_id, storage_path FROM media
		 WHERE event_id = $1 AND id = ANY($2)`,
		eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("get media by ids: %w", err)
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.EventID, &m.StoragePath); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *PostgresStore) ListFacesByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, media_id, event_id, face_person_id, bbox, embedding, quality_score, created_at
		 FROM faces WHERE face_person_id = $1`,
		personID)
	if err != nil {
		return nil, fmt.Errorf("list faces by person: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.MediaID, &f.EventID, &f.FacePersonID,
			&f.BBox, &vec, &f.QualityScore, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// ReassignFaces re-points the given faces at a target cluster and returns how
// many rows moved.
func (s *PostgresStore) ReassignFaces(ctx context.Context, faceIDs []uuid.UUID, targetPersonID uuid.UUID) (int, error) {
	if len(faceIDs) == 0 {
		return 0, nil
	}
	tag, err := s.q.Exec(ctx,
		`UPDATE faces SET face_person_id = $1 WHERE id = ANY($2)`,
		targetPersonID, faceIDs)
	if err != nil {
		return 0, fmt.Errorf("reassign faces: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReassignFacesByPerson moves every face from one cluster to another.
func (s *PostgresStore) ReassignFacesByPerson(ctx context.Context, fromPersonID, toPersonID uuid.UUID) (int, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE faces SET face_person_id = $1 WHERE face_person_id = $2`,
		toPersonID, fromPersonID)
	if err != nil {
		return 0, fmt.Errorf("reassign faces by person: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteFaces(ctx context.Context, faceIDs []uuid.UUID) error {
	if len(faceIDs) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, `DELETE FROM faces WHERE id = ANY($1)`, faceIDs)
	if err != nil {
		return fmt.Errorf("delete faces: %w", err)
	}
	return nil
}
