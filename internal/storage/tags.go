package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/models"
)

// UpsertTags inserts media tags, ignoring rows whose (media_id, member_id)
// pair already exists. The returned count reflects only rows actually
// inserted, which is what makes repeated merges report zero new tags.
func (s *PostgresStore) UpsertTags(ctx context.Context, tags []models.MediaTag) (int, error) {
	inserted := 0
	for _, t := range tags {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		tag, err := s.q.Exec(ctx,
			`INSERT INTO media_tags (id, media_id, member_id, tagged_by, source, face_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (media_id, member_id) DO NOTHING`,
			id, t.MediaID, t.MemberID, t.TaggedBy, t.Source, t.FaceID, time.Now().UTC())
		if err != nil {
			return inserted, fmt.Errorf("upsert media tag: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Data == nil {
		n.Data = []byte("{}")
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, data, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Type, n.Data, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// PurgeUserFaceData removes every face, cluster and clustering-sourced tag
// tied to a user within one event. Runs as a single transaction.
func (s *PostgresStore) PurgeUserFaceData(ctx context.Context, eventID, userID uuid.UUID) (models.PurgeCounts, error) {
	var counts models.PurgeCounts
	err := s.WithTx(ctx, func(tx *PostgresStore) error {
		tag, err := tx.q.Exec(ctx,
			`DELETE FROM media_tags
			 WHERE source = 'face_clustering'
			   AND member_id IN (SELECT id FROM event_members WHERE event_id = $1 AND user_id = $2)`,
			eventID, userID)
		if err != nil {
			return fmt.Errorf("purge tags: %w", err)
		}
		counts.Tags = int(tag.RowsAffected())

		tag, err = tx.q.Exec(ctx,
			`DELETE FROM faces
			 WHERE face_person_id IN
			   (SELECT id FROM face_persons WHERE event_id = $1 AND linked_user_id = $2)`,
			eventID, userID)
		if err != nil {
			return fmt.Errorf("purge faces: %w", err)
		}
		counts.Faces = int(tag.RowsAffected())

		tag, err = tx.q.Exec(ctx,
			`DELETE FROM face_persons WHERE event_id = $1 AND linked_user_id = $2`,
			eventID, userID)
		if err != nil {
			return fmt.Errorf("purge face persons: %w", err)
		}
		counts.Persons = int(tag.RowsAffected())
		return nil
	})
	return counts, err
}
