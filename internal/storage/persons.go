package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/facetag/internal/models"
)

const personColumns = `id, event_id, cluster_label, representative_face_id, linked_user_id,
	status, merged_into_id, COALESCE(invitation_email, ''), invited_at, metadata, created_at, updated_at`

func scanPerson(row pgx.Row) (*models.FacePerson, error) {
	p := &models.FacePerson{}
	err := row.Scan(&p.ID, &p.EventID, &p.ClusterLabel, &p.RepresentativeFaceID,
		&p.LinkedUserID, &p.Status, &p.MergedIntoID, &p.InvitationEmail,
		&p.InvitedAt, &p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id uuid.UUID) (*models.FacePerson, error) {
	p, err := scanPerson(s.q.QueryRow(ctx,
		`SELECT `+personColumns+` FROM face_persons WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get face person: %w", err)
	}
	return p, nil
}

// GetPersonForUpdate row-locks the cluster for the remainder of the
// transaction, so concurrent merges into the same target serialize.
func (s *PostgresStore) GetPersonForUpdate(ctx context.Context, id uuid.UUID) (*models.FacePerson, error) {
	if _, inTx := s.q.(pgx.Tx); !inTx {
		return nil, fmt.Errorf("row lock outside transaction")
	}
	p, err := scanPerson(s.q.QueryRow(ctx,
		`SELECT `+personColumns+` FROM face_persons WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get face person for update: %w", err)
	}
	return p, nil
}

// FindLinkedPerson returns the cluster already linked to a user in this
// event, if any.
func (s *PostgresStore) FindLinkedPerson(ctx context.Context, eventID, userID uuid.UUID) (*models.FacePerson, error) {
	p, err := scanPerson(s.q.QueryRow(ctx,
		`SELECT `+personColumns+` FROM face_persons
		 WHERE event_id = $1 AND linked_user_id = $2 AND status = 'linked'
		 LIMIT 1`,
		eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find linked person: %w", err)
	}
	return p, nil
}

// NextClusterLabel allocates the next label for an event: labels increase
// monotonically and are only unique within the event.
func (s *PostgresStore) NextClusterLabel(ctx context.Context, eventID uuid.UUID) (int, error) {
	var next int
	err := s.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(cluster_label) + 1, 0) FROM face_persons WHERE event_id = $1`,
		eventID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next cluster label: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *models.FacePerson) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Metadata == nil {
		p.Metadata = []byte("{}")
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO face_persons
		   (id, event_id, cluster_label, representative_face_id, linked_user_id, status, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.EventID, p.ClusterLabel, p.RepresentativeFaceID, p.LinkedUserID,
		p.Status, p.Metadata, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create face person: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPersonStatus(ctx context.Context, id uuid.UUID, status models.PersonStatus) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE face_persons SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set person status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) LinkPerson(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE face_persons
		 SET linked_user_id = $2, status = 'linked', updated_at = $3
		 WHERE id = $1`,
		id, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) MarkPersonMerged(ctx context.Context, id, mergedInto uuid.UUID) error {
	_, err := s.q.Exec(ctx,
		`UPDATE face_persons
		 SET status = 'merged', merged_into_id = $2, updated_at = $3
		 WHERE id = $1`,
		id, mergedInto, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark person merged: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkPersonInvited(ctx context.Context, id uuid.UUID, email string) error {
	now := time.Now().UTC()
	_, err := s.q.Exec(ctx,
		`UPDATE face_persons
		 SET status = 'invited', invitation_email = $2, invited_at = $3, updated_at = $3
		 WHERE id = $1`,
		id, email, now)
	if err != nil {
		return fmt.Errorf("mark person invited: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePerson(ctx context.Context, id uuid.UUID) error {
	_, err := s.q.Exec(ctx, `DELETE FROM face_persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete face person: %w", err)
	}
	return nil
}

const personStatsQuery = `
	SELECT ` + personColumns + `,
	       COALESCE(f.face_count, 0), COALESCE(f.media_count, 0), COALESCE(f.avg_quality, 0)
	FROM face_persons fp
	LEFT JOIN (
	    SELECT face_person_id,
	           COUNT(*) AS face_count,
	           COUNT(DISTINCT media_id) AS media_count,
	           AVG(quality_score) AS avg_quality
	    FROM faces
	    WHERE face_person_id IS NOT NULL
	    GROUP BY face_person_id
	) f ON f.face_person_id = fp.id`

func scanPersonStats(rows pgx.Rows) (*models.PersonStats, error) {
	ps := &models.PersonStats{}
	err := rows.Scan(&ps.ID, &ps.EventID, &ps.ClusterLabel, &ps.RepresentativeFaceID,
		&ps.LinkedUserID, &ps.Status, &ps.MergedIntoID, &ps.InvitationEmail,
		&ps.InvitedAt, &ps.Metadata, &ps.CreatedAt, &ps.UpdatedAt,
		&ps.FaceCount, &ps.MediaCount, &ps.AvgQuality)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// ListPersonStats returns every cluster of an event with its aggregate
// counters, largest first.
func (s *PostgresStore) ListPersonStats(ctx context.Context, eventID uuid.UUID) ([]models.PersonStats, error) {
	rows, err := s.q.Query(ctx,
		personStatsQuery+` WHERE fp.event_id = $1 ORDER BY COALESCE(f.face_count, 0) DESC`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("list person stats: %w", err)
	}
	defer rows.Close()

	var stats []models.PersonStats
	for rows.Next() {
		ps, err := scanPersonStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person stats: %w", err)
		}
		stats = append(stats, *ps)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) GetPersonStats(ctx context.Context, id uuid.UUID) (*models.PersonStats, error) {
	rows, err := s.q.Query(ctx, personStatsQuery+` WHERE fp.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get person stats: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	ps, err := scanPersonStats(rows)
	if err != nil {
		return nil, fmt.Errorf("scan person stats: %w", err)
	}
	return ps, nil
}
