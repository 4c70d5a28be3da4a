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

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e := &models.Event{}
	err := s.q.QueryRow(ctx,
		`SELECT id, name, owner_id, face_recognition_enabled, created_at
		 FROM events WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.OwnerID, &e.FaceRecognitionEnabled, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p := &models.Profile{}
	err := s.q.QueryRow(ctx,
		`SELECT id, COALESCE(full_name, ''), COALESCE(email, '') FROM profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.FullName, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetMemberByUser(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error) {
	m := &models.EventMember{}
	err := s.q.QueryRow(ctx,
		`SELECT id, event_id, user_id, name, email, role, created_at
		 FROM event_members WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	).Scan(&m.ID, &m.EventID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event member: %w", err)
	}
	return m, nil
}

// ListMemberStats returns every member of an event with the number of media
// items they are already tagged in.
func (s *PostgresStore) ListMemberStats(ctx context.Context, eventID uuid.UUID) ([]models.MemberStats, error) {
	rows, err := s.q.Query(ctx,
		`SELECT m.id, m.event_id, m.user_id, m.name, m.email, m.role, m.created_at,
		        COALESCE(t.tag_count, 0)
		 FROM event_members m
		 LEFT JOIN (
		     SELECT member_id, COUNT(DISTINCT media_id) AS tag_count
		     FROM media_tags GROUP BY member_id
		 ) t ON t.member_id = m.id
		 WHERE m.event_id = $1`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("list member stats: %w", err)
	}
	defer rows.Close()

	var stats []models.MemberStats
	for rows.Next() {
		var ms models.MemberStats
		if err := rows.Scan(&ms.ID, &ms.EventID, &ms.UserID, &ms.Name, &ms.Email,
			&ms.Role, &ms.CreatedAt, &ms.TagCount); err != nil {
			return nil, fmt.Errorf("scan member stats: %w", err)
		}
		stats = append(stats, ms)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) CreateMember(ctx context.Context, m *models.EventMember) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.Exec(ctx,
		`INSERT INTO event_members (id, event_id, user_id, name, email, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.EventID, m.UserID, m.Name, m.Email, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event member: %w", err)
	}
	return nil
}
