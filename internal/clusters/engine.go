// Package clusters owns cluster identity resolution: committing "cluster X is
// person Y", ranking candidate matches, and the organizer actions around
// clusters.
package clusters

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/apperr"
	"github.com/your-org/facetag/internal/models"
	"github.com/your-org/facetag/internal/observability"
)

// Store is the persistence surface for cluster operations. Methods that must
// be atomic run inside WithTx; the transaction-scoped store passed to the
// closure sees uncommitted writes and honors row locks.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error

	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetPerson(ctx context.Context, id uuid.UUID) (*models.FacePerson, error)
	GetPersonForUpdate(ctx context.Context, id uuid.UUID) (*models.FacePerson, error)
	FindLinkedPerson(ctx context.Context, eventID, userID uuid.UUID) (*models.FacePerson, error)
	NextClusterLabel(ctx context.Context, eventID uuid.UUID) (int, error)
	CreatePerson(ctx context.Context, p *models.FacePerson) error
	SetPersonStatus(ctx context.Context, id uuid.UUID, status models.PersonStatus) error
	LinkPerson(ctx context.Context, id, userID uuid.UUID) error
	MarkPersonMerged(ctx context.Context, id, mergedInto uuid.UUID) error
	MarkPersonInvited(ctx context.Context, id uuid.UUID, email string) error
	DeletePerson(ctx context.Context, id uuid.UUID) error

	ListFacesByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error)
	ReassignFaces(ctx context.Context, faceIDs []uuid.UUID, targetPersonID uuid.UUID) (int, error)
	ReassignFacesByPerson(ctx context.Context, fromPersonID, toPersonID uuid.UUID) (int, error)
	DeleteFaces(ctx context.Context, faceIDs []uuid.UUID) error

	GetMemberByUser(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	CreateMember(ctx context.Context, m *models.EventMember) error
	UpsertTags(ctx context.Context, tags []models.MediaTag) (int, error)

	ListPersonStats(ctx context.Context, eventID uuid.UUID) ([]models.PersonStats, error)
	GetPersonStats(ctx context.Context, id uuid.UUID) (*models.PersonStats, error)
	ListMemberStats(ctx context.Context, eventID uuid.UUID) ([]models.MemberStats, error)
	LatestClusterJob(ctx context.Context, eventID uuid.UUID) (*models.Job, error)
	PurgeUserFaceData(ctx context.Context, eventID, userID uuid.UUID) (models.PurgeCounts, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// requireOrganizer resolves the event and verifies the caller owns it.
func (s *Service) requireOrganizer(ctx context.Context, store Store, eventID, callerID uuid.UUID) (*models.Event, error) {
	event, err := store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load event", err)
	}
	if event == nil {
		return nil, apperr.New(apperr.NotFound, "event not found")
	}
	if event.OwnerID != callerID {
		return nil, apperr.New(apperr.Forbidden, "only the event organizer can manage clusters")
	}
	return event, nil
}

// AssignRequest commits the decision "source cluster is this user".
type AssignRequest struct {
	CallerID        uuid.UUID
	SourceClusterID uuid.UUID
	LinkedUserID    uuid.UUID
	EventID         uuid.UUID
	// DeleteSource removes the emptied source cluster shell. Callers doing a
	// multi-select batch set it only on the last step, since earlier steps
	// may still reference the source.
	DeleteSource bool
	// MergeIfExists folds into the user's existing linked cluster instead of
	// always allocating a new one.
	MergeIfExists bool
}

type AssignResult struct {
	NewClusterID uuid.UUID
	FacesCopied  int
	TagsCreated  int
	Merged       bool
}

// Assign folds the source cluster into the user's durable identity and emits
// tags. The whole sequence runs in one transaction with the target cluster
// row-locked, so concurrent merges into the same identity serialize instead
// of double-counting a shared snapshot.
//
// Faces whose media already has a face in the target are treated as redundant
// detections of the same person in the same item and are deleted, embeddings
// included. Tag insertion is keyed on (media_id, member_id), so repeating an
// identical assign reports zero new tags.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	if req.SourceClusterID == uuid.Nil || req.LinkedUserID == uuid.Nil || req.EventID == uuid.Nil {
		return nil, apperr.New(apperr.Invalid, "source_face_person_id, linked_user_id and event_id are required")
	}
	if _, err := s.requireOrganizer(ctx, s.store, req.EventID, req.CallerID); err != nil {
		return nil, err
	}

	var res AssignResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		source, err := tx.GetPerson(ctx, req.SourceClusterID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load source cluster", err)
		}
		if source == nil {
			return apperr.New(apperr.NotFound, "source cluster not found")
		}
		if source.EventID != req.EventID {
			return apperr.New(apperr.Invalid, "source cluster belongs to another event")
		}

		target, merged, err := s.resolveTarget(ctx, tx, req, source)
		if err != nil {
			return err
		}
		res.Merged = merged

		sourceFaces, err := tx.ListFacesByPerson(ctx, req.SourceClusterID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load source faces", err)
		}
		targetFaces, err := tx.ListFacesByPerson(ctx, target.ID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load target faces", err)
		}

		// Partition source faces: first face per media not yet covered by
		// the target moves; everything else is a redundant detection.
		covered := make(map[uuid.UUID]uuid.UUID, len(targetFaces)) // media -> face id
		for _, f := range targetFaces {
			covered[f.MediaID] = f.ID
		}
		var moveIDs, dupIDs []uuid.UUID
		for _, f := range sourceFaces {
			if _, dup := covered[f.MediaID]; dup {
				dupIDs = append(dupIDs, f.ID)
				continue
			}
			covered[f.MediaID] = f.ID
			moveIDs = append(moveIDs, f.ID)
		}

		moved, err := tx.ReassignFaces(ctx, moveIDs, target.ID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "reassign faces", err)
		}
		if err := tx.DeleteFaces(ctx, dupIDs); err != nil {
			return apperr.Wrap(apperr.Persistence, "delete duplicate faces", err)
		}
		res.FacesCopied = moved

		member, err := s.resolveMember(ctx, tx, req.EventID, req.LinkedUserID)
		if err != nil {
			return err
		}

		tags := make([]models.MediaTag, 0, len(covered))
		for mediaID, faceID := range covered {
			fid := faceID
			tags = append(tags, models.MediaTag{
				MediaID:  mediaID,
				MemberID: member.ID,
				TaggedBy: req.LinkedUserID,
				Source:   models.TagSourceFaceClustering,
				FaceID:   &fid,
			})
		}
		created, err := tx.UpsertTags(ctx, tags)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "upsert media tags", err)
		}
		res.TagsCreated = created

		if req.DeleteSource {
			if err := tx.DeletePerson(ctx, req.SourceClusterID); err != nil {
				return apperr.Wrap(apperr.Persistence, "delete source cluster", err)
			}
		}

		res.NewClusterID = target.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.ClusterMerges.Inc()
	observability.TagsCreated.Add(float64(res.TagsCreated))
	slog.Info("cluster assigned",
		"source", req.SourceClusterID, "target", res.NewClusterID,
		"user", req.LinkedUserID, "faces_copied", res.FacesCopied,
		"tags_created", res.TagsCreated, "merged", res.Merged)
	return &res, nil
}

// resolveTarget picks the existing linked cluster (locked for the rest of the
// transaction) or allocates a fresh one with the next label.
func (s *Service) resolveTarget(ctx context.Context, tx Store, req AssignRequest, source *models.FacePerson) (*models.FacePerson, bool, error) {
	if req.MergeIfExists {
		existing, err := tx.FindLinkedPerson(ctx, req.EventID, req.LinkedUserID)
		if err != nil {
			return nil, false, apperr.Wrap(apperr.Persistence, "find linked cluster", err)
		}
		if existing != nil {
			locked, err := tx.GetPersonForUpdate(ctx, existing.ID)
			if err != nil {
				return nil, false, apperr.Wrap(apperr.Persistence, "lock target cluster", err)
			}
			if locked == nil {
				return nil, false, apperr.New(apperr.NotFound, "target cluster disappeared")
			}
			return locked, true, nil
		}
	}

	label, err := tx.NextClusterLabel(ctx, req.EventID)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Persistence, "allocate cluster label", err)
	}
	linkedUser := req.LinkedUserID
	target := &models.FacePerson{
		EventID:              req.EventID,
		ClusterLabel:         label,
		RepresentativeFaceID: source.RepresentativeFaceID,
		LinkedUserID:         &linkedUser,
		Status:               models.PersonStatusLinked,
		Metadata:             source.Metadata,
	}
	if err := tx.CreatePerson(ctx, target); err != nil {
		return nil, false, apperr.Wrap(apperr.Persistence, "create target cluster", err)
	}
	return target, false, nil
}

// resolveMember finds the user's membership row or provisions one, falling
// back to profile data for name and email.
func (s *Service) resolveMember(ctx context.Context, tx Store, eventID, userID uuid.UUID) (*models.EventMember, error) {
	member, err := tx.GetMemberByUser(ctx, eventID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load event member", err)
	}
	if member != nil {
		return member, nil
	}

	name, email := "Unknown", ""
	profile, err := tx.GetProfile(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load profile", err)
	}
	if profile != nil {
		if profile.FullName != "" {
			name = profile.FullName
		}
		email = profile.Email
	}

	uid := userID
	member = &models.EventMember{
		EventID: eventID,
		UserID:  &uid,
		Name:    name,
		Email:   email,
		Role:    models.RoleParticipant,
	}
	if err := tx.CreateMember(ctx, member); err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "create event member", err)
	}
	slog.Info("provisioned event member", "event_id", eventID, "user_id", userID)
	return member, nil
}
