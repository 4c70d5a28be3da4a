package clusters

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/apperr"
	"github.com/your-org/facetag/internal/models"
	"github.com/your-org/facetag/internal/observability"
)

// LinkUser binds an existing cluster to an event member and tags every media
// item the cluster appears in. Unlike Assign it keeps the cluster row itself,
// it only flips its identity.
func (s *Service) LinkUser(ctx context.Context, callerID, clusterID, linkedUserID uuid.UUID) (int, error) {
	if clusterID == uuid.Nil || linkedUserID == uuid.Nil {
		return 0, apperr.New(apperr.Invalid, "face_person_id and linked_user_id are required")
	}

	var tagsCreated int
	err := s.store.WithTx(ctx, func(tx Store) error {
		person, err := tx.GetPerson(ctx, clusterID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load cluster", err)
		}
		if person == nil {
			return apperr.New(apperr.NotFound, "cluster not found")
		}
		if _, err := s.requireOrganizer(ctx, tx, person.EventID, callerID); err != nil {
			return err
		}

		member, err := tx.GetMemberByUser(ctx, person.EventID, linkedUserID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load event member", err)
		}
		if member == nil {
			return apperr.New(apperr.Invalid, "user is not a member of this event")
		}

		if err := tx.LinkPerson(ctx, clusterID, linkedUserID); err != nil {
			return apperr.Wrap(apperr.Persistence, "link cluster", err)
		}

		faces, err := tx.ListFacesByPerson(ctx, clusterID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load cluster faces", err)
		}
		tagsCreated, err = tx.UpsertTags(ctx, clusterTags(faces, member.ID, callerID))
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "upsert media tags", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	observability.TagsCreated.Add(float64(tagsCreated))
	slog.Info("cluster linked", "cluster", clusterID, "user", linkedUserID, "tags_created", tagsCreated)
	return tagsCreated, nil
}

// MergePair folds the secondary cluster into the primary one: all secondary
// faces move over, the secondary is marked merged, and if the primary already
// has an identity the combined face set is re-tagged.
func (s *Service) MergePair(ctx context.Context, callerID, primaryID, secondaryID uuid.UUID) (int, error) {
	if primaryID == uuid.Nil || secondaryID == uuid.Nil {
		return 0, apperr.New(apperr.Invalid, "primary_person_id and secondary_person_id are required")
	}
	if primaryID == secondaryID {
		return 0, apperr.New(apperr.Invalid, "cannot merge a cluster into itself")
	}

	var reassigned int
	err := s.store.WithTx(ctx, func(tx Store) error {
		primary, err := tx.GetPersonForUpdate(ctx, primaryID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load primary cluster", err)
		}
		if primary == nil {
			return apperr.New(apperr.NotFound, "primary cluster not found")
		}
		secondary, err := tx.GetPerson(ctx, secondaryID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load secondary cluster", err)
		}
		if secondary == nil {
			return apperr.New(apperr.NotFound, "secondary cluster not found")
		}
		if primary.EventID != secondary.EventID {
			return apperr.New(apperr.Invalid, "cannot merge clusters from different events")
		}
		if _, err := s.requireOrganizer(ctx, tx, primary.EventID, callerID); err != nil {
			return err
		}

		reassigned, err = tx.ReassignFacesByPerson(ctx, secondaryID, primaryID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "reassign faces", err)
		}
		if err := tx.MarkPersonMerged(ctx, secondaryID, primaryID); err != nil {
			return apperr.Wrap(apperr.Persistence, "mark cluster merged", err)
		}

		if primary.LinkedUserID == nil {
			return nil
		}
		member, err := tx.GetMemberByUser(ctx, primary.EventID, *primary.LinkedUserID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load event member", err)
		}
		if member == nil {
			return nil
		}
		faces, err := tx.ListFacesByPerson(ctx, primaryID)
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "load merged faces", err)
		}
		created, err := tx.UpsertTags(ctx, clusterTags(faces, member.ID, callerID))
		if err != nil {
			return apperr.Wrap(apperr.Persistence, "upsert media tags", err)
		}
		observability.TagsCreated.Add(float64(created))
		return nil
	})
	if err != nil {
		return 0, err
	}

	observability.ClusterMerges.Inc()
	slog.Info("clusters merged", "primary", primaryID, "secondary", secondaryID, "faces_reassigned", reassigned)
	return reassigned, nil
}

// Ignore hides a cluster from review without touching its faces.
func (s *Service) Ignore(ctx context.Context, callerID, clusterID uuid.UUID) error {
	person, err := s.store.GetPerson(ctx, clusterID)
	if err != nil {
		return apperr.Wrap(apperr.Persistence, "load cluster", err)
	}
	if person == nil {
		return apperr.New(apperr.NotFound, "cluster not found")
	}
	if _, err := s.requireOrganizer(ctx, s.store, person.EventID, callerID); err != nil {
		return err
	}
	if err := s.store.SetPersonStatus(ctx, clusterID, models.PersonStatusIgnored); err != nil {
		return apperr.Wrap(apperr.Persistence, "ignore cluster", err)
	}
	return nil
}

// Invite records a pending invitation to someone outside the event who
// appears in a cluster. Mail delivery is handled out of band.
func (s *Service) Invite(ctx context.Context, callerID, clusterID uuid.UUID, email string) error {
	if email == "" {
		return apperr.New(apperr.Invalid, "email is required")
	}
	person, err := s.store.GetPerson(ctx, clusterID)
	if err != nil {
		return apperr.Wrap(apperr.Persistence, "load cluster", err)
	}
	if person == nil {
		return apperr.New(apperr.NotFound, "cluster not found")
	}
	event, err := s.requireOrganizer(ctx, s.store, person.EventID, callerID)
	if err != nil {
		return err
	}
	if err := s.store.MarkPersonInvited(ctx, clusterID, email); err != nil {
		return apperr.Wrap(apperr.Persistence, "mark cluster invited", err)
	}
	slog.Info("cluster invitation recorded", "cluster", clusterID, "email", email, "event", event.Name)
	return nil
}

// Purge erases a user's face data for one event: their clustering tags, the
// faces in clusters linked to them, and the cluster rows themselves. Users
// may purge their own data; organizers may purge anyone's.
func (s *Service) Purge(ctx context.Context, callerID, eventID uuid.UUID, targetUserID uuid.UUID) (models.PurgeCounts, error) {
	if eventID == uuid.Nil {
		return models.PurgeCounts{}, apperr.New(apperr.Invalid, "event_id is required")
	}
	if targetUserID == uuid.Nil {
		targetUserID = callerID
	}
	if targetUserID != callerID {
		if _, err := s.requireOrganizer(ctx, s.store, eventID, callerID); err != nil {
			return models.PurgeCounts{}, err
		}
	}

	counts, err := s.store.PurgeUserFaceData(ctx, eventID, targetUserID)
	if err != nil {
		return models.PurgeCounts{}, apperr.Wrap(apperr.Persistence, "purge face data", err)
	}
	slog.Info("face data purged", "event_id", eventID, "user_id", targetUserID,
		"faces", counts.Faces, "persons", counts.Persons, "tags", counts.Tags)
	return counts, nil
}

// ClusterList is the review view: every cluster of an event with aggregate
// counters plus the state of the most recent clustering job.
type ClusterList struct {
	Clusters  []models.PersonStats
	JobStatus models.JobStatus
}

// ListClusters returns the clusters of an event. Any member of the event may
// read them.
func (s *Service) ListClusters(ctx context.Context, callerID, eventID uuid.UUID) (*ClusterList, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load event", err)
	}
	if event == nil {
		return nil, apperr.New(apperr.NotFound, "event not found")
	}
	if event.OwnerID != callerID {
		member, err := s.store.GetMemberByUser(ctx, eventID, callerID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Persistence, "load event member", err)
		}
		if member == nil {
			return nil, apperr.New(apperr.Forbidden, "not a member of this event")
		}
	}

	stats, err := s.store.ListPersonStats(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "list clusters", err)
	}
	list := &ClusterList{Clusters: stats}
	job, err := s.store.LatestClusterJob(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load latest cluster job", err)
	}
	if job != nil {
		list.JobStatus = job.Status
	}
	return list, nil
}

// SuggestFor loads the inputs for the ranking heuristic and runs it. A nil
// suggestion with a nil error means no candidate cleared the bar.
func (s *Service) SuggestFor(ctx context.Context, callerID, clusterID uuid.UUID) (*Suggestion, error) {
	cluster, err := s.store.GetPersonStats(ctx, clusterID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load cluster stats", err)
	}
	if cluster == nil {
		return nil, apperr.New(apperr.NotFound, "cluster not found")
	}
	if _, err := s.requireOrganizer(ctx, s.store, cluster.EventID, callerID); err != nil {
		return nil, err
	}

	members, err := s.store.ListMemberStats(ctx, cluster.EventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "list member stats", err)
	}
	all, err := s.store.ListPersonStats(ctx, cluster.EventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "list cluster stats", err)
	}

	suggestion := Suggest(*cluster, members, all)
	if suggestion == nil {
		observability.SuggestionsServed.WithLabelValues("none").Inc()
	} else {
		observability.SuggestionsServed.WithLabelValues("suggested").Inc()
	}
	return suggestion, nil
}

func clusterTags(faces []models.Face, memberID, taggedBy uuid.UUID) []models.MediaTag {
	seen := make(map[uuid.UUID]bool, len(faces))
	tags := make([]models.MediaTag, 0, len(faces))
	for _, f := range faces {
		if seen[f.MediaID] {
			continue
		}
		seen[f.MediaID] = true
		fid := f.ID
		tags = append(tags, models.MediaTag{
			MediaID:  f.MediaID,
			MemberID: memberID,
			TaggedBy: taggedBy,
			Source:   models.TagSourceFaceClustering,
			FaceID:   &fid,
		})
	}
	return tags
}
