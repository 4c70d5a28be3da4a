// Package jobs owns the persisted job queue: enqueueing detection and
// clustering work, and ingesting worker callbacks.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/apperr"
	"github.com/your-org/facetag/internal/models"
	"github.com/your-org/facetag/internal/observability"
)

// Store is the persistence surface this service needs. *storage.PostgresStore
// satisfies it; tests use an in-memory fake.
type Store interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetActiveJob(ctx context.Context, eventID uuid.UUID, jobType models.JobType) (*models.Job, error)
	CreateClusterJobIfAbsent(ctx context.Context, j *models.Job) (created bool, existing *models.Job, err error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage, errMsg string) (bool, error)
	FaceStats(ctx context.Context, eventID uuid.UUID) (models.FaceStats, error)
	ListUnprocessedMedia(ctx context.Context, eventID uuid.UUID) ([]models.Media, error)
	GetMediaByIDs(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]models.Media, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// URLSigner issues the short-lived media download URLs handed to the worker.
type URLSigner interface {
	PresignedMediaURL(ctx context.Context, storagePath string, expiry time.Duration) (string, error)
}

// Dispatcher delivers job payloads to the worker.
type Dispatcher interface {
	PublishJob(ctx context.Context, payload models.JobPayload) error
}

// Broadcaster pushes notification records to connected clients. Delivery
// rendering lives elsewhere; nil-safe no-op implementations are fine.
type Broadcaster interface {
	BroadcastNotification(n *models.Notification)
}

type Service struct {
	store      Store
	signer     URLSigner
	dispatcher Dispatcher
	broadcast  Broadcaster
	policy     TriggerPolicy
	urlTTL     time.Duration
}

func NewService(store Store, signer URLSigner, dispatcher Dispatcher, broadcast Broadcaster, policy TriggerPolicy, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Service{
		store:      store,
		signer:     signer,
		dispatcher: dispatcher,
		broadcast:  broadcast,
		policy:     policy,
		urlTTL:     urlTTL,
	}
}

// authorizeEnqueue applies the enqueue contract: the event must exist, have
// the face-recognition feature enabled, and the caller must be its owner.
func (s *Service) authorizeEnqueue(ctx context.Context, callerID, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load event", err)
	}
	if event == nil {
		return nil, apperr.New(apperr.NotFound, "event not found")
	}
	if !event.FaceRecognitionEnabled {
		return nil, apperr.New(apperr.Forbidden, "face recognition not enabled for this event")
	}
	if event.OwnerID != callerID {
		return nil, apperr.New(apperr.Unauthorized, "only the event owner can trigger face analysis")
	}
	return event, nil
}

func normalizePriority(p models.JobPriority) (models.JobPriority, error) {
	if p == "" {
		return models.PriorityNormal, nil
	}
	if !p.Valid() {
		return "", apperr.Newf(apperr.Invalid, "invalid priority %q", p)
	}
	return p, nil
}

// EnqueueDetect records a detect job and dispatches it to the worker with a
// signed URL per media item. An empty media list means "everything in the
// event that has no detected face yet". Signing failures skip the item and
// the batch continues; only a wholly failed batch aborts the request.
func (s *Service) EnqueueDetect(ctx context.Context, callerID, eventID uuid.UUID, mediaIDs []uuid.UUID, priority models.JobPriority) (*models.Job, error) {
	if _, err := s.authorizeEnqueue(ctx, callerID, eventID); err != nil {
		return nil, err
	}
	priority, err := normalizePriority(priority)
	if err != nil {
		return nil, err
	}

	var media []models.Media
	if len(mediaIDs) == 0 {
		media, err = s.store.ListUnprocessedMedia(ctx, eventID)
	} else {
		media, err = s.store.GetMediaByIDs(ctx, eventID, mediaIDs)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "resolve media batch", err)
	}
	if len(media) == 0 {
		return nil, apperr.New(apperr.Invalid, "no media to process")
	}

	job := &models.Job{
		JobType:  models.JobTypeDetect,
		EventID:  eventID,
		Priority: priority,
	}
	for _, m := range media {
		job.MediaIDs = append(job.MediaIDs, m.ID)
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "create detect job", err)
	}

	refs := make([]models.MediaRef, 0, len(media))
	for _, m := range media {
		url, err := s.signer.PresignedMediaURL(ctx, m.StoragePath, s.urlTTL)
		if err != nil {
			slog.Warn("sign media url failed, skipping item",
				"media_id", m.ID, "job_id", job.ID, "error", err)
			continue
		}
		refs = append(refs, models.MediaRef{MediaID: m.ID, SignedURL: url})
	}
	if len(refs) == 0 {
		return nil, apperr.New(apperr.Downstream, "could not sign any media URL for the batch")
	}

	payload := models.DetectPayload{
		JobID:    job.ID,
		EventID:  eventID,
		Media:    refs,
		Priority: priority,
	}
	if err := s.dispatcher.PublishJob(ctx, payload); err != nil {
		return nil, apperr.Wrap(apperr.Downstream, "dispatch detect job", err)
	}

	observability.JobsEnqueued.WithLabelValues(string(models.JobTypeDetect), "manual").Inc()
	slog.Info("detect job enqueued",
		"job_id", job.ID, "event_id", eventID, "media", len(refs), "priority", priority)
	return job, nil
}

// EnqueueCluster records a cluster job for the event, or returns the already
// active one. The guard applies on the manual path as well as the auto path:
// concurrent re-clustering of one event is never allowed, enqueue is
// idempotent while a job is in flight. The dispatch is re-published in either
// case; the message id makes duplicates harmless.
func (s *Service) EnqueueCluster(ctx context.Context, callerID, eventID uuid.UUID, priority models.JobPriority) (job *models.Job, created bool, err error) {
	if _, err := s.authorizeEnqueue(ctx, callerID, eventID); err != nil {
		return nil, false, err
	}
	priority, err = normalizePriority(priority)
	if err != nil {
		return nil, false, err
	}

	job, created, err = s.createClusterJob(ctx, eventID, priority)
	if err != nil {
		return nil, false, err
	}

	if err := s.dispatcher.PublishJob(ctx, models.ClusterPayload{
		JobID:    job.ID,
		EventID:  eventID,
		Priority: job.Priority,
	}); err != nil {
		return nil, false, apperr.Wrap(apperr.Downstream, "dispatch cluster job", err)
	}

	if created {
		observability.JobsEnqueued.WithLabelValues(string(models.JobTypeCluster), "manual").Inc()
		slog.Info("cluster job enqueued", "job_id", job.ID, "event_id", eventID)
	} else {
		slog.Info("cluster job already active, returning existing",
			"job_id", job.ID, "event_id", eventID)
	}
	return job, created, nil
}

func (s *Service) createClusterJob(ctx context.Context, eventID uuid.UUID, priority models.JobPriority) (*models.Job, bool, error) {
	job := &models.Job{
		JobType:  models.JobTypeCluster,
		EventID:  eventID,
		Priority: priority,
	}
	created, existing, err := s.store.CreateClusterJobIfAbsent(ctx, job)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Persistence, "create cluster job", err)
	}
	if !created {
		return existing, false, nil
	}
	return job, true, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "load job", err)
	}
	if job == nil {
		return nil, apperr.New(apperr.NotFound, "job not found")
	}
	return job, nil
}

// Callback is a worker completion report.
type Callback struct {
	JobID  uuid.UUID
	Status models.JobStatus
	Result json.RawMessage
	Error  string
}

// HandleCallback records the worker's status report and runs the follow-up
// side effects. The status write is idempotent: a replayed (job, status)
// pair changes nothing and triggers no side effects, so worker retries are
// safe. Side-effect failures are logged, not surfaced — the worker only needs
// to know the report was recorded.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) error {
	switch cb.Status {
	case models.JobStatusProcessing, models.JobStatusCompleted, models.JobStatusFailed:
	default:
		return apperr.Newf(apperr.Invalid, "invalid callback status %q", cb.Status)
	}

	job, err := s.store.GetJob(ctx, cb.JobID)
	if err != nil {
		return apperr.Wrap(apperr.Persistence, "load job", err)
	}
	if job == nil {
		return apperr.New(apperr.NotFound, "job not found")
	}

	changed, err := s.store.UpdateJobStatus(ctx, cb.JobID, cb.Status, cb.Result, cb.Error)
	if err != nil {
		return apperr.Wrap(apperr.Persistence, "update job status", err)
	}
	observability.Callbacks.WithLabelValues(string(cb.Status)).Inc()
	if !changed {
		observability.CallbackReplays.Inc()
		slog.Info("callback replay ignored", "job_id", cb.JobID, "status", cb.Status)
		return nil
	}

	if cb.Status == models.JobStatusFailed {
		slog.Warn("job failed", "job_id", cb.JobID, "job_type", job.JobType, "error", cb.Error)
		return nil
	}
	if cb.Status != models.JobStatusCompleted {
		return nil
	}

	var result models.CallbackResult
	if len(cb.Result) > 0 {
		if err := json.Unmarshal(cb.Result, &result); err != nil {
			slog.Warn("unparseable callback result", "job_id", cb.JobID, "error", err)
			return nil
		}
	}

	if result.ClustersCreated != nil {
		s.notifyClusteringReady(ctx, job, *result.ClustersCreated)
	}
	if result.FacesDetected != nil {
		s.maybeAutoCluster(ctx, job.EventID)
	}
	return nil
}

// notifyClusteringReady emits exactly one notification record to the event
// owner for a newly completed cluster job.
func (s *Service) notifyClusteringReady(ctx context.Context, job *models.Job, clustersCreated int) {
	event, err := s.store.GetEvent(ctx, job.EventID)
	if err != nil || event == nil {
		slog.Error("load event for notification", "event_id", job.EventID, "error", err)
		return
	}

	data, _ := json.Marshal(map[string]any{
		"event_id":       event.ID,
		"event_name":     event.Name,
		"clusters_count": clustersCreated,
		"job_id":         job.ID,
	})
	n := &models.Notification{
		UserID: event.OwnerID,
		Type:   models.NotificationClusteringReady,
		Data:   data,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		slog.Error("create clustering notification", "event_id", event.ID, "error", err)
		return
	}
	if s.broadcast != nil {
		s.broadcast.BroadcastNotification(n)
	}
	slog.Info("clustering ready notification sent",
		"event_id", event.ID, "user_id", event.OwnerID, "clusters", clustersCreated)
}

// maybeAutoCluster recomputes detection progress and enqueues a cluster job
// when the threshold policy fires.
func (s *Service) maybeAutoCluster(ctx context.Context, eventID uuid.UUID) {
	stats, err := s.store.FaceStats(ctx, eventID)
	if err != nil {
		slog.Error("face stats for auto trigger", "event_id", eventID, "error", err)
		return
	}
	active, err := s.store.GetActiveJob(ctx, eventID, models.JobTypeCluster)
	if err != nil {
		slog.Error("check active cluster job", "event_id", eventID, "error", err)
		return
	}
	if !s.policy.ShouldCluster(stats, active != nil) {
		return
	}

	job, created, err := s.createClusterJob(ctx, eventID, models.PriorityNormal)
	if err != nil {
		slog.Error("auto-enqueue cluster job", "event_id", eventID, "error", err)
		return
	}
	if !created {
		// Another callback won the race; its dispatch covers us.
		return
	}

	if err := s.dispatcher.PublishJob(ctx, models.ClusterPayload{
		JobID:    job.ID,
		EventID:  eventID,
		Priority: job.Priority,
	}); err != nil {
		slog.Error("dispatch auto-triggered cluster job", "job_id", job.ID, "error", err)
		return
	}

	observability.JobsEnqueued.WithLabelValues(string(models.JobTypeCluster), "auto").Inc()
	slog.Info("auto-triggered clustering",
		"event_id", eventID, "job_id", job.ID,
		"processed_media", stats.ProcessedMedia, "total_media", stats.TotalMedia,
		"total_faces", stats.TotalFaces)
}
