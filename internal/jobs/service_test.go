package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetag/internal/apperr"
	"github.com/your-org/facetag/internal/models"
)

type fakeStore struct {
	events        map[uuid.UUID]*models.Event
	jobs          map[uuid.UUID]*models.Job
	media         []models.Media
	stats         models.FaceStats
	notifications []*models.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[uuid.UUID]*models.Event),
		jobs:   make(map[uuid.UUID]*models.Job),
	}
}

func (f *fakeStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return f.events[id], nil
}

func (f *fakeStore) CreateJob(_ context.Context, j *models.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	return f.jobs[id], nil
}

func (f *fakeStore) GetActiveJob(_ context.Context, eventID uuid.UUID, jobType models.JobType) (*models.Job, error) {
	for _, j := range f.jobs {
		if j.EventID == eventID && j.JobType == jobType && !j.Status.Terminal() {
			return j, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateClusterJobIfAbsent(ctx context.Context, j *models.Job) (bool, *models.Job, error) {
	if existing, _ := f.GetActiveJob(ctx, j.EventID, models.JobTypeCluster); existing != nil {
		return false, existing, nil
	}
	return true, nil, f.CreateJob(ctx, j)
}

func (f *fakeStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage, errMsg string) (bool, error) {
	j, ok := f.jobs[id]
	if !ok {
		return false, nil
	}
	if j.Status == status || j.Status.Terminal() {
		return false, nil
	}
	j.Status = status
	if result != nil {
		j.Result = result
	}
	if errMsg != "" {
		j.Error = errMsg
	}
	return true, nil
}

func (f *fakeStore) FaceStats(_ context.Context, _ uuid.UUID) (models.FaceStats, error) {
	return f.stats, nil
}

func (f *fakeStore) ListUnprocessedMedia(_ context.Context, _ uuid.UUID) ([]models.Media, error) {
	return f.media, nil
}

func (f *fakeStore) GetMediaByIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]models.Media, error) {
	var out []models.Media
	for _, m := range f.media {
		for _, id := range ids {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateNotification(_ context.Context, n *models.Notification) error {
	n.ID = uuid.New()
	f.notifications = append(f.notifications, n)
	return nil
}

type fakeSigner struct {
	failFor map[string]bool
}

func (f *fakeSigner) PresignedMediaURL(_ context.Context, storagePath string, _ time.Duration) (string, error) {
	if f.failFor[storagePath] {
		return "", assert.AnError
	}
	return "https://signed.example/" + storagePath, nil
}

type fakeDispatcher struct {
	published []models.JobPayload
	err       error
}

func (f *fakeDispatcher) PublishJob(_ context.Context, p models.JobPayload) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, p)
	return nil
}

type fakeBroadcaster struct {
	sent []*models.Notification
}

func (f *fakeBroadcaster) BroadcastNotification(n *models.Notification) {
	f.sent = append(f.sent, n)
}

func setup() (*fakeStore, *fakeSigner, *fakeDispatcher, *fakeBroadcaster, *Service, uuid.UUID, uuid.UUID) {
	store := newFakeStore()
	owner := uuid.New()
	eventID := uuid.New()
	store.events[eventID] = &models.Event{
		ID: eventID, OwnerID: owner, Name: "wedding", FaceRecognitionEnabled: true,
	}
	signer := &fakeSigner{failFor: map[string]bool{}}
	dispatcher := &fakeDispatcher{}
	broadcast := &fakeBroadcaster{}
	svc := NewService(store, signer, dispatcher, broadcast, DefaultTriggerPolicy(), time.Hour)
	return store, signer, dispatcher, broadcast, svc, owner, eventID
}

func TestEnqueueDetectWholeEvent(t *testing.T) {
	store, _, dispatcher, _, svc, owner, eventID := setup()
	store.media = []models.Media{
		{ID: uuid.New(), EventID: eventID, StoragePath: "a.jpg"},
		{ID: uuid.New(), EventID: eventID, StoragePath: "b.jpg"},
	}

	job, err := svc.EnqueueDetect(context.Background(), owner, eventID, nil, "")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeDetect, job.JobType)
	assert.Equal(t, models.PriorityNormal, job.Priority)
	assert.Len(t, job.MediaIDs, 2)

	require.Len(t, dispatcher.published, 1)
	payload, ok := dispatcher.published[0].(models.DetectPayload)
	require.True(t, ok)
	assert.Equal(t, job.ID, payload.JobID)
	assert.Len(t, payload.Media, 2)
	for _, ref := range payload.Media {
		assert.Contains(t, ref.SignedURL, "https://signed.example/")
	}
}

func TestEnqueueDetectAuthz(t *testing.T) {
	store, _, _, _, svc, owner, eventID := setup()
	store.media = []models.Media{{ID: uuid.New(), EventID: eventID, StoragePath: "a.jpg"}}

	_, err := svc.EnqueueDetect(context.Background(), uuid.New(), eventID, nil, "")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	_, err = svc.EnqueueDetect(context.Background(), owner, uuid.New(), nil, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	store.events[eventID].FaceRecognitionEnabled = false
	_, err = svc.EnqueueDetect(context.Background(), owner, eventID, nil, "")
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestEnqueueDetectNoMedia(t *testing.T) {
	_, _, _, _, svc, owner, eventID := setup()

	_, err := svc.EnqueueDetect(context.Background(), owner, eventID, nil, "")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestEnqueueDetectPartialSigningFailure(t *testing.T) {
	store, signer, dispatcher, _, svc, owner, eventID := setup()
	store.media = []models.Media{
		{ID: uuid.New(), EventID: eventID, StoragePath: "ok.jpg"},
		{ID: uuid.New(), EventID: eventID, StoragePath: "broken.jpg"},
	}
	signer.failFor["broken.jpg"] = true

	job, err := svc.EnqueueDetect(context.Background(), owner, eventID, nil, "")
	require.NoError(t, err)
	assert.Len(t, job.MediaIDs, 2)

	payload := dispatcher.published[0].(models.DetectPayload)
	require.Len(t, payload.Media, 1)
	assert.Equal(t, store.media[0].ID, payload.Media[0].MediaID)
}

func TestEnqueueDetectAllSigningFailed(t *testing.T) {
	store, signer, _, _, svc, owner, eventID := setup()
	store.media = []models.Media{{ID: uuid.New(), EventID: eventID, StoragePath: "broken.jpg"}}
	signer.failFor["broken.jpg"] = true

	_, err := svc.EnqueueDetect(context.Background(), owner, eventID, nil, "")
	assert.Equal(t, apperr.Downstream, apperr.KindOf(err))
}

func TestEnqueueDetectInvalidPriority(t *testing.T) {
	store, _, _, _, svc, owner, eventID := setup()
	store.media = []models.Media{{ID: uuid.New(), EventID: eventID, StoragePath: "a.jpg"}}

	_, err := svc.EnqueueDetect(context.Background(), owner, eventID, nil, "urgent")
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestEnqueueClusterGuard(t *testing.T) {
	_, _, dispatcher, _, svc, owner, eventID := setup()

	first, created, err := svc.EnqueueCluster(context.Background(), owner, eventID, models.PriorityHigh)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PriorityHigh, first.Priority)

	// Second enqueue while the first is still pending returns the same job.
	second, created, err := svc.EnqueueCluster(context.Background(), owner, eventID, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Both attempts dispatch; message id dedup absorbs the second.
	assert.Len(t, dispatcher.published, 2)
}

func TestEnqueueClusterAfterTerminal(t *testing.T) {
	store, _, _, _, svc, owner, eventID := setup()

	first, created, err := svc.EnqueueCluster(context.Background(), owner, eventID, "")
	require.NoError(t, err)
	require.True(t, created)

	store.jobs[first.ID].Status = models.JobStatusCompleted

	second, created, err := svc.EnqueueCluster(context.Background(), owner, eventID, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestHandleCallbackInvalidStatus(t *testing.T) {
	_, _, _, _, svc, _, _ := setup()

	err := svc.HandleCallback(context.Background(), Callback{JobID: uuid.New(), Status: "pending"})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	err = svc.HandleCallback(context.Background(), Callback{JobID: uuid.New(), Status: "done"})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
}

func TestHandleCallbackUnknownJob(t *testing.T) {
	_, _, _, _, svc, _, _ := setup()

	err := svc.HandleCallback(context.Background(), Callback{JobID: uuid.New(), Status: models.JobStatusCompleted})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestHandleCallbackClusterCompletedNotifiesOnce(t *testing.T) {
	store, _, _, broadcast, svc, owner, eventID := setup()

	job := &models.Job{JobType: models.JobTypeCluster, EventID: eventID}
	require.NoError(t, store.CreateJob(context.Background(), job))

	result, _ := json.Marshal(models.CallbackResult{ClustersCreated: intPtr(4)})
	cb := Callback{JobID: job.ID, Status: models.JobStatusCompleted, Result: result}

	require.NoError(t, svc.HandleCallback(context.Background(), cb))
	require.Len(t, store.notifications, 1)
	n := store.notifications[0]
	assert.Equal(t, owner, n.UserID)
	assert.Equal(t, models.NotificationClusteringReady, n.Type)

	var data map[string]any
	require.NoError(t, json.Unmarshal(n.Data, &data))
	assert.Equal(t, float64(4), data["clusters_count"])
	assert.Equal(t, "wedding", data["event_name"])

	assert.Len(t, broadcast.sent, 1)

	// Replay: no second notification, no error back to the worker.
	require.NoError(t, svc.HandleCallback(context.Background(), cb))
	assert.Len(t, store.notifications, 1)
	assert.Len(t, broadcast.sent, 1)
}

func TestHandleCallbackDetectTriggersAutoCluster(t *testing.T) {
	store, _, dispatcher, _, svc, _, eventID := setup()
	store.stats = models.FaceStats{ProcessedMedia: 9, TotalMedia: 10, TotalFaces: 25}

	job := &models.Job{JobType: models.JobTypeDetect, EventID: eventID}
	require.NoError(t, store.CreateJob(context.Background(), job))

	result, _ := json.Marshal(models.CallbackResult{FacesDetected: intPtr(5)})
	err := svc.HandleCallback(context.Background(), Callback{
		JobID: job.ID, Status: models.JobStatusCompleted, Result: result,
	})
	require.NoError(t, err)

	auto, err := store.GetActiveJob(context.Background(), eventID, models.JobTypeCluster)
	require.NoError(t, err)
	require.NotNil(t, auto)
	assert.Equal(t, models.PriorityNormal, auto.Priority)

	require.Len(t, dispatcher.published, 1)
	payload, ok := dispatcher.published[0].(models.ClusterPayload)
	require.True(t, ok)
	assert.Equal(t, auto.ID, payload.JobID)
}

func TestHandleCallbackDetectBelowThresholdNoAutoCluster(t *testing.T) {
	store, _, dispatcher, _, svc, _, eventID := setup()
	store.stats = models.FaceStats{ProcessedMedia: 5, TotalMedia: 10, TotalFaces: 25}

	job := &models.Job{JobType: models.JobTypeDetect, EventID: eventID}
	require.NoError(t, store.CreateJob(context.Background(), job))

	result, _ := json.Marshal(models.CallbackResult{FacesDetected: intPtr(5)})
	err := svc.HandleCallback(context.Background(), Callback{
		JobID: job.ID, Status: models.JobStatusCompleted, Result: result,
	})
	require.NoError(t, err)

	auto, _ := store.GetActiveJob(context.Background(), eventID, models.JobTypeCluster)
	assert.Nil(t, auto)
	assert.Empty(t, dispatcher.published)
}

func TestHandleCallbackAutoClusterOnlyOnce(t *testing.T) {
	store, _, dispatcher, _, svc, _, eventID := setup()
	store.stats = models.FaceStats{ProcessedMedia: 10, TotalMedia: 10, TotalFaces: 30}

	for i := 0; i < 2; i++ {
		job := &models.Job{JobType: models.JobTypeDetect, EventID: eventID}
		require.NoError(t, store.CreateJob(context.Background(), job))
		result, _ := json.Marshal(models.CallbackResult{FacesDetected: intPtr(10)})
		require.NoError(t, svc.HandleCallback(context.Background(), Callback{
			JobID: job.ID, Status: models.JobStatusCompleted, Result: result,
		}))
	}

	clusterJobs := 0
	for _, j := range store.jobs {
		if j.JobType == models.JobTypeCluster {
			clusterJobs++
		}
	}
	assert.Equal(t, 1, clusterJobs)
	assert.Len(t, dispatcher.published, 1)
}

func TestHandleCallbackFailedJustRecords(t *testing.T) {
	store, _, dispatcher, broadcast, svc, _, eventID := setup()
	store.stats = models.FaceStats{ProcessedMedia: 10, TotalMedia: 10, TotalFaces: 30}

	job := &models.Job{JobType: models.JobTypeDetect, EventID: eventID}
	require.NoError(t, store.CreateJob(context.Background(), job))

	err := svc.HandleCallback(context.Background(), Callback{
		JobID: job.ID, Status: models.JobStatusFailed, Error: "worker OOM",
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, store.jobs[job.ID].Status)
	assert.Equal(t, "worker OOM", store.jobs[job.ID].Error)
	assert.Empty(t, dispatcher.published)
	assert.Empty(t, broadcast.sent)
}

func TestHandleCallbackTerminalStatusSticky(t *testing.T) {
	store, _, _, _, svc, _, eventID := setup()

	job := &models.Job{JobType: models.JobTypeDetect, EventID: eventID}
	require.NoError(t, store.CreateJob(context.Background(), job))

	require.NoError(t, svc.HandleCallback(context.Background(), Callback{
		JobID: job.ID, Status: models.JobStatusCompleted,
	}))

	// A late processing report must not resurrect a finished job.
	require.NoError(t, svc.HandleCallback(context.Background(), Callback{
		JobID: job.ID, Status: models.JobStatusProcessing,
	}))
	assert.Equal(t, models.JobStatusCompleted, store.jobs[job.ID].Status)
}

func intPtr(v int) *int { return &v }
