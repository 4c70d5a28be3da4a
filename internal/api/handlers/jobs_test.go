package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetag/internal/auth"
	"github.com/your-org/facetag/internal/jobs"
	"github.com/your-org/facetag/internal/models"
)

type stubStore struct {
	events map[uuid.UUID]*models.Event
	jobs   map[uuid.UUID]*models.Job
	media  []models.Media
}

func newStubStore() *stubStore {
	return &stubStore{
		events: make(map[uuid.UUID]*models.Event),
		jobs:   make(map[uuid.UUID]*models.Job),
	}
}

func (s *stubStore) GetEvent(_ context.Context, id uuid.UUID) (*models.Event, error) {
	return s.events[id], nil
}

func (s *stubStore) CreateJob(_ context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	s.jobs[j.ID] = j
	return nil
}

func (s *stubStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	return s.jobs[id], nil
}

func (s *stubStore) GetActiveJob(_ context.Context, eventID uuid.UUID, jobType models.JobType) (*models.Job, error) {
	for _, j := range s.jobs {
		if j.EventID == eventID && j.JobType == jobType && !j.Status.Terminal() {
			return j, nil
		}
	}
	return nil, nil
}

func (s *stubStore) CreateClusterJobIfAbsent(ctx context.Context, j *models.Job) (bool, *models.Job, error) {
	if existing, _ := s.GetActiveJob(ctx, j.EventID, models.JobTypeCluster); existing != nil {
		return false, existing, nil
	}
	return true, nil, s.CreateJob(ctx, j)
}

func (s *stubStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage, errMsg string) (bool, error) {
	j, ok := s.jobs[id]
	if !ok || j.Status == status || j.Status.Terminal() {
		return false, nil
	}
	j.Status = status
	j.Result = result
	j.Error = errMsg
	return true, nil
}

func (s *stubStore) FaceStats(_ context.Context, _ uuid.UUID) (models.FaceStats, error) {
	return models.FaceStats{}, nil
}

func (s *stubStore) ListUnprocessedMedia(_ context.Context, _ uuid.UUID) ([]models.Media, error) {
	return s.media, nil
}

func (s *stubStore) GetMediaByIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]models.Media, error) {
	var out []models.Media
	for _, m := range s.media {
		for _, id := range ids {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (s *stubStore) CreateNotification(_ context.Context, n *models.Notification) error {
	n.ID = uuid.New()
	return nil
}

type stubSigner struct{}

func (stubSigner) PresignedMediaURL(_ context.Context, storagePath string, _ time.Duration) (string, error) {
	return "https://signed.example/" + storagePath, nil
}

type stubDispatcher struct{}

func (stubDispatcher) PublishJob(context.Context, models.JobPayload) error { return nil }

type stubBroadcaster struct{}

func (stubBroadcaster) BroadcastNotification(*models.Notification) {}

func jobsTestRouter(t *testing.T) (*gin.Engine, *stubStore, uuid.UUID, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newStubStore()
	owner := uuid.New()
	eventID := uuid.New()
	store.events[eventID] = &models.Event{
		ID: eventID, OwnerID: owner, Name: "wedding", FaceRecognitionEnabled: true,
	}
	store.media = []models.Media{
		{ID: uuid.New(), EventID: eventID, StoragePath: "a.jpg"},
	}

	svc := jobs.NewService(store, stubSigner{}, stubDispatcher{}, stubBroadcaster{},
		jobs.DefaultTriggerPolicy(), time.Hour)
	h := NewJobHandler(svc)

	r := gin.New()
	v1 := r.Group("/v1", auth.IdentityMiddleware())
	v1.POST("/jobs/detect", h.EnqueueDetect)
	v1.POST("/jobs/cluster", h.EnqueueCluster)
	v1.GET("/jobs/:id", h.Get)
	return r, store, owner, eventID
}

func postJSON(r *gin.Engine, caller uuid.UUID, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", caller.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEnqueueDetectResponseContract(t *testing.T) {
	r, _, owner, eventID := jobsTestRouter(t)

	w := postJSON(r, owner, "/v1/jobs/detect", `{"event_id":"`+eventID.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	rawID, ok := body["job_id"].(string)
	require.True(t, ok, "job_id must be a top-level string field")
	_, err := uuid.Parse(rawID)
	require.NoError(t, err)
	assert.Equal(t, "detect", body["job_type"])
	assert.Equal(t, "pending", body["status"])
	assert.NotContains(t, body, "id")
}

func TestEnqueueClusterResponseContract(t *testing.T) {
	r, _, owner, eventID := jobsTestRouter(t)

	w := postJSON(r, owner, "/v1/jobs/cluster", `{"event_id":"`+eventID.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	firstID, ok := body["job_id"].(string)
	require.True(t, ok, "job_id must be a top-level string field")
	assert.Equal(t, "cluster", body["job_type"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, true, body["created"])
	assert.NotContains(t, body, "job")

	// Re-enqueue while the job is still active: same shape, same id.
	w = postJSON(r, owner, "/v1/jobs/cluster", `{"event_id":"`+eventID.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, firstID, body["job_id"])
	assert.Equal(t, false, body["created"])
}

func TestGetJobResponseContract(t *testing.T) {
	r, store, owner, eventID := jobsTestRouter(t)

	job := &models.Job{JobType: models.JobTypeCluster, EventID: eventID, Priority: models.PriorityNormal}
	require.NoError(t, store.CreateJob(context.Background(), job))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID.String(), nil)
	req.Header.Set("X-User-ID", owner.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, job.ID.String(), body["job_id"])
}
