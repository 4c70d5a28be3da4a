package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/auth"
	"github.com/your-org/facetag/internal/jobs"
	"github.com/your-org/facetag/internal/models"
	"github.com/your-org/facetag/pkg/dto"
)

type JobHandler struct {
	svc *jobs.Service
}

func NewJobHandler(svc *jobs.Service) *JobHandler {
	return &JobHandler{svc: svc}
}

func (h *JobHandler) EnqueueDetect(c *gin.Context) {
	var req dto.EnqueueDetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.svc.EnqueueDetect(c.Request.Context(), auth.CallerID(c),
		req.EventID, req.MediaIDs, models.JobPriority(req.Priority))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobResponse(job))
}

func (h *JobHandler) EnqueueCluster(c *gin.Context) {
	var req dto.EnqueueClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, created, err := h.svc.EnqueueCluster(c.Request.Context(), auth.CallerID(c),
		req.EventID, models.JobPriority(req.Priority))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.EnqueueClusterResponse{JobResponse: jobResponse(job), Created: created})
}

func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.svc.GetJob(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobResponse(job))
}

// Callback receives the worker's status report. It sits behind the shared
// secret middleware, not user auth.
func (h *JobHandler) Callback(c *gin.Context) {
	var req dto.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.svc.HandleCallback(c.Request.Context(), jobs.Callback{
		JobID:  req.JobID,
		Status: models.JobStatus(req.Status),
		Result: req.Result,
		Error:  req.Error,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "job_id": req.JobID})
}

func jobResponse(job *models.Job) dto.JobResponse {
	resp := dto.JobResponse{
		ID:        job.ID,
		JobType:   string(job.JobType),
		EventID:   job.EventID,
		MediaIDs:  job.MediaIDs,
		Status:    string(job.Status),
		Priority:  string(job.Priority),
		Result:    job.Result,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
