package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/auth"
	"github.com/your-org/facetag/internal/clusters"
	"github.com/your-org/facetag/pkg/dto"
)

type ClusterHandler struct {
	svc *clusters.Service
}

func NewClusterHandler(svc *clusters.Service) *ClusterHandler {
	return &ClusterHandler{svc: svc}
}

func (h *ClusterHandler) Assign(c *gin.Context) {
	var req dto.AssignClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Assign(c.Request.Context(), clusters.AssignRequest{
		CallerID:        auth.CallerID(c),
		SourceClusterID: req.SourceFacePersonID,
		LinkedUserID:    req.LinkedUserID,
		EventID:         req.EventID,
		DeleteSource:    req.DeleteSource,
		MergeIfExists:   req.MergeIfExists,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AssignClusterResponse{
		Success:      true,
		NewClusterID: res.NewClusterID,
		FacesCopied:  res.FacesCopied,
		TagsCreated:  res.TagsCreated,
		Merged:       res.Merged,
	})
}

func (h *ClusterHandler) LinkUser(c *gin.Context) {
	var req dto.LinkUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tagsCreated, err := h.svc.LinkUser(c.Request.Context(), auth.CallerID(c),
		req.FacePersonID, req.LinkedUserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"face_person_id": req.FacePersonID,
		"linked_user_id": req.LinkedUserID,
		"tags_created":   tagsCreated,
	})
}

func (h *ClusterHandler) Merge(c *gin.Context) {
	var req dto.MergeClustersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reassigned, err := h.svc.MergePair(c.Request.Context(), auth.CallerID(c),
		req.PrimaryPersonID, req.SecondaryPersonID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"primary_person_id":   req.PrimaryPersonID,
		"secondary_person_id": req.SecondaryPersonID,
		"faces_reassigned":    reassigned,
	})
}

func (h *ClusterHandler) Ignore(c *gin.Context) {
	var req dto.IgnoreClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Ignore(c.Request.Context(), auth.CallerID(c), req.FacePersonID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"face_person_id": req.FacePersonID, "status": "ignored"})
}

func (h *ClusterHandler) Invite(c *gin.Context) {
	var req dto.InviteClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.Invite(c.Request.Context(), auth.CallerID(c), req.FacePersonID, req.Email); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"face_person_id": req.FacePersonID, "email": req.Email})
}

func (h *ClusterHandler) Purge(c *gin.Context) {
	var req dto.PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerID := auth.CallerID(c)
	target := callerID
	if req.TargetUserID != nil {
		target = *req.TargetUserID
	}

	counts, err := h.svc.Purge(c.Request.Context(), callerID, req.EventID, target)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PurgeResponse{
		EventID:        req.EventID,
		UserID:         target,
		DeletedFaces:   counts.Faces,
		DeletedPersons: counts.Persons,
		DeletedTags:    counts.Tags,
	})
}

func (h *ClusterHandler) List(c *gin.Context) {
	eventID, err := uuid.Parse(c.Query("event_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
		return
	}

	list, err := h.svc.ListClusters(c.Request.Context(), auth.CallerID(c), eventID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := make([]dto.ClusterResponse, 0, len(list.Clusters))
	for _, ps := range list.Clusters {
		resp = append(resp, dto.ClusterResponse{
			ID:                   ps.ID,
			EventID:              ps.EventID,
			ClusterLabel:         ps.ClusterLabel,
			RepresentativeFaceID: ps.RepresentativeFaceID,
			LinkedUserID:         ps.LinkedUserID,
			Status:               string(ps.Status),
			FaceCount:            ps.FaceCount,
			MediaCount:           ps.MediaCount,
			AvgQuality:           ps.AvgQuality,
			CreatedAt:            ps.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, dto.ClusterListResponse{
		Clusters:  resp,
		Total:     len(resp),
		JobStatus: string(list.JobStatus),
	})
}

func (h *ClusterHandler) Suggestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cluster id"})
		return
	}

	suggestion, err := h.svc.SuggestFor(c.Request.Context(), auth.CallerID(c), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if suggestion == nil {
		c.JSON(http.StatusOK, gin.H{"suggestion": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestion": dto.SuggestionResponse{
		MemberID:   suggestion.Member.ID,
		UserID:     suggestion.Member.UserID,
		Name:       suggestion.Member.Name,
		Confidence: suggestion.Confidence,
		Reason:     string(suggestion.Reason),
		ReasonText: suggestion.ReasonText,
	}})
}
