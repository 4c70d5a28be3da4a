package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/facetag/internal/models"
)

func TestShouldCluster(t *testing.T) {
	policy := DefaultTriggerPolicy()

	tests := []struct {
		name      string
		stats     models.FaceStats
		activeJob bool
		want      bool
	}{
		{
			name:  "coverage below threshold",
			stats: models.FaceStats{ProcessedMedia: 7, TotalMedia: 10, TotalFaces: 20},
			want:  false,
		},
		{
			name:  "coverage met at exactly 80 percent",
			stats: models.FaceStats{ProcessedMedia: 8, TotalMedia: 10, TotalFaces: 10},
			want:  true,
		},
		{
			name:  "too few faces",
			stats: models.FaceStats{ProcessedMedia: 10, TotalMedia: 10, TotalFaces: 9},
			want:  false,
		},
		{
			name:  "exactly minimum faces",
			stats: models.FaceStats{ProcessedMedia: 10, TotalMedia: 10, TotalFaces: 10},
			want:  true,
		},
		{
			name:  "empty event",
			stats: models.FaceStats{},
			want:  false,
		},
		{
			name:      "active job suppresses trigger",
			stats:     models.FaceStats{ProcessedMedia: 10, TotalMedia: 10, TotalFaces: 50},
			activeJob: true,
			want:      false,
		},
		{
			name:  "full coverage many faces",
			stats: models.FaceStats{ProcessedMedia: 10, TotalMedia: 10, TotalFaces: 50},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldCluster(tt.stats, tt.activeJob))
		})
	}
}

func TestShouldClusterCustomPolicy(t *testing.T) {
	policy := TriggerPolicy{CoverageThreshold: 0.5, MinFaces: 3}

	assert.True(t, policy.ShouldCluster(models.FaceStats{ProcessedMedia: 5, TotalMedia: 10, TotalFaces: 3}, false))
	assert.False(t, policy.ShouldCluster(models.FaceStats{ProcessedMedia: 4, TotalMedia: 10, TotalFaces: 3}, false))
}
