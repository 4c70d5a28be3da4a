package jobs

import "github.com/your-org/facetag/internal/models"

// TriggerPolicy decides when detection progress justifies enqueuing a
// clustering job. Clustering over sparse coverage fragments identities, and
// near-empty events aren't worth a run, so both a coverage ratio and an
// absolute face floor must be met.
type TriggerPolicy struct {
	// CoverageThreshold is the minimum fraction of event media with at
	// least one detected face.
	CoverageThreshold float64
	// MinFaces is the minimum number of detected faces in the event.
	MinFaces int
}

func DefaultTriggerPolicy() TriggerPolicy {
	return TriggerPolicy{CoverageThreshold: 0.8, MinFaces: 10}
}

// ShouldCluster is a pure admission check: it gates creation of a cluster
// job, it does not schedule anything itself.
func (p TriggerPolicy) ShouldCluster(stats models.FaceStats, hasActiveClusterJob bool) bool {
	if hasActiveClusterJob {
		return false
	}
	if stats.TotalMedia == 0 {
		return false
	}
	coverage := float64(stats.ProcessedMedia) / float64(stats.TotalMedia)
	return coverage >= p.CoverageThreshold && stats.TotalFaces >= p.MinFaces
}
