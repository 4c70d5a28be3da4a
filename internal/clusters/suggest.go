package clusters

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/your-org/facetag/internal/models"
)

// SuggestionReason labels the signal that produced a suggestion.
type SuggestionReason string

const (
	ReasonVIPFrequency   SuggestionReason = "vip_frequency"
	ReasonPhotoCount     SuggestionReason = "photo_count"
	ReasonRecentActivity SuggestionReason = "recent_activity"
)

// Suggestion is a ranked "this cluster is probably this member" hint.
type Suggestion struct {
	Member     models.MemberStats
	Confidence int
	Reason     SuggestionReason
	ReasonText string
}

const (
	robustMinFaces   = 2
	robustMinQuality = 0.7

	vipMinFaces  = 3
	vipMinRatio  = 0.2
	vipTopN      = 3
	signalWeight = 80.0

	countMinSimilarity = 0.6
	linkedPenalty      = 0.9

	fragMinSimilarity = 0.5
	fragBase          = 20.0
	fragPerLinked     = 8.0
	fragLinkedCap     = 20.0
	fragQualityWeight = 15.0

	minConfidence = 55.0
)

type candidate struct {
	member models.MemberStats
	score  float64
	reason SuggestionReason
	text   string
}

// Suggest ranks event members as likely identities for an unlinked cluster.
// It is a pure function of its inputs: the cluster under review, the event's
// member roster with tag counts, and every cluster of the event (including the
// one under review) for frequency and fragmentation signals.
//
// Three signals contribute: VIP frequency (large share of all detected faces),
// photo-count similarity (member tag volume close to cluster size), and
// fragmentation (member already linked to other clusters of comparable size).
// Members already linked elsewhere are penalized, not excluded. Clusters with
// a single face or weak average quality never produce a suggestion, and weak
// best scores are suppressed rather than served.
func Suggest(cluster models.PersonStats, members []models.MemberStats, allClusters []models.PersonStats) *Suggestion {
	if len(members) == 0 {
		return nil
	}
	if cluster.FaceCount < robustMinFaces || cluster.AvgQuality < robustMinQuality {
		return nil
	}

	totalFaces := 0
	linkedUsers := make(map[uuid.UUID]int)
	for _, c := range allClusters {
		totalFaces += c.FaceCount
		if c.ID == cluster.ID {
			continue
		}
		if c.Status == models.PersonStatusLinked && c.LinkedUserID != nil {
			linkedUsers[*c.LinkedUserID]++
		}
	}

	var cands []candidate

	// VIP frequency: a cluster holding a big share of all faces is probably
	// one of the most-tagged members.
	if totalFaces > 0 {
		ratio := float64(cluster.FaceCount) / float64(totalFaces)
		if cluster.FaceCount >= vipMinFaces && ratio >= vipMinRatio {
			top := make([]models.MemberStats, len(members))
			copy(top, members)
			sort.SliceStable(top, func(i, j int) bool { return top[i].TagCount > top[j].TagCount })
			if len(top) > vipTopN {
				top = top[:vipTopN]
			}
			for _, m := range top {
				cands = append(cands, candidate{
					member: m,
					score:  ratio * signalWeight,
					reason: ReasonVIPFrequency,
					text:   fmt.Sprintf("appears in %d%% of detected faces", int(math.Round(ratio*100))),
				})
			}
		}
	}

	// Photo-count similarity: member tag volume close to the cluster size.
	for _, m := range members {
		if m.TagCount == 0 {
			continue
		}
		sim := countSimilarity(m.TagCount, cluster.FaceCount)
		if sim <= countMinSimilarity {
			continue
		}
		score := sim * signalWeight
		if m.UserID != nil && linkedUsers[*m.UserID] > 0 {
			score *= linkedPenalty
		}
		cands = append(cands, candidate{
			member: m,
			score:  score,
			reason: ReasonPhotoCount,
			text:   fmt.Sprintf("similar photo volume (%d faces in cluster)", cluster.FaceCount),
		})
	}

	// Fragmentation: a member already linked to other clusters of comparable
	// size likely owns this fragment too.
	for _, m := range members {
		if m.UserID == nil || m.TagCount == 0 {
			continue
		}
		linkedCount := linkedUsers[*m.UserID]
		if linkedCount == 0 {
			continue
		}
		if countSimilarity(m.TagCount, cluster.FaceCount) < fragMinSimilarity {
			continue
		}
		quality := math.Max(0, math.Min(1, cluster.AvgQuality))
		sizeBonus := 4.0
		if cluster.FaceCount >= vipMinFaces {
			sizeBonus = 8.0
		}
		score := fragBase +
			math.Min(float64(linkedCount)*fragPerLinked, fragLinkedCap) +
			math.Round(quality*fragQualityWeight) +
			sizeBonus
		cands = append(cands, candidate{
			member: m,
			score:  score,
			reason: ReasonRecentActivity,
			text:   fmt.Sprintf("already identified in %d other cluster(s)", linkedCount),
		})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) == 0 || cands[0].score <= minConfidence {
		return nil
	}
	best := cands[0]
	return &Suggestion{
		Member:     best.member,
		Confidence: int(math.Round(best.score)),
		Reason:     best.reason,
		ReasonText: best.text,
	}
}

func countSimilarity(a, b int) float64 {
	max := a
	if b > max {
		max = b
	}
	if max == 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(max)
}
