package subtitles

import (
	"math"
	"sort"

	"mediaindex/internal/subtitles/opensubtitles"
)

// machineTranslationPenalty pushes AI and machine translated candidates to
// the bottom without excluding them entirely. They only win when nothing
// human-made exists.
const (
	machineTranslationPenalty = -1000.0
	trustedUploaderBonus      = 5.0
)

// selectionScore ranks a candidate for download. Download counts dominate on
// a log scale so a subtitle with millions of downloads does not drown out
// the trusted-uploader signal.
func selectionScore(sub opensubtitles.Subtitle) float64 {
	score := math.Log1p(math.Max(0, float64(sub.Downloads)))
	if sub.FromTrusted {
		score += trustedUploaderBonus
	}
	if sub.AITranslated || sub.MachineTranslated {
		score += machineTranslationPenalty
	}
	return score
}

// rankCandidates orders search results best first. Ties break on raw
// download count, then on file ID for a stable order.
func rankCandidates(subs []opensubtitles.Subtitle) []opensubtitles.Subtitle {
	ranked := make([]opensubtitles.Subtitle, 0, len(subs))
	for _, sub := range subs {
		if sub.FileID == 0 {
			continue
		}
		ranked = append(ranked, sub)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := selectionScore(ranked[i]), selectionScore(ranked[j])
		if si == sj {
			if ranked[i].Downloads == ranked[j].Downloads {
				return ranked[i].FileID < ranked[j].FileID
			}
			return ranked[i].Downloads > ranked[j].Downloads
		}
		return si > sj
	})
	return ranked
}

// Stored quality score weights. The score is persisted with the subtitle so
// API consumers can compare alternatives without re-deriving it.
const (
	qualityDownloadsWeight = 0.3
	qualityRatingsWeight   = 0.2
	qualityHDWeight        = 0.15
	qualityTrustedWeight   = 0.15
	qualityMachinePenalty  = 0.2
)

// qualityScore normalizes a candidate's signals into [0, 1]. Each signal
// contributes its weight to the achievable maximum, so a perfect human
// subtitle scores ~1.0 regardless of which signals are present.
func qualityScore(sub opensubtitles.Subtitle) float64 {
	score := 0.0
	maxScore := 0.0

	if sub.Downloads > 0 {
		score += math.Min(qualityDownloadsWeight, math.Log1p(float64(sub.Downloads))/10)
	}
	maxScore += qualityDownloadsWeight

	if sub.Votes > 0 {
		score += (sub.Ratings / 10) * qualityRatingsWeight
	}
	maxScore += qualityRatingsWeight

	if sub.HD {
		score += qualityHDWeight
	}
	maxScore += qualityHDWeight

	if sub.FromTrusted {
		score += qualityTrustedWeight
	}
	maxScore += qualityTrustedWeight

	if sub.AITranslated || sub.MachineTranslated {
		score -= qualityMachinePenalty
		maxScore += qualityMachinePenalty
	}

	return math.Max(0, math.Min(1, score/maxScore))
}
