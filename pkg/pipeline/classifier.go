package pipeline

import (
	"log/slog"
	"math"

	"github.com/dukex/flowgen/pkg/config"
	"github.com/dukex/flowgen/pkg/models"
)

// Verdict is the classifier's confidence outcome for one retrieval attempt.
type Verdict string

const (
	// VerdictNoMatch means retrieval found nothing above the low threshold.
	// The caller must not generate and should ask the user for more detail.
	VerdictNoMatch Verdict = "no_match"

	// VerdictConfident means the top result cleared the low threshold and a
	// candidate set is available for generation.
	VerdictConfident Verdict = "confident"
)

// Classification is the outcome of classifying one ranked similarity list.
type Classification struct {
	Verdict    Verdict
	Candidates models.CandidateSet

	// Confidence is the top entry's similarity score rounded for display.
	// Zero when the verdict is no-match.
	Confidence float64
}

// Classifier turns a ranked similarity list into a confidence verdict and a
// candidate operation set.
//
// The configured HighThreshold and AmbiguityThreshold are accepted but the
// current policy never branches on them: everything at or above LowThreshold
// is handed to the generator, which decides how to combine the candidates.
type Classifier struct {
	config config.RetrievalConfig
	logger *slog.Logger
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg config.RetrievalConfig, logger *slog.Logger) *Classifier {
	return &Classifier{
		config: cfg,
		logger: logger.With("module", "classifier"),
	}
}

// Classify never fails on well-formed input. Malformed similarity scores
// (NaN or outside [0,1]) are clamped to zero and logged before thresholds
// apply.
func (c *Classifier) Classify(results []models.RetrievedCandidate) Classification {
	if len(results) == 0 {
		return Classification{Verdict: VerdictNoMatch, Candidates: models.CandidateSet{}}
	}

	normalized := make([]models.RetrievedCandidate, len(results))

	for i, result := range results {
		score := result.NormalizedScore()
		if score != result.Score {
			c.logger.Warn("Clamped malformed similarity score",
				"operation_id", result.Operation.ID,
				"score", result.Score,
			)
		}

		normalized[i] = result
		normalized[i].Score = score
	}

	topScore := normalized[0].Score
	if topScore < c.config.LowThreshold {
		return Classification{Verdict: VerdictNoMatch, Candidates: models.CandidateSet{}}
	}

	candidates := make(models.CandidateSet, 0, len(normalized))
	for _, result := range normalized {
		if result.Score >= c.config.LowThreshold {
			candidates = append(candidates, result)
		}
	}

	return Classification{
		Verdict:    VerdictConfident,
		Candidates: candidates,
		Confidence: roundScore(topScore),
	}
}

// roundScore rounds a similarity score to two decimals for display.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}
