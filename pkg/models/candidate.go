package models

import "math"

// RetrievedCandidate pairs a catalog operation with the similarity score and
// rank the vector store returned for one retrieval call. Candidates live for
// the duration of a request and are never persisted.
type RetrievedCandidate struct {
	Operation ToolOperation `json:"operation"`
	Score     float64       `json:"score"`
	Rank      int           `json:"rank"`
}

// NormalizedScore clamps malformed similarity scores to 0. Scores outside
// [0,1] or NaN come from provider bugs and must not poison the verdict.
func (c RetrievedCandidate) NormalizedScore() float64 {
	if math.IsNaN(c.Score) || c.Score < 0 || c.Score > 1 {
		return 0
	}

	return c.Score
}

// CandidateSet is the subset of operations retrieval judged relevant enough
// to offer to the generator for a single request.
type CandidateSet []RetrievedCandidate

// ToolSlugs returns the distinct tool slugs present in the set, in first-seen
// order.
func (s CandidateSet) ToolSlugs() []string {
	seen := make(map[string]bool, len(s))
	slugs := make([]string, 0, len(s))

	for _, candidate := range s {
		slug := candidate.Operation.ToolSlug
		if slug == "" || seen[slug] {
			continue
		}

		seen[slug] = true
		slugs = append(slugs, slug)
	}

	return slugs
}

// HasTool reports whether the set contains any operation of the given tool.
func (s CandidateSet) HasTool(toolSlug string) bool {
	for _, candidate := range s {
		if candidate.Operation.ToolSlug == toolSlug {
			return true
		}
	}

	return false
}

// OperationByID looks up a candidate operation by its namespaced identifier.
func (s CandidateSet) OperationByID(id string) (ToolOperation, bool) {
	for _, candidate := range s {
		if candidate.Operation.ID == id {
			return candidate.Operation, true
		}
	}

	return ToolOperation{}, false
}
