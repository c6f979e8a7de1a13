package rag

import "github.com/erikprakoso/rag-axel-backend/internal/knowledge"

// acceptPassages keeps passages scoring at or above the threshold,
// preserving their order.
func acceptPassages(passages []knowledge.Passage, threshold float32) []knowledge.Passage {
	accepted := make([]knowledge.Passage, 0, len(passages))
	for _, p := range passages {
		if p.Score >= threshold {
			accepted = append(accepted, p)
		}
	}
	return accepted
}

// maxScore returns the highest passage score. The boolean is false for an
// empty set, which has no meaningful maximum.
func maxScore(passages []knowledge.Passage) (float32, bool) {
	if len(passages) == 0 {
		return 0, false
	}
	max := passages[0].Score
	for _, p := range passages[1:] {
		if p.Score > max {
			max = p.Score
		}
	}
	return max, true
}
