package service

import "context"

// ByteScorer is a built-in fallback scorer: normalized per-byte distance in
// [0,1]. Deployments with a real minutiae matcher inject their own
// TemplateScorer instead.
type ByteScorer struct{}

func (ByteScorer) Distance(_ context.Context, probe, candidate []byte) (float64, error) {
	longest := len(probe)
	if len(candidate) > longest {
		longest = len(candidate)
	}
	if longest == 0 {
		return 1, nil
	}
	shortest := len(probe)
	if len(candidate) < shortest {
		shortest = len(candidate)
	}
	diff := longest - shortest
	for i := 0; i < shortest; i++ {
		if probe[i] != candidate[i] {
			diff++
		}
	}
	return float64(diff) / float64(longest), nil
}
