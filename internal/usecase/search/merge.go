package search

import (
	"github.com/opalgrove/catdex/internal/domain/search/result"
)

// mergeWeighted combines normalized per-signal hits into one deduplicated
// ranked list. Each document's final score is the weighted sum over the
// signals that returned it; absence from a signal contributes zero but does
// not exclude the document. The output is sorted by score descending with
// document ID as the tie-break. Truncation is left to the caller so that
// constraint filtering can run on the full candidate set.
func mergeWeighted(signals map[string][]result.Hit, weights map[string]float64) []result.Result {
	type candidate struct {
		score      float64
		rawSignals map[string]float64
		fields     map[string]string
	}

	merged := make(map[string]*candidate)

	for signal, hits := range signals {
		weight := weights[signal]
		for _, h := range hits {
			c, ok := merged[h.DocumentID]
			if !ok {
				c = &candidate{rawSignals: make(map[string]float64)}
				merged[h.DocumentID] = c
			}
			c.score += weight * h.Score
			c.rawSignals[signal] = h.Score
			if c.fields == nil {
				c.fields = h.Fields
			}
		}
	}

	results := make([]result.Result, 0, len(merged))
	for id, c := range merged {
		results = append(results, result.New(
			id, c.score, matchTypeFor(c.rawSignals), c.rawSignals, c.fields,
		))
	}

	result.Sort(results)
	return results
}

// matchTypeFor tags a result hybrid when two or more signals contributed,
// otherwise with the single contributing signal's type.
func matchTypeFor(rawSignals map[string]float64) result.MatchType {
	if len(rawSignals) >= 2 {
		return result.Hybrid
	}
	for signal := range rawSignals {
		switch signal {
		case result.SignalSemantic:
			return result.Semantic
		case result.SignalVisual:
			return result.Visual
		}
	}
	return result.Exact
}

// normalizeByMax scales raw store relevance scores into [0,1] by dividing
// by the batch maximum. Vector similarities arrive already normalized;
// this is only needed for keyword scores, whose scale is unbounded.
func normalizeByMax(hits []result.Hit) []result.Hit {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		return hits
	}
	out := make([]result.Hit, len(hits))
	for i, h := range hits {
		h.Score /= max
		out[i] = h
	}
	return out
}
