// Package result defines ranked search hits and their ordering contract.
package result

import "sort"

// MatchType tags which signal(s) produced a result.
type MatchType string

// Match type values. Exact means a pure keyword match.
const (
	Exact    MatchType = "exact"
	Semantic MatchType = "semantic"
	Visual   MatchType = "visual"
	Hybrid   MatchType = "hybrid"
)

// Signal names used as rawSignals keys and merge weights.
const (
	SignalKeyword  = "keyword"
	SignalSemantic = "semantic"
	SignalVisual   = "visual"
)

// Hit is a raw single-signal hit as returned by the store, before
// normalization and merging.
type Hit struct {
	DocumentID string
	Score      float64
	Fields     map[string]string
}

// Result is a single ranked search hit.
type Result struct {
	documentID string
	score      float64
	matchType  MatchType
	signals    map[string]float64
	fields     map[string]string
}

// New creates a search result.
func New(
	documentID string, score float64, matchType MatchType,
	signals map[string]float64, fields map[string]string,
) Result {
	return Result{
		documentID: documentID, score: score, matchType: matchType,
		signals: signals, fields: fields,
	}
}

// DocumentID returns the matched document identifier.
func (r *Result) DocumentID() string { return r.documentID }

// Score returns the final relevance score.
func (r *Result) Score() float64 { return r.score }

// MatchType returns the signal tag.
func (r *Result) MatchType() MatchType { return r.matchType }

// Signals returns the per-signal raw scores.
func (r *Result) Signals() map[string]float64 { return r.signals }

// Fields returns the stored document fields returned by the store.
func (r *Result) Fields() map[string]string { return r.fields }

// Field returns one stored field value, or "" when absent.
func (r *Result) Field(name string) string { return r.fields[name] }

// Sort orders results by score descending, breaking ties by document ID
// ascending so pagination is reproducible.
func Sort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].documentID < results[j].documentID
	})
}
