// Package health aggregates component checks for the readiness endpoint.
package health

import "context"

// Status is the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult is an individual component check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing check.
	CheckError CheckResult = "error"
)

// Report aggregates check results. Documents is the indexed product
// count, -1 when it could not be read.
type Report struct {
	Status    Status
	Checks    map[string]CheckResult
	Documents int
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	index     IndexReader
	embedding EmbeddingChecker
}

// New creates a Service. index and embedding can be nil.
func New(store StorePinger, index IndexReader, embedding EmbeddingChecker) *Service {
	return &Service{store: store, index: index, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	documents := -1

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	if s.index != nil {
		ready, err := s.index.IndexReady(ctx)
		if err != nil || !ready {
			checks["index"] = CheckError
		} else {
			checks["index"] = CheckOK
			if n, err := s.index.Count(ctx); err == nil {
				documents = n
			}
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Documents: documents}
}
