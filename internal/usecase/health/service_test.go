package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockIndexReader struct {
	ready    bool
	readyErr error
	count    int
	countErr error
}

func (m *mockIndexReader) IndexReady(_ context.Context) (bool, error) {
	return m.ready, m.readyErr
}

func (m *mockIndexReader) Count(_ context.Context) (int, error) {
	return m.count, m.countErr
}

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(
		&mockStorePinger{},
		&mockIndexReader{ready: true, count: 1200},
		&mockEmbeddingChecker{},
	)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"store", "index", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
	if r.Documents != 1200 {
		t.Errorf("expected 1200 documents, got %d", r.Documents)
	}
}

func TestCheck_StoreError(t *testing.T) {
	svc := New(
		&mockStorePinger{err: errors.New("conn refused")},
		&mockIndexReader{ready: true},
		&mockEmbeddingChecker{},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["store"] != CheckError {
		t.Errorf("expected store %q, got %q", CheckError, r.Checks["store"])
	}
}

func TestCheck_IndexMissing(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockIndexReader{ready: false}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index"] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks["index"])
	}
	if r.Documents != -1 {
		t.Errorf("expected -1 documents, got %d", r.Documents)
	}
}

func TestCheck_CountFailureKeepsIndexHealthy(t *testing.T) {
	svc := New(
		&mockStorePinger{},
		&mockIndexReader{ready: true, countErr: errors.New("timeout")},
		nil,
	)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Documents != -1 {
		t.Errorf("expected -1 documents, got %d", r.Documents)
	}
}

func TestCheck_EmbeddingError(t *testing.T) {
	svc := New(
		&mockStorePinger{},
		&mockIndexReader{ready: true},
		&mockEmbeddingChecker{err: errors.New("timeout")},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
}

func TestCheck_OptionalComponentsAbsent(t *testing.T) {
	svc := New(&mockStorePinger{}, nil, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["index"]; ok {
		t.Error("index check should be absent when index reader is nil")
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}
