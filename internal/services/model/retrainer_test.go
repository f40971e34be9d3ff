package model

import (
	"context"
	"math"
	"testing"
	"time"
)

// A fit that outlives a newer trigger must never land: the newer publish wins
// and the stale one is discarded without notifying the observer.
func TestStaleFitDoesNotOverrideNewerPublish(t *testing.T) {
	m, _ := New(Linreg, 8, 1, 0)
	for i := 0; i < 8; i++ {
		m.Push(sample([]float64{float64(i)}, float64(i))) // slope 1
	}

	r := NewRetrainer(m)
	firstFit := make(chan struct{})
	release := make(chan struct{})
	r.fitDone = func(seq uint64) {
		if seq == 1 {
			close(firstFit)
			<-release
		}
	}
	published := make(chan uint64, 2)
	r.SetObserver(func(version uint64, err error) {
		if err == nil {
			published <- version
		}
	})

	r.Trigger(context.Background())
	<-firstFit // first fit computed, parked just before its supersede check

	for i := 0; i < 8; i++ {
		m.Push(sample([]float64{float64(i)}, float64(2 * i))) // slope 2 evicts slope 1
	}
	r.Trigger(context.Background())
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatalf("second retrain never published")
	}

	close(release)
	r.Wait()

	st := m.Published()
	if st == nil {
		t.Fatalf("expected a published model")
	}
	if math.Abs(st.Coefficients[0]-2) > 1e-9 {
		t.Fatalf("stale fit overrode the newer publish: slope %v", st.Coefficients[0])
	}
	if st.Version != 1 {
		t.Fatalf("superseded fit must not publish, version %d", st.Version)
	}
	if len(published) != 0 {
		t.Fatalf("superseded fit must not notify the observer")
	}
}

func TestRapidTriggersPublishLatestData(t *testing.T) {
	m, _ := New(Linreg, 8, 1, 0)
	r := NewRetrainer(m)
	const rounds = 50
	for round := 1; round <= rounds; round++ {
		for i := 0; i < 8; i++ {
			m.Push(sample([]float64{float64(i)}, float64(round * i)))
		}
		r.Trigger(context.Background())
	}
	r.Wait()

	st := m.Published()
	if st == nil {
		t.Fatalf("expected a published model")
	}
	if math.Abs(st.Coefficients[0]-rounds) > 1e-9 {
		t.Fatalf("final publish must reflect the last trigger, got slope %v", st.Coefficients[0])
	}
	if st.Version > rounds {
		t.Fatalf("at most one publish per trigger, version %d", st.Version)
	}
}
