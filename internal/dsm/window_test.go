package dsm

import (
	"errors"
	"testing"
	"time"
)

func TestComputeWindowRange(t *testing.T) {
	lastStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)

	for h := 0; h <= 24; h++ {
		w, err := ComputeWindow(lastStart, h, now)
		if err != nil {
			t.Fatalf("ComputeWindow(%d) failed: %v", h, err)
		}
		wantStart := lastStart.Add(-time.Duration(h) * time.Hour)
		if !w.Start.Equal(wantStart) {
			t.Errorf("h=%d: start = %v, want %v", h, w.Start, wantStart)
		}
		if w.End.Before(w.Start) {
			t.Errorf("h=%d: end %v before start %v", h, w.End, w.Start)
		}
	}
}

func TestComputeWindowRejectsOutOfRangeHours(t *testing.T) {
	lastStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	for _, h := range []int{-1, 25, 100} {
		_, err := ComputeWindow(lastStart, h, lastStart)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("ComputeWindow(%d) error = %v, want ErrConfiguration", h, err)
		}
	}
}

func TestComputeWindowLookbackScenario(t *testing.T) {
	// Last session started 09:00 with a 2 hour lookback: a 07:30 task is in,
	// a 06:59 task is out.
	lastStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)

	w, err := ComputeWindow(lastStart, 2, now)
	if err != nil {
		t.Fatalf("ComputeWindow failed: %v", err)
	}

	wantStart := time.Date(2026, 9, 1, 7, 0, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v", w.Start, wantStart)
	}
	if !w.Contains(time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)) {
		t.Error("task created 07:30 should be inside the window")
	}
	if w.Contains(time.Date(2026, 9, 1, 6, 59, 0, 0, time.UTC)) {
		t.Error("task created 06:59 should be outside the window")
	}
}

func TestComputeWindowClampsInvertedEnd(t *testing.T) {
	lastStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	earlier := lastStart.Add(-3 * time.Hour)

	w, err := ComputeWindow(lastStart, 0, earlier)
	if err != nil {
		t.Fatalf("ComputeWindow failed: %v", err)
	}
	if w.End.Before(w.Start) {
		t.Fatalf("end %v before start %v", w.End, w.Start)
	}
}
