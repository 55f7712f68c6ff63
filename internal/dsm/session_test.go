package dsm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateSessionDefaultWindow(t *testing.T) {
	m, st, _ := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	session, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session == nil {
		t.Fatal("expected a session")
	}
	if !session.Active() {
		t.Fatal("new session should be active")
	}

	// No previous session: the window anchors on now.
	wantStart := testNow.Add(-2 * time.Hour)
	if !session.WindowStart.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v", session.WindowStart, wantStart)
	}

	active, err := m.ActiveSession(ctx, "g1")
	if err != nil {
		t.Fatalf("ActiveSession failed: %v", err)
	}
	if active.ID != session.ID {
		t.Fatalf("active session = %s, want %s", active.ID, session.ID)
	}
}

func TestCreateSessionSkipDateIsNoOp(t *testing.T) {
	m, st, fm := newTestManager(t)
	cfg := testGuildConfig()
	cfg.SkipDates = []string{"2026-09-01"}
	putTestConfig(t, st, "g1", cfg)
	ctx := context.Background()

	session, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("CreateSession on a skip date should not error: %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session on a skip date, got %+v", session)
	}
	if fm.sends != 0 || fm.threads != 0 {
		t.Fatal("skip date must not touch the platform")
	}
	if _, err := m.ActiveSession(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestCreateSessionFinalizesPriorActive(t *testing.T) {
	m, st, _ := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}

	// A user posted a summary in the first session; finalizing must clear it.
	if err := m.Collect(ctx, first, "user-1"); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	// The next day's creation finalizes the old session first.
	m.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	second, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("second CreateSession failed: %v", err)
	}

	old, err := m.SessionForDate(ctx, "g1", first.Date)
	if err != nil {
		t.Fatalf("SessionForDate failed: %v", err)
	}
	if old.Active() {
		t.Fatal("prior session should be finalized")
	}

	var stats SessionStats
	if err := st.Get(ctx, "g1", colStats, first.Date, &stats); err != nil {
		t.Fatalf("statistics snapshot missing: %v", err)
	}

	refs := loadTestRefs(t, m, first, "user-1")
	if len(refs.CompletedMessageIDs) != 0 || len(refs.PendingMessageIDs) != 0 {
		t.Fatalf("references not cleared on finalize: %+v", refs)
	}

	// The new session's window reaches back from the prior session's start.
	wantStart := first.StartedAt.Add(-2 * time.Hour)
	if !second.WindowStart.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v", second.WindowStart, wantStart)
	}

	active, err := m.ActiveSession(ctx, "g1")
	if err != nil {
		t.Fatalf("ActiveSession failed: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("active session = %s, want %s", active.ID, second.ID)
	}
}

func TestCreateSessionWindowAnchorsOnFinalizedPrior(t *testing.T) {
	m, st, _ := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	first, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("first CreateSession failed: %v", err)
	}

	// The deadline closes the session in the evening; the next morning's
	// session must still reach back from its start so the overnight gap
	// stays covered.
	if _, err := m.Finalize(ctx, first); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	m.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	second, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("second CreateSession failed: %v", err)
	}

	wantStart := first.StartedAt.Add(-2 * time.Hour)
	if !second.WindowStart.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v (previous session start minus lookback)", second.WindowStart, wantStart)
	}
}

func TestCreateSessionOpensThread(t *testing.T) {
	m, st, fm := newTestManager(t)
	cfg := testGuildConfig()
	cfg.ThreadMode = true
	putTestConfig(t, st, "g1", cfg)

	session, err := m.CreateSession(context.Background(), "g1", []string{"user-1", "user-2"}, true)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if fm.threads != 1 {
		t.Fatalf("threads opened = %d, want 1", fm.threads)
	}
	if session.ThreadID == "" {
		t.Fatal("session has no thread reference")
	}
	if !session.IsManual {
		t.Fatal("manual flag not carried")
	}
	if session.Channel() != session.ThreadID {
		t.Fatalf("session channel = %s, want the thread", session.Channel())
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	m, st, fm := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	seedTask(t, st, "g1", Task{ID: "ab12", OwnerID: "user-1", Description: "done thing",
		Status: StatusCompleted, CreatedAt: testNow.Add(-time.Hour),
		CompletedAt: completedAt(testNow.Add(-30 * time.Minute))})
	seedTask(t, st, "g1", Task{ID: "cd34", OwnerID: "user-2", Description: "open thing",
		Status: StatusPending, CreatedAt: testNow.Add(-time.Hour)})

	session, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	stats, err := m.Finalize(ctx, session)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if stats.Completed != 1 || stats.Pending != 1 || len(stats.Participants) != 2 {
		t.Fatalf("stats = %+v, want 1 completed, 1 pending, 2 participants", stats)
	}
	sends := fm.sends

	again, err := m.Finalize(ctx, session)
	if err != nil {
		t.Fatalf("second Finalize failed: %v", err)
	}
	if again.Completed != stats.Completed || again.Pending != stats.Pending {
		t.Fatalf("second Finalize changed stats: %+v vs %+v", again, stats)
	}
	if fm.sends != sends {
		t.Fatalf("second Finalize reposted the summary: sends %d -> %d", sends, fm.sends)
	}
}

func TestActiveSessionInvariantViolation(t *testing.T) {
	m, st, _ := newTestManager(t)
	ctx := context.Background()

	// Two non-finalized sessions planted directly in the store.
	for _, date := range []string{"2026-08-31", "2026-09-01"} {
		s := Session{ID: "sess-" + date, GuildID: "g1", Date: date, StartedAt: testNow}
		if err := st.Put(ctx, "g1", colSessions, date, &s); err != nil {
			t.Fatalf("failed to seed session: %v", err)
		}
	}

	_, err := m.ActiveSession(ctx, "g1")
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("error = %v, want ErrInvariant", err)
	}
}

func TestSkipAndUnskipDate(t *testing.T) {
	m, st, _ := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	if err := m.SkipDate(ctx, "g1", "2026-09-15"); err != nil {
		t.Fatalf("SkipDate failed: %v", err)
	}
	if err := m.SkipDate(ctx, "g1", "not-a-date"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("invalid date error = %v, want ErrConfiguration", err)
	}

	cfg, err := m.Config(ctx, "g1")
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if !cfg.SkipsDate("2026-09-15") {
		t.Fatal("date not added to skip set")
	}

	if err := m.UnskipDate(ctx, "g1", "2026-09-15"); err != nil {
		t.Fatalf("UnskipDate failed: %v", err)
	}
	cfg, _ = m.Config(ctx, "g1")
	if cfg.SkipsDate("2026-09-15") {
		t.Fatal("date still in skip set after UnskipDate")
	}
}

func TestLookbackWindowUsesActiveSession(t *testing.T) {
	m, st, _ := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	session, err := m.CreateSession(ctx, "g1", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	w, err := m.LookbackWindow(ctx, "g1")
	if err != nil {
		t.Fatalf("LookbackWindow failed: %v", err)
	}
	if !w.Start.Equal(session.WindowStart) || !w.End.Equal(session.WindowEnd) {
		t.Fatalf("window = %+v, want the active session's stored window", w)
	}
}

func TestUpdateConfigRejectsInvalidValues(t *testing.T) {
	m, st, _ := newTestManager(t)
	putTestConfig(t, st, "g1", testGuildConfig())
	ctx := context.Background()

	_, err := m.UpdateConfig(ctx, "g1", func(cfg *GuildConfig) { cfg.LookbackHours = 48 })
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}

	// The stored config must be untouched after a rejected update.
	cfg, err := m.Config(ctx, "g1")
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if cfg.LookbackHours != 2 {
		t.Fatalf("lookback hours = %d, want unchanged 2", cfg.LookbackHours)
	}
}
