package dsm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"standupbot/internal/store"

	"github.com/google/uuid"
)

// Store collections, all scoped per guild.
const (
	colConfig   = "config"
	colSessions = "sessions"
	colTasks    = "tasks"
	colRefs     = "refs"
	colStats    = "stats"
)

const configDocID = "guild"

// Manager is the session lifecycle state machine. It holds no in-memory
// session cache: the current session is always looked up in the store of
// record, so restarts cannot serve stale state.
type Manager struct {
	store  store.Store
	msgr   Messenger
	limits Limits
	now    func() time.Time
}

// NewManager wires the lifecycle manager to its collaborators.
func NewManager(s store.Store, msgr Messenger, limits Limits) *Manager {
	return &Manager{store: s, msgr: msgr, limits: limits, now: time.Now}
}

// Window returns the session's stored task-inclusion window.
func (s *Session) Window() Window {
	return Window{Start: s.WindowStart, End: s.WindowEnd}
}

// Channel returns where the session's messages live: the day's thread when
// one was opened, the configured channel otherwise.
func (s *Session) Channel() string {
	if s.ThreadID != "" {
		return s.ThreadID
	}
	return s.ChannelID
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// Config loads the guild configuration, creating the defaults on first use.
func (m *Manager) Config(ctx context.Context, guildID string) (GuildConfig, error) {
	var cfg GuildConfig
	err := m.store.Get(ctx, guildID, colConfig, configDocID, &cfg)
	if isStoreNotFound(err) {
		cfg = DefaultGuildConfig()
		if err := m.store.Put(ctx, guildID, colConfig, configDocID, &cfg); err != nil {
			return cfg, fmt.Errorf("error saving default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// UpdateConfig applies mutate to the stored guild configuration and persists
// the result if it still validates.
func (m *Manager) UpdateConfig(ctx context.Context, guildID string, mutate func(*GuildConfig)) (GuildConfig, error) {
	cfg, err := m.Config(ctx, guildID)
	if err != nil {
		return cfg, err
	}
	mutate(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := m.store.Put(ctx, guildID, colConfig, configDocID, &cfg); err != nil {
		return cfg, fmt.Errorf("error saving config: %w", err)
	}
	return cfg, nil
}

// ActiveSession looks up the guild's single non-finalized session. Returns
// ErrNotFound when none exists and ErrInvariant when more than one does.
func (m *Manager) ActiveSession(ctx context.Context, guildID string) (*Session, error) {
	docs, err := m.store.List(ctx, guildID, colSessions)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}

	var active []*Session
	for docID, raw := range docs {
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("error decoding session %s: %w", docID, err)
		}
		if s.Active() {
			s := s
			active = append(active, &s)
		}
	}

	switch len(active) {
	case 0:
		return nil, fmt.Errorf("%w: no active session for guild %s", ErrNotFound, guildID)
	case 1:
		return active[0], nil
	default:
		log.Printf("[%s] INVARIANT: found %d active sessions, manual remediation required", guildID, len(active))
		return nil, fmt.Errorf("%w: %d active sessions for guild %s", ErrInvariant, len(active), guildID)
	}
}

// SessionForDate loads the session for one date, if any.
func (m *Manager) SessionForDate(ctx context.Context, guildID, date string) (*Session, error) {
	var s Session
	err := m.store.Get(ctx, guildID, colSessions, date, &s)
	if isStoreNotFound(err) {
		return nil, fmt.Errorf("%w: no session for %s on %s", ErrNotFound, guildID, date)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}
	return &s, nil
}

// latestSession returns the guild's most recent session by date, finalized or
// not, or nil when the guild has no session history.
func (m *Manager) latestSession(ctx context.Context, guildID string) (*Session, error) {
	docs, err := m.store.List(ctx, guildID, colSessions)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	var latest *Session
	for docID, raw := range docs {
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("error decoding session %s: %w", docID, err)
		}
		if latest == nil || s.Date > latest.Date {
			s := s
			latest = &s
		}
	}
	return latest, nil
}

// CreateSession starts the guild's standup session for today. An existing
// active session is finalized first, which keeps the one-active-session
// invariant unconditional; callers wanting a confirmation step must enforce
// it themselves. A date in the guild's skip set is a no-op and returns a nil
// session with no error.
func (m *Manager) CreateSession(ctx context.Context, guildID string, participants []string, isManual bool) (*Session, error) {
	cfg, err := m.Config(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, _ := time.LoadLocation(cfg.Timezone)
	now := m.now().In(loc)
	date := now.Format("2006-01-02")

	if cfg.SkipsDate(date) {
		log.Printf("[%s] skipping standup for %s: date is in the skip set", guildID, date)
		return nil, nil
	}

	prior, err := m.ActiveSession(ctx, guildID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if prior != nil {
		if _, err := m.Finalize(ctx, prior); err != nil {
			return nil, fmt.Errorf("error finalizing previous session: %w", err)
		}
	}

	// The window reaches back from the most recent session's start, finalized
	// or not; the usual overnight gap between yesterday's deadline and this
	// morning's standup stays covered. With no session history it anchors on
	// now.
	lastStart := now
	latest, err := m.latestSession(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		lastStart = latest.StartedAt
	}

	window, err := ComputeWindow(lastStart, cfg.LookbackHours, now)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:          uuid.New().String(),
		GuildID:     guildID,
		Date:        date,
		ChannelID:   cfg.ChannelID,
		IsManual:    isManual,
		StartedAt:   now,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	}

	if cfg.ThreadMode && cfg.ChannelID != "" {
		threadID, err := m.msgr.OpenThread(ctx, cfg.ChannelID, "DAILY STANDUP MEETING - "+date)
		if err != nil {
			return nil, fmt.Errorf("error opening standup thread: %w", err)
		}
		session.ThreadID = threadID
	}

	if session.Channel() != "" {
		if _, err := m.msgr.Send(ctx, session.Channel(), openingMessage(session, cfg, participants, now)); err != nil {
			return nil, fmt.Errorf("error posting opening message: %w", err)
		}
	}

	if err := m.store.Put(ctx, guildID, colSessions, date, session); err != nil {
		return nil, fmt.Errorf("error saving session: %w", err)
	}

	log.Printf("[%s] created standup session %s for %s (manual=%v)", guildID, session.ID, date, isManual)
	return session, nil
}

func openingMessage(session *Session, cfg GuildConfig, participants []string, now time.Time) Message {
	deadline := time.Date(now.Year(), now.Month(), now.Day(), cfg.DeadlineHour, 0, 0, 0, now.Location())
	lines := []string{
		"Good morning! Please complete your standup for today.",
		"Mention the tasks you accomplished since the last standup, the tasks you plan to do today, and any blockers.",
		fmt.Sprintf("⚠️ DEADLINE: %s ⚠️", deadline.Format("2006-01-02 15:04")),
	}
	return Message{
		Title:    "DAILY STANDUP MEETING - " + session.Date,
		Lines:    lines,
		Footer:   "Session " + session.ID,
		Mentions: participants,
	}
}

// Finalize snapshots the session's statistics, posts the completion report,
// clears every participant's message references and marks the session
// finalized. Finalizing an already finalized session returns the stored
// snapshot without posting anything again.
func (m *Manager) Finalize(ctx context.Context, session *Session) (*SessionStats, error) {
	// Re-read the store of record: a concurrent or earlier finalize wins.
	current, err := m.SessionForDate(ctx, session.GuildID, session.Date)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if current != nil {
		if !current.Active() {
			var stats SessionStats
			if err := m.store.Get(ctx, session.GuildID, colStats, session.Date, &stats); err == nil {
				return &stats, nil
			}
			return &SessionStats{SessionID: current.ID, Date: current.Date, TakenAt: *current.FinalizedAt}, nil
		}
		session = current
	}

	stats, err := m.computeStats(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, session.GuildID, colStats, session.Date, stats); err != nil {
		return nil, fmt.Errorf("error saving statistics: %w", err)
	}

	if session.Channel() != "" {
		if _, err := m.msgr.Send(ctx, session.Channel(), completionReport(stats)); err != nil {
			return nil, fmt.Errorf("error posting completion report: %w", err)
		}
	}

	if err := m.clearRefs(ctx, session); err != nil {
		return nil, err
	}

	now := m.now()
	session.FinalizedAt = &now
	if err := m.store.Put(ctx, session.GuildID, colSessions, session.Date, session); err != nil {
		return nil, fmt.Errorf("error saving finalized session: %w", err)
	}

	log.Printf("[%s] finalized session %s: %d completed, %d pending", session.GuildID, session.Date, stats.Completed, stats.Pending)
	return stats, nil
}

func (m *Manager) computeStats(ctx context.Context, session *Session) (*SessionStats, error) {
	docs, err := m.store.List(ctx, session.GuildID, colTasks)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}

	byOwner := make(map[string][]Task)
	for docID, raw := range docs {
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("error decoding task %s: %w", docID, err)
		}
		byOwner[t.OwnerID] = append(byOwner[t.OwnerID], t)
	}

	stats := &SessionStats{
		SessionID: session.ID,
		Date:      session.Date,
		TakenAt:   m.now(),
	}
	window := session.Window()
	for owner, tasks := range byOwner {
		agg := Aggregate(tasks, window)
		if len(agg.Completed) == 0 && len(agg.Pending) == 0 {
			continue
		}
		stats.Participants = append(stats.Participants, ParticipantStats{
			UserID:    owner,
			Completed: len(agg.Completed),
			Pending:   len(agg.Pending),
		})
		stats.Completed += len(agg.Completed)
		stats.Pending += len(agg.Pending)
	}
	sort.Slice(stats.Participants, func(i, j int) bool {
		return stats.Participants[i].UserID < stats.Participants[j].UserID
	})
	return stats, nil
}

func completionReport(stats *SessionStats) Message {
	lines := []string{
		fmt.Sprintf("Tasks Done From Last Time: %d", stats.Completed),
		fmt.Sprintf("Tasks To Do Today: %d", stats.Pending),
	}
	for _, p := range stats.Participants {
		lines = append(lines, fmt.Sprintf("• <@%s>: %d done, %d pending", p.UserID, p.Completed, p.Pending))
	}
	return Message{
		Title:  "Standup Complete - " + stats.Date,
		Lines:  lines,
		Footer: "Session " + stats.SessionID,
	}
}

func (m *Manager) clearRefs(ctx context.Context, session *Session) error {
	docs, err := m.store.List(ctx, session.GuildID, colRefs)
	if err != nil {
		return fmt.Errorf("error listing message references: %w", err)
	}
	for docID := range docs {
		if !strings.HasPrefix(docID, session.Date+":") {
			continue
		}
		if err := m.store.Delete(ctx, session.GuildID, colRefs, docID); err != nil {
			return fmt.Errorf("error clearing message references %s: %w", docID, err)
		}
	}
	return nil
}

// SkipDate adds date (YYYY-MM-DD) to the guild's skip set.
func (m *Manager) SkipDate(ctx context.Context, guildID, date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrConfiguration, date)
	}
	_, err := m.UpdateConfig(ctx, guildID, func(cfg *GuildConfig) {
		if !cfg.SkipsDate(date) {
			cfg.SkipDates = append(cfg.SkipDates, date)
			sort.Strings(cfg.SkipDates)
		}
	})
	return err
}

// UnskipDate removes date from the guild's skip set.
func (m *Manager) UnskipDate(ctx context.Context, guildID, date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrConfiguration, date)
	}
	_, err := m.UpdateConfig(ctx, guildID, func(cfg *GuildConfig) {
		kept := cfg.SkipDates[:0]
		for _, d := range cfg.SkipDates {
			if d != date {
				kept = append(kept, d)
			}
		}
		cfg.SkipDates = kept
	})
	return err
}

// LookbackWindow reports the task-inclusion window currently in effect: the
// active session's stored window, or the default window a session created
// now would get.
func (m *Manager) LookbackWindow(ctx context.Context, guildID string) (Window, error) {
	session, err := m.ActiveSession(ctx, guildID)
	if err == nil {
		return session.Window(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Window{}, err
	}
	cfg, err := m.Config(ctx, guildID)
	if err != nil {
		return Window{}, err
	}
	anchor := m.now()
	latest, err := m.latestSession(ctx, guildID)
	if err != nil {
		return Window{}, err
	}
	if latest != nil {
		anchor = latest.StartedAt
	}
	return ComputeWindow(anchor, cfg.LookbackHours, m.now())
}
