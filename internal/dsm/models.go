package dsm

import (
	"fmt"
	"time"
)

// Task statuses. A task is never hard-deleted; it stays pending until its
// owner marks it done or a new session's reset supersedes it.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is a single standup task item owned by one user in one guild.
type Task struct {
	ID          string     `json:"id"` // 4-character alphanumeric, unique per guild
	OwnerID     string     `json:"owner_id"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Remark      string     `json:"remark,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Session is one guild's standup cycle for one day. Exactly one
// non-finalized session exists per guild at any time.
type Session struct {
	ID          string     `json:"id"`
	GuildID     string     `json:"guild_id"`
	Date        string     `json:"date"` // YYYY-MM-DD in the guild's timezone
	ChannelID   string     `json:"channel_id"`
	ThreadID    string     `json:"thread_id,omitempty"`
	IsManual    bool       `json:"is_manual"`
	StartedAt   time.Time  `json:"started_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
}

// Active reports whether the session is still collecting updates.
func (s *Session) Active() bool { return s.FinalizedAt == nil }

// MessageRefSet maps one user's pagination output for one session to the
// platform messages currently displaying it. Index 0 holds the page with the
// most recent activity. Hashes track posted content so an unchanged page
// costs no platform edit on the next pass.
type MessageRefSet struct {
	CompletedMessageIDs []string  `json:"completed_message_ids"`
	CompletedHashes     []string  `json:"completed_hashes"`
	PendingMessageIDs   []string  `json:"pending_message_ids"`
	PendingHashes       []string  `json:"pending_hashes"`
	LastUpdated         time.Time `json:"last_updated"`
}

// GuildConfig is the per-guild standup configuration. All fields are
// validated at the boundary before any core operation runs.
type GuildConfig struct {
	StandupHour   int      `json:"standup_hour"`
	StandupMinute int      `json:"standup_minute"`
	DeadlineHour  int      `json:"deadline_hour"`
	LookbackHours int      `json:"lookback_hours"`
	Timezone      string   `json:"timezone"`
	SkipDates     []string `json:"skip_dates"`
	ThreadMode    bool     `json:"thread_mode"`
	ChannelID     string   `json:"channel_id"`
}

// Validate checks every field against its allowed range.
func (c *GuildConfig) Validate() error {
	if c.StandupHour < 0 || c.StandupHour > 23 {
		return fmt.Errorf("%w: standup hour %d out of range [0,23]", ErrConfiguration, c.StandupHour)
	}
	if c.StandupMinute < 0 || c.StandupMinute > 59 {
		return fmt.Errorf("%w: standup minute %d out of range [0,59]", ErrConfiguration, c.StandupMinute)
	}
	if c.DeadlineHour < 0 || c.DeadlineHour > 23 {
		return fmt.Errorf("%w: deadline hour %d out of range [0,23]", ErrConfiguration, c.DeadlineHour)
	}
	if c.LookbackHours < 0 || c.LookbackHours > 24 {
		return fmt.Errorf("%w: lookback hours %d out of range [0,24]", ErrConfiguration, c.LookbackHours)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: invalid timezone %q", ErrConfiguration, c.Timezone)
	}
	return nil
}

// SkipsDate reports whether date (YYYY-MM-DD) is in the skip set.
func (c *GuildConfig) SkipsDate(date string) bool {
	for _, d := range c.SkipDates {
		if d == date {
			return true
		}
	}
	return false
}

// DefaultGuildConfig mirrors the defaults applied when a guild has no stored
// configuration yet.
func DefaultGuildConfig() GuildConfig {
	return GuildConfig{
		StandupHour:   9,
		StandupMinute: 0,
		DeadlineHour:  21,
		LookbackHours: 2,
		Timezone:      "UTC",
		ThreadMode:    true,
	}
}

// ParticipantStats is one user's share of a session's completion report.
type ParticipantStats struct {
	UserID    string `json:"user_id"`
	Completed int    `json:"completed"`
	Pending   int    `json:"pending"`
}

// SessionStats is the statistics snapshot taken when a session is finalized.
type SessionStats struct {
	SessionID    string             `json:"session_id"`
	Date         string             `json:"date"`
	Participants []ParticipantStats `json:"participants"`
	Completed    int                `json:"completed"`
	Pending      int                `json:"pending"`
	TakenAt      time.Time          `json:"taken_at"`
}
