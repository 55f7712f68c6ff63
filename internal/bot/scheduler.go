package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"standupbot/internal/dsm"
)

// schedulerTick is the poll interval for standup times. Half a minute keeps
// the minute-resolution schedule from being stepped over.
const schedulerTick = 30 * time.Second

// Scheduler fires session creation at each guild's configured standup time
// and finalization at its deadline hour. One creation and one finalization
// per guild per day; operations on one guild's session stay serialized in
// this single loop, different guilds are independent.
type Scheduler struct {
	bot *Bot
}

func NewScheduler(b *Bot) *Scheduler {
	return &Scheduler{bot: b}
}

// Run polls until the context is cancelled.
func (sc *Scheduler) Run(ctx context.Context) {
	log.Println("Standup scheduler started")
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Standup scheduler stopped")
			return
		case <-ticker.C:
			for _, guild := range sc.bot.session.State.Guilds {
				if err := sc.checkGuild(ctx, guild.ID); err != nil {
					log.Printf(formatLogMessage(guild.ID, "Scheduler error: "+err.Error(), "DSM", ""))
				}
			}
		}
	}
}

func (sc *Scheduler) checkGuild(ctx context.Context, guildID string) error {
	manager := sc.bot.manager
	cfg, err := manager.Config(ctx, guildID)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ChannelID == "" {
		return nil // not configured yet
	}

	loc, _ := time.LoadLocation(cfg.Timezone)
	now := time.Now().In(loc)
	today := now.Format("2006-01-02")

	if now.Hour() == cfg.StandupHour && now.Minute() == cfg.StandupMinute {
		return sc.startStandup(ctx, guildID, today)
	}

	if now.Hour() == cfg.DeadlineHour && now.Minute() == 0 {
		return sc.finalizeStandup(ctx, guildID, today)
	}

	return nil
}

// startStandup creates today's session unless one already exists for the
// date, which makes repeated ticks within the standup minute harmless.
func (sc *Scheduler) startStandup(ctx context.Context, guildID, today string) error {
	manager := sc.bot.manager
	if _, err := manager.SessionForDate(ctx, guildID, today); err == nil {
		return nil // already created today
	} else if !errors.Is(err, dsm.ErrNotFound) {
		return err
	}

	session, err := manager.CreateSession(ctx, guildID, sc.bot.participants(guildID), false)
	if err != nil {
		return fmt.Errorf("error creating scheduled session: %w", err)
	}
	if session == nil {
		return nil // skip date
	}

	for _, userID := range sc.bot.participants(guildID) {
		if err := manager.Collect(ctx, session, userID); err != nil {
			log.Printf(formatLogMessage(guildID, fmt.Sprintf("Error collecting for user %s: %v", userID, err), "DSM", ""))
		}
	}
	return nil
}

// finalizeStandup closes today's session at the deadline. Finalize is
// idempotent, so a second tick in the deadline minute changes nothing.
func (sc *Scheduler) finalizeStandup(ctx context.Context, guildID, today string) error {
	manager := sc.bot.manager
	session, err := manager.SessionForDate(ctx, guildID, today)
	if err != nil {
		if errors.Is(err, dsm.ErrNotFound) {
			return nil
		}
		return err
	}
	if !session.Active() {
		return nil
	}
	if _, err := manager.Finalize(ctx, session); err != nil {
		return fmt.Errorf("error finalizing scheduled session: %w", err)
	}
	return nil
}
