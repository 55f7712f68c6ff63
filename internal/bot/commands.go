package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"standupbot/internal/dsm"

	"github.com/bwmarrin/discordgo"
)

var (
	adminFalse = false

	commands = []*discordgo.ApplicationCommand{
		{
			Name:        "add",
			Description: "Add a new task",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "task",
					Description: "Task description",
					Required:    true,
				},
			},
		},
		{
			Name:        "done",
			Description: "Mark a task as done",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "Task ID (4 characters)",
					Required:    true,
				},
			},
		},
		{
			Name:        "remark",
			Description: "Add a remark to a task",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "Task ID (4 characters)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Remark text",
					Required:    true,
				},
			},
		},
		{
			Name:        "refresh",
			Description: "Refresh your task summary in today's standup thread",
		},
		{
			Name:        "lookback",
			Description: "Show the task-inclusion window for the current standup",
		},
		{
			Name:                     "standup",
			Description:              "Start a standup session now (admin only)",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &adminFalse,
		},
		{
			Name:                     "finalize",
			Description:              "Finalize the current standup session (admin only)",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &adminFalse,
		},
		{
			Name:                     "skipdate",
			Description:              "Skip the standup on a date (admin only)",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &adminFalse,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date",
					Description: "Date to skip (YYYY-MM-DD)",
					Required:    true,
				},
			},
		},
		{
			Name:                     "unskipdate",
			Description:              "Remove a date from the skip list (admin only)",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &adminFalse,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "date",
					Description: "Date to unskip (YYYY-MM-DD)",
					Required:    true,
				},
			},
		},
		{
			Name:                     "skipped",
			Description:              "List all skipped standup dates (admin only)",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &adminFalse,
		},
		{
			Name:                     "config",
			Description:              "Configure standup settings (admin only)",
			DefaultMemberPermissions: &adminPermission,
			DMPermission:             &adminFalse,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "hour",
					Description: "Standup hour (0-23)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minute",
					Description: "Standup minute (0-59)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "deadline",
					Description: "Deadline hour (0-23)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "lookback",
					Description: "Lookback hours (0-24)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "timezone",
					Description: "IANA timezone (e.g. Europe/London)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel where standup sessions are posted",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "threads",
					Description: "Open a thread per standup day",
					Required:    false,
				},
			},
		},
	}
)

var adminPermission = int64(discordgo.PermissionAdministrator)

func commandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		opts[opt.Name] = opt
	}
	return opts
}

// refreshSummary re-collects the user's summary in the active session, if one
// exists. No active session just means the task mutation stays stored until
// the next standup picks it up.
func (b *Bot) refreshSummary(ctx context.Context, guildID, userID string) error {
	session, err := b.manager.ActiveSession(ctx, guildID)
	if err != nil {
		if errors.Is(err, dsm.ErrNotFound) {
			return nil
		}
		return err
	}
	return b.manager.Collect(ctx, session, userID)
}

func (b *Bot) handleAdd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "add")
	if !ack(s, i) {
		return
	}
	ctx := context.Background()

	description := strings.TrimSpace(i.ApplicationCommandData().Options[0].StringValue())
	if description == "" {
		followUpError(s, i, "Task description cannot be empty")
		return
	}

	userID := interactionUserID(i)
	task, err := b.manager.AddTask(ctx, i.GuildID, userID, description)
	if err != nil {
		followUpError(s, i, "Failed to add task: "+err.Error())
		return
	}

	if err := b.refreshSummary(ctx, i.GuildID, userID); err != nil {
		log.Printf(formatLogMessage(i.GuildID, "Error refreshing summary: "+err.Error(), "DSM", ""))
	}

	followUp(s, i, fmt.Sprintf("Task added with ID: `%s`", task.ID))
}

func (b *Bot) handleDone(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "done")
	if !ack(s, i) {
		return
	}
	ctx := context.Background()

	taskID := i.ApplicationCommandData().Options[0].StringValue()
	userID := interactionUserID(i)

	task, err := b.manager.GetTask(ctx, i.GuildID, taskID)
	if err != nil {
		followUpError(s, i, fmt.Sprintf("Task with ID `%s` not found", taskID))
		return
	}
	if task.OwnerID != userID && !isAdmin(s, i.GuildID, userID) {
		followUpError(s, i, "Only the task owner or an admin can mark it done")
		return
	}

	if _, err := b.manager.CompleteTask(ctx, i.GuildID, taskID); err != nil {
		followUpError(s, i, "Failed to mark task as done: "+err.Error())
		return
	}

	if err := b.refreshSummary(ctx, i.GuildID, task.OwnerID); err != nil {
		log.Printf(formatLogMessage(i.GuildID, "Error refreshing summary: "+err.Error(), "DSM", ""))
	}

	followUp(s, i, fmt.Sprintf("Task `%s` marked as done!", task.ID))
}

func (b *Bot) handleRemark(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "remark")
	if !ack(s, i) {
		return
	}
	ctx := context.Background()

	opts := commandOptions(i)
	taskID := opts["id"].StringValue()
	remark := opts["text"].StringValue()
	userID := interactionUserID(i)

	task, err := b.manager.GetTask(ctx, i.GuildID, taskID)
	if err != nil {
		followUpError(s, i, fmt.Sprintf("Task with ID `%s` not found", taskID))
		return
	}
	if task.OwnerID != userID && !isAdmin(s, i.GuildID, userID) {
		followUpError(s, i, "Only the task owner or an admin can add a remark")
		return
	}

	if _, err := b.manager.SetRemark(ctx, i.GuildID, taskID, remark); err != nil {
		followUpError(s, i, "Failed to add remark: "+err.Error())
		return
	}

	if err := b.refreshSummary(ctx, i.GuildID, task.OwnerID); err != nil {
		log.Printf(formatLogMessage(i.GuildID, "Error refreshing summary: "+err.Error(), "DSM", ""))
	}

	followUp(s, i, fmt.Sprintf("Remark added to task `%s`!", task.ID))
}

func (b *Bot) handleRefresh(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "refresh")
	if !ack(s, i) {
		return
	}
	ctx := context.Background()

	userID := interactionUserID(i)
	session, err := b.manager.ActiveSession(ctx, i.GuildID)
	if err != nil {
		followUpError(s, i, "There is no active standup session")
		return
	}

	if err := b.manager.Collect(ctx, session, userID); err != nil {
		followUpError(s, i, "Failed to refresh your summary: "+err.Error())
		return
	}

	followUp(s, i, "Task summary refreshed!")
}

func (b *Bot) handleStandup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "standup")
	if !ack(s, i) {
		return
	}
	ctx := context.Background()

	session, err := b.manager.CreateSession(ctx, i.GuildID, b.participants(i.GuildID), true)
	if err != nil {
		followUpError(s, i, "Failed to start standup: "+err.Error())
		return
	}
	if session == nil {
		followUp(s, i, "Today is in the skip list, no standup was started.")
		return
	}

	// Post everyone's current summaries into the fresh session.
	for _, userID := range b.participants(i.GuildID) {
		if err := b.manager.Collect(ctx, session, userID); err != nil {
			log.Printf(formatLogMessage(i.GuildID, fmt.Sprintf("Error collecting for user %s: %v", userID, err), "DSM", ""))
		}
	}

	followUp(s, i, fmt.Sprintf("Standup session started for %s", session.Date))
}

func (b *Bot) handleFinalize(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "finalize")
	if !ack(s, i) {
		return
	}
	ctx := context.Background()

	session, err := b.manager.ActiveSession(ctx, i.GuildID)
	if err != nil {
		followUpError(s, i, "There is no active standup session")
		return
	}

	stats, err := b.manager.Finalize(ctx, session)
	if err != nil {
		followUpError(s, i, "Failed to finalize standup: "+err.Error())
		return
	}

	followUp(s, i, fmt.Sprintf("Standup finalized: %d completed, %d pending across %d participants",
		stats.Completed, stats.Pending, len(stats.Participants)))
}

func (b *Bot) handleSkipDate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "skipdate")
	if !ack(s, i) {
		return
	}

	date := i.ApplicationCommandData().Options[0].StringValue()
	if err := b.manager.SkipDate(context.Background(), i.GuildID, date); err != nil {
		if errors.Is(err, dsm.ErrConfiguration) {
			followUpError(s, i, "Invalid date format. Please use YYYY-MM-DD (e.g., 2026-09-21)")
		} else {
			followUpError(s, i, "Failed to skip date: "+err.Error())
		}
		return
	}
	followUp(s, i, fmt.Sprintf("Standup will be skipped on %s", date))
}

func (b *Bot) handleUnskipDate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "unskipdate")
	if !ack(s, i) {
		return
	}

	date := i.ApplicationCommandData().Options[0].StringValue()
	if err := b.manager.UnskipDate(context.Background(), i.GuildID, date); err != nil {
		if errors.Is(err, dsm.ErrConfiguration) {
			followUpError(s, i, "Invalid date format. Please use YYYY-MM-DD (e.g., 2026-09-21)")
		} else {
			followUpError(s, i, "Failed to unskip date: "+err.Error())
		}
		return
	}
	followUp(s, i, fmt.Sprintf("Standup will no longer be skipped on %s", date))
}

func (b *Bot) handleSkipped(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "skipped")
	if !ack(s, i) {
		return
	}

	cfg, err := b.manager.Config(context.Background(), i.GuildID)
	if err != nil {
		followUpError(s, i, "Failed to load configuration: "+err.Error())
		return
	}

	if len(cfg.SkipDates) == 0 {
		followUp(s, i, "No dates are currently scheduled to skip the standup.")
		return
	}
	followUp(s, i, "Skipped standup dates:\n- "+strings.Join(cfg.SkipDates, "\n- "))
}

func (b *Bot) handleLookback(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "lookback")
	if !ack(s, i) {
		return
	}

	window, err := b.manager.LookbackWindow(context.Background(), i.GuildID)
	if err != nil {
		followUpError(s, i, "Failed to compute lookback window: "+err.Error())
		return
	}
	followUp(s, i, fmt.Sprintf("Tasks count toward the current standup between %s and %s",
		window.Start.Format("2006-01-02 15:04"), window.End.Format("2006-01-02 15:04")))
}

func (b *Bot) handleConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	logCommand(i, "config")
	if !ack(s, i) {
		return
	}

	opts := commandOptions(i)
	if len(opts) == 0 {
		cfg, err := b.manager.Config(context.Background(), i.GuildID)
		if err != nil {
			followUpError(s, i, "Failed to load configuration: "+err.Error())
			return
		}
		followUp(s, i, fmt.Sprintf(
			"Standup at %02d:%02d (%s), deadline hour %02d, lookback %dh, threads=%v, channel=<#%s>",
			cfg.StandupHour, cfg.StandupMinute, cfg.Timezone, cfg.DeadlineHour,
			cfg.LookbackHours, cfg.ThreadMode, cfg.ChannelID))
		return
	}

	_, err := b.manager.UpdateConfig(context.Background(), i.GuildID, func(cfg *dsm.GuildConfig) {
		if opt, ok := opts["hour"]; ok {
			cfg.StandupHour = int(opt.IntValue())
		}
		if opt, ok := opts["minute"]; ok {
			cfg.StandupMinute = int(opt.IntValue())
		}
		if opt, ok := opts["deadline"]; ok {
			cfg.DeadlineHour = int(opt.IntValue())
		}
		if opt, ok := opts["lookback"]; ok {
			cfg.LookbackHours = int(opt.IntValue())
		}
		if opt, ok := opts["timezone"]; ok {
			cfg.Timezone = opt.StringValue()
		}
		if opt, ok := opts["channel"]; ok {
			cfg.ChannelID = opt.ChannelValue(nil).ID
		}
		if opt, ok := opts["threads"]; ok {
			cfg.ThreadMode = opt.BoolValue()
		}
	})
	if err != nil {
		if errors.Is(err, dsm.ErrConfiguration) {
			followUpError(s, i, "Invalid configuration: "+err.Error())
		} else {
			followUpError(s, i, "Failed to update configuration: "+err.Error())
		}
		return
	}

	followUp(s, i, "Configuration updated!")
}

// participants lists the guild's human members.
func (b *Bot) participants(guildID string) []string {
	members, err := b.session.GuildMembers(guildID, "", 1000)
	if err != nil {
		log.Printf(formatLogMessage(guildID, "Error listing members: "+err.Error(), "DSM", ""))
		return nil
	}
	var ids []string
	for _, m := range members {
		if m.User != nil && !m.User.Bot {
			ids = append(ids, m.User.ID)
		}
	}
	return ids
}
