package bot

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// formatLogMessage renders a guild-scoped log line.
func formatLogMessage(guildID, message, tag, serverName string) string {
	var parts []string
	if tag != "" {
		parts = append(parts, "["+tag+"]")
	}
	if serverName != "" {
		parts = append(parts, serverName)
	}
	if guildID != "" {
		parts = append(parts, "("+guildID+")")
	}
	parts = append(parts, message)
	return strings.Join(parts, " ")
}

// getServerName resolves a guild's display name for logging.
func getServerName(s *discordgo.Session, guildID string) string {
	if guild, err := s.Guild(guildID); err == nil {
		return guild.Name
	}
	return ""
}

// interactionUserID gets the invoking user's ID for both guild and DM
// interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// ack defers the interaction response so slow store and platform calls do
// not hit the 3-second interaction timeout. Returns false when the
// acknowledgment itself failed.
func ack(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf(formatLogMessage(i.GuildID, "Error acknowledging interaction: "+err.Error(), "", ""))
		return false
	}
	return true
}

// followUp sends the ephemeral result of a deferred interaction.
func followUp(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: msg,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Printf(formatLogMessage(i.GuildID, "Error sending followup: "+err.Error(), "", ""))
	}
}

// followUpError sends an ephemeral error result of a deferred interaction.
func followUpError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	followUp(s, i, "Error: "+errMsg)
}

// respondWithError replies immediately, for commands that failed before the
// deferred acknowledgment.
func respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Error: " + errMsg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// isAdmin checks whether the user has the administrator permission in the
// guild.
func isAdmin(s *discordgo.Session, guildID, userID string) bool {
	guild, err := s.Guild(guildID)
	if err != nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID && role.Permissions&discordgo.PermissionAdministrator != 0 {
				return true
			}
		}
	}
	return false
}

// logCommand logs command execution to the console.
func logCommand(i *discordgo.InteractionCreate, commandName string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	var username string
	if i.Member != nil && i.Member.User != nil {
		username = i.Member.User.Username
	} else if i.User != nil {
		username = i.User.Username
	} else {
		username = "unknown"
	}

	var params []string
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			params = append(params, fmt.Sprintf("%s:%s", opt.Name, opt.StringValue()))
		case discordgo.ApplicationCommandOptionInteger:
			params = append(params, fmt.Sprintf("%s:%d", opt.Name, opt.IntValue()))
		case discordgo.ApplicationCommandOptionBoolean:
			params = append(params, fmt.Sprintf("%s:%v", opt.Name, opt.BoolValue()))
		}
	}

	logMessage := fmt.Sprintf("[%s] %s executed /%s", timestamp, username, commandName)
	if len(params) > 0 {
		logMessage += fmt.Sprintf(" [%s]", strings.Join(params, ", "))
	}
	log.Println(logMessage)
}
