package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"standupbot/internal/dsm"

	"github.com/bwmarrin/discordgo"
)

const (
	// Discord archives inactive threads; a week covers weekend standups.
	threadAutoArchiveMinutes = 10080
	// How far back the content-marker search scans channel history.
	searchDepth = 300
)

// Messenger renders platform-agnostic messages as Discord embeds.
type Messenger struct {
	session *discordgo.Session
}

func NewMessenger(session *discordgo.Session) *Messenger {
	return &Messenger{session: session}
}

func renderEmbed(m dsm.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       m.Title,
		Description: strings.Join(m.Lines, "\n\n"),
		Color:       0x3498db,
	}
	footer := m.Footer
	if m.Marker != "" {
		footer = m.Marker
	}
	if footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	return embed
}

func renderContent(m dsm.Message) string {
	if len(m.Mentions) == 0 {
		return ""
	}
	mentions := make([]string, len(m.Mentions))
	for i, id := range m.Mentions {
		mentions[i] = fmt.Sprintf("<@%s>", id)
	}
	return strings.Join(mentions, " ")
}

// mapDiscordErr translates Discord REST failures into the lifecycle error
// taxonomy: gone messages and channels are ErrNotFound, everything else is
// retryable.
func mapDiscordErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) {
		if rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %v", op, dsm.ErrNotFound, err)
		}
		if rerr.Message != nil {
			switch rerr.Message.Code {
			case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%s: %w: %v", op, dsm.ErrNotFound, err)
			}
		}
	}
	return fmt.Errorf("%s: %w: %v", op, dsm.ErrTransient, err)
}

func (m *Messenger) Send(ctx context.Context, channelID string, msg dsm.Message) (string, error) {
	sent, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: renderContent(msg),
		Embed:   renderEmbed(msg),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapDiscordErr("error sending message", err)
	}
	return sent.ID, nil
}

func (m *Messenger) Edit(ctx context.Context, channelID, messageID string, msg dsm.Message) error {
	embeds := []*discordgo.MessageEmbed{renderEmbed(msg)}
	_, err := m.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel: channelID,
		ID:      messageID,
		Embeds:  embeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return mapDiscordErr("error editing message", err)
	}
	return nil
}

func (m *Messenger) Delete(ctx context.Context, channelID, messageID string) error {
	if err := m.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return mapDiscordErr("error deleting message", err)
	}
	return nil
}

// Search walks the channel history newest-first looking for a bot-authored
// embed whose footer is exactly the marker. One marker is a prefix of
// another's (page 1 of page 10), so substring matching would hit the wrong
// page. It gives up after searchDepth messages rather than paging a busy
// channel to its beginning.
func (m *Messenger) Search(ctx context.Context, channelID, marker string) (string, error) {
	var before string
	scanned := 0
	for scanned < searchDepth {
		msgs, err := m.session.ChannelMessages(channelID, 100, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return "", mapDiscordErr("error searching channel history", err)
		}
		if len(msgs) == 0 {
			break
		}
		for _, msg := range msgs {
			scanned++
			if m.session.State.User != nil && msg.Author != nil && msg.Author.ID != m.session.State.User.ID {
				continue
			}
			for _, embed := range msg.Embeds {
				if embed.Footer != nil && embed.Footer.Text == marker {
					return msg.ID, nil
				}
			}
		}
		before = msgs[len(msgs)-1].ID
	}
	return "", fmt.Errorf("error searching channel history: %w: no message carries marker %q", dsm.ErrNotFound, marker)
}

// OpenThread posts the announcement message and starts the day's thread on it.
func (m *Messenger) OpenThread(ctx context.Context, channelID, name string) (string, error) {
	anchor, err := m.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embed: &discordgo.MessageEmbed{
			Title: name,
			Color: 0x3498db,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapDiscordErr("error posting thread anchor", err)
	}

	thread, err := m.session.MessageThreadStartComplex(channelID, anchor.ID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadAutoArchiveMinutes,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapDiscordErr("error starting thread", err)
	}
	return thread.ID, nil
}
