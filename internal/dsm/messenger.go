package dsm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Message is a platform-agnostic outgoing message. The platform adapter
// decides how to render it (Discord turns it into an embed and expands
// Mentions into pings).
type Message struct {
	Title    string
	Lines    []string
	Footer   string
	Marker   string   // recognizable content marker for search fallback
	Mentions []string // user IDs to address, rendered by the platform
}

// Messenger is the chat-platform collaborator. Message IDs are opaque: never
// ordered, never derived by arithmetic. Implementations return ErrNotFound
// when a message or thread no longer exists and wrap transient platform
// failures in ErrTransient.
type Messenger interface {
	Send(ctx context.Context, channelID string, m Message) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, m Message) error
	Delete(ctx context.Context, channelID, messageID string) error
	// Search scans the channel's history for the newest message authored by
	// the bot whose content marker matches exactly. Markers are not
	// prefix-free, so substring matching is not allowed.
	Search(ctx context.Context, channelID, marker string) (messageID string, err error)
	OpenThread(ctx context.Context, channelID, name string) (threadID string, err error)
}

// PageMarker identifies one page of one user's summary for one kind in one
// session. It is matched by content during the search fallback, so it must
// survive a render round-trip verbatim.
func PageMarker(session *Session, userID, kind string, pageIndex int) string {
	return fmt.Sprintf("standup:%s:%s:%s:%d", session.Date, userID, kind, pageIndex)
}

// hashMessage fingerprints rendered content so reconciliation can skip
// platform edits for pages that have not changed.
func hashMessage(m Message) string {
	h := sha256.New()
	h.Write([]byte(m.Title))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(m.Lines, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(m.Marker))
	return hex.EncodeToString(h.Sum(nil))
}
