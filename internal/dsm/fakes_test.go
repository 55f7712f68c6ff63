package dsm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"standupbot/internal/store"
)

var testNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

type fakeMsg struct {
	id  string
	msg Message
}

// fakeMessenger records platform traffic so tests can assert on edit/send
// counts and simulate deleted messages.
type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	channels map[string][]*fakeMsg

	sends    int
	edits    int
	deletes  int
	searches int
	threads  int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{channels: make(map[string][]*fakeMsg)}
}

func (f *fakeMessenger) Send(ctx context.Context, channelID string, m Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	f.nextID++
	id := fmt.Sprintf("msg-%03d", f.nextID)
	f.channels[channelID] = append(f.channels[channelID], &fakeMsg{id: id, msg: m})
	return id, nil
}

func (f *fakeMessenger) find(channelID, messageID string) *fakeMsg {
	for _, m := range f.channels[channelID] {
		if m.id == messageID {
			return m
		}
	}
	return nil
}

func (f *fakeMessenger) Edit(ctx context.Context, channelID, messageID string, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	existing := f.find(channelID, messageID)
	if existing == nil {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	existing.msg = m
	return nil
}

func (f *fakeMessenger) Delete(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	msgs := f.channels[channelID]
	for i, m := range msgs {
		if m.id == messageID {
			f.channels[channelID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
}

func (f *fakeMessenger) Search(ctx context.Context, channelID, marker string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	for _, m := range f.channels[channelID] {
		if m.msg.Marker == marker || m.msg.Footer == marker {
			return m.id, nil
		}
	}
	return "", fmt.Errorf("%w: marker %s", ErrNotFound, marker)
}

func (f *fakeMessenger) OpenThread(ctx context.Context, channelID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads++
	return "thread-" + channelID, nil
}

// remove drops a message out-of-band, simulating a user deleting it.
func (f *fakeMessenger) remove(channelID, messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.channels[channelID]
	for i, m := range msgs {
		if m.id == messageID {
			f.channels[channelID] = append(msgs[:i], msgs[i+1:]...)
			return
		}
	}
}

func newTestManager(t *testing.T) (*Manager, *store.Memory, *fakeMessenger) {
	t.Helper()
	st := store.NewMemory()
	fm := newFakeMessenger()
	m := NewManager(st, fm, DiscordLimits)
	m.now = func() time.Time { return testNow }
	return m, st, fm
}

func putTestConfig(t *testing.T, st *store.Memory, guildID string, cfg GuildConfig) {
	t.Helper()
	if err := st.Put(context.Background(), guildID, colConfig, configDocID, &cfg); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}
}

func testGuildConfig() GuildConfig {
	cfg := DefaultGuildConfig()
	cfg.ChannelID = "chan-1"
	cfg.ThreadMode = false
	return cfg
}

func seedTask(t *testing.T, st *store.Memory, guildID string, task Task) {
	t.Helper()
	if err := st.Put(context.Background(), guildID, colTasks, task.ID, &task); err != nil {
		t.Fatalf("failed to seed task %s: %v", task.ID, err)
	}
}

func completedAt(ts time.Time) *time.Time { return &ts }
