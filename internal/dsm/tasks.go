package dsm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

const (
	taskIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	taskIDLength   = 4
	taskIDAttempts = 10
)

func randomTaskID() string {
	var b strings.Builder
	for i := 0; i < taskIDLength; i++ {
		b.WriteByte(taskIDAlphabet[rand.Intn(len(taskIDAlphabet))])
	}
	return b.String()
}

// newTaskID picks an id not already used in the guild. Collisions trigger
// regeneration; after too many attempts the id gets a timestamp suffix, which
// keeps it unique at the cost of the usual length.
func (m *Manager) newTaskID(ctx context.Context, guildID string) (string, error) {
	for i := 0; i < taskIDAttempts; i++ {
		id := randomTaskID()
		var existing Task
		err := m.store.Get(ctx, guildID, colTasks, id, &existing)
		if isStoreNotFound(err) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("error checking task id: %w", err)
		}
	}
	return randomTaskID() + m.now().Format("150405"), nil
}

// AddTask records a new pending task for the user and returns it.
func (m *Manager) AddTask(ctx context.Context, guildID, userID, description string) (*Task, error) {
	id, err := m.newTaskID(ctx, guildID)
	if err != nil {
		return nil, err
	}
	task := &Task{
		ID:          id,
		OwnerID:     userID,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   m.now(),
	}
	if err := m.store.Put(ctx, guildID, colTasks, task.ID, task); err != nil {
		return nil, fmt.Errorf("error saving task: %w", err)
	}
	return task, nil
}

// GetTask loads one task by id.
func (m *Manager) GetTask(ctx context.Context, guildID, taskID string) (*Task, error) {
	var task Task
	err := m.store.Get(ctx, guildID, colTasks, strings.ToLower(taskID), &task)
	if isStoreNotFound(err) {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("error loading task: %w", err)
	}
	return &task, nil
}

// CompleteTask marks the task completed and stamps the completion time.
// Permission checks (owner or admin) are the caller's responsibility.
func (m *Manager) CompleteTask(ctx context.Context, guildID, taskID string) (*Task, error) {
	task, err := m.GetTask(ctx, guildID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusCompleted {
		now := m.now()
		task.Status = StatusCompleted
		task.CompletedAt = &now
		if err := m.store.Put(ctx, guildID, colTasks, task.ID, task); err != nil {
			return nil, fmt.Errorf("error saving task: %w", err)
		}
	}
	return task, nil
}

// SetRemark attaches a remark to the task, replacing any previous one.
func (m *Manager) SetRemark(ctx context.Context, guildID, taskID, remark string) (*Task, error) {
	task, err := m.GetTask(ctx, guildID, taskID)
	if err != nil {
		return nil, err
	}
	task.Remark = remark
	if err := m.store.Put(ctx, guildID, colTasks, task.ID, task); err != nil {
		return nil, fmt.Errorf("error saving task: %w", err)
	}
	return task, nil
}

// UserTasks loads all of one user's tasks in the guild. Tasks are never hard
// deleted; the session window decides what still shows up.
func (m *Manager) UserTasks(ctx context.Context, guildID, userID string) ([]Task, error) {
	docs, err := m.store.List(ctx, guildID, colTasks)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	var tasks []Task
	for docID, raw := range docs {
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("error decoding task %s: %w", docID, err)
		}
		if t.OwnerID == userID {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}
