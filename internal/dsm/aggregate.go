package dsm

import (
	"sort"
	"time"
)

// Aggregation groups one user's tasks for a session, split by completion
// state and already ordered for rendering.
type Aggregation struct {
	Completed []Task
	Pending   []Task
}

// activityTime is the timestamp that governs a task's window inclusion and
// ordering: the completion time when present, the creation time otherwise.
// A task created before the window but completed inside it still counts.
func activityTime(t Task) time.Time {
	if t.CompletedAt != nil {
		return *t.CompletedAt
	}
	return t.CreatedAt
}

// Aggregate partitions tasks by status, keeping only tasks whose creation or
// completion falls inside the window. Each partition is ordered with the most
// recent date first and timestamps ascending within a date, so the newest
// activity surfaces on the first page.
func Aggregate(tasks []Task, w Window) Aggregation {
	var agg Aggregation
	for _, t := range tasks {
		if !w.Contains(t.CreatedAt) && !(t.CompletedAt != nil && w.Contains(*t.CompletedAt)) {
			continue
		}
		if t.Status == StatusCompleted {
			agg.Completed = append(agg.Completed, t)
		} else {
			agg.Pending = append(agg.Pending, t)
		}
	}
	sortForDisplay(agg.Completed)
	sortForDisplay(agg.Pending)
	return agg
}

func sortForDisplay(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ti, tj := activityTime(tasks[i]), activityTime(tasks[j])
		di, dj := ti.Format("2006-01-02"), tj.Format("2006-01-02")
		if di != dj {
			return di > dj
		}
		return ti.Before(tj)
	})
}
