package dsm

import "fmt"

// Summary kinds, one reconciliation pass each.
const (
	KindCompleted = "completed"
	KindPending   = "pending"
)

// FormatTaskLine renders one task the way it appears in a summary page.
func FormatTaskLine(t Task) string {
	line := fmt.Sprintf("[`%s`] %s", t.ID, t.Description)
	if t.Remark != "" {
		line += fmt.Sprintf("\n   📝 %s", t.Remark)
	}
	if t.Status == StatusCompleted && t.CompletedAt != nil {
		line += fmt.Sprintf("\n   ✅ Completed at: %s", t.CompletedAt.Format("2006-01-02 15:04"))
	}
	return line
}

func formatTaskLines(tasks []Task) []string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, FormatTaskLine(t))
	}
	return lines
}

func kindTitle(kind string) string {
	if kind == KindCompleted {
		return "✅ Completed Tasks"
	}
	return "⏳ Pending Tasks"
}
