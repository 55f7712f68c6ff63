package dsm

import (
	"fmt"
	"unicode/utf8"
)

// Limits are the platform rendering constraints. They are configuration, not
// hard-coded values, so a platform-side change never touches the algorithm.
type Limits struct {
	LineLength int // longest single task line
	PageLength int // total characters of all lines on one page
	MaxLines   int // most lines on one page
}

// DiscordLimits matches Discord embed constraints: 1024 per field value,
// 6000 per embed, 25 fields. The page budget sits below the 6000-character
// embed total because the title, the footer marker and the line separators
// the adapter renders all count toward it.
var DiscordLimits = Limits{
	LineLength: 1024,
	PageLength: 5600,
	MaxLines:   25,
}

// PlaceholderLine is rendered when a user has no tasks in the window, so a
// summary always has at least one page to reconcile against.
const PlaceholderLine = "Nothing to show for this session."

// TruncationMarker terminates a line that alone exceeds the line budget.
const TruncationMarker = " […]"

// Page is one bounded-size rendering unit of a task list.
type Page struct {
	Title string
	Lines []string
	Index int // 1-based position in the sequence
	Total int // fixed only after the whole sequence is produced
}

// Paginate splits an ordered line list into platform-sized pages. Lines are
// appended greedily; a page closes when the next line would overflow the page
// budget or the line cap. Labeling happens in a second pass once the final
// count is known, since "Part 2/3" needs the total. An empty input yields
// exactly one placeholder page, never zero.
func Paginate(title string, lines []string, limits Limits) []Page {
	if len(lines) == 0 {
		lines = []string{PlaceholderLine}
	}

	var pages []Page
	current := Page{Title: title}
	used := 0
	for _, line := range lines {
		if len(line) > limits.LineLength {
			line = truncateLine(line, limits.LineLength)
		}
		cost := len(line) + 2 // rendered line separator
		if len(current.Lines) > 0 && (used+cost > limits.PageLength || len(current.Lines) >= limits.MaxLines) {
			pages = append(pages, current)
			current = Page{Title: title}
			used = 0
		}
		current.Lines = append(current.Lines, line)
		used += cost
	}
	pages = append(pages, current)

	total := len(pages)
	for i := range pages {
		pages[i].Index = i + 1
		pages[i].Total = total
		if total > 1 {
			pages[i].Title = fmt.Sprintf("%s (Part %d/%d)", title, i+1, total)
		}
	}
	return pages
}

// truncateLine cuts the line to at most maxLen bytes ending in the truncation
// marker, backing up to a rune boundary so a multi-byte character is never
// split.
func truncateLine(line string, maxLen int) string {
	cut := maxLen - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + TruncationMarker
}
