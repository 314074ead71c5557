package prompt

import (
	_ "embed"
	"strings"
	"time"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/summary.txt
	summaryRaw string
)

const SummarySystem = "You are a helpful assistant that creates clear, concise conversation summaries."

// System renders the assistant instructions for the given wall-clock time.
func System(now time.Time) string {
	r := strings.NewReplacer(
		"{{current_date}}", now.Format("2006-01-02"),
		"{{current_day}}", now.Format("Monday"),
		"{{current_time}}", now.Format("15:04"),
	)
	return r.Replace(strings.TrimSpace(systemRaw))
}

// SummaryRequest renders the recap prompt from the three formatted
// sections.
func SummaryRequest(conversation, actions, appointments string) string {
	r := strings.NewReplacer(
		"{{conversation}}", conversation,
		"{{actions}}", actions,
		"{{appointments}}", appointments,
	)
	return r.Replace(strings.TrimSpace(summaryRaw))
}
