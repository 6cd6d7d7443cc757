package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
)

const (
	HeaderComplete  = "✅ Check complete!\n\n"
	NothingToCheck  = "📭 You have no app links to check. Add some first."
	RunFailed       = "❌ Check failed. Please try again later."
	NoProxiesDirect = "⚠️ No active proxies, checking directly."
)

// Started is the first progress notice of a run.
func Started(total int) string {
	return fmt.Sprintf("🔍 Checking %d app link(s)...", total)
}

// Progress renders "completed/total".
func Progress(done, total int) string {
	return fmt.Sprintf("⏳ Progress: %d/%d", done, total)
}

// Line renders one result of the final report.
func Line(name string, available bool, errMsg string) string {
	if available {
		return fmt.Sprintf("✅ %s: available", name)
	}
	if errMsg == "" {
		errMsg = "unavailable"
	}
	return fmt.Sprintf("❌ %s: %s", name, oneLine(errMsg))
}

// StatusLines renders the latest-status view, one line per target.
func StatusLines(statuses []domain.LatestStatus, loc *time.Location) []string {
	lines := make([]string, 0, len(statuses))
	for _, st := range statuses {
		name := st.Target.DisplayName()
		if st.Target.AppName != "" {
			name = fmt.Sprintf("%s (%s)", st.Target.AppName, name)
		}
		if st.Result == nil {
			lines = append(lines, fmt.Sprintf("⚪ %s: never checked", name))
			continue
		}
		at := st.Result.CheckedAt.In(loc).Format("2006-01-02 15:04")
		lines = append(lines, Line(name, st.Result.Available, st.Result.ErrorMessage)+" ["+at+"]")
	}
	return lines
}

// oneLine keeps multi-line errors from breaking the report layout.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
