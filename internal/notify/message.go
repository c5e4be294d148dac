package notify

import (
	"strings"

	"github.com/halroad/progressbot/internal/watch"
)

// renderEvent produces the Markdown notification text for one change.
func renderEvent(ev watch.Event) string {
	var b strings.Builder
	job := ev.Job

	code := job.Code
	if code == "" {
		code = job.ID
	}

	switch ev.Type {
	case watch.EventNew:
		b.WriteString("🆕 *New Job Created*\n\n")
		b.WriteString("📋 *" + job.Title + "* (" + code + ")\n")
		status := job.Status
		if status == "" {
			status = "Pending"
		}
		b.WriteString("📊 Status: " + status + "\n")
		if job.Deadline != "" {
			b.WriteString("📅 Deadline: " + job.Deadline + "\n")
		}
		if job.Description != "" {
			b.WriteString("\n📝 " + job.Description)
		}

	case watch.EventStatusChanged:
		b.WriteString(statusChangeEmoji(job.Status) + " *Job Status Updated*\n\n")
		b.WriteString("📋 *" + job.Title + "* (" + code + ")\n")
		b.WriteString("📊 Status: " + ev.OldStatus + " → *" + job.Status + "*\n")
		if remark := milestoneRemark(job.Status); remark != "" {
			b.WriteString("\n" + remark)
		}
	}

	return b.String()
}

// milestoneRemark adds a celebratory line for key status keywords.
func milestoneRemark(status string) string {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "progress"):
		return "🚀 Work has begun on your project!"
	case strings.Contains(s, "review"):
		return "👀 Your project is ready for review!"
	case strings.Contains(s, "completed"):
		return "🎉 Your project has been completed!"
	}
	return ""
}

func statusChangeEmoji(status string) string {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "progress"), strings.Contains(s, "active"):
		return "🔄"
	case strings.Contains(s, "review"):
		return "👀"
	case strings.Contains(s, "completed"), strings.Contains(s, "done"):
		return "✅"
	case strings.Contains(s, "hold"), strings.Contains(s, "paused"):
		return "⏸️"
	case strings.Contains(s, "cancelled"):
		return "❌"
	}
	return "📋"
}
