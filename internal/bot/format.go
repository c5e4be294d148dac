package bot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/halroad/progressbot/internal/tabular"
)

var statusEmojis = map[string]string{
	"pending":     "⏳",
	"open":        "📋",
	"in-progress": "🔄",
	"in progress": "🔄",
	"review":      "👀",
	"completed":   "✅",
	"cancelled":   "❌",
	"on-hold":     "⏸️",
	"blocked":     "🚫",
	"overdue":     "🚨",
}

var priorityEmojis = map[string]string{
	"low":    "🟢",
	"medium": "🟡",
	"high":   "🔴",
	"urgent": "🚨",
}

var invoiceStatusEmojis = map[string]string{
	"draft":     "📝",
	"sent":      "📤",
	"paid":      "✅",
	"pending":   "📋",
	"overdue":   "⚠️",
	"cancelled": "❌",
}

func statusEmoji(status string) string {
	if e, ok := statusEmojis[strings.ToLower(status)]; ok {
		return e
	}
	return "📄"
}

func priorityEmoji(priority string) string {
	return priorityEmojis[strings.ToLower(priority)]
}

func invoiceStatusEmoji(status string) string {
	if e, ok := invoiceStatusEmojis[strings.ToLower(status)]; ok {
		return e
	}
	return "📄"
}

// formatDate renders register date strings as "Jan 02, 2006"; values
// that don't parse pass through untouched.
func formatDate(s string) string {
	if s == "" {
		return "Not set"
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("Jan 02, 2006")
		}
	}
	return s
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func formatCurrency(amount string) string {
	if amount == "" {
		return "$0.00"
	}
	n, err := parseAmount(amount)
	if err != nil {
		return amount
	}
	return fmt.Sprintf("$%.2f", n)
}

func formatJobSummary(job tabular.Job) string {
	var b strings.Builder
	b.WriteString(statusEmoji(job.Status) + " *" + job.Title + "* (" + job.ID + ")\n")
	b.WriteString("   Status: " + job.Status)
	if e := priorityEmoji(job.Priority); e != "" {
		b.WriteString(" " + e + " " + job.Priority)
	}
	if d := formatDate(job.Deadline); job.Deadline != "" && d != "Not set" {
		b.WriteString("\n   📅 Deadline: " + d)
	}
	return b.String()
}

func formatJobDetails(job tabular.Job) string {
	var b strings.Builder
	b.WriteString("🛠️ *" + job.Title + "*\n\n")
	b.WriteString("📋 ID: " + job.ID + "\n")
	b.WriteString("📊 Status: " + job.Status)
	if e := priorityEmoji(job.Priority); e != "" {
		b.WriteString(" " + e + " " + job.Priority)
	}
	b.WriteString("\n")
	if job.Deadline != "" {
		b.WriteString("📅 *Deadline:* " + formatDate(job.Deadline) + "\n")
	}
	if job.Description != "" {
		b.WriteString("\n📝 *Description:*\n" + job.Description)
	}
	if job.Notes != "" {
		b.WriteString("\n💬 *Notes:*\n" + job.Notes)
	}
	if job.ClosedAt != "" {
		b.WriteString("\n✅ Completed: " + formatDate(job.ClosedAt))
	}
	return b.String()
}

func formatInvoiceSummary(inv tabular.Invoice) string {
	var b strings.Builder
	b.WriteString(invoiceStatusEmoji(inv.Status) + " *Invoice #" + inv.ID + "*\n")
	b.WriteString("   Amount: " + formatCurrency(inv.Total))
	if inv.Status != "" {
		b.WriteString(" • Status: " + inv.Status)
	}
	if inv.DueAt != "" {
		b.WriteString("\n   Due: " + formatDate(inv.DueAt))
	}
	return b.String()
}

// lineItem is one entry of an invoice's serialized line item list.
type lineItem struct {
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func parseLineItems(raw string) []lineItem {
	if raw == "" {
		return nil
	}
	var items []lineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

func formatInvoiceDetails(inv tabular.Invoice) string {
	var b strings.Builder
	b.WriteString(invoiceStatusEmoji(inv.Status) + " *Invoice #" + inv.ID + "*\n\n")
	b.WriteString("💰 *Amount:* " + formatCurrency(inv.Total) + "\n")
	status := inv.Status
	if status == "" {
		status = "Unknown"
	}
	b.WriteString("📊 *Status:* " + status + "\n")
	if inv.DueAt != "" {
		b.WriteString("📅 *Due Date:* " + formatDate(inv.DueAt) + "\n")
	}
	if inv.JobID != "" {
		b.WriteString("🔗 *Job:* " + inv.JobID + "\n")
	}
	if items := parseLineItems(inv.LineItems); len(items) > 0 {
		b.WriteString("\n📋 *Line Items:*\n")
		for i, item := range items {
			b.WriteString(fmt.Sprintf("%d. %s - $%.2f\n", i+1, item.Description, item.Price))
		}
	}
	if inv.Notes != "" {
		b.WriteString("\n📝 *Notes:*\n" + inv.Notes + "\n")
	}
	if inv.Terms != "" {
		b.WriteString("\n📄 *Terms:*\n" + inv.Terms + "\n")
	}
	b.WriteString("\n📅 *Created:* " + formatDate(inv.CreatedAt))
	return b.String()
}

// closedStatuses are job statuses counted as no longer active.
var closedStatuses = map[string]bool{
	"completed": true,
	"cancelled": true,
	"closed":    true,
}

func isClosed(job tabular.Job) bool {
	return closedStatuses[strings.ToLower(job.Status)]
}

func splitJobs(jobs []tabular.Job) (active, completed []tabular.Job) {
	for _, job := range jobs {
		if job.Status == "" {
			continue
		}
		if isClosed(job) {
			completed = append(completed, job)
		} else {
			active = append(active, job)
		}
	}
	return active, completed
}
