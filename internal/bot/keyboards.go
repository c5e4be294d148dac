package bot

import (
	"github.com/halroad/progressbot/internal/drive"
	"github.com/halroad/progressbot/internal/intake"
	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/telegram"
)

func row(buttons ...telegram.InlineKeyboardButton) []telegram.InlineKeyboardButton {
	return buttons
}

func btn(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func keyboard(rows ...[]telegram.InlineKeyboardButton) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func mainMenuKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(btn("📊 My Jobs", "menu_jobs"), btn("💰 Invoices", "menu_invoices")),
		row(btn("⚙️ Settings", "menu_settings")),
	)
}

func jobsMenuKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(btn("🔄 Active", "jobs_active"), btn("✅ Completed", "jobs_completed")),
		row(btn("📊 All Jobs", "jobs_all")),
		row(btn("🔙 Main Menu", "main_menu")),
	)
}

func jobListKeyboard(jobs []tabular.Job, backAction string) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(jobs)+1)
	for _, job := range jobs {
		title := job.Title
		if title == "" {
			title = "Untitled Job"
		}
		rows = append(rows, row(btn(statusEmoji(job.Status)+" "+title, "job_"+job.ID)))
	}
	rows = append(rows, row(btn("🔙 Jobs Menu", backAction)))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func jobDetailsKeyboard(jobID, backAction string) *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(btn("📎 Files", "files_"+jobID), btn("💬 Notes", "notes_"+jobID)),
		row(btn("🔙 Back", backAction)),
	)
}

func filesKeyboard(files []drive.File, backAction string) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(files)+1)
	for _, f := range files {
		rows = append(rows, row(btn("📄 "+f.Name, "download_"+f.ID)))
	}
	rows = append(rows, row(btn("🔙 Back", backAction)))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func backKeyboard(backAction string) *telegram.InlineKeyboardMarkup {
	return keyboard(row(btn("🔙 Back", backAction)))
}

func settingsKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(btn("🚪 Logout", "logout")),
		row(btn("🔙 Main Menu", "main_menu")),
	)
}

func invoicesMenuKeyboard() *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(btn("📋 Pending", "invoices_pending"), btn("✅ Paid", "invoices_paid")),
		row(btn("📊 All Invoices", "invoices_all")),
		row(btn("🔙 Main Menu", "main_menu")),
	)
}

func invoiceListKeyboard(invoices []tabular.Invoice, backAction string) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(invoices)+1)
	for _, inv := range invoices {
		label := invoiceStatusEmoji(inv.Status) + " Invoice #" + inv.ID + " - " + formatCurrency(inv.Total)
		rows = append(rows, row(btn(label, "invoice_"+inv.ID)))
	}
	rows = append(rows, row(btn("🔙 Invoices Menu", backAction)))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func invoiceDetailsKeyboard(invoiceID, backAction string) *telegram.InlineKeyboardMarkup {
	return keyboard(
		row(btn("📥 Download PDF", "invoice_download_"+invoiceID)),
		row(btn("🔙 Back", backAction)),
	)
}

// intakeKeyboard converts a rendered form step's buttons to the wire
// markup. Steps without buttons yield nil.
func intakeKeyboard(step intake.RenderedStep) *telegram.InlineKeyboardMarkup {
	if len(step.Buttons) == 0 {
		return nil
	}
	rows := make([][]telegram.InlineKeyboardButton, 0, len(step.Buttons))
	for _, line := range step.Buttons {
		r := make([]telegram.InlineKeyboardButton, 0, len(line))
		for _, b := range line {
			r = append(r, btn(b.Label, b.Token))
		}
		rows = append(rows, r)
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}
