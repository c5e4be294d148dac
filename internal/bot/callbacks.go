package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/halroad/progressbot/internal/session"
	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/telegram"
)

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		b.answer(ctx, cb.ID, "", false)
		return
	}

	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	data := cb.Data

	// Intake buttons work pre-authentication; logout needs no session.
	switch {
	case strings.HasPrefix(data, "intake_"):
		b.intakeCallback(ctx, cb, userID, chatID, messageID, data)
		return
	case data == "logout":
		b.sessions.Logout(userID)
		b.registry.UnsubscribeAll(userID)
		b.edit(ctx, chatID, messageID, "👋 You have been logged out successfully.\n\nUse /auth <code> to sign in again.", nil)
		b.answer(ctx, cb.ID, "", false)
		return
	}

	sess, err := b.sessions.Current(userID)
	if err != nil {
		b.answer(ctx, cb.ID, "Please authenticate first with /auth <code>", true)
		return
	}

	switch {
	case data == "main_menu":
		b.edit(ctx, chatID, messageID,
			"📋 Welcome "+sess.ClientName+"!\n\nWhat would you like to do?", mainMenuKeyboard())

	case data == "menu_jobs":
		b.showJobsMenu(ctx, sess, chatID, messageID)

	case data == "menu_invoices":
		b.edit(ctx, chatID, messageID, "💰 *Invoices*\n\nChoose a filter:", invoicesMenuKeyboard())

	case data == "menu_settings":
		b.edit(ctx, chatID, messageID, "⚙️ *Settings*\n\nChoose an option:", settingsKeyboard())

	case data == "jobs_active", data == "jobs_completed", data == "jobs_all":
		b.showJobsList(ctx, sess, chatID, messageID, strings.TrimPrefix(data, "jobs_"))

	case strings.HasPrefix(data, "job_"):
		b.showJobDetails(ctx, sess, chatID, messageID, strings.TrimPrefix(data, "job_"))

	case strings.HasPrefix(data, "files_"):
		b.showJobFiles(ctx, sess, chatID, strings.TrimPrefix(data, "files_"))

	case strings.HasPrefix(data, "notes_"):
		b.showJobNotes(ctx, sess, chatID, strings.TrimPrefix(data, "notes_"))

	case strings.HasPrefix(data, "download_"):
		b.sendFile(ctx, chatID, strings.TrimPrefix(data, "download_"))

	case data == "invoices_pending", data == "invoices_paid", data == "invoices_all":
		b.showInvoicesList(ctx, sess, chatID, messageID, strings.TrimPrefix(data, "invoices_"))

	case strings.HasPrefix(data, "invoice_download_"):
		b.sendInvoicePDF(ctx, chatID, strings.TrimPrefix(data, "invoice_download_"))

	case strings.HasPrefix(data, "invoice_"):
		b.showInvoiceDetails(ctx, sess, chatID, messageID, strings.TrimPrefix(data, "invoice_"))

	default:
		b.answer(ctx, cb.ID, "Unknown action", true)
		return
	}

	b.answer(ctx, cb.ID, "", false)
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, alert bool) {
	if err := b.api.AnswerCallbackQuery(ctx, callbackID, text, alert); err != nil {
		b.logger.Warn("answering callback failed", "error", err)
	}
}

func (b *Bot) showJobsMenu(ctx context.Context, sess session.Session, chatID, messageID int64) {
	jobs, err := b.provider.ClientJobs(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing jobs failed", "client_id", sess.ClientID, "error", err)
		b.edit(ctx, chatID, messageID, "❌ Error retrieving your jobs. Please try again later.", backKeyboard("main_menu"))
		return
	}
	b.edit(ctx, chatID, messageID,
		fmt.Sprintf("📋 Your Jobs (%d total)\n\nChoose a filter:", len(jobs)), jobsMenuKeyboard())
}

func (b *Bot) showJobsList(ctx context.Context, sess session.Session, chatID, messageID int64, filter string) {
	all, err := b.provider.ClientJobs(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing jobs failed", "client_id", sess.ClientID, "error", err)
		b.edit(ctx, chatID, messageID, "❌ Error retrieving your jobs. Please try again later.", backKeyboard("menu_jobs"))
		return
	}

	active, completed := splitJobs(all)
	var jobs []tabular.Job
	var title string
	switch filter {
	case "active":
		jobs = active
		title = fmt.Sprintf("🔄 Active Jobs (%d)", len(jobs))
	case "completed":
		jobs = completed
		title = fmt.Sprintf("✅ Completed Jobs (%d)", len(jobs))
	default:
		jobs = all
		title = fmt.Sprintf("📊 All Jobs (%d)", len(jobs))
	}

	if len(jobs) == 0 {
		b.edit(ctx, chatID, messageID, title+"\n\nNo jobs found.", backKeyboard("menu_jobs"))
		return
	}
	b.edit(ctx, chatID, messageID, title, jobListKeyboard(jobs, "menu_jobs"))
}

func (b *Bot) showJobDetails(ctx context.Context, sess session.Session, chatID, messageID int64, jobID string) {
	job, ok := b.findJob(ctx, sess, jobID)
	if !ok {
		b.edit(ctx, chatID, messageID, "❌ Job not found.", backKeyboard("menu_jobs"))
		return
	}
	b.edit(ctx, chatID, messageID, formatJobDetails(job), jobDetailsKeyboard(job.ID, "menu_jobs"))
}

func (b *Bot) showJobFiles(ctx context.Context, sess session.Session, chatID int64, jobID string) {
	if b.files == nil {
		b.sendWithKeyboard(ctx, chatID, "📎 File access is not configured.", backKeyboard("job_"+jobID))
		return
	}

	files, err := b.files.ClientFiles(ctx, sess.ClientCode)
	if err != nil {
		b.logger.Error("listing files failed", "client_code", sess.ClientCode, "error", err)
		b.sendWithKeyboard(ctx, chatID, "❌ Error retrieving your files. Please try again later.", backKeyboard("job_"+jobID))
		return
	}
	if len(files) == 0 {
		b.sendWithKeyboard(ctx, chatID, "📎 No files found in your folder yet.", backKeyboard("job_"+jobID))
		return
	}
	b.sendWithKeyboard(ctx, chatID, "📎 *Your Files:*\n\nTap a file to download it.", filesKeyboard(files, "job_"+jobID))
}

func (b *Bot) showJobNotes(ctx context.Context, sess session.Session, chatID int64, jobID string) {
	job, ok := b.findJob(ctx, sess, jobID)
	if !ok {
		b.sendWithKeyboard(ctx, chatID, "❌ Job not found.", backKeyboard("menu_jobs"))
		return
	}

	msg := "💬 *Notes for " + job.Title + ":*\n\n"
	if job.Notes != "" {
		msg += job.Notes
	} else {
		msg += "No notes available for this job."
	}
	b.sendWithKeyboard(ctx, chatID, msg, backKeyboard("job_"+jobID))
}

func (b *Bot) findJob(ctx context.Context, sess session.Session, jobID string) (tabular.Job, bool) {
	jobs, err := b.provider.ClientJobs(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing jobs failed", "client_id", sess.ClientID, "error", err)
		return tabular.Job{}, false
	}
	for _, job := range jobs {
		if job.ID == jobID {
			return job, true
		}
	}
	return tabular.Job{}, false
}

func (b *Bot) sendFile(ctx context.Context, chatID int64, fileID string) {
	if b.files == nil {
		b.send(ctx, chatID, "📎 File access is not configured.")
		return
	}

	content, err := b.files.Download(ctx, fileID)
	if err != nil {
		b.logger.Error("file download failed", "file_id", fileID, "error", err)
		b.send(ctx, chatID, "❌ Could not download that file. Please try again later.")
		return
	}
	if err := b.api.SendDocument(ctx, chatID, content.Name, content.Data, ""); err != nil {
		b.logger.Error("sending document failed", "file_id", fileID, "error", err)
		b.send(ctx, chatID, "❌ Could not send the file. Please try again later.")
	}
}

func (b *Bot) showInvoicesList(ctx context.Context, sess session.Session, chatID, messageID int64, filter string) {
	all, err := b.provider.ClientInvoices(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing invoices failed", "client_id", sess.ClientID, "error", err)
		b.edit(ctx, chatID, messageID, "❌ Error retrieving your invoices. Please try again later.", backKeyboard("menu_invoices"))
		return
	}

	pending, paid := splitInvoices(all)
	var invoices []tabular.Invoice
	var title string
	switch filter {
	case "pending":
		invoices = pending
		title = fmt.Sprintf("📋 Pending Invoices (%d)", len(invoices))
	case "paid":
		invoices = paid
		title = fmt.Sprintf("✅ Paid Invoices (%d)", len(invoices))
	default:
		invoices = all
		title = fmt.Sprintf("📊 All Invoices (%d)", len(invoices))
	}

	if len(invoices) == 0 {
		b.edit(ctx, chatID, messageID, title+"\n\nNo invoices found.", backKeyboard("menu_invoices"))
		return
	}
	b.edit(ctx, chatID, messageID, title, invoiceListKeyboard(invoices, "menu_invoices"))
}

func (b *Bot) showInvoiceDetails(ctx context.Context, sess session.Session, chatID, messageID int64, invoiceID string) {
	invoices, err := b.provider.ClientInvoices(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing invoices failed", "client_id", sess.ClientID, "error", err)
		b.edit(ctx, chatID, messageID, "❌ Error retrieving invoice details. Please try again later.", backKeyboard("menu_invoices"))
		return
	}
	for _, inv := range invoices {
		if inv.ID == invoiceID {
			b.edit(ctx, chatID, messageID, formatInvoiceDetails(inv), invoiceDetailsKeyboard(inv.ID, "menu_invoices"))
			return
		}
	}
	b.edit(ctx, chatID, messageID, "❌ Invoice not found.", backKeyboard("menu_invoices"))
}

func (b *Bot) sendInvoicePDF(ctx context.Context, chatID int64, invoiceID string) {
	if b.files == nil {
		b.send(ctx, chatID, "📄 PDF download is not configured.")
		return
	}

	file, err := b.files.InvoicePDF(ctx, invoiceID)
	if err != nil {
		b.logger.Warn("invoice PDF lookup failed", "invoice_id", invoiceID, "error", err)
		b.send(ctx, chatID, "📄 PDF not yet generated. Contact support if needed.")
		return
	}

	content, err := b.files.Download(ctx, file.ID)
	if err != nil {
		b.logger.Error("invoice PDF download failed", "invoice_id", invoiceID, "error", err)
		b.send(ctx, chatID, "❌ Could not download the PDF. Please try again later.")
		return
	}
	if err := b.api.SendDocument(ctx, chatID, content.Name, content.Data, "📄 Invoice #"+invoiceID); err != nil {
		b.logger.Error("sending invoice PDF failed", "invoice_id", invoiceID, "error", err)
		b.send(ctx, chatID, "❌ Could not send the PDF. Please try again later.")
	}
}
