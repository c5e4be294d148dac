package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/halroad/progressbot/internal/session"
	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/telegram"
)

const authHint = "🔐 You need to authenticate first. Send /auth followed by your unique auth code.\n\n" +
	"🔑 You should have received your auth code from us.\n\nExample: `/auth ABC123XYZ`"

const welcomeText = `🤖 *Welcome to Progress Tracker Bot!*

I help you track your project progress, view job status, check invoices, and get notifications about updates.

*🔐 Getting Started:*
First, authenticate with your unique auth code: ` + "`/auth ABC123XYZ`" + `
🔑 You should have received your auth code from us.

*📋 Available Commands:*
• ` + "`/auth <code>`" + ` - Authenticate with your unique auth code
• ` + "`/jobs`" + ` - View your current jobs
• ` + "`/job <code>`" + ` - Get details about a specific job
• ` + "`/status`" + ` - Quick status overview
• ` + "`/invoices`" + ` - View your invoices
• ` + "`/invoice <number>`" + ` - Get invoice details and PDF
• ` + "`/notifications`" + ` - Manage notification settings
• ` + "`/intake`" + ` - New client? Fill out the intake form
• ` + "`/help`" + ` - Show this help message
• ` + "`/logout`" + ` - Sign out

🚀 *Start by authenticating:* ` + "`/auth ABC123XYZ`"

const helpText = `📋 *Available Commands:*

*🔐 Authentication:*
• ` + "`/auth <code>`" + ` - Sign in with your unique auth code
• ` + "`/logout`" + ` - Sign out

*📊 Job Tracking:*
• ` + "`/jobs`" + ` - View all your jobs (active & completed)
• ` + "`/job <code>`" + ` - Detailed view of a specific job
• ` + "`/status`" + ` - Quick overview of job statuses

*💰 Invoices:*
• ` + "`/invoices`" + ` - View all your invoices
• ` + "`/invoice <number>`" + ` - Get invoice details and download PDF

*🔔 Notifications:*
• ` + "`/notifications`" + ` - Check notification status
• ` + "`/notifications on`" + ` - Enable job update notifications
• ` + "`/notifications off`" + ` - Disable notifications

*📝 New Clients:*
• ` + "`/intake`" + ` - Fill out the client intake form

*❓ Help:*
• ` + "`/help`" + ` - Show this help message
• ` + "`/start`" + ` - Welcome message

💡 *Tip:* You must authenticate first before using job and invoice commands.`

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !strings.HasPrefix(text, "/") {
		b.handleFreeText(ctx, userID, chatID, text)
		return
	}

	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	// Commands in groups arrive as /cmd@botname.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	args := fields[1:]

	switch command {
	case "/start":
		b.send(ctx, chatID, welcomeText)
	case "/help":
		b.send(ctx, chatID, helpText)
	case "/auth":
		b.cmdAuth(ctx, userID, chatID, args)
	case "/logout":
		b.cmdLogout(ctx, userID, chatID)
	case "/jobs":
		b.cmdJobs(ctx, userID, chatID)
	case "/job":
		b.cmdJob(ctx, userID, chatID, args)
	case "/status":
		b.cmdStatus(ctx, userID, chatID)
	case "/invoices":
		b.cmdInvoices(ctx, userID, chatID)
	case "/invoice":
		b.cmdInvoice(ctx, userID, chatID, args)
	case "/notifications":
		b.cmdNotifications(ctx, userID, chatID, args)
	case "/intake":
		b.cmdIntake(ctx, userID, chatID)
	case "/cancel":
		b.cmdCancel(ctx, userID, chatID)
	case "/skip":
		b.handleFreeText(ctx, userID, chatID, "")
	default:
		b.send(ctx, chatID, "❓ Unknown command. Use /help to see all available commands.")
	}
}

// handleFreeText feeds non-command text into an in-flight intake form,
// or nudges toward /help when there is none.
func (b *Bot) handleFreeText(ctx context.Context, userID, chatID int64, text string) {
	if _, ok := b.forms.Get(userID); ok {
		b.intakeText(ctx, userID, chatID, text)
		return
	}

	b.send(ctx, chatID, "❓ *I didn't understand that command.*\n\n"+
		"Use `/help` to see all available commands, or try:\n"+
		"• `/jobs` - View your jobs\n"+
		"• `/invoices` - View your invoices\n"+
		"• `/status` - Quick status overview")
}

// require resolves the caller's session, replying with the auth hint
// when there is none.
func (b *Bot) require(ctx context.Context, userID, chatID int64) (session.Session, bool) {
	sess, err := b.sessions.Current(userID)
	if err != nil {
		b.send(ctx, chatID, authHint)
		return session.Session{}, false
	}
	return sess, true
}

func (b *Bot) cmdAuth(ctx context.Context, userID, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(ctx, chatID, "🔑 Please provide your auth code.\n\nExample: `/auth ABC123XYZ`")
		return
	}

	b.send(ctx, chatID, "🔍 Authenticating...")

	sess, err := b.sessions.Authenticate(ctx, userID, args[0])
	if errors.Is(err, session.ErrCodeNotFound) {
		b.send(ctx, chatID, "❌ Authentication failed. Please use your unique auth code.\n\n"+
			"🔑 You should have received your auth code from us.\n\nExample: `/auth ABC123XYZ`")
		return
	}
	if err != nil {
		b.logger.Error("authentication failed", "user_id", userID, "error", err)
		b.send(ctx, chatID, "❌ Authentication failed. Please try again later.")
		return
	}

	b.send(ctx, chatID, "✅ Welcome "+sess.ClientName+"! You've been authenticated successfully.")

	// Notifications are opt-out: every fresh session subscribes.
	b.registry.Subscribe(sess.ClientID, userID)

	b.sendWithKeyboard(ctx, chatID,
		"🔔 Notifications enabled! You'll receive updates when your job status changes.\n\n"+
			"💡 Try these commands:\n"+
			"• `/jobs` - View your jobs\n"+
			"• `/invoices` - View your invoices\n"+
			"• `/status` - Quick status overview\n\nWhat would you like to do?",
		mainMenuKeyboard())
}

func (b *Bot) cmdLogout(ctx context.Context, userID, chatID int64) {
	b.sessions.Logout(userID)
	b.registry.UnsubscribeAll(userID)
	b.send(ctx, chatID, "👋 You have been logged out successfully.\n\nUse `/auth <code>` to sign in again.")
}

func (b *Bot) cmdJobs(ctx context.Context, userID, chatID int64) {
	sess, ok := b.require(ctx, userID, chatID)
	if !ok {
		return
	}

	jobs, err := b.provider.ClientJobs(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing jobs failed", "client_id", sess.ClientID, "error", err)
		b.send(ctx, chatID, "❌ Error retrieving your jobs. Please try again later.")
		return
	}
	if len(jobs) == 0 {
		b.send(ctx, chatID, "📋 No jobs found for your account.")
		return
	}

	active, completed := splitJobs(jobs)

	var msg strings.Builder
	fmt.Fprintf(&msg, "📋 *Your Jobs* (%d total)\n\n", len(jobs))
	if len(active) > 0 {
		fmt.Fprintf(&msg, "*🔄 Active Jobs (%d):*\n", len(active))
		for _, job := range active {
			msg.WriteString(formatJobSummary(job) + "\n\n")
		}
	}
	if len(completed) > 0 {
		fmt.Fprintf(&msg, "*✅ Completed Jobs (%d):*\n", len(completed))
		shown := completed
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, job := range shown {
			msg.WriteString(formatJobSummary(job) + "\n\n")
		}
		if len(completed) > 5 {
			fmt.Fprintf(&msg, "... and %d more completed jobs\n\n", len(completed)-5)
		}
	}
	msg.WriteString("💡 Use /job <code> to see details of a specific job")

	b.send(ctx, chatID, msg.String())
}

func (b *Bot) cmdJob(ctx context.Context, userID, chatID int64, args []string) {
	sess, ok := b.require(ctx, userID, chatID)
	if !ok {
		return
	}
	if len(args) == 0 {
		b.send(ctx, chatID, "📋 Please specify a job code.\n\nExample: `/job J001`")
		return
	}

	jobs, err := b.provider.ClientJobs(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing jobs failed", "client_id", sess.ClientID, "error", err)
		b.send(ctx, chatID, "❌ Error retrieving job details. Please try again later.")
		return
	}

	wanted := args[0]
	for _, job := range jobs {
		if strings.EqualFold(job.ID, wanted) || strings.EqualFold(job.Code, wanted) {
			b.send(ctx, chatID, formatJobDetails(job))
			return
		}
	}
	b.send(ctx, chatID, fmt.Sprintf("❌ Job with code %q not found in your jobs.", wanted))
}

func (b *Bot) cmdStatus(ctx context.Context, userID, chatID int64) {
	sess, ok := b.require(ctx, userID, chatID)
	if !ok {
		return
	}

	jobs, err := b.provider.ClientJobs(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing jobs failed", "client_id", sess.ClientID, "error", err)
		b.send(ctx, chatID, "❌ Error retrieving status information. Please try again later.")
		return
	}
	if len(jobs) == 0 {
		b.send(ctx, chatID, "📋 No jobs found for your account.")
		return
	}

	// Preserve first-seen order for stable output.
	counts := make(map[string]int)
	var order []string
	for _, job := range jobs {
		status := job.Status
		if status == "" {
			status = "unknown"
		}
		if counts[status] == 0 {
			order = append(order, status)
		}
		counts[status]++
	}

	var msg strings.Builder
	msg.WriteString("📊 *Job Status Overview*\n\n")
	for _, status := range order {
		plural := "s"
		if counts[status] == 1 {
			plural = ""
		}
		fmt.Fprintf(&msg, "%s %s: %d job%s\n", statusEmoji(status), status, counts[status], plural)
	}

	var current []tabular.Job
	for _, job := range jobs {
		switch strings.ToLower(job.Status) {
		case "in-progress", "in progress", "review", "open":
			current = append(current, job)
		}
	}
	if len(current) > 0 {
		msg.WriteString("\n*🔄 Currently Active:*\n")
		for _, job := range current {
			fmt.Fprintf(&msg, "• %s (%s)\n", job.Title, job.ID)
		}
	}

	b.send(ctx, chatID, msg.String())
}

func (b *Bot) cmdInvoices(ctx context.Context, userID, chatID int64) {
	sess, ok := b.require(ctx, userID, chatID)
	if !ok {
		return
	}

	invoices, err := b.provider.ClientInvoices(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing invoices failed", "client_id", sess.ClientID, "error", err)
		b.send(ctx, chatID, "❌ Error retrieving your invoices. Please try again later.")
		return
	}
	if len(invoices) == 0 {
		b.send(ctx, chatID, "📄 No invoices found for your account.")
		return
	}

	pending, paid := splitInvoices(invoices)

	var msg strings.Builder
	fmt.Fprintf(&msg, "📄 *Your Invoices* (%d total)\n\n", len(invoices))
	if len(pending) > 0 {
		fmt.Fprintf(&msg, "*📋 Pending Invoices (%d):*\n", len(pending))
		for _, inv := range pending {
			msg.WriteString(formatInvoiceSummary(inv) + "\n\n")
		}
	}
	if len(paid) > 0 {
		shown := paid
		if len(shown) > 5 {
			shown = shown[:5]
		}
		fmt.Fprintf(&msg, "*✅ Paid Invoices (%d):*\n", len(shown))
		for _, inv := range shown {
			msg.WriteString(formatInvoiceSummary(inv) + "\n\n")
		}
		if len(paid) > 5 {
			fmt.Fprintf(&msg, "... and %d more paid invoices\n\n", len(paid)-5)
		}
	}

	if total := sumInvoices(pending); total > 0 {
		fmt.Fprintf(&msg, "💰 *Total Pending:* $%.2f\n", total)
	}
	if total := sumInvoices(paid); total > 0 {
		fmt.Fprintf(&msg, "✅ *Total Paid:* $%.2f\n", total)
	}
	msg.WriteString("\n💡 Use /invoice <number> to see details and download PDF")

	b.send(ctx, chatID, msg.String())
}

func (b *Bot) cmdInvoice(ctx context.Context, userID, chatID int64, args []string) {
	sess, ok := b.require(ctx, userID, chatID)
	if !ok {
		return
	}
	if len(args) == 0 {
		b.send(ctx, chatID, "📄 Please specify an invoice number.\n\nExample: `/invoice 000679`")
		return
	}

	invoices, err := b.provider.ClientInvoices(ctx, sess.ClientID)
	if err != nil {
		b.logger.Error("listing invoices failed", "client_id", sess.ClientID, "error", err)
		b.send(ctx, chatID, "❌ Error retrieving invoice details. Please try again later.")
		return
	}

	wanted := args[0]
	for _, inv := range invoices {
		if inv.ID == wanted {
			b.sendWithKeyboard(ctx, chatID, formatInvoiceDetails(inv), invoiceDetailsKeyboard(inv.ID, "menu_invoices"))
			return
		}
	}
	b.send(ctx, chatID, "❌ Invoice #"+wanted+" not found in your invoices.")
}

func (b *Bot) cmdNotifications(ctx context.Context, userID, chatID int64, args []string) {
	sess, ok := b.require(ctx, userID, chatID)
	if !ok {
		return
	}

	action := "status"
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	}

	switch action {
	case "status":
		subscribed := b.registry.IsSubscribed(userID, sess.ClientID)
		var msg strings.Builder
		msg.WriteString("🔔 *Notification Settings*\n\n")
		state := "❌ Not subscribed"
		if subscribed {
			state = "✅ Subscribed"
		}
		msg.WriteString("📊 *Current Status:* " + state + "\n")
		msg.WriteString("👤 *Client:* " + sess.ClientName + "\n\n")
		if subscribed {
			msg.WriteString("You'll receive notifications when:\n" +
				"• 🆕 New jobs are created\n" +
				"• 🔄 Job status changes\n" +
				"• 🎯 Milestones are reached\n\n" +
				"Use `/notifications off` to unsubscribe")
		} else {
			msg.WriteString("You're not receiving notifications.\n\n" +
				"Use `/notifications on` to subscribe to updates")
		}
		b.send(ctx, chatID, msg.String())

	case "on", "enable", "subscribe":
		b.registry.Subscribe(sess.ClientID, userID)
		b.send(ctx, chatID, "🔔 *Notifications Enabled*\n\n"+
			"✅ You'll now receive updates about your jobs including:\n"+
			"• 🆕 New job creation\n"+
			"• 🔄 Status changes\n"+
			"• 🎯 Milestone completions\n\n"+
			"💡 Use `/notifications off` to disable anytime")

	case "off", "disable", "unsubscribe":
		b.registry.Unsubscribe(sess.ClientID, userID)
		b.send(ctx, chatID, "🔕 *Notifications Disabled*\n\n"+
			"❌ You'll no longer receive job update notifications.\n\n"+
			"💡 Use `/notifications on` to re-enable anytime")

	default:
		b.send(ctx, chatID, fmt.Sprintf("❌ Invalid action %q\n\n", action)+
			"*Available commands:*\n"+
			"• `/notifications` - Show current status\n"+
			"• `/notifications on` - Enable notifications\n"+
			"• `/notifications off` - Disable notifications")
	}
}

func splitInvoices(invoices []tabular.Invoice) (pending, paid []tabular.Invoice) {
	for _, inv := range invoices {
		status := strings.ToLower(inv.Status)
		switch {
		case status == "paid":
			paid = append(paid, inv)
		case status != "" && status != "cancelled":
			pending = append(pending, inv)
		}
	}
	return pending, paid
}

func sumInvoices(invoices []tabular.Invoice) float64 {
	var total float64
	for _, inv := range invoices {
		n, err := parseAmount(inv.Total)
		if err == nil {
			total += n
		}
	}
	return total
}
