package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/halroad/progressbot/internal/drive"
	"github.com/halroad/progressbot/internal/intake"
	"github.com/halroad/progressbot/internal/notify"
	"github.com/halroad/progressbot/internal/session"
	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/telegram"
)

type sentMessage struct {
	chatID    int64
	messageID int64
	text      string
	opts      *telegram.SendOptions
}

type sentDocument struct {
	chatID   int64
	filename string
	data     []byte
	caption  string
}

type callbackAnswer struct {
	text  string
	alert bool
}

// fakeAPI records every outbound call the bot makes.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int64
	sent    []sentMessage
	edits   []sentMessage
	answers []callbackAnswer
	docs    []sentDocument
	sendErr error
}

func (f *fakeAPI) GetUpdates(context.Context, int64, int) ([]telegram.Update, error) {
	return nil, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: chatID, messageID: f.nextID, text: text, opts: opts})
	return f.nextID, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, chatID, messageID int64, text string, opts *telegram.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMessage{chatID: chatID, messageID: messageID, text: text, opts: opts})
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, _, text string, showAlert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, callbackAnswer{text: text, alert: showAlert})
	return nil
}

func (f *fakeAPI) SendDocument(_ context.Context, chatID int64, filename string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, sentDocument{chatID: chatID, filename: filename, data: data, caption: caption})
	return nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1].text
}

func (f *fakeAPI) allText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b strings.Builder
	for _, m := range f.sent {
		b.WriteString(m.text + "\n")
	}
	return b.String()
}

type fakeProvider struct {
	tabular.Provider
	clients   []tabular.Client
	jobs      []tabular.Job
	invoices  []tabular.Invoice
	appended  []tabular.NewClient
	appendErr error
}

func (f *fakeProvider) FindClientByAuthCode(_ context.Context, code string) (tabular.Client, error) {
	for _, c := range f.clients {
		if c.AuthCode != "" && c.AuthCode == code {
			return c, nil
		}
	}
	return tabular.Client{}, tabular.ErrNotFound
}

func (f *fakeProvider) ClientJobs(_ context.Context, clientID string) ([]tabular.Job, error) {
	var jobs []tabular.Job
	for _, j := range f.jobs {
		if j.ClientID == clientID {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

func (f *fakeProvider) ClientInvoices(_ context.Context, clientID string) ([]tabular.Invoice, error) {
	var invoices []tabular.Invoice
	for _, inv := range f.invoices {
		if inv.ClientID == clientID {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

func (f *fakeProvider) AppendClient(_ context.Context, nc tabular.NewClient) (tabular.ClientRef, error) {
	if f.appendErr != nil {
		return tabular.ClientRef{}, f.appendErr
	}
	f.appended = append(f.appended, nc)
	return tabular.ClientRef{ID: "9", Code: nc.Code, AuthCode: nc.AuthCode}, nil
}

type fakeFiles struct {
	files    []drive.File
	content  map[string]drive.FileContent
	invoices map[string]drive.File
}

func (f *fakeFiles) ClientFiles(context.Context, string) ([]drive.File, error) {
	return f.files, nil
}

func (f *fakeFiles) Download(_ context.Context, fileID string) (drive.FileContent, error) {
	c, ok := f.content[fileID]
	if !ok {
		return drive.FileContent{}, tabular.ErrNotFound
	}
	return c, nil
}

func (f *fakeFiles) InvoicePDF(_ context.Context, invoiceID string) (drive.File, error) {
	file, ok := f.invoices[invoiceID]
	if !ok {
		return drive.File{}, tabular.ErrNotFound
	}
	return file, nil
}

type botEnv struct {
	bot      *Bot
	api      *fakeAPI
	provider *fakeProvider
	registry *notify.Registry
	sessions *session.Store
	forms    *intake.Manager
}

func newTestBot(t *testing.T, provider *fakeProvider, files FileStore) *botEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := &fakeAPI{}
	sessions := session.NewStore(provider, 0, logger)
	forms := intake.NewManager(0)
	registry := notify.NewRegistry()
	return &botEnv{
		bot:      New(api, provider, files, sessions, forms, registry, logger),
		api:      api,
		provider: provider,
		registry: registry,
		sessions: sessions,
		forms:    forms,
	}
}

func message(userID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: userID, FirstName: "Ada"},
		Chat:      telegram.Chat{ID: userID},
		Text:      text,
	}
}

func callback(userID int64, data string) *telegram.CallbackQuery {
	return &telegram.CallbackQuery{
		ID:      "cb1",
		From:    telegram.User{ID: userID},
		Message: &telegram.Message{MessageID: 50, Chat: telegram.Chat{ID: userID}},
		Data:    data,
	}
}

func authedEnv(t *testing.T, provider *fakeProvider, files FileStore) *botEnv {
	t.Helper()
	env := newTestBot(t, provider, files)
	env.bot.handleMessage(context.Background(), message(42, "/auth ABC123XYZ"))
	if _, err := env.sessions.Current(42); err != nil {
		t.Fatalf("authentication did not produce a session: %v", err)
	}
	return env
}

func testProvider() *fakeProvider {
	return &fakeProvider{
		clients: []tabular.Client{
			{ID: "7", Code: "AB1", Name: "Acme", AuthCode: "ABC123XYZ"},
		},
		jobs: []tabular.Job{
			{ID: "1", Code: "J001", ClientID: "7", Title: "Site redesign", Status: "In Progress"},
			{ID: "2", Code: "J002", ClientID: "7", Title: "Logo", Status: "Completed"},
			{ID: "3", ClientID: "8", Title: "Other client job", Status: "Pending"},
		},
		invoices: []tabular.Invoice{
			{ID: "12", ClientID: "7", Status: "Sent", Total: "1500"},
			{ID: "13", ClientID: "7", Status: "Paid", Total: "900"},
		},
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/auth ABC123XYZ"))

	all := env.api.allText()
	if !strings.Contains(all, "🔍 Authenticating...") {
		t.Errorf("no progress message:\n%s", all)
	}
	if !strings.Contains(all, "Welcome Acme!") {
		t.Errorf("no welcome message:\n%s", all)
	}
	if !env.registry.IsSubscribed(42, "7") {
		t.Error("fresh session not subscribed to notifications")
	}

	// The follow-up message carries the main menu.
	last := env.api.sent[len(env.api.sent)-1]
	if last.opts == nil || last.opts.ReplyMarkup == nil {
		t.Fatal("no keyboard on the post-auth message")
	}
	if got := last.opts.ReplyMarkup.InlineKeyboard[0][0].CallbackData; got != "menu_jobs" {
		t.Errorf("first menu button = %q", got)
	}
}

func TestAuthUnknownCode(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/auth WRONG"))

	if !strings.Contains(env.api.lastText(t), "Authentication failed") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
	if _, err := env.sessions.Current(42); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Error("session created despite bad code")
	}
}

func TestCommandsRequireAuth(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	for _, cmd := range []string{"/jobs", "/status", "/invoices", "/notifications"} {
		env.bot.handleMessage(context.Background(), message(42, cmd))
		if !strings.Contains(env.api.lastText(t), "You need to authenticate first") {
			t.Errorf("%s: last message = %q", cmd, env.api.lastText(t))
		}
	}
}

func TestCmdJobs(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/jobs"))

	got := env.api.lastText(t)
	for _, want := range []string{
		"*Your Jobs* (2 total)",
		"*🔄 Active Jobs (1):*",
		"*✅ Completed Jobs (1):*",
		"*Site redesign* (1)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("jobs listing missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Other client job") {
		t.Error("jobs listing leaked another client's job")
	}
}

func TestCmdJobLookup(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)
	ctx := context.Background()

	// Job codes match case-insensitively.
	env.bot.handleMessage(ctx, message(42, "/job j001"))
	if !strings.Contains(env.api.lastText(t), "*Site redesign*") {
		t.Errorf("job lookup by code failed: %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "/job 2"))
	if !strings.Contains(env.api.lastText(t), "*Logo*") {
		t.Errorf("job lookup by ID failed: %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "/job NOPE"))
	if !strings.Contains(env.api.lastText(t), "not found") {
		t.Errorf("missing-job reply = %q", env.api.lastText(t))
	}
}

func TestCmdStatus(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/status"))

	got := env.api.lastText(t)
	for _, want := range []string{
		"*Job Status Overview*",
		"In Progress: 1 job\n",
		"Completed: 1 job\n",
		"*🔄 Currently Active:*",
		"• Site redesign (1)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("status overview missing %q:\n%s", want, got)
		}
	}
}

func TestCmdInvoices(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/invoices"))

	got := env.api.lastText(t)
	for _, want := range []string{
		"*Your Invoices* (2 total)",
		"*📋 Pending Invoices (1):*",
		"*✅ Paid Invoices (1):*",
		"💰 *Total Pending:* $1500.00",
		"✅ *Total Paid:* $900.00",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("invoice listing missing %q:\n%s", want, got)
		}
	}
}

func TestCmdNotifications(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)
	ctx := context.Background()

	env.bot.handleMessage(ctx, message(42, "/notifications"))
	if !strings.Contains(env.api.lastText(t), "✅ Subscribed") {
		t.Errorf("status = %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "/notifications off"))
	if env.registry.IsSubscribed(42, "7") {
		t.Error("still subscribed after /notifications off")
	}

	env.bot.handleMessage(ctx, message(42, "/notifications"))
	if !strings.Contains(env.api.lastText(t), "❌ Not subscribed") {
		t.Errorf("status after off = %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "/notifications on"))
	if !env.registry.IsSubscribed(42, "7") {
		t.Error("not subscribed after /notifications on")
	}
}

func TestLogoutDropsEverything(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/logout"))

	if _, err := env.sessions.Current(42); err == nil {
		t.Error("session survived logout")
	}
	if len(env.registry.SubscriptionsOf(42)) != 0 {
		t.Error("subscriptions survived logout")
	}
}

func TestCallbackRequiresAuth(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleCallback(context.Background(), callback(42, "menu_jobs"))

	if len(env.api.answers) != 1 {
		t.Fatalf("got %d answers, want 1", len(env.api.answers))
	}
	if !env.api.answers[0].alert || !strings.Contains(env.api.answers[0].text, "authenticate first") {
		t.Errorf("answer = %+v", env.api.answers[0])
	}
}

func TestCallbackLogoutWithoutSession(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleCallback(context.Background(), callback(42, "logout"))

	if len(env.api.edits) != 1 || !strings.Contains(env.api.edits[0].text, "logged out") {
		t.Errorf("edits = %+v", env.api.edits)
	}
}

func TestCallbackJobsList(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)

	env.bot.handleCallback(context.Background(), callback(42, "jobs_active"))

	if len(env.api.edits) != 1 {
		t.Fatalf("got %d edits, want 1", len(env.api.edits))
	}
	edit := env.api.edits[0]
	if !strings.Contains(edit.text, "Active Jobs (1)") {
		t.Errorf("edit text = %q", edit.text)
	}
	kb := edit.opts.ReplyMarkup
	if kb == nil || kb.InlineKeyboard[0][0].CallbackData != "job_1" {
		t.Errorf("keyboard = %+v", kb)
	}
}

func TestCallbackInvoiceDownloadRouting(t *testing.T) {
	files := &fakeFiles{
		invoices: map[string]drive.File{"12": {ID: "pdf-1", Name: "Invoice 12.pdf"}},
		content:  map[string]drive.FileContent{"pdf-1": {Name: "Invoice 12.pdf", Data: []byte("%PDF")}},
	}
	env := authedEnv(t, testProvider(), files)

	// invoice_download_12 must route to the PDF sender, not the invoice
	// details view.
	env.bot.handleCallback(context.Background(), callback(42, "invoice_download_12"))

	if len(env.api.docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(env.api.docs))
	}
	if env.api.docs[0].filename != "Invoice 12.pdf" || env.api.docs[0].caption != "📄 Invoice #12" {
		t.Errorf("document = %+v", env.api.docs[0])
	}
}

func TestCallbackInvoicePDFMissing(t *testing.T) {
	env := authedEnv(t, testProvider(), &fakeFiles{})

	env.bot.handleCallback(context.Background(), callback(42, "invoice_download_12"))

	if !strings.Contains(env.api.lastText(t), "PDF not yet generated") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
}

func TestCallbackFileDownload(t *testing.T) {
	files := &fakeFiles{
		content: map[string]drive.FileContent{"file-1": {Name: "brief.pdf", Data: []byte("data")}},
	}
	env := authedEnv(t, testProvider(), files)

	env.bot.handleCallback(context.Background(), callback(42, "download_file-1"))

	if len(env.api.docs) != 1 || env.api.docs[0].filename != "brief.pdf" {
		t.Errorf("docs = %+v", env.api.docs)
	}
}

func TestFilesNotConfigured(t *testing.T) {
	env := authedEnv(t, testProvider(), nil)

	env.bot.handleCallback(context.Background(), callback(42, "files_1"))

	if !strings.Contains(env.api.lastText(t), "not configured") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
}

func TestUnknownCommand(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/frobnicate"))

	if !strings.Contains(env.api.lastText(t), "Unknown command") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
}

func TestCommandWithBotSuffix(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "/help@progress_bot"))

	if !strings.Contains(env.api.lastText(t), "*Available Commands:*") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
}

func TestIntakeThroughBot(t *testing.T) {
	provider := testProvider()
	env := newTestBot(t, provider, nil)
	ctx := context.Background()

	env.bot.handleMessage(ctx, message(42, "/intake"))
	if !strings.Contains(env.api.lastText(t), "*Client Intake Form*") {
		t.Fatalf("form not started: %q", env.api.lastText(t))
	}

	// Free text feeds the in-flight form.
	env.bot.handleMessage(ctx, message(42, "Ada Lovelace"))
	if !strings.Contains(env.api.lastText(t), "email address") {
		t.Fatalf("name not accepted: %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "not-an-email"))
	if !strings.Contains(env.api.lastText(t), "valid email") {
		t.Fatalf("invalid email accepted: %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "ada@example.com"))
	env.bot.handleMessage(ctx, message(42, "/skip")) // company
	env.bot.handleMessage(ctx, message(42, "/skip")) // phone

	env.bot.handleCallback(ctx, callback(42, "intake_type_web"))
	env.bot.handleCallback(ctx, callback(42, "intake_continue"))
	env.bot.handleMessage(ctx, message(42, "A difference engine dashboard"))
	env.bot.handleCallback(ctx, callback(42, "intake_time_asap"))
	env.bot.handleCallback(ctx, callback(42, "intake_budget_15k"))
	env.bot.handleMessage(ctx, message(42, "/skip")) // additional info

	env.bot.handleCallback(ctx, callback(42, "intake_submit"))

	if len(provider.appended) != 1 {
		t.Fatalf("appended %d clients, want 1", len(provider.appended))
	}
	rec := provider.appended[0]
	if rec.Name != "Ada Lovelace" || rec.Email != "ada@example.com" {
		t.Errorf("record = %+v", rec)
	}
	if !strings.Contains(rec.Notes, "Project: Web/Mobile Development") ||
		!strings.Contains(rec.Notes, "Timeframe: ASAP") {
		t.Errorf("Notes = %q", rec.Notes)
	}

	// The confirmation message carries the auth code.
	final := env.api.edits[len(env.api.edits)-1]
	if !strings.Contains(final.text, "Thank you, Ada Lovelace") || !strings.Contains(final.text, rec.AuthCode) {
		t.Errorf("final message = %q", final.text)
	}

	if _, ok := env.forms.Get(42); ok {
		t.Error("form survived successful submit")
	}
}

func TestIntakeSubmitFailureKeepsForm(t *testing.T) {
	provider := testProvider()
	provider.appendErr = errors.New("backend down")
	env := newTestBot(t, provider, nil)
	ctx := context.Background()

	env.bot.handleMessage(ctx, message(42, "/intake"))
	env.bot.handleMessage(ctx, message(42, "Ada"))
	env.bot.handleMessage(ctx, message(42, "ada@example.com"))
	env.bot.handleMessage(ctx, message(42, "/skip"))
	env.bot.handleMessage(ctx, message(42, "/skip"))
	env.bot.handleCallback(ctx, callback(42, "intake_type_web"))
	env.bot.handleCallback(ctx, callback(42, "intake_continue"))
	env.bot.handleMessage(ctx, message(42, "Dashboard"))
	env.bot.handleCallback(ctx, callback(42, "intake_time_asap"))
	env.bot.handleCallback(ctx, callback(42, "intake_budget_15k"))
	env.bot.handleMessage(ctx, message(42, "/skip"))

	env.bot.handleCallback(ctx, callback(42, "intake_submit"))

	last := env.api.answers[len(env.api.answers)-1]
	if !last.alert || !strings.Contains(last.text, "Submission failed") {
		t.Errorf("answer = %+v", last)
	}
	if _, ok := env.forms.Get(42); !ok {
		t.Error("form discarded despite failed submit")
	}
}

func TestCancelCommand(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)
	ctx := context.Background()

	env.bot.handleMessage(ctx, message(42, "/cancel"))
	if !strings.Contains(env.api.lastText(t), "Nothing to cancel") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}

	env.bot.handleMessage(ctx, message(42, "/intake"))
	env.bot.handleMessage(ctx, message(42, "/cancel"))

	if _, ok := env.forms.Get(42); ok {
		t.Error("form survived /cancel")
	}
	if !strings.Contains(env.api.lastText(t), "cancelled") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
}

func TestIntakeCancel(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)
	ctx := context.Background()

	env.bot.handleMessage(ctx, message(42, "/intake"))
	env.bot.handleCallback(ctx, callback(42, "intake_cancel"))

	if _, ok := env.forms.Get(42); ok {
		t.Error("form survived cancel")
	}
	final := env.api.edits[len(env.api.edits)-1]
	if !strings.Contains(final.text, "cancelled") {
		t.Errorf("final message = %q", final.text)
	}
}

func TestFreeTextWithoutFormNudges(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	env.bot.handleMessage(context.Background(), message(42, "hello there"))

	if !strings.Contains(env.api.lastText(t), "didn't understand") {
		t.Errorf("last message = %q", env.api.lastText(t))
	}
}

func TestSendNotification(t *testing.T) {
	env := newTestBot(t, testProvider(), nil)

	if err := env.bot.SendNotification(context.Background(), 42, "update"); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	last := env.api.sent[len(env.api.sent)-1]
	if last.chatID != 42 || last.text != "update" {
		t.Errorf("sent = %+v", last)
	}
	if last.opts == nil || last.opts.ParseMode != "Markdown" {
		t.Errorf("opts = %+v", last.opts)
	}
}
