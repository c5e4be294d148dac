// Package bot is the Telegram front-end: it long-polls for updates and
// routes commands and button presses to the session store, the intake
// form, the subscription registry, and the record providers.
package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halroad/progressbot/internal/drive"
	"github.com/halroad/progressbot/internal/intake"
	"github.com/halroad/progressbot/internal/notify"
	"github.com/halroad/progressbot/internal/session"
	"github.com/halroad/progressbot/internal/tabular"
	"github.com/halroad/progressbot/internal/telegram"
)

const (
	// pollTimeout is the server-side long-poll hold in seconds.
	pollTimeout   = 50
	pollRetryWait = 5 * time.Second
)

// ChatAPI is the messenger surface the bot drives.
type ChatAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *telegram.SendOptions) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error
}

// FileStore is the file-provider surface used by the files and invoice
// download flows.
type FileStore interface {
	ClientFiles(ctx context.Context, clientCode string) ([]drive.File, error)
	Download(ctx context.Context, fileID string) (drive.FileContent, error)
	InvoicePDF(ctx context.Context, invoiceID string) (drive.File, error)
}

// Bot wires the conversational surface together.
type Bot struct {
	api      ChatAPI
	provider tabular.Provider
	files    FileStore
	sessions *session.Store
	forms    *intake.Manager
	registry *notify.Registry
	logger   *slog.Logger
}

// New creates a Bot. files may be nil when no file provider is
// configured; the related buttons then report the feature unavailable.
func New(api ChatAPI, provider tabular.Provider, files FileStore, sessions *session.Store,
	forms *intake.Manager, registry *notify.Registry, logger *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		provider: provider,
		files:    files,
		sessions: sessions,
		forms:    forms,
		registry: registry,
		logger:   logger,
	}
}

// Run long-polls for updates until ctx is cancelled. Each update is
// handled in its own goroutine; per-user state is guarded by the
// stores themselves.
func (b *Bot) Run(ctx context.Context) {
	var offset int64
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		updates, err := b.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollRetryWait):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// SendNotification delivers a job change alert to one recipient. It
// satisfies the notifier's sender contract.
func (b *Bot) SendNotification(ctx context.Context, recipientID int64, text string) error {
	_, err := b.api.SendMessage(ctx, recipientID, text, markdown())
	return err
}

// markdown is the send option set used for almost every message.
func markdown() *telegram.SendOptions {
	return &telegram.SendOptions{ParseMode: "Markdown", DisableWebPagePreview: true}
}

func markdownWithKeyboard(kb *telegram.InlineKeyboardMarkup) *telegram.SendOptions {
	opts := markdown()
	opts.ReplyMarkup = kb
	return opts
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.SendMessage(ctx, chatID, text, markdown()); err != nil {
		b.logger.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendWithKeyboard(ctx context.Context, chatID int64, text string, kb *telegram.InlineKeyboardMarkup) (int64, error) {
	messageID, err := b.api.SendMessage(ctx, chatID, text, markdownWithKeyboard(kb))
	if err != nil {
		b.logger.Warn("send failed", "chat_id", chatID, "error", err)
	}
	return messageID, err
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string, kb *telegram.InlineKeyboardMarkup) {
	opts := markdown()
	opts.ReplyMarkup = kb
	if err := b.api.EditMessageText(ctx, chatID, messageID, text, opts); err != nil {
		b.logger.Warn("edit failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}
