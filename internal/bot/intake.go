package bot

import (
	"context"
	"errors"

	"github.com/halroad/progressbot/internal/intake"
	"github.com/halroad/progressbot/internal/telegram"
)

func (b *Bot) cmdIntake(ctx context.Context, userID, chatID int64) {
	sess := b.forms.Start(userID)
	b.renderIntake(ctx, userID, chatID, 0, sess)
}

func (b *Bot) cmdCancel(ctx context.Context, userID, chatID int64) {
	if _, ok := b.forms.Get(userID); !ok {
		b.send(ctx, chatID, "ℹ️ Nothing to cancel.")
		return
	}
	b.forms.Discard(userID)
	b.send(ctx, chatID, "❌ Intake form cancelled.\n\nUse /intake to start again anytime.")
}

// renderIntake shows the form's current step, editing the previous
// form message in place when one exists.
func (b *Bot) renderIntake(ctx context.Context, userID, chatID, messageID int64, sess intake.Session) {
	step := intake.Render(sess)
	kb := intakeKeyboard(step)

	if messageID != 0 {
		b.edit(ctx, chatID, messageID, step.Text, kb)
		b.forms.SetMessageID(userID, messageID)
		return
	}

	newID, err := b.sendWithKeyboard(ctx, chatID, step.Text, kb)
	if err == nil {
		b.forms.SetMessageID(userID, newID)
	}
}

func (b *Bot) intakeText(ctx context.Context, userID, chatID int64, text string) {
	sess, err := b.forms.SubmitText(userID, text)
	switch {
	case errors.Is(err, intake.ErrEmpty):
		b.send(ctx, chatID, "❌ This field is required. Please type an answer.")
		return
	case errors.Is(err, intake.ErrInvalidEmail):
		b.send(ctx, chatID, "❌ Please enter a valid email address.")
		return
	case errors.Is(err, intake.ErrNoSession):
		return
	case err != nil:
		b.send(ctx, chatID, "❌ Please use the buttons above to continue.")
		return
	}

	// Each text answer starts a fresh form message below the user's
	// reply; button steps keep editing that message.
	b.renderIntake(ctx, userID, chatID, 0, sess)
}

func (b *Bot) intakeCallback(ctx context.Context, cb *telegram.CallbackQuery, userID, chatID, messageID int64, token string) {
	sess, outcome, err := b.forms.SubmitChoice(userID, token)
	switch {
	case errors.Is(err, intake.ErrNoneSelected):
		b.answer(ctx, cb.ID, "Please select at least one project type.", true)
		return
	case errors.Is(err, intake.ErrNoSession):
		b.answer(ctx, cb.ID, "Start the form with /intake first.", true)
		return
	case err != nil:
		b.answer(ctx, cb.ID, "Unknown action", true)
		return
	}

	switch outcome {
	case intake.OutcomeRefresh, intake.OutcomeAdvance:
		b.renderIntake(ctx, userID, chatID, messageID, sess)
		b.answer(ctx, cb.ID, "", false)

	case intake.OutcomeCancel:
		b.edit(ctx, chatID, messageID, "❌ Intake form cancelled.\n\nUse /intake to start again anytime.", nil)
		b.answer(ctx, cb.ID, "", false)

	case intake.OutcomeSubmit:
		b.submitIntake(ctx, cb, userID, chatID, messageID, sess)
	}
}

// submitIntake appends the new client to the register. Provider
// failures keep the form alive so the user can retry without
// re-entering everything.
func (b *Bot) submitIntake(ctx context.Context, cb *telegram.CallbackQuery, userID, chatID, messageID int64, sess intake.Session) {
	authCode := intake.NewAuthCode()
	record := intake.Record(sess.Answers, intake.NewClientCode(), authCode)

	ref, err := b.provider.AppendClient(ctx, record)
	if err != nil {
		b.logger.Error("client intake submit failed", "user_id", userID, "error", err)
		b.answer(ctx, cb.ID, "Submission failed. Please try again.", true)
		return
	}

	b.forms.Discard(userID)
	b.edit(ctx, chatID, messageID,
		"🎉 *Thank you, "+sess.Answers.Name+"!*\n\n"+
			"Your intake form has been submitted. We'll review your project and get back to you shortly.\n\n"+
			"🔑 *Your auth code:* `"+ref.AuthCode+"`\n\n"+
			"Use `/auth "+ref.AuthCode+"` to sign in and track your project.", nil)
	b.answer(ctx, cb.ID, "", false)
	b.logger.Info("new client created", "client_id", ref.ID, "client_code", ref.Code)
}
