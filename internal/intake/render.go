package intake

import (
	"strings"
)

// Button is one inline keyboard button of a rendered step.
type Button struct {
	Label string
	Token string
}

// RenderedStep is the display payload for the form's current step.
type RenderedStep struct {
	Text      string
	Buttons   [][]Button
	WantsText bool
}

// Render produces the display payload for the session's current step,
// echoing every answer accepted so far. Unanswered optional fields are
// omitted.
func Render(sess Session) RenderedStep {
	a := sess.Answers

	switch sess.Step {
	case StepName:
		return RenderedStep{
			Text:      "📝 *Client Intake Form*\n\n*What's your full name?* \\*\n\n_Please type your name below._",
			WantsText: true,
		}

	case StepEmail:
		return RenderedStep{
			Text:      progress(a, StepEmail) + "📧 *What's your email address?* \\*\n\n_Please type your email below._",
			WantsText: true,
		}

	case StepCompany:
		return RenderedStep{
			Text:      progress(a, StepCompany) + "🏢 *Company name* (optional)\n\n_Type your company name or send /skip to skip._",
			WantsText: true,
		}

	case StepPhone:
		return RenderedStep{
			Text:      progress(a, StepPhone) + "📱 *Phone number* (optional)\n\n_Type your phone number or send /skip to skip._",
			WantsText: true,
		}

	case StepProjectType:
		return RenderedStep{
			Text:    progress(a, StepProjectType) + "🎯 *Project Type* \\* (select all that apply)\n\n_Choose your project type(s):_",
			Buttons: projectTypeKeyboard(a.ProjectTypes),
		}

	case StepProjectGoal:
		return RenderedStep{
			Text:      progress(a, StepProjectGoal) + "🎯 *What's your project goal?* \\*\n\n_Please describe what you want to achieve._",
			WantsText: true,
		}

	case StepTimeframe:
		return RenderedStep{
			Text:    progress(a, StepTimeframe) + "⏰ *Project Timeframe* \\*\n\n_When do you need this completed?_",
			Buttons: choiceKeyboard(timeframeChoices),
		}

	case StepBudget:
		return RenderedStep{
			Text:    progress(a, StepBudget) + "💰 *Project Budget* \\*\n\n_What's your budget range?_",
			Buttons: choiceKeyboard(budgetChoices),
		}

	case StepAdditionalInfo:
		return RenderedStep{
			Text:      progress(a, StepAdditionalInfo) + "📋 *Additional Information* (optional)\n\n_Any other details about your project? Type your message or send /skip to skip._",
			WantsText: true,
		}

	case StepConfirmation:
		return RenderedStep{
			Text: reviewText(a),
			Buttons: [][]Button{{
				{Label: "✅ Submit", Token: TokenSubmit},
				{Label: "❌ Cancel", Token: TokenCancel},
			}},
		}
	}

	return RenderedStep{Text: "Unknown step"}
}

// progress renders the checkmarked answers accepted before step.
func progress(a Answers, step Step) string {
	var b strings.Builder

	if step > StepName {
		b.WriteString("✅ Name: " + a.Name + "\n")
	}
	if step > StepEmail {
		b.WriteString("✅ Email: " + a.Email + "\n")
	}
	if step > StepCompany && a.Company != "" {
		b.WriteString("✅ Company: " + a.Company + "\n")
	}
	if step > StepPhone && a.Phone != "" {
		b.WriteString("✅ Phone: " + a.Phone + "\n")
	}
	if step > StepProjectType {
		b.WriteString("✅ Project Type(s): " + strings.Join(a.ProjectTypes, ", ") + "\n")
	}
	if step > StepProjectGoal {
		b.WriteString("✅ Project Goal: " + truncate(a.ProjectGoal, 50) + "\n")
	}
	if step > StepTimeframe {
		b.WriteString("✅ Timeframe: " + a.Timeframe + "\n")
	}
	if step > StepBudget {
		b.WriteString("✅ Budget: " + a.Budget + "\n")
	}

	b.WriteString("\n")
	return b.String()
}

// reviewText is the final confirmation summary with full answers.
func reviewText(a Answers) string {
	var b strings.Builder
	b.WriteString("🎉 *Review Your Information*\n\n")
	b.WriteString("👤 *Name:* " + a.Name + "\n")
	b.WriteString("📧 *Email:* " + a.Email + "\n")
	if a.Company != "" {
		b.WriteString("🏢 *Company:* " + a.Company + "\n")
	}
	if a.Phone != "" {
		b.WriteString("📱 *Phone:* " + a.Phone + "\n")
	}
	b.WriteString("🎯 *Project Type(s):* " + strings.Join(a.ProjectTypes, ", ") + "\n")
	b.WriteString("📝 *Project Goal:* " + a.ProjectGoal + "\n")
	b.WriteString("⏰ *Timeframe:* " + a.Timeframe + "\n")
	b.WriteString("💰 *Budget:* " + a.Budget + "\n")
	if a.AdditionalInfo != "" {
		b.WriteString("📋 *Additional Info:* " + a.AdditionalInfo + "\n")
	}
	b.WriteString("\n_Is this information correct?_")
	return b.String()
}

// projectTypeKeyboard marks already selected types and appends the
// continue action.
func projectTypeKeyboard(selected []string) [][]Button {
	isSelected := make(map[string]bool, len(selected))
	for _, s := range selected {
		isSelected[s] = true
	}

	rows := make([][]Button, 0, len(projectTypeChoices)+1)
	for _, c := range projectTypeChoices {
		label := choiceEmojis[c.token] + " " + c.label
		if isSelected[c.label] {
			label = "☑️ " + c.label
		}
		rows = append(rows, []Button{{Label: label, Token: c.token}})
	}
	rows = append(rows, []Button{{Label: "✅ Continue", Token: TokenContinue}})
	return rows
}

func choiceKeyboard(choices []choice) [][]Button {
	rows := make([][]Button, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, []Button{{Label: choiceEmojis[c.token] + " " + c.label, Token: c.token}})
	}
	return rows
}

// truncate shortens s to n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
