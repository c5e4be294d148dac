package intake

import (
	"strings"

	"github.com/google/uuid"
	"github.com/halroad/progressbot/internal/tabular"
)

// NewAuthCode generates the code a new client later uses to sign in.
func NewAuthCode() string {
	return randomToken(9)
}

// NewClientCode generates the short public code attached to a client
// row and its Drive folder.
func NewClientCode() string {
	return randomToken(6)
}

func randomToken(n int) string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return hex[:n]
}

// Record assembles the register row for submitted answers. Structured
// project fields fold into the notes column the way the register
// expects them.
func Record(a Answers, clientCode, authCode string) tabular.NewClient {
	var notes strings.Builder
	notes.WriteString("Project: " + strings.Join(a.ProjectTypes, ", "))
	notes.WriteString(" | Goal: " + a.ProjectGoal)
	notes.WriteString(" | Budget: " + a.Budget)
	notes.WriteString(" | Timeframe: " + a.Timeframe)
	if a.AdditionalInfo != "" {
		notes.WriteString(" | Notes: " + a.AdditionalInfo)
	}

	return tabular.NewClient{
		Name:     a.Name,
		Email:    a.Email,
		Phone:    a.Phone,
		Notes:    notes.String(),
		Code:     clientCode,
		AuthCode: authCode,
	}
}
