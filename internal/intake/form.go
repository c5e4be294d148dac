// Package intake is the conversational client onboarding form. It
// tracks per-user form state across messenger turns, validates each
// answer, and assembles the record appended to the client register on
// submit.
package intake

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
)

// Step is one stage of the intake flow. Steps advance strictly in
// declaration order; StepProjectType additionally loops on itself while
// the user toggles selections.
type Step int

const (
	StepName Step = iota
	StepEmail
	StepCompany
	StepPhone
	StepProjectType
	StepProjectGoal
	StepTimeframe
	StepBudget
	StepAdditionalInfo
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepName:
		return "name"
	case StepEmail:
		return "email"
	case StepCompany:
		return "company"
	case StepPhone:
		return "phone"
	case StepProjectType:
		return "project_type"
	case StepProjectGoal:
		return "project_goal"
	case StepTimeframe:
		return "timeframe"
	case StepBudget:
		return "budget"
	case StepAdditionalInfo:
		return "additional_info"
	case StepConfirmation:
		return "confirmation"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Validation errors reported back to the user. None of them advance
// the form.
var (
	ErrEmpty        = errors.New("intake: answer cannot be empty")
	ErrInvalidEmail = errors.New("intake: invalid email address")
	ErrNoneSelected = errors.New("intake: select at least one project type")
	ErrNoSession    = errors.New("intake: no form in progress")
	ErrUnknownToken = errors.New("intake: unknown action")
)

// Answers is the partially filled form record.
type Answers struct {
	Name           string
	Email          string
	Company        string
	Phone          string
	ProjectTypes   []string
	ProjectGoal    string
	Timeframe      string
	Budget         string
	AdditionalInfo string
}

// Session is one user's in-flight form.
type Session struct {
	UserID    int64
	Step      Step
	Answers   Answers
	MessageID int64
	StartedAt time.Time
	UpdatedAt time.Time
}

// ChoiceOutcome classifies what a button press did to the form.
type ChoiceOutcome int

const (
	// OutcomeAdvance moved the form to the next step.
	OutcomeAdvance ChoiceOutcome = iota
	// OutcomeRefresh toggled a selection; re-render the same step.
	OutcomeRefresh
	// OutcomeSubmit finished the form; the caller hands the answers to
	// the record provider and discards the session on success.
	OutcomeSubmit
	// OutcomeCancel abandoned the form; the session is gone.
	OutcomeCancel
)

// Manager holds at most one form session per user.
type Manager struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[int64]*Session

	now func() time.Time
}

// NewManager creates a Manager. A zero ttl keeps abandoned forms until
// the user cancels or restarts.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:      ttl,
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Start opens a fresh form for the user, discarding any prior one.
func (m *Manager) Start(userID int64) Session {
	now := m.now()
	sess := &Session{UserID: userID, Step: StepName, StartedAt: now, UpdatedAt: now}

	m.mu.Lock()
	m.sessions[userID] = sess
	m.mu.Unlock()

	return *sess
}

// Get returns the user's form session, if any.
func (m *Manager) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.active(userID)
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Discard drops the user's form session.
func (m *Manager) Discard(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// SetMessageID records the messenger message rendering the form, so
// later steps edit it in place.
func (m *Manager) SetMessageID(userID, messageID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.active(userID); ok {
		sess.MessageID = messageID
	}
}

// active returns the live session for userID, dropping it when expired.
// Callers hold m.mu.
func (m *Manager) active(userID int64) (*Session, bool) {
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().Sub(sess.UpdatedAt) > m.ttl {
		delete(m.sessions, userID)
		return nil, false
	}
	return sess, true
}

// SubmitText applies free-text input to the user's current step.
// Validation failures leave the step unchanged.
func (m *Manager) SubmitText(userID int64, text string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.active(userID)
	if !ok {
		return Session{}, ErrNoSession
	}

	text = strings.TrimSpace(text)
	switch sess.Step {
	case StepName:
		if text == "" {
			return *sess, ErrEmpty
		}
		sess.Answers.Name = text
	case StepEmail:
		if !validEmail(text) {
			return *sess, ErrInvalidEmail
		}
		sess.Answers.Email = text
	case StepCompany:
		sess.Answers.Company = text
	case StepPhone:
		sess.Answers.Phone = text
	case StepProjectGoal:
		if text == "" {
			return *sess, ErrEmpty
		}
		sess.Answers.ProjectGoal = text
	case StepAdditionalInfo:
		sess.Answers.AdditionalInfo = text
	default:
		return *sess, fmt.Errorf("intake: step %s does not accept text", sess.Step)
	}

	sess.Step++
	sess.UpdatedAt = m.now()
	return *sess, nil
}

// SubmitChoice applies a button token to the user's current step.
func (m *Manager) SubmitChoice(userID int64, token string) (Session, ChoiceOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.active(userID)
	if !ok {
		return Session{}, 0, ErrNoSession
	}

	switch {
	case strings.HasPrefix(token, TokenTypePrefix):
		label, ok := projectTypeLabels[token]
		if !ok {
			return *sess, 0, ErrUnknownToken
		}
		sess.Answers.ProjectTypes = toggle(sess.Answers.ProjectTypes, label)
		sess.UpdatedAt = m.now()
		return *sess, OutcomeRefresh, nil

	case token == TokenContinue:
		if len(sess.Answers.ProjectTypes) == 0 {
			return *sess, 0, ErrNoneSelected
		}
		sess.Step = StepProjectGoal
		sess.UpdatedAt = m.now()
		return *sess, OutcomeAdvance, nil

	case strings.HasPrefix(token, TokenTimePrefix):
		label, ok := timeframeLabels[token]
		if !ok {
			return *sess, 0, ErrUnknownToken
		}
		sess.Answers.Timeframe = label
		sess.Step = StepBudget
		sess.UpdatedAt = m.now()
		return *sess, OutcomeAdvance, nil

	case strings.HasPrefix(token, TokenBudgetPrefix):
		label, ok := budgetLabels[token]
		if !ok {
			return *sess, 0, ErrUnknownToken
		}
		sess.Answers.Budget = label
		sess.Step = StepAdditionalInfo
		sess.UpdatedAt = m.now()
		return *sess, OutcomeAdvance, nil

	case token == TokenSubmit:
		return *sess, OutcomeSubmit, nil

	case token == TokenCancel:
		delete(m.sessions, userID)
		return *sess, OutcomeCancel, nil
	}

	return *sess, 0, ErrUnknownToken
}

// toggle adds label to set, or removes it when already present,
// preserving selection order.
func toggle(set []string, label string) []string {
	for i, s := range set {
		if s == label {
			return append(set[:i:i], set[i+1:]...)
		}
	}
	return append(set, label)
}

// validEmail accepts a single plain address with a dotted domain.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return strings.Contains(s[at+1:], ".")
}
