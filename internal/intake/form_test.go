package intake

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// fill walks the form up to the confirmation step with typical answers.
func fill(t *testing.T, m *Manager, userID int64) Session {
	t.Helper()

	m.Start(userID)
	for _, text := range []string{"Ada Lovelace", "ada@example.com", "Analytical Engines Ltd", "+44 20 7946 0958"} {
		if _, err := m.SubmitText(userID, text); err != nil {
			t.Fatalf("SubmitText(%q): %v", text, err)
		}
	}
	if _, _, err := m.SubmitChoice(userID, TokenTypePrefix+"web"); err != nil {
		t.Fatalf("toggle type: %v", err)
	}
	if _, _, err := m.SubmitChoice(userID, TokenContinue); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if _, err := m.SubmitText(userID, "A difference engine dashboard"); err != nil {
		t.Fatalf("goal: %v", err)
	}
	if _, _, err := m.SubmitChoice(userID, TokenTimePrefix+"asap"); err != nil {
		t.Fatalf("timeframe: %v", err)
	}
	if _, _, err := m.SubmitChoice(userID, TokenBudgetPrefix+"15k"); err != nil {
		t.Fatalf("budget: %v", err)
	}
	sess, err := m.SubmitText(userID, "Prefer weekly updates")
	if err != nil {
		t.Fatalf("additional info: %v", err)
	}
	return sess
}

func TestStartResetsForm(t *testing.T) {
	m := NewManager(0)

	m.Start(1)
	if _, err := m.SubmitText(1, "Ada"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	sess := m.Start(1)
	if sess.Step != StepName {
		t.Errorf("Step after restart = %v, want StepName", sess.Step)
	}
	if sess.Answers.Name != "" {
		t.Errorf("Name survived restart: %q", sess.Answers.Name)
	}
}

func TestNameRequired(t *testing.T) {
	m := NewManager(0)
	m.Start(1)

	sess, err := m.SubmitText(1, "   ")
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
	if sess.Step != StepName {
		t.Errorf("Step advanced on empty name: %v", sess.Step)
	}

	sess, err = m.SubmitText(1, "Ada")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if sess.Step != StepEmail {
		t.Errorf("Step = %v, want StepEmail", sess.Step)
	}
}

func TestEmailValidation(t *testing.T) {
	m := NewManager(0)
	m.Start(1)
	if _, err := m.SubmitText(1, "Ada"); err != nil {
		t.Fatalf("name: %v", err)
	}

	for _, bad := range []string{"not-an-email", "ada@nodot", "Ada <ada@example.com>", ""} {
		sess, err := m.SubmitText(1, bad)
		if !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("SubmitText(%q): err = %v, want ErrInvalidEmail", bad, err)
		}
		if sess.Step != StepEmail {
			t.Errorf("SubmitText(%q): step advanced to %v", bad, sess.Step)
		}
	}

	sess, err := m.SubmitText(1, "ada@example.com")
	if err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	if sess.Step != StepCompany {
		t.Errorf("Step = %v, want StepCompany", sess.Step)
	}
}

func TestOptionalFieldsAcceptEmpty(t *testing.T) {
	m := NewManager(0)
	m.Start(1)
	if _, err := m.SubmitText(1, "Ada"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if _, err := m.SubmitText(1, "ada@example.com"); err != nil {
		t.Fatalf("email: %v", err)
	}

	sess, err := m.SubmitText(1, "")
	if err != nil {
		t.Fatalf("empty company rejected: %v", err)
	}
	if sess.Step != StepPhone {
		t.Fatalf("Step = %v, want StepPhone", sess.Step)
	}

	sess, err = m.SubmitText(1, "")
	if err != nil {
		t.Fatalf("empty phone rejected: %v", err)
	}
	if sess.Step != StepProjectType {
		t.Errorf("Step = %v, want StepProjectType", sess.Step)
	}
}

func TestProjectTypeToggle(t *testing.T) {
	m := NewManager(0)
	m.Start(1)
	if _, err := m.SubmitText(1, "Ada"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitText(1, "ada@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitText(1, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitText(1, ""); err != nil {
		t.Fatal(err)
	}

	sess, outcome, err := m.SubmitChoice(1, TokenTypePrefix+"web")
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if outcome != OutcomeRefresh {
		t.Errorf("outcome = %v, want OutcomeRefresh", outcome)
	}
	if !reflect.DeepEqual(sess.Answers.ProjectTypes, []string{"Web/Mobile Development"}) {
		t.Errorf("ProjectTypes = %v", sess.Answers.ProjectTypes)
	}

	sess, _, err = m.SubmitChoice(1, TokenTypePrefix+"art")
	if err != nil {
		t.Fatalf("toggle second: %v", err)
	}
	want := []string{"Web/Mobile Development", "Digital Art/Graphics"}
	if !reflect.DeepEqual(sess.Answers.ProjectTypes, want) {
		t.Errorf("ProjectTypes = %v, want %v", sess.Answers.ProjectTypes, want)
	}

	// Toggling again deselects.
	sess, _, err = m.SubmitChoice(1, TokenTypePrefix+"web")
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if !reflect.DeepEqual(sess.Answers.ProjectTypes, []string{"Digital Art/Graphics"}) {
		t.Errorf("ProjectTypes after deselect = %v", sess.Answers.ProjectTypes)
	}
}

func TestContinueRequiresSelection(t *testing.T) {
	m := NewManager(0)
	m.Start(1)
	if _, err := m.SubmitText(1, "Ada"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitText(1, "ada@example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitText(1, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SubmitText(1, ""); err != nil {
		t.Fatal(err)
	}

	sess, _, err := m.SubmitChoice(1, TokenContinue)
	if !errors.Is(err, ErrNoneSelected) {
		t.Fatalf("err = %v, want ErrNoneSelected", err)
	}
	if sess.Step != StepProjectType {
		t.Errorf("Step advanced without selection: %v", sess.Step)
	}
}

func TestFullWalkToConfirmation(t *testing.T) {
	m := NewManager(0)
	sess := fill(t, m, 1)

	if sess.Step != StepConfirmation {
		t.Fatalf("Step = %v, want StepConfirmation", sess.Step)
	}

	want := Answers{
		Name:           "Ada Lovelace",
		Email:          "ada@example.com",
		Company:        "Analytical Engines Ltd",
		Phone:          "+44 20 7946 0958",
		ProjectTypes:   []string{"Web/Mobile Development"},
		ProjectGoal:    "A difference engine dashboard",
		Timeframe:      "ASAP",
		Budget:         "$5,000 - $15,000",
		AdditionalInfo: "Prefer weekly updates",
	}
	if !reflect.DeepEqual(sess.Answers, want) {
		t.Errorf("Answers = %+v, want %+v", sess.Answers, want)
	}
}

func TestSubmitKeepsSession(t *testing.T) {
	m := NewManager(0)
	fill(t, m, 1)

	_, outcome, err := m.SubmitChoice(1, TokenSubmit)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome != OutcomeSubmit {
		t.Fatalf("outcome = %v, want OutcomeSubmit", outcome)
	}

	// The record append can fail; the form stays alive until the caller
	// discards it.
	if _, ok := m.Get(1); !ok {
		t.Error("session discarded before the caller confirmed the append")
	}

	m.Discard(1)
	if _, ok := m.Get(1); ok {
		t.Error("session survived Discard")
	}
}

func TestCancelDropsSession(t *testing.T) {
	m := NewManager(0)
	fill(t, m, 1)

	_, outcome, err := m.SubmitChoice(1, TokenCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if outcome != OutcomeCancel {
		t.Fatalf("outcome = %v, want OutcomeCancel", outcome)
	}
	if _, ok := m.Get(1); ok {
		t.Error("session survived cancel")
	}
}

func TestUnknownToken(t *testing.T) {
	m := NewManager(0)
	m.Start(1)

	if _, _, err := m.SubmitChoice(1, TokenTypePrefix+"bogus"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("bogus type token: err = %v, want ErrUnknownToken", err)
	}
	if _, _, err := m.SubmitChoice(1, "something_else"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("foreign token: err = %v, want ErrUnknownToken", err)
	}
}

func TestNoSession(t *testing.T) {
	m := NewManager(0)

	if _, err := m.SubmitText(1, "Ada"); !errors.Is(err, ErrNoSession) {
		t.Errorf("SubmitText: err = %v, want ErrNoSession", err)
	}
	if _, _, err := m.SubmitChoice(1, TokenSubmit); !errors.Is(err, ErrNoSession) {
		t.Errorf("SubmitChoice: err = %v, want ErrNoSession", err)
	}
}

func TestAbandonedFormExpires(t *testing.T) {
	m := NewManager(time.Hour)

	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }

	m.Start(1)
	if _, err := m.SubmitText(1, "Ada"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := m.Get(1); ok {
		t.Error("expired form still active")
	}
	if _, err := m.SubmitText(1, "ada@example.com"); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestSetMessageID(t *testing.T) {
	m := NewManager(0)
	m.Start(1)
	m.SetMessageID(1, 99)

	sess, ok := m.Get(1)
	if !ok {
		t.Fatal("session missing")
	}
	if sess.MessageID != 99 {
		t.Errorf("MessageID = %d, want 99", sess.MessageID)
	}
}

func TestRecord(t *testing.T) {
	a := Answers{
		Name:           "Ada Lovelace",
		Email:          "ada@example.com",
		Phone:          "+44 20 7946 0958",
		ProjectTypes:   []string{"Web/Mobile Development", "Digital Art/Graphics"},
		ProjectGoal:    "A difference engine dashboard",
		Timeframe:      "ASAP",
		Budget:         "$5,000 - $15,000",
		AdditionalInfo: "Prefer weekly updates",
	}

	rec := Record(a, "AB12CD", "XY34ZT89Q")
	if rec.Name != a.Name || rec.Email != a.Email || rec.Phone != a.Phone {
		t.Errorf("contact fields not carried over: %+v", rec)
	}
	if rec.Code != "AB12CD" || rec.AuthCode != "XY34ZT89Q" {
		t.Errorf("codes not carried over: %+v", rec)
	}

	wantNotes := "Project: Web/Mobile Development, Digital Art/Graphics" +
		" | Goal: A difference engine dashboard" +
		" | Budget: $5,000 - $15,000" +
		" | Timeframe: ASAP" +
		" | Notes: Prefer weekly updates"
	if rec.Notes != wantNotes {
		t.Errorf("Notes = %q\nwant    %q", rec.Notes, wantNotes)
	}

	a.AdditionalInfo = ""
	rec = Record(a, "AB12CD", "XY34ZT89Q")
	wantNotes = "Project: Web/Mobile Development, Digital Art/Graphics" +
		" | Goal: A difference engine dashboard" +
		" | Budget: $5,000 - $15,000" +
		" | Timeframe: ASAP"
	if rec.Notes != wantNotes {
		t.Errorf("Notes without extra info = %q\nwant %q", rec.Notes, wantNotes)
	}
}

func TestGeneratedCodes(t *testing.T) {
	auth := NewAuthCode()
	if len(auth) != 9 {
		t.Errorf("auth code length = %d, want 9", len(auth))
	}
	code := NewClientCode()
	if len(code) != 6 {
		t.Errorf("client code length = %d, want 6", len(code))
	}
	for _, r := range auth + code {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')) {
			t.Errorf("unexpected character %q in generated code", r)
		}
	}
	if NewAuthCode() == auth {
		t.Error("two auth codes collided")
	}
}
