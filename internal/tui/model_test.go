package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Tiliavir/tsheet/internal/edit"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/sheet"
	"github.com/Tiliavir/tsheet/internal/table"
)

type fakeBackend struct {
	rows      []model.Record
	fetchErr  error
	updateErr error
	deleteErr error
	calls     []string
	next      int
}

func (f *fakeBackend) Fetch(context.Context) ([]model.Record, error) {
	f.calls = append(f.calls, "fetch")
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]model.Record(nil), f.rows...), nil
}

func (f *fakeBackend) Create(_ context.Context, d table.Draft) (model.Record, string, error) {
	f.calls = append(f.calls, "create")
	f.next++
	r := model.Record{
		ID:          fmt.Sprintf("new-%d", f.next),
		Date:        d.Text(table.FieldDate),
		Description: d.Text(table.FieldDescription),
		Hours:       d.Float(table.FieldHours),
	}
	return r, "Record created", nil
}

func (f *fakeBackend) Update(_ context.Context, current model.Record, d table.Draft) (model.Record, string, error) {
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return model.Record{}, "", f.updateErr
	}
	r := current
	r.Date = d.Text(table.FieldDate)
	r.Description = d.Text(table.FieldDescription)
	r.Hours = d.Float(table.FieldHours)
	return r, "Record updated", nil
}

func (f *fakeBackend) Delete(_ context.Context, key string) (string, error) {
	f.calls = append(f.calls, "delete "+key)
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	return "Record deleted", nil
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds keys and returns the model with the command of the last key.
func press(t *testing.T, m Model[model.Record], keys ...string) (Model[model.Record], tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(Model[model.Record])
	}
	return m, cmd
}

// run executes cmd synchronously and feeds its message back.
func run(t *testing.T, m Model[model.Record], cmd tea.Cmd) Model[model.Record] {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model[model.Record])
}

func loaded(t *testing.T, b *fakeBackend) Model[model.Record] {
	t.Helper()
	s := sheet.New(table.RecordColumns(), b, zerolog.Nop())
	m := New(context.Background(), s, Options[model.Record]{Title: "Records", Classify: RecordHealth(8)})
	return run(t, m, m.Init())
}

func twoRecords() *fakeBackend {
	return &fakeBackend{rows: []model.Record{
		{ID: "a", Date: "2024-02-01", Description: "alpha", Hours: 4},
		{ID: "b", Date: "2024-02-02", Description: "beta", Hours: 8},
	}}
}

func TestInitLoadsRows(t *testing.T) {
	m := loaded(t, twoRecords())
	if got := len(m.sheet.Rows()); got != 2 {
		t.Fatalf("rows = %d, want 2", got)
	}
	view := m.View()
	for _, want := range []string{"Records", "alpha", "beta", "Loaded 2 rows."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestEditCommitAppliesServerRow(t *testing.T) {
	m := loaded(t, twoRecords())

	m, _ = press(t, m, "e", "tab", "tab", "ctrl+u", "10")
	if m.mode != modeEdit {
		t.Fatalf("mode = %v, want edit", m.mode)
	}
	if got := m.sheet.Session().Draft()[table.FieldHours]; got != "10" {
		t.Fatalf("draft hours = %q, want 10", got)
	}
	m, cmd := press(t, m, "enter")
	if !m.sheet.Session().Pending() {
		t.Error("session not pending after enter")
	}
	m = run(t, m, cmd)

	got, _ := m.sheet.Get("a")
	if got.Hours != 10 {
		t.Errorf("hours = %v, want 10", got.Hours)
	}
	if m.mode != modeNormal || m.sheet.Session().State() != edit.Idle {
		t.Error("form still open after save")
	}
	if m.statusLine != "Record updated" {
		t.Errorf("status = %q", m.statusLine)
	}
}

func TestRejectedCommitKeepsForm(t *testing.T) {
	b := twoRecords()
	b.updateErr = &gateway.ServerError{Status: 500, Message: "boom"}
	m := loaded(t, b)

	m, _ = press(t, m, "e", "tab", "tab", "ctrl+u", "10")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	got, _ := m.sheet.Get("a")
	if got.Hours != 4 {
		t.Errorf("hours = %v, want 4", got.Hours)
	}
	if m.mode != modeEdit || m.sheet.Session().State() != edit.Editing {
		t.Error("form closed after rejection")
	}
	if !strings.Contains(m.errorLine, "boom") || !strings.Contains(m.errorLine, "retry") {
		t.Errorf("error line = %q", m.errorLine)
	}
}

func TestInvalidEditShowsFieldError(t *testing.T) {
	b := twoRecords()
	m := loaded(t, b)

	m, _ = press(t, m, "e", "tab", "tab", "ctrl+u", "13")
	m, cmd := press(t, m, "enter")
	if cmd != nil {
		t.Error("commit sent with invalid hours")
	}
	if _, ok := m.fieldErrors[table.FieldHours]; !ok {
		t.Errorf("field errors = %v", m.fieldErrors)
	}
	for _, c := range b.calls {
		if c == "update" {
			t.Error("backend called")
		}
	}
}

func TestCancelledEditIgnoresLateReply(t *testing.T) {
	m := loaded(t, twoRecords())

	m, _ = press(t, m, "e", "tab", "tab", "ctrl+u", "10")
	m, cmd := press(t, m, "enter")
	m, _ = press(t, m, "esc")
	m = run(t, m, cmd)

	got, _ := m.sheet.Get("a")
	if got.Hours != 4 {
		t.Errorf("late reply applied: hours = %v", got.Hours)
	}
	if m.mode != modeNormal {
		t.Errorf("mode = %v", m.mode)
	}
}

func TestSupersededLoadIgnored(t *testing.T) {
	b := twoRecords()
	m := loaded(t, b)

	m, first := press(t, m, "r")
	b.rows = b.rows[:1]
	m, second := press(t, m, "r")

	m = run(t, m, second)
	if len(m.sheet.Rows()) != 1 {
		t.Fatalf("rows = %d, want 1", len(m.sheet.Rows()))
	}
	// The first fetch answers last but must not win.
	b.rows = nil
	m = run(t, m, first)
	if len(m.sheet.Rows()) != 1 {
		t.Errorf("stale load applied: rows = %d", len(m.sheet.Rows()))
	}
}

func TestLoadFailureKeepsRows(t *testing.T) {
	b := twoRecords()
	m := loaded(t, b)

	b.fetchErr = &gateway.NetworkError{Op: "GET /records", Err: errors.New("refused")}
	m, cmd := press(t, m, "r")
	m = run(t, m, cmd)
	if len(m.sheet.Rows()) != 2 {
		t.Errorf("rows = %d, want 2", len(m.sheet.Rows()))
	}
	if !strings.HasPrefix(m.errorLine, "Failed to load") || !strings.HasSuffix(m.errorLine, "Press r to retry.") {
		t.Errorf("error line = %q", m.errorLine)
	}
}

func TestDeleteWithConfirm(t *testing.T) {
	b := twoRecords()
	m := loaded(t, b)

	m, _ = press(t, m, "j", "d")
	if m.mode != modeConfirmDelete || m.deleteKey != "b" {
		t.Fatalf("mode = %v key = %q", m.mode, m.deleteKey)
	}
	m, cmd := press(t, m, "n")
	if cmd != nil || m.mode != modeNormal {
		t.Fatal("n did not cancel")
	}

	m, _ = press(t, m, "d")
	m, cmd = press(t, m, "y")
	m = run(t, m, cmd)
	if _, ok := m.sheet.Get("b"); ok {
		t.Error("row still present")
	}
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestDeleteNotFoundKeepsRow(t *testing.T) {
	b := twoRecords()
	b.deleteErr = &gateway.ServerError{Status: 404, Message: "Record not found"}
	m := loaded(t, b)

	m, _ = press(t, m, "d")
	m, cmd := press(t, m, "y")
	m = run(t, m, cmd)
	if _, ok := m.sheet.Get("a"); !ok {
		t.Error("row dropped")
	}
	if !strings.Contains(m.errorLine, "refresh") {
		t.Errorf("error line = %q", m.errorLine)
	}
}

func TestCreateFlow(t *testing.T) {
	b := twoRecords()
	m := loaded(t, b)

	m, _ = press(t, m, "a")
	if m.mode != modeCreate {
		t.Fatalf("mode = %v", m.mode)
	}
	m, cmd := press(t, m, "enter")
	if cmd != nil {
		t.Fatal("empty form submitted")
	}
	if len(m.fieldErrors) == 0 {
		t.Error("no field errors for empty form")
	}

	m, _ = press(t, m, "2024-02-03", "tab", "gamma", "tab", "ctrl+u", "3")
	m, cmd = press(t, m, "enter")
	m = run(t, m, cmd)

	rows := m.sheet.Rows()
	if len(rows) != 3 || rows[0].Description != "gamma" {
		t.Fatalf("rows = %+v", rows)
	}
	if m.mode != modeNormal {
		t.Error("form still open")
	}
}

func TestShiftWindowReloads(t *testing.T) {
	b := twoRecords()
	s := sheet.New(table.RecordColumns(), b, zerolog.Nop())
	var shifted []int
	m := New(context.Background(), s, Options[model.Record]{
		Title:  "Records",
		Window: "w0",
		Shift: func(weeks int) string {
			shifted = append(shifted, weeks)
			return fmt.Sprintf("w%d", len(shifted))
		},
	})
	m = run(t, m, m.Init())

	m, cmd := press(t, m, "[")
	if cmd == nil || len(shifted) != 1 || shifted[0] != -1 {
		t.Fatalf("shifted = %v", shifted)
	}
	if !strings.Contains(m.View(), "w1") {
		t.Error("window label not updated")
	}
}

func TestRecordHealth(t *testing.T) {
	rows := []model.Record{
		{ID: "a", Date: "2024-01-01", Hours: 3},
		{ID: "b", Date: "2024-01-01", Hours: 5},
		{ID: "c", Date: "2024-01-02", Hours: 2},
	}
	health := RecordHealth(8)(rows)
	if health(rows[0]) != HealthMeets || health(rows[2]) != HealthUnder {
		t.Errorf("health = %v %v", health(rows[0]), health(rows[2]))
	}

	owned := []model.Record{
		{ID: "a", Date: "2024-01-01", Hours: 6, Owner: &model.Owner{ID: "u1"}},
		{ID: "b", Date: "2024-01-01", Hours: 6, Owner: &model.Owner{ID: "u2"}},
	}
	admin := AdminHealth(func(owner string) float64 {
		if owner == "u1" {
			return 6
		}
		return 8
	})(owned)
	if admin(owned[0]) != HealthMeets || admin(owned[1]) != HealthUnder {
		t.Error("per-owner targets not applied")
	}
}
