// Package tui is the interactive editable table.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tiliavir/tsheet/internal/edit"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/sheet"
	"github.com/Tiliavir/tsheet/internal/store"
	"github.com/Tiliavir/tsheet/internal/table"
)

// Health grades a row against its daily target.
type Health uint8

const (
	HealthNone Health = iota
	HealthMeets
	HealthUnder
)

// Classifier returns a grading function for the rows currently shown. It is
// called on every render so grades always reflect the latest rows.
type Classifier[T store.Keyed] func(rows []T) func(T) Health

// Options customise a Model.
type Options[T store.Keyed] struct {
	Title string
	// Window describes the initial date window, if any.
	Window string
	// Classify colours rows; nil leaves them plain.
	Classify Classifier[T]
	// Shift moves the date window by weeks and returns its new description.
	// Nil disables the [ and ] keys.
	Shift func(weeks int) string
	// Summary renders a line under the table.
	Summary func(rows []T) string
}

// Model owns Bubble Tea state for one editable table.
type Model[T store.Keyed] struct {
	ctx   context.Context
	sheet *sheet.Sheet[T]
	opts  Options[T]

	selected int
	mode     mode

	form        []textinput.Model
	formCols    []table.Column[T]
	focus       int
	draft       table.Draft
	fieldErrors map[string]string
	creating    bool
	deleteKey   string

	loadSeq int
	loading bool
	window  string
	width   int

	statusLine string
	errorLine  string
}

type mode uint8

const (
	modeNormal mode = iota
	modeEdit
	modeCreate
	modeConfirmDelete
)

type loadedMsg[T store.Keyed] struct {
	seq   int
	items []T
	err   error
}

type committedMsg[T store.Keyed] struct {
	ticket  edit.Ticket
	item    T
	message string
	err     error
}

type createdMsg[T store.Keyed] struct {
	item    T
	message string
	err     error
}

type deletedMsg struct {
	key     string
	message string
	err     error
}

// New creates a model over s. Rows are fetched by Init.
func New[T store.Keyed](ctx context.Context, s *sheet.Sheet[T], opts Options[T]) Model[T] {
	return Model[T]{
		ctx:        ctx,
		sheet:      s,
		opts:       opts,
		loadSeq:    1,
		loading:    true,
		window:     opts.Window,
		statusLine: "Loading...",
	}
}

// Init fetches the first rows.
func (m Model[T]) Init() tea.Cmd {
	return m.fetchCmd(m.loadSeq)
}

// Update wires state transitions from user input and async commands.
func (m Model[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case loadedMsg[T]:
		return m.handleLoaded(msg)
	case committedMsg[T]:
		return m.handleCommitted(msg)
	case createdMsg[T]:
		return m.handleCreated(msg)
	case deletedMsg:
		return m.handleDeleted(msg)
	default:
		return m, nil
	}
}

func (m Model[T]) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeEdit, modeCreate:
		return m.handleFormKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	}

	rows := m.sheet.Rows()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "down", "j":
		if m.selected < len(rows)-1 {
			m.selected++
		}
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "r":
		return m.reload()
	case "e", "enter":
		return m.beginEdit()
	case "a":
		return m.beginCreate()
	case "d":
		if len(rows) == 0 {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.deleteKey = rows[m.selected].Key()
		m.statusLine, m.errorLine = "", ""
	case "[", "]":
		if m.opts.Shift == nil {
			return m, nil
		}
		weeks := 1
		if msg.String() == "[" {
			weeks = -1
		}
		m.window = m.opts.Shift(weeks)
		return m.reload()
	}
	return m, nil
}

func (m Model[T]) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.mode == modeEdit {
			m.sheet.Cancel()
		}
		m = m.closeForm()
		m.statusLine, m.errorLine = "Cancelled.", ""
		return m, nil
	case "tab", "down":
		return m.moveFocus(1)
	case "shift+tab", "up":
		return m.moveFocus(-1)
	case "enter":
		if m.mode == modeEdit {
			return m.commit()
		}
		return m.submitCreate()
	}

	if len(m.form) == 0 || m.busy() {
		return m, nil
	}
	var cmd tea.Cmd
	m.form[m.focus], cmd = m.form[m.focus].Update(msg)
	field := m.formCols[m.focus].Field
	value := m.form[m.focus].Value()
	if m.mode == modeEdit {
		if err := m.sheet.UpdateField(field, value); err != nil {
			m.errorLine = err.Error()
		}
	} else {
		m.draft[field] = value
	}
	return m, cmd
}

func (m Model[T]) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "y", "Y":
		key := m.deleteKey
		m.mode = modeNormal
		m.deleteKey = ""
		m.statusLine, m.errorLine = "Deleting...", ""
		return m, m.deleteCmd(key)
	case "n", "N", "esc":
		m.mode = modeNormal
		m.deleteKey = ""
		m.statusLine, m.errorLine = "Delete cancelled.", ""
	}
	return m, nil
}

// busy reports whether the open form has a request in flight.
func (m Model[T]) busy() bool {
	if m.mode == modeEdit {
		return m.sheet.Session().Pending()
	}
	return m.creating
}

func (m Model[T]) beginEdit() (tea.Model, tea.Cmd) {
	rows := m.sheet.Rows()
	if len(rows) == 0 {
		return m, nil
	}
	key := rows[m.selected].Key()
	if !m.sheet.Begin(key) {
		return m, nil
	}
	m.mode = modeEdit
	m.statusLine, m.errorLine = "Editing. Tab moves between fields, Enter saves, Esc cancels.", ""
	return m.openForm(table.Editable(m.sheet.Columns()), m.sheet.Session().Draft())
}

func (m Model[T]) beginCreate() (tea.Model, tea.Cmd) {
	m.mode = modeCreate
	m.creating = false
	m.statusLine, m.errorLine = "New row. Tab moves between fields, Enter saves, Esc cancels.", ""
	return m.openForm(table.Editable(m.sheet.CreateColumns()), m.sheet.Blank())
}

func (m Model[T]) openForm(cols []table.Column[T], draft table.Draft) (tea.Model, tea.Cmd) {
	m.formCols = cols
	m.draft = draft
	m.fieldErrors = nil
	m.focus = 0
	m.form = make([]textinput.Model, len(cols))
	for i, c := range cols {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 40
		ti.SetValue(draft[c.Field])
		switch c.Input {
		case table.InputPassword:
			ti.EchoMode = textinput.EchoPassword
		case table.InputSelect:
			ti.Placeholder = strings.Join(c.Options, "|")
			ti.ShowSuggestions = true
			ti.SetSuggestions(c.Options)
		case table.InputDate:
			ti.Placeholder = "YYYY-MM-DD"
		}
		m.form[i] = ti
	}
	if len(m.form) == 0 {
		return m, nil
	}
	return m, m.form[0].Focus()
}

func (m Model[T]) closeForm() Model[T] {
	m.mode = modeNormal
	m.form = nil
	m.formCols = nil
	m.draft = nil
	m.fieldErrors = nil
	m.focus = 0
	m.creating = false
	return m
}

func (m Model[T]) moveFocus(delta int) (tea.Model, tea.Cmd) {
	if len(m.form) == 0 {
		return m, nil
	}
	m.form[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.form)) % len(m.form)
	return m, m.form[m.focus].Focus()
}

func (m Model[T]) commit() (tea.Model, tea.Cmd) {
	ticket, err := m.sheet.Session().Prepare()
	if err != nil {
		var verr *table.ValidationError
		switch {
		case errors.As(err, &verr):
			m.fieldErrors = verr.Fields
			m.errorLine = "Please fix the highlighted fields."
		case errors.Is(err, edit.ErrCommitPending):
			m.errorLine = "Save already in progress."
		default:
			m.errorLine = err.Error()
		}
		return m, nil
	}
	m.fieldErrors = nil
	m.statusLine, m.errorLine = "Saving...", ""
	return m, m.commitCmd(ticket)
}

func (m Model[T]) submitCreate() (tea.Model, tea.Cmd) {
	if m.creating {
		m.errorLine = "Save already in progress."
		return m, nil
	}
	if err := m.sheet.ValidateNew(m.draft); err != nil {
		var verr *table.ValidationError
		if errors.As(err, &verr) {
			m.fieldErrors = verr.Fields
			m.errorLine = "Please fix the highlighted fields."
			return m, nil
		}
		m.errorLine = err.Error()
		return m, nil
	}
	m.creating = true
	m.fieldErrors = nil
	m.statusLine, m.errorLine = "Saving...", ""
	return m, m.createCmd(m.draft.Clone())
}

func (m Model[T]) reload() (tea.Model, tea.Cmd) {
	m.loadSeq++
	m.loading = true
	m.statusLine, m.errorLine = "Refreshing...", ""
	return m, m.fetchCmd(m.loadSeq)
}

func (m Model[T]) handleLoaded(msg loadedMsg[T]) (tea.Model, tea.Cmd) {
	// Ignore answers to superseded fetches.
	if msg.seq != m.loadSeq {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.errorLine = failure("Failed to load: ", msg.err, "Press r to retry.")
		m.statusLine = ""
		return m, nil
	}
	m.sheet.Apply(msg.items)
	m.statusLine = fmt.Sprintf("Loaded %d row%s.", len(msg.items), plural(len(msg.items)))
	m.errorLine = ""
	if m.mode == modeEdit && m.sheet.Session().State() == edit.Idle {
		m = m.closeForm()
		m.statusLine += " The open edit was discarded."
	}
	m = m.clampSelection()
	return m, nil
}

func (m Model[T]) handleCommitted(msg committedMsg[T]) (tea.Model, tea.Cmd) {
	switch m.sheet.Session().Resolve(msg.ticket, msg.item, msg.err) {
	case edit.Applied:
		m = m.closeForm()
		m.statusLine, m.errorLine = notice(msg.message, "Saved."), ""
	case edit.Rejected:
		m.errorLine = failure("Save failed: ", msg.err, "Press Enter to retry.")
		m.statusLine = ""
	case edit.Stale:
		m.statusLine = "Ignored a late reply for an abandoned edit."
	}
	return m, nil
}

func (m Model[T]) handleCreated(msg createdMsg[T]) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.creating = false
		m.errorLine = failure("Add failed: ", msg.err, "Press Enter to retry.")
		m.statusLine = ""
		return m, nil
	}
	m.sheet.ApplyCreated(msg.item)
	if m.mode == modeCreate {
		m = m.closeForm()
	}
	m.statusLine, m.errorLine = notice(msg.message, "Added."), ""
	return m, nil
}

func (m Model[T]) handleDeleted(msg deletedMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, gateway.ErrNotFound):
		m.errorLine = "Already gone on the server. Press r to refresh."
		m.statusLine = ""
	case msg.err != nil:
		m.errorLine = failure("Delete failed: ", msg.err, "Press d to retry.")
		m.statusLine = ""
	default:
		m.sheet.ApplyDeleted(msg.key)
		if m.mode == modeEdit && m.sheet.Session().State() == edit.Idle {
			m = m.closeForm()
		}
		m = m.clampSelection()
		m.statusLine, m.errorLine = notice(msg.message, "Deleted."), ""
	}
	return m, nil
}

func (m Model[T]) clampSelection() Model[T] {
	n := len(m.sheet.Rows())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	return m
}

func (m Model[T]) fetchCmd(seq int) tea.Cmd {
	backend := m.sheet.Backend()
	ctx := m.ctx
	return func() tea.Msg {
		items, err := backend.Fetch(ctx)
		return loadedMsg[T]{seq: seq, items: items, err: err}
	}
}

func (m Model[T]) commitCmd(t edit.Ticket) tea.Cmd {
	update := m.sheet.Updater(t.Key)
	ctx := m.ctx
	return func() tea.Msg {
		item, message, err := update(ctx, t.Draft)
		return committedMsg[T]{ticket: t, item: item, message: message, err: err}
	}
}

func (m Model[T]) createCmd(d table.Draft) tea.Cmd {
	backend := m.sheet.Backend()
	ctx := m.ctx
	return func() tea.Msg {
		item, message, err := backend.Create(ctx, d)
		return createdMsg[T]{item: item, message: message, err: err}
	}
}

func (m Model[T]) deleteCmd(key string) tea.Cmd {
	backend := m.sheet.Backend()
	ctx := m.ctx
	return func() tea.Msg {
		message, err := backend.Delete(ctx, key)
		return deletedMsg{key: key, message: message, err: err}
	}
}

func notice(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}

// failure renders err after prefix and appends retry when repeating the
// request may help.
func failure(prefix string, err error, retry string) string {
	line := prefix + gateway.Message(err)
	if gateway.IsRetryable(err) {
		line += " " + retry
	}
	return line
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
