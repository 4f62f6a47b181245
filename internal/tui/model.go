package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/shopinsight/shopinsight/internal/llm"
	"github.com/shopinsight/shopinsight/internal/session"
	"go.uber.org/zap"
)

// Asker answers a question about the session's catalog.
type Asker interface {
	Ask(ctx context.Context, s *session.Session, question string) (string, error)
}

// CatalogSource loads the default catalog and returns its display name.
type CatalogSource func() (string, *catalog.Table, error)

type Options struct {
	Session        *session.Session
	Asker          Asker
	DefaultCatalog CatalogSource
	Models         []string
	Version        string
	LatestVersion  string
	Logger         *zap.Logger

	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
}

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entrySystem
	entrySuccess
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// answerMsg carries the result of a question asked on a copy of the session.
type answerMsg struct {
	session *session.Session
	answer  string
	err     error
}

var errBusy = errors.New("still waiting for the previous answer, press Esc to cancel it")

// statusHeight is the number of lines below the viewport.
const statusHeight = 2

// Model is the bubbletea model of the dashboard.
type Model struct {
	session        *session.Session
	asker          Asker
	defaultCatalog CatalogSource
	models         []string
	version        string
	latestVersion  string
	logger         *zap.Logger
	clipboard      func(string) error

	input     textinput.Model
	viewport  viewport.Model
	indicator AskIndicator

	entries       []entry
	width         int
	ready         bool
	inFlight      bool
	cancelAsk     context.CancelFunc
	nextSuggested int
	quitting      bool
}

// New creates the dashboard model. When the session has no catalog yet the
// default catalog is loaded.
func New(opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	sess := opts.Session
	if sess == nil {
		sess = session.New(session.Options{})
	}

	input := textinput.New()
	input.Prompt = StyledSymbol(SymbolUser) + " "
	input.Placeholder = "ask about your products, or /help"
	input.Focus()

	m := &Model{
		session:        sess,
		asker:          opts.Asker,
		defaultCatalog: opts.DefaultCatalog,
		models:         opts.Models,
		version:        opts.Version,
		latestVersion:  opts.LatestVersion,
		logger:         logger,
		clipboard:      copyFn,
		input:          input,
		indicator:      NewAskIndicator(sess.Model),
	}
	if sess.Catalog == nil {
		m.loadDefaultCatalog()
	}
	return m
}

// Run starts the dashboard and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Session returns the dashboard's session.
func (m *Model) Session() *session.Session {
	return m.session
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		return m, m.indicator.Update(msg)

	case answerMsg:
		m.handleAnswer(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.cancelInFlight()
		m.quitting = true
		return tea.Quit
	case tea.KeyEsc:
		if m.inFlight {
			m.cancelInFlight()
		}
		return nil
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyTab:
		if m.input.Value() == "" {
			m.fillSuggestion()
		}
		return nil
	case tea.KeyPgUp:
		m.viewport.ViewUp()
		return nil
	case tea.KeyPgDown:
		m.viewport.ViewDown()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "/") {
		cmd := m.runCommand(line)
		m.refresh()
		return cmd
	}

	if m.inFlight {
		m.addError(errBusy)
		return nil
	}
	if m.asker == nil {
		m.addError(errors.New("no language model configured"))
		return nil
	}

	m.addUser(line)
	m.inFlight = true
	m.indicator.SetStatus(AskStatusInFlight)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelAsk = cancel
	return tea.Batch(m.ask(ctx, m.session.Clone(), line), m.indicator.Tick)
}

// ask runs on a copy of the session so the live one is only modified on the
// event loop.
func (m *Model) ask(ctx context.Context, s *session.Session, question string) tea.Cmd {
	asker := m.asker
	return func() tea.Msg {
		answer, err := asker.Ask(ctx, s, question)
		return answerMsg{session: s, answer: answer, err: err}
	}
}

func (m *Model) handleAnswer(msg answerMsg) {
	m.inFlight = false
	m.cancelInFlight()

	if msg.err != nil {
		m.indicator.SetStatus(AskStatusError)
		if errors.Is(msg.err, context.Canceled) {
			m.addError(errors.New("question cancelled"))
			return
		}
		m.logger.Warn("question failed", zap.String("session", m.session.ID), zap.Error(msg.err))
		m.addError(msg.err)
		return
	}

	// commands may have changed the live session meanwhile, so only the new
	// turn is carried over
	if h := msg.session.History; len(h) >= 2 {
		for _, turn := range h[len(h)-2:] {
			m.session.Append(turn.Role, turn.Content)
		}
	}
	m.indicator.SetStatus(AskStatusSuccess)
	m.addAssistant(msg.answer)
}

func (m *Model) cancelInFlight() {
	if m.cancelAsk != nil {
		m.cancelAsk()
		m.cancelAsk = nil
	}
}

func (m *Model) fillSuggestion() {
	suggestions := llm.Suggestions(0)
	m.input.SetValue(suggestions[m.nextSuggested%len(suggestions)])
	m.input.CursorEnd()
	m.nextSuggested++
}

func (m *Model) loadDefaultCatalog() {
	if m.defaultCatalog == nil {
		m.session.SetCatalog("", &catalog.Table{})
		return
	}
	name, table, err := m.defaultCatalog()
	if err != nil {
		m.logger.Warn("failed to load default catalog", zap.Error(err))
		m.addError(fmt.Errorf("failed to load default catalog: %w", err))
		m.session.SetCatalog("", &catalog.Table{})
		return
	}
	m.session.SetCatalog(name, table)
}

func (m *Model) copyToClipboard(s string) error {
	return m.clipboard(s)
}

func (m *Model) catalogLabel() string {
	name := m.session.CatalogName
	if name == "" {
		name = "empty catalog"
	}
	return fmt.Sprintf("%s (%d items)", name, m.session.Catalog.Len())
}

func (m *Model) welcomeInfo() WelcomeInfo {
	return WelcomeInfo{
		Version:       m.version,
		LatestVersion: m.latestVersion,
		Model:         m.session.Model,
		Catalog:       m.session.CatalogName,
		Items:         m.session.Catalog.Len(),
		Categories:    len(catalog.Describe(m.session.Catalog).CategoryCounts),
	}
}

func (m *Model) addUser(text string)      { m.add(entryUser, text) }
func (m *Model) addAssistant(text string) { m.add(entryAssistant, text) }
func (m *Model) addSystem(text string)    { m.add(entrySystem, text) }
func (m *Model) addSuccess(text string)   { m.add(entrySuccess, text) }
func (m *Model) addError(err error)       { m.add(entryError, err.Error()) }

func (m *Model) add(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width = width
	vpHeight := max(height-statusHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = max(width-4, 10)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoBottom()
}

func (m *Model) renderContent() string {
	var b strings.Builder
	b.WriteString(renderWelcome(m.welcomeInfo(), m.width))
	for _, e := range m.entries {
		b.WriteString("\n")
		b.WriteString(renderEntry(e, m.width))
	}
	return b.String()
}

// renderEntry wraps text to the terminal width and hangs it off a symbol.
func renderEntry(e entry, width int) string {
	symbol, style := SymbolSystemMessage, SystemMessageStyle
	switch e.kind {
	case entryUser:
		symbol, style = SymbolUser, UserStyle
	case entryAssistant:
		symbol, style = SymbolAssistant, AssistantStyle.UnsetForeground()
	case entrySuccess:
		symbol, style = SymbolSuccess, SuccessStyle.UnsetForeground()
	case entryError:
		symbol, style = SymbolError, ErrorStyle
	}

	text := e.text
	if width > 4 {
		text = wordwrap.String(text, width-2)
	}
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString(StyledSymbol(symbol) + " ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(style.Render(line) + "\n")
	}
	return b.String()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	status := m.indicator.View() + "  " + DimStyle.Render(m.catalogLabel()+" · /help · PgUp/PgDn to scroll")
	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}
