package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/shopinsight/shopinsight/internal/export"
	"github.com/shopinsight/shopinsight/internal/llm"
	"github.com/shopinsight/shopinsight/internal/session"
	"go.uber.org/zap"
)

type command struct {
	name  string
	usage string
	help  string
	run   func(m *Model, args []string) tea.Cmd
}

// commands is ordered as shown by /help. It is filled in init since /help
// refers back to it.
var commands []command

func init() {
	commands = []command{
		{"help", "/help", "show available commands", (*Model).cmdHelp},
		{"load", "/load <path>", "analyze a CSV, JSON, XLSX or XLS file", (*Model).cmdLoad},
		{"reload", "/reload", "reload the default product data", (*Model).cmdReload},
		{"context", "/context", "show the summary sent to the model", (*Model).cmdContext},
		{"stats", "/stats", "show category counts and price statistics", (*Model).cmdStats},
		{"suggest", "/suggest [n]", "show suggested questions", (*Model).cmdSuggest},
		{"model", "/model [name]", "show or switch the model", (*Model).cmdModel},
		{"models", "/models", "list available models", (*Model).cmdModels},
		{"prompt", "/prompt [text]", "show or set the system prompt", (*Model).cmdPrompt},
		{"export", "/export csv|pdf <path>", "save the conversation", (*Model).cmdExport},
		{"copy", "/copy", "copy the last answer to the clipboard", (*Model).cmdCopy},
		{"clear", "/clear", "clear the conversation", (*Model).cmdClear},
		{"exit", "/exit", "quit", (*Model).cmdExit},
	}
}

var errUnknownCommand = errors.New("unknown command")

// parseCommand splits "/name arg1 arg2" into its name and arguments.
func parseCommand(line string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (m *Model) runCommand(line string) tea.Cmd {
	name, args := parseCommand(line)
	if name == "quit" {
		name = "exit"
	}
	cmd, ok := lo.Find(commands, func(c command) bool { return c.name == name })
	if !ok {
		m.addError(fmt.Errorf("%w /%s, type /help for a list", errUnknownCommand, name))
		return nil
	}
	m.logger.Debug("running command", zap.String("command", name), zap.Strings("args", args))
	return cmd.run(m, args)
}

func (m *Model) cmdHelp(_ []string) tea.Cmd {
	width := lo.Max(lo.Map(commands, func(c command, _ int) int { return len(c.usage) }))
	var b strings.Builder
	for _, c := range commands {
		b.WriteString(fmt.Sprintf("%-*s  %s\n", width, c.usage, DimStyle.Render(c.help)))
	}
	b.WriteString(DimStyle.Render("anything else is asked as a question"))
	m.addSystem(b.String())
	return nil
}

func (m *Model) cmdLoad(args []string) tea.Cmd {
	if len(args) == 0 {
		m.addError(errors.New("usage: /load <path>"))
		return nil
	}
	path := strings.Join(args, " ")
	table, err := catalog.LoadFile(path)
	if errors.Is(err, catalog.ErrUnsupportedFormat) {
		m.addError(fmt.Errorf("unsupported file format: %s", filepath.Base(path)))
		return nil
	}
	if err != nil {
		m.addError(err)
		return nil
	}
	m.session.SetCatalog(filepath.Base(path), table)
	m.logger.Info("catalog loaded", zap.String("path", path), zap.Int("rows", m.session.Catalog.Len()))
	m.addSuccess(fmt.Sprintf("loaded %s", m.catalogLabel()))
	m.addSystem(m.session.Context)
	return nil
}

func (m *Model) cmdReload(_ []string) tea.Cmd {
	m.loadDefaultCatalog()
	m.addSuccess(fmt.Sprintf("reloaded %s", m.catalogLabel()))
	m.addSystem(m.session.Context)
	return nil
}

func (m *Model) cmdContext(_ []string) tea.Cmd {
	if m.session.Context == "" {
		m.addSystem("no catalog loaded")
		return nil
	}
	m.addSystem(llm.ContextPrefix + m.session.Context)
	return nil
}

func (m *Model) cmdStats(_ []string) tea.Cmd {
	if m.session.Catalog.Len() == 0 {
		m.addSystem("no catalog loaded")
		return nil
	}
	m.addSystem(strings.TrimRight(RenderDescription(catalog.Describe(m.session.Catalog)), "\n"))
	return nil
}

func (m *Model) cmdSuggest(args []string) tea.Cmd {
	n := 0
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			m.addError(fmt.Errorf("invalid count %q", args[0]))
			return nil
		}
		n = v
	}
	lines := lo.Map(llm.Suggestions(n), func(q string, i int) string {
		return fmt.Sprintf("%d. %s", i+1, q)
	})
	lines = append(lines, DimStyle.Render("press Tab on an empty line to fill in a suggestion"))
	m.addSystem(strings.Join(lines, "\n"))
	return nil
}

func (m *Model) cmdModel(args []string) tea.Cmd {
	if len(args) == 0 {
		m.addSystem("model: " + m.session.Model)
		return nil
	}
	model, err := llm.ResolveModel(strings.Join(args, " "), m.models)
	if err != nil {
		m.addError(err)
		return nil
	}
	m.session.Model = model
	m.indicator.SetLabel(model)
	m.addSuccess("switched to " + model)
	return nil
}

func (m *Model) cmdModels(_ []string) tea.Cmd {
	lines := lo.Map(m.models, func(name string, _ int) string {
		if name == m.session.Model {
			return StyledSymbol(SymbolAssistant) + " " + name
		}
		return "  " + name
	})
	m.addSystem(strings.Join(lines, "\n"))
	return nil
}

func (m *Model) cmdPrompt(args []string) tea.Cmd {
	if len(args) == 0 {
		m.addSystem("system prompt: " + m.session.SystemPrompt)
		return nil
	}
	m.session.SystemPrompt = strings.Join(args, " ")
	m.addSuccess("system prompt updated")
	return nil
}

func (m *Model) cmdExport(args []string) tea.Cmd {
	if len(args) < 2 {
		m.addError(errors.New("usage: /export csv|pdf <path>"))
		return nil
	}
	format, err := export.ParseFormat(args[0])
	if err != nil {
		m.addError(err)
		return nil
	}
	transcript := m.session.Transcript()
	if len(transcript) == 0 {
		m.addSystem("nothing to export yet")
		return nil
	}

	path := strings.Join(args[1:], " ")
	if err := writeExport(path, format, transcript); err != nil {
		m.addError(err)
		return nil
	}
	m.addSuccess(fmt.Sprintf("exported %d messages to %s", len(transcript), path))
	return nil
}

func writeExport(path string, format export.Format, transcript []session.Message) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.Write(f, format, transcript)
}

func (m *Model) cmdCopy(_ []string) tea.Cmd {
	last, _, ok := lo.FindLastIndexOf(m.session.History, func(msg session.Message) bool {
		return msg.Role == session.RoleAssistant
	})
	if !ok {
		m.addSystem("no answer to copy yet")
		return nil
	}
	if err := m.copyToClipboard(last.Content); err != nil {
		m.addError(fmt.Errorf("failed to copy: %w", err))
		return nil
	}
	m.addSuccess("copied the last answer to the clipboard")
	return nil
}

func (m *Model) cmdClear(_ []string) tea.Cmd {
	m.session.Reset()
	m.entries = nil
	m.indicator.SetStatus(AskStatusIdle)
	return nil
}

func (m *Model) cmdExit(_ []string) tea.Cmd {
	m.quitting = true
	return tea.Quit
}
