package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/shopinsight/shopinsight/internal/llm"
	"github.com/shopinsight/shopinsight/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	answer    string
	err       error
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, s *session.Session, question string) (string, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return "", f.err
	}
	s.Append(session.RoleUser, question)
	s.Append(session.RoleAssistant, f.answer)
	return f.answer, nil
}

func fixtureCatalog() (string, *catalog.Table, error) {
	return "products.json", catalog.NewTable([]map[string]any{
		{"title": "shirt", "category": "A", "price": 10.0, "rating": map[string]any{"rate": 4.0, "count": 2.0}},
		{"title": "coat", "category": "A", "price": 20.0, "rating": map[string]any{"rate": 5.0, "count": 1.0}},
		{"title": "ring", "category": "B", "price": 5.0, "rating": map[string]any{"rate": 3.0, "count": 7.0}},
	}), nil
}

type testModel struct {
	*Model
	copied string
}

func newTestModel(t *testing.T, asker Asker) *testModel {
	t.Helper()
	tm := &testModel{}
	sess := session.New(session.Options{Model: "gpt-4o", SystemPrompt: "You are a helpful business assistant."})
	tm.Model = New(Options{
		Session:        sess,
		Asker:          asker,
		DefaultCatalog: fixtureCatalog,
		Models:         []string{"gpt-4o", "gpt-4", "gpt-3.5-turbo"},
		Version:        "1.2.3",
		Clipboard: func(s string) error {
			tm.copied = s
			return nil
		},
	})
	tm.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return tm
}

// enter types line and presses Enter, returning the resulting command.
func (tm *testModel) enter(line string) tea.Cmd {
	tm.input.SetValue(line)
	_, cmd := tm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

// deliver runs cmd and feeds any answer back into the model.
func (tm *testModel) deliver(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if answer, ok := c().(answerMsg); ok {
				tm.Update(answer)
			}
		}
	case answerMsg:
		tm.Update(msg)
	}
}

func (tm *testModel) lastEntry() entry {
	if len(tm.entries) == 0 {
		return entry{}
	}
	return tm.entries[len(tm.entries)-1]
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs []string
	}{
		{"/help", "help", []string{}},
		{"  /Export csv out.csv ", "export", []string{"csv", "out.csv"}},
		{"/", "", nil},
		{"/prompt be brief", "prompt", []string{"be", "brief"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, args := parseCommand(tt.line)
			assert.Equal(t, tt.wantName, name)
			if tt.wantArgs == nil {
				assert.Nil(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestNew_LoadsDefaultCatalog(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{})

	assert.Equal(t, "products.json", tm.Session().CatalogName)
	assert.Equal(t, 3, tm.Session().Catalog.Len())
	assert.Contains(t, tm.Session().Context, "- A: 2 items, Average Price: $15.0, Average Rating: 4.5")
	assert.Equal(t, "products.json (3 items)", tm.catalogLabel())

	info := tm.welcomeInfo()
	assert.Equal(t, 3, info.Items)
	assert.Equal(t, 2, info.Categories)
	assert.Equal(t, "gpt-4o", info.Model)
}

func TestNew_DefaultCatalogFailure(t *testing.T) {
	m := New(Options{
		Session: session.New(session.Options{Model: "gpt-4o"}),
		DefaultCatalog: func() (string, *catalog.Table, error) {
			return "", nil, errors.New("snapshot missing")
		},
	})

	assert.Equal(t, 0, m.Session().Catalog.Len())
	require.Len(t, m.entries, 1)
	assert.Equal(t, entryError, m.entries[0].kind)
	assert.Contains(t, m.entries[0].text, "snapshot missing")
}

func TestNew_KeepsExistingCatalog(t *testing.T) {
	sess := session.New(session.Options{Model: "gpt-4o"})
	_, table, _ := fixtureCatalog()
	sess.SetCatalog("mine.csv", table)

	called := false
	m := New(Options{
		Session: sess,
		DefaultCatalog: func() (string, *catalog.Table, error) {
			called = true
			return "", &catalog.Table{}, nil
		},
	})

	assert.False(t, called)
	assert.Equal(t, "mine.csv", m.Session().CatalogName)
}

func TestAsk_Success(t *testing.T) {
	asker := &fakeAsker{answer: "Category A is the most expensive."}
	tm := newTestModel(t, asker)

	cmd := tm.enter("Which category is the most expensive?")
	require.NotNil(t, cmd)
	assert.True(t, tm.inFlight)
	assert.Equal(t, AskStatusInFlight, tm.indicator.Status())
	assert.Empty(t, tm.Session().History, "live session is untouched until the answer arrives")

	tm.deliver(cmd)

	assert.False(t, tm.inFlight)
	assert.Equal(t, AskStatusSuccess, tm.indicator.Status())
	assert.Equal(t, []string{"Which category is the most expensive?"}, asker.questions)
	assert.Equal(t, []session.Message{
		{Role: session.RoleUser, Content: "Which category is the most expensive?"},
		{Role: session.RoleAssistant, Content: "Category A is the most expensive."},
	}, tm.Session().Transcript())
	assert.Equal(t, entry{kind: entryAssistant, text: "Category A is the most expensive."}, tm.lastEntry())
}

func TestAsk_Failure(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{err: errors.New("rate limited")})

	tm.deliver(tm.enter("hello"))

	assert.Equal(t, AskStatusError, tm.indicator.Status())
	assert.Empty(t, tm.Session().History)
	assert.Equal(t, entryError, tm.lastEntry().kind)
	assert.Contains(t, tm.lastEntry().text, "rate limited")
}

func TestAsk_Cancelled(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{err: context.Canceled})

	tm.deliver(tm.enter("hello"))

	assert.Equal(t, "question cancelled", tm.lastEntry().text)
}

func TestAsk_RejectsWhileInFlight(t *testing.T) {
	asker := &fakeAsker{answer: "ok"}
	tm := newTestModel(t, asker)

	first := tm.enter("first")
	require.NotNil(t, first)
	assert.Nil(t, tm.enter("second"))
	assert.Equal(t, errBusy.Error(), tm.lastEntry().text)

	tm.deliver(first)
	assert.Equal(t, []string{"first"}, asker.questions)
}

func TestAsk_KeepsSettingsChangedWhileInFlight(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{answer: "ok"})

	cmd := tm.enter("first")
	tm.enter("/model gpt-4")
	tm.deliver(cmd)

	assert.Equal(t, "gpt-4", tm.Session().Model)
	assert.Len(t, tm.Session().History, 2)
}

func TestEnter_EmptyLineIsIgnored(t *testing.T) {
	asker := &fakeAsker{}
	tm := newTestModel(t, asker)
	before := len(tm.entries)

	assert.Nil(t, tm.enter("   "))
	assert.Len(t, tm.entries, before)
	assert.Empty(t, asker.questions)
}

func TestTab_FillsSuggestions(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{})

	tm.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, llm.SuggestedQuestions[0], tm.input.Value())

	tm.input.Reset()
	tm.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, llm.SuggestedQuestions[1], tm.input.Value())

	// a non-empty line is left alone
	tm.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, llm.SuggestedQuestions[1], tm.input.Value())
}

func TestCommands(t *testing.T) {
	t.Run("unknown", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/frobnicate")
		assert.Equal(t, entryError, tm.lastEntry().kind)
		assert.Contains(t, tm.lastEntry().text, "unknown command /frobnicate")
	})

	t.Run("help lists every command", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/help")
		for _, c := range commands {
			assert.Contains(t, tm.lastEntry().text, c.usage)
		}
	})

	t.Run("context", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/context")
		assert.True(t, strings.HasPrefix(tm.lastEntry().text, llm.ContextPrefix+catalog.SummaryHeader))
	})

	t.Run("stats", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/stats")
		assert.Contains(t, tm.lastEntry().text, "Category counts")
		assert.Contains(t, tm.lastEntry().text, "Price statistics")
	})

	t.Run("suggest", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/suggest 2")
		text := tm.lastEntry().text
		assert.Contains(t, text, "1. "+llm.SuggestedQuestions[0])
		assert.Contains(t, text, "2. "+llm.SuggestedQuestions[1])
		assert.NotContains(t, text, llm.SuggestedQuestions[2])

		tm.enter("/suggest zero")
		assert.Equal(t, entryError, tm.lastEntry().kind)
	})

	t.Run("model", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/model")
		assert.Equal(t, "model: gpt-4o", tm.lastEntry().text)

		tm.enter("/model 35turbo")
		assert.Equal(t, "gpt-3.5-turbo", tm.Session().Model)
		assert.Equal(t, entrySuccess, tm.lastEntry().kind)
		assert.Contains(t, tm.indicator.View(), "gpt-3.5-turbo:")

		tm.enter("/model qqq")
		assert.Equal(t, entryError, tm.lastEntry().kind)
		assert.Equal(t, "gpt-3.5-turbo", tm.Session().Model)
	})

	t.Run("models marks the current one", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/models")
		lines := strings.Split(tm.lastEntry().text, "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], SymbolAssistant+" gpt-4o")
		assert.Equal(t, "  gpt-4", lines[1])
	})

	t.Run("prompt", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/prompt Answer in one sentence.")
		assert.Equal(t, "Answer in one sentence.", tm.Session().SystemPrompt)
		tm.enter("/prompt")
		assert.Equal(t, "system prompt: Answer in one sentence.", tm.lastEntry().text)
	})

	t.Run("copy", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{answer: "Jewelery."})
		tm.enter("/copy")
		assert.Equal(t, "no answer to copy yet", tm.lastEntry().text)

		tm.deliver(tm.enter("which?"))
		tm.enter("/copy")
		assert.Equal(t, "Jewelery.", tm.copied)
		assert.Equal(t, entrySuccess, tm.lastEntry().kind)
	})

	t.Run("clear", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{answer: "ok"})
		tm.deliver(tm.enter("q"))
		tm.enter("/clear")
		assert.Empty(t, tm.entries)
		assert.Empty(t, tm.Session().History)
		assert.Equal(t, "products.json", tm.Session().CatalogName)
		assert.Equal(t, AskStatusIdle, tm.indicator.Status())
	})

	t.Run("exit", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		cmd := tm.enter("/exit")
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, tm.View())
	})
}

func TestCommandLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("csv", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		path := filepath.Join(dir, "shop.csv")
		require.NoError(t, os.WriteFile(path, []byte("product_category,price,average_rating\nB,5,3\nB,7,4\n"), 0o644))

		tm.enter("/load " + path)

		assert.Equal(t, "shop.csv", tm.Session().CatalogName)
		assert.Contains(t, tm.Session().Context, "- B: 2 items, Average Price: $6.0, Average Rating: 3.5")
		assert.Equal(t, tm.Session().Context, tm.lastEntry().text)
	})

	t.Run("unsupported", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

		tm.enter("/load " + path)

		assert.Equal(t, "unsupported file format: notes.txt", tm.lastEntry().text)
		assert.Equal(t, "products.json", tm.Session().CatalogName)
	})

	t.Run("missing file", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		tm.enter("/load " + filepath.Join(dir, "nope.json"))
		assert.Equal(t, entryError, tm.lastEntry().kind)
	})

	t.Run("reload", func(t *testing.T) {
		tm := newTestModel(t, &fakeAsker{})
		path := filepath.Join(dir, "shop.csv")
		require.NoError(t, os.WriteFile(path, []byte("category,price\nC,1\n"), 0o644))
		tm.enter("/load " + path)
		tm.enter("/reload")
		assert.Equal(t, "products.json", tm.Session().CatalogName)
	})
}

func TestCommandExport(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{answer: "Electronics"})
	path := filepath.Join(t.TempDir(), "chat.csv")

	tm.enter("/export csv " + path)
	assert.Equal(t, "nothing to export yet", tm.lastEntry().text)

	tm.deliver(tm.enter("best seller?"))
	tm.enter("/export csv " + path)
	assert.Equal(t, entrySuccess, tm.lastEntry().kind)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "role,content\nuser,best seller?\nassistant,Electronics\n", string(data))

	tm.enter("/export docx " + path)
	assert.Equal(t, entryError, tm.lastEntry().kind)

	tm.enter("/export csv")
	assert.Equal(t, "usage: /export csv|pdf <path>", tm.lastEntry().text)
}

func TestView(t *testing.T) {
	tm := newTestModel(t, &fakeAsker{})
	view := tm.View()
	assert.Contains(t, view, "Shop Insight")
	assert.Contains(t, view, "products.json (3 items)")
	assert.Contains(t, view, "gpt-4o:")

	assert.Equal(t, "loading...", New(Options{DefaultCatalog: fixtureCatalog}).View())
}

func TestRenderEntry_WrapsLongText(t *testing.T) {
	text := strings.Repeat("word ", 30)
	out := renderEntry(entry{kind: entryAssistant, text: text}, 40)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Greater(t, len(lines), 1)
	assert.True(t, strings.HasPrefix(lines[1], "  "))
}
