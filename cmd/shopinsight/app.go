package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
	"github.com/shopinsight/shopinsight/internal/appupdate"
	"github.com/shopinsight/shopinsight/internal/catalog"
	"github.com/shopinsight/shopinsight/internal/config"
	"github.com/shopinsight/shopinsight/internal/core"
	"github.com/shopinsight/shopinsight/internal/export"
	"github.com/shopinsight/shopinsight/internal/fetcher"
	"github.com/shopinsight/shopinsight/internal/filesystem"
	"github.com/shopinsight/shopinsight/internal/history"
	"github.com/shopinsight/shopinsight/internal/llm"
	"github.com/shopinsight/shopinsight/internal/server"
	"github.com/shopinsight/shopinsight/internal/session"
	"github.com/shopinsight/shopinsight/internal/styles"
	"github.com/shopinsight/shopinsight/internal/tui"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var errUnknownCommand = errors.New("unknown command")

// app carries everything the subcommands share.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	version    string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	httpClient *http.Client
	history    *history.HistoryManager
	updater    appupdate.Updater
	fs         filesystem.FileSystem

	// completer replaces the OpenAI client when set
	completer llm.ChatCompleter
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.runChat(ctx)
	}

	switch args[0] {
	case "fetch":
		return a.runFetch(ctx, args[1:])
	case "summary":
		return a.runSummary(args[1:])
	case "ask":
		return a.runAsk(ctx, args[1:])
	case "serve":
		return a.runServe(ctx, args[1:])
	case "history":
		return a.runHistory(args[1:])
	case "export":
		return a.runExport(args[1:])
	case "update":
		return a.runUpdate(ctx)
	default:
		return fmt.Errorf("%w %q, run shopinsight -h for usage", errUnknownCommand, args[0])
	}
}

func (a *app) newLLMClient() *llm.Client {
	var client *llm.Client
	if a.completer != nil {
		client = llm.NewClientWithCompleter(a.completer, a.logger)
	} else {
		client = llm.NewClient(llm.Config{
			APIKey:  a.cfg.LLM.APIKey,
			BaseURL: a.cfg.LLM.BaseURL,
			Timeout: a.cfg.LLM.Timeout,
		}, a.logger)
	}
	if a.history != nil {
		client = client.WithRecorder(a.history)
	}
	return client
}

func (a *app) newSession() *session.Session {
	return session.New(session.Options{
		Model:        a.cfg.LLM.Model,
		SystemPrompt: a.cfg.LLM.SystemPrompt,
	})
}

func (a *app) snapshotPath() string {
	if a.cfg.Catalog.SnapshotPath != "" {
		return a.cfg.Catalog.SnapshotPath
	}
	return core.CatalogFile()
}

// defaultCatalog loads the fetched product snapshot.
func (a *app) defaultCatalog() (string, *catalog.Table, error) {
	path := a.snapshotPath()
	t, err := fetcher.LoadSnapshot(path)
	if err != nil {
		return "", nil, fmt.Errorf("%w (run shopinsight fetch first)", err)
	}
	return filepath.Base(path), t, nil
}

// loadCatalog loads file, or the default catalog when file is empty.
func (a *app) loadCatalog(file string) (string, *catalog.Table, error) {
	if file == "" {
		return a.defaultCatalog()
	}
	t, err := catalog.LoadFile(file)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(file), t, nil
}

func (a *app) isTerminal() bool {
	f, ok := a.stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// runChat starts the dashboard on a terminal, otherwise answers one question
// per input line.
func (a *app) runChat(ctx context.Context) error {
	sess := a.newSession()
	client := a.newLLMClient()

	if a.isTerminal() {
		opts := tui.Options{
			Session:        sess,
			Asker:          client,
			DefaultCatalog: a.defaultCatalog,
			Models:         a.cfg.LLM.Models,
			Version:        a.version,
			LatestVersion:  appupdate.LatestKnownVersion(a.version, a.fs),
			Logger:         a.logger,
		}
		if err := tui.Run(ctx, opts); err != nil {
			return err
		}
		if len(sess.History) > 0 && a.history != nil {
			fmt.Fprintln(a.stderr, styles.LOG("conversation saved as session "+sess.ID))
		}
		return nil
	}

	name, table, err := a.defaultCatalog()
	if err != nil {
		a.logger.Warn("failed to load default catalog", zap.Error(err))
		fmt.Fprintln(a.stderr, styles.ERROR(err.Error()))
		table = &catalog.Table{}
	}
	sess.SetCatalog(name, table)

	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		answer, err := client.Ask(ctx, sess, question)
		if err != nil {
			fmt.Fprintln(a.stderr, styles.ERROR(err.Error()))
			continue
		}
		fmt.Fprintln(a.stdout, styles.ANSWER(answer))
	}
	return scanner.Err()
}

func (a *app) runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	url := fs.String("url", a.cfg.Catalog.SourceURL, "product API to download")
	out := fs.String("o", a.snapshotPath(), "where to save the snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := fetcher.New(a.httpClient, a.logger).FetchAndSave(ctx, *url, *out)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, styles.SUCCESS(fmt.Sprintf("saved %s products to %s", humanize.Comma(int64(n)), *out)))
	return nil
}

func (a *app) runSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := fs.Arg(0)
	if path == "" {
		path = a.snapshotPath()
	}
	raw, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	shape := catalog.DetectRatingShape(raw)
	table := catalog.Normalize(raw)

	fmt.Fprintln(a.stdout, styles.TITLE(filepath.Base(path)))
	fmt.Fprintf(a.stdout, "%s rows, rating shape: %s\n\n", humanize.Comma(int64(table.Len())), shape)
	fmt.Fprintln(a.stdout, tui.RenderDescription(catalog.Describe(table)))
	fmt.Fprintln(a.stdout, catalog.GenerateContext(table))
	return nil
}

func (a *app) runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	file := fs.String("file", "", "catalog file to ask about (default: the fetched snapshot)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return llm.ErrEmptyQuestion
	}

	name, table, err := a.loadCatalog(*file)
	if err != nil {
		return err
	}
	sess := a.newSession()
	sess.SetCatalog(name, table)

	answer, err := a.newLLMClient().Ask(ctx, sess, question)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, styles.ANSWER(answer))
	return nil
}

func (a *app) newSessionStore(ctx context.Context) (session.Store, func(), error) {
	if a.cfg.Sessions.Store != "redis" {
		return session.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Sessions.RedisAddr,
		Password: a.cfg.Sessions.RedisPassword,
		DB:       a.cfg.Sessions.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.Sessions.RedisAddr, err)
	}
	return session.NewRedisStore(client, a.cfg.Sessions.TTL), func() { client.Close() }, nil
}

func (a *app) newServer(store session.Store) *server.Server {
	return server.New(server.Options{
		Store:          store,
		Asker:          a.newLLMClient(),
		DefaultCatalog: a.defaultCatalog,
		Models:         a.cfg.LLM.Models,
		DefaultModel:   a.cfg.LLM.Model,
		SystemPrompt:   a.cfg.LLM.SystemPrompt,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		Logger:         a.logger,
		Debug:          a.version == "dev",
	})
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	addr := fs.String("addr", a.cfg.Server.Addr, "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeStore, err := a.newSessionStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Fprintln(a.stderr, styles.LOG(fmt.Sprintf("listening on %s with %s sessions", *addr, a.cfg.Sessions.Store)))
	return a.newServer(store).Run(ctx, *addr)
}

func (a *app) requireHistory() error {
	if a.history == nil {
		return errors.New("chat history is disabled")
	}
	return nil
}

func (a *app) runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	limit := fs.Int("n", 10, "number of results")
	search := fs.String("search", "", "show messages containing this text")
	tail := fs.Bool("tail", false, "show the latest messages across all sessions")
	del := fs.String("delete", "", "delete a recorded session")
	reset := fs.Bool("reset", false, "delete all recorded history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireHistory(); err != nil {
		return err
	}

	switch {
	case *reset:
		if err := a.history.ResetHistory(); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, styles.SUCCESS("history cleared"))
		return nil

	case *del != "":
		if err := a.history.DeleteSession(*del); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, styles.SUCCESS("deleted session "+*del))
		return nil

	case *search != "":
		entries, err := a.history.SearchHistory(*search, *limit)
		if err != nil {
			return err
		}
		a.printEntries(entries)
		return nil

	case *tail:
		entries, err := a.history.RecentEntries(*limit)
		if err != nil {
			return err
		}
		a.printEntries(entries)
		return nil
	}

	sessions, err := a.history.RecentSessions(*limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.stdout, "no conversations recorded yet")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(a.stdout, "%s  %d messages  %s\n", s.SessionID, s.MessageCount, humanize.Time(s.LastActivity))
	}
	return nil
}

func (a *app) printEntries(entries []history.ChatEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "no messages found")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(a.stdout, "%s [%s] %s: %s\n", styles.LOG(e.SessionID[:min(8, len(e.SessionID))]), humanize.Time(e.CreatedAt), e.Role, e.Content)
	}
}

func (a *app) runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	sessionID := fs.String("session", "", "id of the recorded session")
	formatName := fs.String("format", "csv", "csv or pdf")
	out := fs.String("o", "", "output file (default: chat_history.<format> in ~/.shopinsight/exports, - for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" {
		return errors.New("-session is required, see shopinsight history")
	}
	format, err := export.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	if err := a.requireHistory(); err != nil {
		return err
	}

	entries, err := a.history.SessionEntries(*sessionID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no messages recorded for session %s", *sessionID)
	}
	messages := make([]session.Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, session.Message{Role: session.Role(e.Role), Content: e.Content})
	}

	if *out == "-" {
		return export.Write(a.stdout, format, messages)
	}
	path := *out
	if path == "" {
		path = filepath.Join(core.ExportDir(), fmt.Sprintf("chat_history_%s.%s", *sessionID, format))
	}
	if err := writeExportFile(a.fs, path, format, messages); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, styles.SUCCESS(fmt.Sprintf("exported %d messages to %s", len(messages), path)))
	return nil
}

func writeExportFile(fs filesystem.FileSystem, path string, format export.Format, messages []session.Message) (err error) {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.Write(f, format, messages)
}

func (a *app) runUpdate(ctx context.Context) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	version, err := appupdate.SelfUpdate(ctx, a.version, a.cfg.Update.Repository, exePath, a.logger, a.updater)
	if err != nil {
		return err
	}
	if version == "" {
		fmt.Fprintln(a.stdout, "already running the latest version")
		return nil
	}
	fmt.Fprintln(a.stdout, styles.SUCCESS("updated to "+version))
	return nil
}
