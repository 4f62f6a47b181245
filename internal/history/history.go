package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopinsight/shopinsight/internal/core"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type HistoryManager struct {
	db          *gorm.DB
	versionPath string
}

// ChatEntry is one persisted chat message.
type ChatEntry struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time `gorm:"index"`

	SessionID string `gorm:"index"`
	Role      string
	Content   string
	Model     string
}

// SessionSummary describes one persisted conversation.
type SessionSummary struct {
	SessionID    string
	MessageCount int64
	LastActivity time.Time
}

const (
	historySchemaVersion = 1
	memoryDSN            = ":memory:"
)

// NewHistoryManager opens (and migrates if needed) the chat database at
// dbFilePath. ":memory:" opens a private in-memory database.
func NewHistoryManager(dbFilePath string) (*HistoryManager, error) {
	inMemory := dbFilePath == memoryDSN

	dbFileExists := true
	if inMemory {
		dbFileExists = false
	} else if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking history db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening history db: %w", err)
	}
	if inMemory {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	manager := &HistoryManager{db: db}
	if !inMemory {
		manager.versionPath = schemaVersionPath(dbFilePath)
	}

	if manager.needsMigration(dbFileExists) {
		if err := db.AutoMigrate(&ChatEntry{}); err != nil {
			return nil, fmt.Errorf("error auto-migrating history schema: %w", err)
		}
		if err := manager.writeSchemaVersion(historySchemaVersion); err != nil {
			return nil, fmt.Errorf("error writing history schema version: %w", err)
		}
	}

	return manager, nil
}

func (historyManager *HistoryManager) needsMigration(dbFileExists bool) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := historyManager.schemaVersionMatches()
	if err != nil || !versionMatches {
		return true
	}

	// If the version marker is present but the table is missing (corruption or manual deletion),
	// re-run migrations to restore the schema.
	return !historyManager.db.Migrator().HasTable(&ChatEntry{})
}

func (historyManager *HistoryManager) writeSchemaVersion(version int) error {
	if historyManager.versionPath == "" {
		return nil
	}
	return os.WriteFile(historyManager.versionPath, []byte(strconv.Itoa(version)), 0644)
}

func (historyManager *HistoryManager) schemaVersionMatches() (bool, error) {
	if historyManager.versionPath == "" {
		return false, nil
	}
	data, err := os.ReadFile(historyManager.versionPath)
	if err != nil {
		return false, err
	}
	trimmed := strings.TrimSpace(string(data))
	version, err := strconv.Atoi(trimmed)
	if err != nil {
		return false, err
	}
	if version != historySchemaVersion {
		return false, fmt.Errorf("history schema version mismatch: got %d, want %d", version, historySchemaVersion)
	}
	return true, nil
}

// schemaVersionPath keeps the marker next to the database, falling back to
// the data directory for bare file names.
func schemaVersionPath(dbFilePath string) string {
	dir := filepath.Dir(dbFilePath)
	if dir == "." {
		dir = core.DataDir()
	}
	return filepath.Join(dir, "history_schema_version")
}

// Close releases the underlying database handle.
func (historyManager *HistoryManager) Close() error {
	sqlDB, err := historyManager.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores one chat message.
func (historyManager *HistoryManager) Record(sessionID, role, content, model string) (*ChatEntry, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	entry := ChatEntry{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Model:     model,
	}

	result := historyManager.db.Create(&entry)
	if result.Error != nil {
		return nil, result.Error
	}

	return &entry, nil
}

// RecordMessage is Record without the created entry.
func (historyManager *HistoryManager) RecordMessage(sessionID, role, content, model string) error {
	_, err := historyManager.Record(sessionID, role, content, model)
	return err
}

// SessionEntries returns a session's messages in the order they were recorded.
func (historyManager *HistoryManager) SessionEntries(sessionID string) ([]ChatEntry, error) {
	var entries []ChatEntry
	result := historyManager.db.Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

// RecentSessions lists conversations, most recently active first.
func (historyManager *HistoryManager) RecentSessions(limit int) ([]SessionSummary, error) {
	type row struct {
		SessionID    string
		MessageCount int64
		LastID       uint
	}
	var rows []row
	result := historyManager.db.Model(&ChatEntry{}).
		Select("session_id, count(*) as message_count, max(id) as last_id").
		Group("session_id").
		Order("last_id desc").
		Limit(limit).
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	summaries := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		var last ChatEntry
		if err := historyManager.db.First(&last, r.LastID).Error; err != nil {
			return nil, err
		}
		summaries = append(summaries, SessionSummary{
			SessionID:    r.SessionID,
			MessageCount: r.MessageCount,
			LastActivity: last.CreatedAt,
		})
	}
	return summaries, nil
}

// DeleteSession removes every message of a session.
func (historyManager *HistoryManager) DeleteSession(sessionID string) error {
	result := historyManager.db.Where("session_id = ?", sessionID).Delete(&ChatEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no history found for session %s", sessionID)
	}

	return nil
}

func (historyManager *HistoryManager) ResetHistory() error {
	result := historyManager.db.Exec("DELETE FROM chat_entries")
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// SearchHistory searches for messages containing the given substring.
// Returns entries in reverse chronological order (most recent first).
func (historyManager *HistoryManager) SearchHistory(query string, limit int) ([]ChatEntry, error) {
	var entries []ChatEntry
	result := historyManager.db.Where("content LIKE ?", "%"+query+"%").
		Order("id desc").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

// RecentEntries returns the last limit messages across all sessions, oldest first.
func (historyManager *HistoryManager) RecentEntries(limit int) ([]ChatEntry, error) {
	var entries []ChatEntry
	result := historyManager.db.Order("id desc").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	slices.Reverse(entries)
	return entries, nil
}
