package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	chat_id TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tool TEXT NOT NULL DEFAULT '',
	rule TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);`

// HistoryStore keeps a transcript of handled queries in SQLite.
type HistoryStore struct {
	DB  *sql.DB
	now func() time.Time
}

// NewHistoryStore opens (creating if needed) the database at dbPath.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	h, err := NewHistoryStoreWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// NewHistoryStoreWithDB uses an already opened database and creates the
// messages table if it does not exist.
func NewHistoryStoreWithDB(db *sql.DB) (*HistoryStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &HistoryStore{DB: db, now: time.Now}, nil
}

// AddMessages stores msgs in one transaction. Missing IDs and timestamps are
// filled in.
func (h *HistoryStore) AddMessages(ctx context.Context, msgs ...Message) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO messages (id, request_id, chat_id, role, content, tool, rule, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = h.now()
		}
		if _, err := tx.ExecContext(ctx, query,
			m.ID, m.RequestID, m.ChatID, string(m.Role), m.Content, m.Tool, m.Rule, m.Success, m.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetHistory returns the latest limit messages of a chat, oldest first.
func (h *HistoryStore) GetHistory(ctx context.Context, chatID string, limit int) ([]Message, error) {
	query := `SELECT id, request_id, chat_id, role, content, tool, rule, success, created_at
		FROM messages WHERE chat_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`
	return h.query(ctx, query, chatID, limit)
}

// Recent returns the latest limit messages across all chats, oldest first.
func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]Message, error) {
	query := `SELECT id, request_id, chat_id, role, content, tool, rule, success, created_at
		FROM messages ORDER BY created_at DESC, rowid DESC LIMIT ?`
	return h.query(ctx, query, limit)
}

func (h *HistoryStore) query(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := h.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var (
			m       Message
			role    string
			created int64
		)
		if err := rows.Scan(&m.ID, &m.RequestID, &m.ChatID, &role, &m.Content, &m.Tool, &m.Rule, &m.Success, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		m.Role = parseRole(role)
		m.CreatedAt = time.UnixMilli(created)
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}
