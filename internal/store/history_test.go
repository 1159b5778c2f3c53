package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestHistoryStore_SQLite(t *testing.T) {
	h, err := NewHistoryStore(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	defer h.Close()

	fixed := time.UnixMilli(1_700_000_000_000)
	h.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, h.AddMessages(ctx,
		Message{RequestID: "r1", ChatID: "42", Role: llms.ChatMessageTypeHuman, Content: "What is 2 + 2?"},
		Message{RequestID: "r1", ChatID: "42", Role: llms.ChatMessageTypeAI, Content: "4", Tool: "calculator", Rule: "arithmetic", Success: true},
	))
	require.NoError(t, h.AddMessages(ctx,
		Message{RequestID: "r2", ChatID: "7", Role: llms.ChatMessageTypeHuman, Content: "hello"},
	))

	msgs, err := h.GetHistory(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "What is 2 + 2?", msgs[0].Content)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[0].Role)
	assert.Equal(t, "4", msgs[1].Content)
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[1].Role)
	assert.True(t, msgs[1].Success)
	assert.Equal(t, "calculator", msgs[1].Tool)
	assert.True(t, fixed.Equal(msgs[1].CreatedAt))
	assert.NotEmpty(t, msgs[0].ID)

	recent, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "4", recent[0].Content)
	assert.Equal(t, "hello", recent[1].Content)

	conv := Conversation(msgs)
	require.Len(t, conv, 2)
	assert.Equal(t, llms.ChatMessageTypeAI, conv[1].Role)
	assert.Equal(t, llms.TextContent{Text: "4"}, conv[1].Parts[0])
}

func TestHistoryStore_InsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS messages")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	h, err := NewHistoryStoreWithDB(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(sqlmock.AnyArg(), "r1", "", "human", "hi", "", "", false, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = h.AddMessages(context.Background(), Message{RequestID: "r1", Role: llms.ChatMessageTypeHuman, Content: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert message")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStore_MigrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnError(errors.New("read-only database"))

	_, err = NewHistoryStoreWithDB(db)
	assert.ErrorContains(t, err, "migrate history")
}

func TestHistoryStore_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	h, err := NewHistoryStoreWithDB(db)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM messages WHERE chat_id = ?")).
		WithArgs("42", 5).
		WillReturnError(errors.New("locked"))

	_, err = h.GetHistory(context.Background(), "42", 5)
	assert.ErrorContains(t, err, "query history")
	assert.NoError(t, mock.ExpectationsWereMet())
}
