package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/gogo/portal/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")

	db, err := sql.Open("sqlite3", withConnParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// withConnParams enables foreign keys on every pooled connection, not just the first,
// and makes transactions take the write lock at BEGIN so that write transactions
// start in the order they commit.
func withConnParams(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_txlock=immediate"
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id TEXT,
			assistant_alias TEXT,
			title TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT,
			assistant_alias TEXT,
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ok',
			content_type TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			content_json TEXT,
			model_id TEXT,
			prompt_tokens INTEGER,
			completion_tokens INTEGER,
			total_tokens INTEGER,
			response_time_ms INTEGER,
			refs TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession creates a new session. It fails if the id already exists.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	stampSession(session)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, project_id, assistant_alias, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, nullString(session.ProjectID), nullString(session.AssistantAlias), nullString(session.Title), session.CreatedAt, session.UpdatedAt)
	return err
}

// EnsureSession creates the session if it does not exist and returns the stored row.
// Concurrent callers with the same id converge on a single row; the bool reports
// whether this call inserted it.
func (s *SQLiteStore) EnsureSession(ctx context.Context, session *domain.Session) (*domain.Session, bool, error) {
	stampSession(session)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_sessions (id, user_id, project_id, assistant_alias, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, nullString(session.ProjectID), nullString(session.AssistantAlias), nullString(session.Title), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetSession(ctx, session.SessionID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("session %s vanished after create-if-absent", session.SessionID)
	}
	return stored, affected > 0, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var projectID, alias, title sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, project_id, assistant_alias, title, created_at, updated_at FROM chat_sessions WHERE id = ?`,
		sessionID).Scan(&session.SessionID, &session.UserID, &projectID, &alias, &title, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.ProjectID = projectID.String
	session.AssistantAlias = alias.String
	session.Title = title.String
	return &session, nil
}

// UpdateSessionTitle sets the title of a session.
func (s *SQLiteStore) UpdateSessionTitle(ctx context.Context, sessionID, title string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), sessionID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteSession removes a session and its messages.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = affected > 0
		return nil
	})
	return deleted, err
}

// CreateMessage appends a single message and bumps the session's updated_at.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	stampMessage(message, time.Time{})
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertMessage(ctx, tx, message); err != nil {
			return err
		}
		return touchSession(ctx, tx, message.SessionID, message.CreatedAt)
	})
}

// AppendExchange writes a user message and its assistant reply in one transaction
// and bumps the session's updated_at. Either both messages persist or neither does.
// Both rows are stamped when the transaction starts, so exchanges list in commit
// order; any CreatedAt set by the caller is overwritten.
func (s *SQLiteStore) AppendExchange(ctx context.Context, userMsg, assistantMsg *domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		userMsg.CreatedAt = time.Time{}
		assistantMsg.CreatedAt = time.Time{}
		stampMessage(userMsg, time.Time{})
		stampMessage(assistantMsg, userMsg.CreatedAt)
		if err := insertMessage(ctx, tx, userMsg); err != nil {
			return fmt.Errorf("failed to insert user message: %w", err)
		}
		if err := insertMessage(ctx, tx, assistantMsg); err != nil {
			return fmt.Errorf("failed to insert assistant message: %w", err)
		}
		if err := touchSession(ctx, tx, userMsg.SessionID, assistantMsg.CreatedAt); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
}

// ListMessages retrieves messages for a session in created_at order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, assistant_alias, role, status, content_type, content, content_json,
		        model_id, prompt_tokens, completion_tokens, total_tokens, response_time_ms, refs, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ? OFFSET ?`,
		sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var userID, alias, contentJSON, modelID, refs sql.NullString
		var promptTokens, completionTokens, totalTokens, responseTime sql.NullInt64
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &userID, &alias, &msg.Role, &msg.Status, &msg.ContentType, &msg.Content, &contentJSON,
			&modelID, &promptTokens, &completionTokens, &totalTokens, &responseTime, &refs, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.UserID = userID.String
		msg.AssistantAlias = alias.String
		msg.ModelID = modelID.String
		if contentJSON.Valid {
			msg.ContentJSON = json.RawMessage(contentJSON.String)
		}
		if refs.Valid {
			msg.Refs = json.RawMessage(refs.String)
		}
		msg.PromptTokens = nullIntPtr(promptTokens)
		msg.CompletionTokens = nullIntPtr(completionTokens)
		msg.TotalTokens = nullIntPtr(totalTokens)
		if responseTime.Valid {
			v := responseTime.Int64
			msg.ResponseTimeMs = &v
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// RecentTurns returns the last limit user/assistant turns with status ok, oldest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages
		 WHERE session_id = ? AND status = ? AND role IN (?, ?)
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		sessionID, domain.MessageStatusOK, domain.RoleUser, domain.RoleAssistant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *domain.Message) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, user_id, assistant_alias, role, status, content_type, content, content_json,
		                       model_id, prompt_tokens, completion_tokens, total_tokens, response_time_ms, refs, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.SessionID, nullString(m.UserID), nullString(m.AssistantAlias), m.Role, m.Status, m.ContentType, m.Content, nullStringBytes(m.ContentJSON),
		nullString(m.ModelID), m.PromptTokens, m.CompletionTokens, m.TotalTokens, m.ResponseTimeMs, nullStringBytes(m.Refs), m.CreatedAt)
	return err
}

func touchSession(ctx context.Context, tx *sql.Tx, sessionID string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, at, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

func stampSession(session *domain.Session) {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.CreatedAt = session.CreatedAt.UTC()
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	session.UpdatedAt = session.UpdatedAt.UTC()
}

// stampMessage fills defaults. A non-zero after forces CreatedAt to be strictly later.
func stampMessage(m *domain.Message, after time.Time) {
	if m.MessageID == "" {
		m.MessageID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = domain.MessageStatusOK
	}
	if m.ContentType == "" {
		m.ContentType = domain.ContentTypeText
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if !after.IsZero() && !m.CreatedAt.After(after) {
		m.CreatedAt = after.Add(time.Microsecond)
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
