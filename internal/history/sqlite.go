package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/Varamadon/auto-refactor/internal/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME
    );`,
	`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id, id);`,
}

// SQLiteLog persists conversations in a SQLite database so a restarted
// process can still read them.
type SQLiteLog struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// messages table exists.
func OpenSQLite(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps appends for one session strictly ordered.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create messages table: %w", err)
		}
	}
	logger.L.Info("sqlite history DB initialized", "path", path)
	return &SQLiteLog{db: db}, nil
}

func (l *SQLiteLog) Append(sessionID string, msg Message) error {
	_, err := l.db.Exec(`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
		sessionID, string(msg.Role), msg.Content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store message for %s: %w", sessionID, err)
	}
	return nil
}

// Read returns all messages of a session in the order they were appended.
func (l *SQLiteLog) Read(sessionID string) ([]Message, error) {
	rows, err := l.db.Query(`SELECT role, content FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message for %s: %w", sessionID, err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (l *SQLiteLog) Delete(sessionID string) error {
	if _, err := l.db.Exec(`DELETE FROM messages WHERE session_id = ?;`, sessionID); err != nil {
		return fmt.Errorf("delete messages for %s: %w", sessionID, err)
	}
	return nil
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
