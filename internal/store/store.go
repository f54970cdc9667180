package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	DB *sql.DB
}

// Turn is one transcript row of a conversation.
type Turn struct {
	Role      string
	Content   string
	CreatedAt int64
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (id TEXT PRIMARY KEY, npc_id TEXT, status TEXT, started_at INTEGER, ended_at INTEGER);`,
		`CREATE TABLE IF NOT EXISTS turns (id TEXT PRIMARY KEY, conversation_id TEXT, role TEXT, content TEXT, created_at INTEGER);`,
		`CREATE TABLE IF NOT EXISTS sessions (id TEXT PRIMARY KEY, conversation_id TEXT, kind TEXT, status TEXT, created_at INTEGER);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.Exec(q); err != nil {
			return err
		}
	}

	// Add token column to sessions if not present (SQLite will error if exists; ignore)
	if _, err := s.DB.Exec(`ALTER TABLE sessions ADD COLUMN token TEXT;`); err != nil {
		// ignore "duplicate column name" or other errors - simple migration strategy
	}
	return nil
}

func genID() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateConversation creates a conversation row and an initial realtime
// session bound to it. Returns conversationID and sessionID.
func (s *Store) CreateConversation(npcID string) (string, string, error) {
	if npcID == "" {
		return "", "", errors.New("npc_id required")
	}
	convID, err := genID()
	if err != nil {
		return "", "", err
	}
	sessionID, err := genID()
	if err != nil {
		return "", "", err
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return "", "", err
	}
	now := time.Now().Unix()
	if _, err := tx.Exec(`INSERT INTO conversations(id, npc_id, status, started_at) VALUES(?,?,?,?)`, convID, npcID, "active", now); err != nil {
		tx.Rollback()
		return "", "", err
	}
	if _, err := tx.Exec(`INSERT INTO sessions(id, conversation_id, kind, status, created_at) VALUES(?,?,?,?,?)`, sessionID, convID, "realtime", "new", now); err != nil {
		tx.Rollback()
		return "", "", err
	}
	if err := tx.Commit(); err != nil {
		return "", "", err
	}
	return convID, sessionID, nil
}

func (s *Store) AppendTurn(conversationID, role, content string) error {
	id, err := genID()
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = s.DB.Exec(`INSERT INTO turns(id, conversation_id, role, content, created_at) VALUES(?,?,?,?,?)`,
		id, conversationID, role, content, now)
	return err
}

// Transcript returns the turns of a conversation in insertion order.
func (s *Store) Transcript(conversationID string) ([]Turn, error) {
	rows, err := s.DB.Query(`SELECT role, content, created_at FROM turns WHERE conversation_id = ? ORDER BY rowid`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *Store) EndConversation(conversationID string) error {
	now := time.Now().Unix()
	res, err := s.DB.Exec(`UPDATE conversations SET status = ?, ended_at = ? WHERE id = ?`, "ended", now, conversationID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	return nil
}

func (s *Store) UpdateSessionStatus(sessionID, status string) error {
	res, err := s.DB.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, sessionID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

// UpdateSessionToken stores the access token minted for the session.
func (s *Store) UpdateSessionToken(sessionID, token string) error {
	res, err := s.DB.Exec(`UPDATE sessions SET token = ? WHERE id = ?`, token, sessionID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

// GetSessionToken retrieves the stored token for a session.
func (s *Store) GetSessionToken(sessionID string) (string, error) {
	var token sql.NullString
	row := s.DB.QueryRow(`SELECT token FROM sessions WHERE id = ?`, sessionID)
	if err := row.Scan(&token); err != nil {
		return "", err
	}
	if token.Valid {
		return token.String, nil
	}
	return "", nil
}

// FindConversationBySession resolves a session id to its conversation and status.
func (s *Store) FindConversationBySession(sessionID string) (string, string, error) {
	var convID, status string
	row := s.DB.QueryRow(`SELECT conversation_id, status FROM sessions WHERE id = ?`, sessionID)
	if err := row.Scan(&convID, &status); err != nil {
		return "", "", err
	}
	return convID, status, nil
}
