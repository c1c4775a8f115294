// Package db keeps a local SQLite history of finished chats.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"threex/internal/slots"
)

// FileName is the database file inside the data directory.
const FileName = "history.db"

// ErrNotFound is returned when a chat id matches nothing.
var ErrNotFound = errors.New("chat not found")

type Store struct {
	db *sql.DB
}

// Chat is one prompt fanned out to a set of slots.
type Chat struct {
	ID         string
	Title      string
	Prompt     string
	Selections []slots.Selection
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Response is the settled text of one slot, the remix or a social draft.
type Response struct {
	ID        int64
	ChatID    string
	Lane      string // grid, remix, social
	Slot      int
	ModelID   string
	Content   string
	Failed    bool
	CreatedAt time.Time
}

type ContextFile struct {
	ID      int64
	ChatID  string
	Path    string
	Kind    string
	AddedAt time.Time
}

// Open opens (creating if needed) the history database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		prompt TEXT NOT NULL,
		selections TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		lane TEXT NOT NULL DEFAULT 'grid',
		slot INTEGER NOT NULL,
		model_id TEXT NOT NULL,
		content TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_responses_chat ON responses(chat_id);

	CREATE TABLE IF NOT EXISTS context_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_context_chat ON context_files(chat_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateChat records a new chat and returns its id.
func (s *Store) CreateChat(title, prompt string, selections []slots.Selection) (string, error) {
	encoded, err := json.Marshal(selections)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO chats (id, title, prompt, selections) VALUES (?, ?, ?, ?)`,
		id, title, prompt, string(encoded),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetChat retrieves a chat by id
func (s *Store) GetChat(id string) (*Chat, error) {
	row := s.db.QueryRow(
		`SELECT id, title, prompt, selections, created_at, updated_at FROM chats WHERE id = ?`, id,
	)
	c, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, err
}

// FindChat resolves a full id or a unique id prefix.
func (s *Store) FindChat(prefix string) (*Chat, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.Query(
		`SELECT id, title, prompt, selections, created_at, updated_at FROM chats WHERE id LIKE ? || '%' LIMIT 2`, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("chat id prefix %q is ambiguous", prefix)
	}
}

// ListChats returns chats, most recently updated first. limit <= 0 means all.
func (s *Store) ListChats(limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, title, prompt, selections, created_at, updated_at
		 FROM chats ORDER BY updated_at DESC, created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(row scanner) (*Chat, error) {
	var c Chat
	var selections string
	if err := row.Scan(&c.ID, &c.Title, &c.Prompt, &selections, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(selections), &c.Selections); err != nil {
		return nil, fmt.Errorf("decode selections of %s: %w", c.ID, err)
	}
	return &c, nil
}

// AddResponse stores one settled answer.
func (s *Store) AddResponse(r Response) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO responses (chat_id, lane, slot, model_id, content, failed) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ChatID, r.Lane, r.Slot, r.ModelID, r.Content, r.Failed,
	)
	if err != nil {
		return 0, err
	}

	s.db.Exec(`UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, r.ChatID)

	return result.LastInsertId()
}

// SaveState stores the settled slots of the given lanes of st, or of every
// lane when none are named. Idle and generating slots are skipped.
func (s *Store) SaveState(chatID string, st slots.State, lanes ...slots.Lane) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO responses (chat_id, lane, slot, model_id, content, failed) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	want := func(lane slots.Lane) bool {
		return len(lanes) == 0 || slices.Contains(lanes, lane)
	}
	save := func(lane slots.Lane, slot slots.Slot) error {
		if !want(lane) || (slot.Phase != slots.Done && slot.Phase != slots.Failed) {
			return nil
		}
		_, err := stmt.Exec(chatID, lane.String(), slot.Index, slot.ModelID, slot.Text(), slot.Phase == slots.Failed)
		return err
	}
	for _, slot := range st.Slots {
		if err := save(slots.LaneGrid, slot); err != nil {
			return err
		}
	}
	if err := save(slots.LaneRemix, st.Remix); err != nil {
		return err
	}
	if err := save(slots.LaneSocial, st.Social); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, chatID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetResponses retrieves the answers of a chat in insertion order
func (s *Store) GetResponses(chatID string) ([]Response, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, lane, slot, model_id, content, failed, created_at
		 FROM responses WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		var r Response
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Lane, &r.Slot, &r.ModelID, &r.Content, &r.Failed, &r.CreatedAt); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// AddContextFile records a path that was attached to the chat
func (s *Store) AddContextFile(chatID, path, kind string) error {
	_, err := s.db.Exec(
		`INSERT INTO context_files (chat_id, path, kind) VALUES (?, ?, ?)`,
		chatID, path, kind,
	)
	return err
}

// GetContextFiles retrieves the attachments of a chat
func (s *Store) GetContextFiles(chatID string) ([]ContextFile, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, path, kind, added_at
		 FROM context_files WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []ContextFile
	for rows.Next() {
		var f ContextFile
		if err := rows.Scan(&f.ID, &f.ChatID, &f.Path, &f.Kind, &f.AddedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// RenameChat updates the title of a chat
func (s *Store) RenameChat(id, title string) error {
	return s.execOne(`UPDATE chats SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id, title, id)
}

// DeleteChat removes a chat with its responses and context rows
func (s *Store) DeleteChat(id string) error {
	return s.execOne(`DELETE FROM chats WHERE id = ?`, id, id)
}

func (s *Store) execOne(query, id string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
