// Package store persists workspaces, their JD items, and chat history
// in sqlite.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pbaille/jdc/internal/domain"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a workspace id is unknown.
var ErrNotFound = errors.New("workspace not found")

const defaultName = "Untitled Workspace"

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSet creates an empty workspace. An empty name gets the default.
func (s *Store) CreateSet(name string) (*domain.WorkspaceDetail, error) {
	if name == "" {
		name = defaultName
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.Exec(
		"INSERT INTO jd_sets (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		id, name, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert jd_set: %w", err)
	}

	return &domain.WorkspaceDetail{
		ID:           id,
		Name:         name,
		Items:        []domain.ItemRecord{},
		ChatMessages: []domain.MessageRecord{},
		UpdatedAt:    now,
	}, nil
}

// ListSets returns workspace summaries, most recently updated first.
func (s *Store) ListSets() ([]domain.WorkspaceSummary, error) {
	rows, err := s.db.Query(`
		SELECT js.id, js.name, js.updated_at, COUNT(ji.id)
		FROM jd_sets js
		LEFT JOIN jd_items ji ON ji.jd_set_id = js.id
		GROUP BY js.id
		ORDER BY js.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list jd_sets: %w", err)
	}
	defer rows.Close()

	var sets []domain.WorkspaceSummary
	for rows.Next() {
		var ws domain.WorkspaceSummary
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.UpdatedAt, &ws.ItemCount); err != nil {
			return nil, fmt.Errorf("scan jd_set: %w", err)
		}
		sets = append(sets, ws)
	}
	return sets, rows.Err()
}

// GetSet retrieves a workspace with its ordered items and messages.
func (s *Store) GetSet(id string) (*domain.WorkspaceDetail, error) {
	var detail domain.WorkspaceDetail
	err := s.db.QueryRow(
		"SELECT id, name, updated_at FROM jd_sets WHERE id = ?",
		id,
	).Scan(&detail.ID, &detail.Name, &detail.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get jd_set: %w", err)
	}

	items, err := s.listItems(id)
	if err != nil {
		return nil, err
	}
	detail.Items = items

	messages, err := s.listMessages(id)
	if err != nil {
		return nil, err
	}
	detail.ChatMessages = messages

	return &detail, nil
}

// RenameSet updates the workspace name and returns the fresh detail.
func (s *Store) RenameSet(id, name string) (*domain.WorkspaceDetail, error) {
	res, err := s.db.Exec(
		"UPDATE jd_sets SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename jd_set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetSet(id)
}

// DeleteSet removes a workspace; items and messages cascade.
func (s *Store) DeleteSet(id string) error {
	res, err := s.db.Exec("DELETE FROM jd_sets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete jd_set: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceItems applies replace-all sync semantics: upsert incoming
// items by id in list order, delete anything absent from the list, and
// touch the workspace's updated_at.
func (s *Store) ReplaceItems(setID string, items []domain.ItemSnapshot) error {
	var exists int
	err := s.db.QueryRow("SELECT COUNT(1) FROM jd_sets WHERE id = ?", setID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check jd_set: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	incoming := make(map[string]bool, len(items))

	for idx, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}
		incoming[id] = true

		res, err := tx.Exec(`
			UPDATE jd_items
			SET raw_text = ?, label_title = ?, label_company = ?, is_muted = ?, sort_order = ?
			WHERE id = ? AND jd_set_id = ?
		`, item.RawText, item.LabelTitle, item.LabelCompany, item.IsMuted, idx, id, setID)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			_, err = tx.Exec(`
				INSERT INTO jd_items (id, jd_set_id, raw_text, label_title, label_company, is_muted, sort_order, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, id, setID, item.RawText, item.LabelTitle, item.LabelCompany, item.IsMuted, idx, now)
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
		}
	}

	rows, err := tx.Query("SELECT id FROM jd_items WHERE jd_set_id = ?", setID)
	if err != nil {
		return fmt.Errorf("list item ids: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan item id: %w", err)
		}
		if !incoming[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate item ids: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.Exec("DELETE FROM jd_items WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete stale item: %w", err)
		}
	}

	if _, err := tx.Exec("UPDATE jd_sets SET updated_at = ? WHERE id = ?", now, setID); err != nil {
		return fmt.Errorf("touch jd_set: %w", err)
	}

	return tx.Commit()
}

// AppendMessage persists one chat message for a workspace.
func (s *Store) AppendMessage(setID, role, content string) (*domain.MessageRecord, error) {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM jd_sets WHERE id = ?", setID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check jd_set: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rec := domain.MessageRecord{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		"INSERT INTO chat_messages (id, jd_set_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		rec.ID, setID, rec.Role, rec.Content, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &rec, nil
}

func (s *Store) listItems(setID string) ([]domain.ItemRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, raw_text, label_title, label_company, is_muted, sort_order, created_at
		FROM jd_items WHERE jd_set_id = ? ORDER BY sort_order
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []domain.ItemRecord{}
	for rows.Next() {
		var it domain.ItemRecord
		if err := rows.Scan(&it.ID, &it.RawText, &it.LabelTitle, &it.LabelCompany, &it.IsMuted, &it.SortOrder, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) listMessages(setID string) ([]domain.MessageRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, role, content, created_at
		FROM chat_messages WHERE jd_set_id = ? ORDER BY created_at
	`, setID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.MessageRecord{}
	for rows.Next() {
		var m domain.MessageRecord
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
