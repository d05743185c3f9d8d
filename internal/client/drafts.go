package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/learnhub/learnhub-backend/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

const draftSchema = `
CREATE TABLE IF NOT EXISTS drafts (
	result_id   INTEGER NOT NULL,
	question_id INTEGER NOT NULL,
	answer      TEXT    NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (result_id, question_id)
);`

// DraftStore keeps the learner's unsaved answers on disk, keyed by result id,
// so a crashed client resumes where it left off.
type DraftStore struct {
	db *sql.DB
}

// OpenDraftStore opens (and creates) the SQLite draft database at path.
func OpenDraftStore(path string) (*DraftStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "learnhub-drafts.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(draftSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init draft schema: %w", err)
	}
	return &DraftStore{db: db}, nil
}

func (s *DraftStore) Close() error {
	return s.db.Close()
}

// Put records the answer to one question. An empty entry is stored too: a
// cleared answer still overrides the server's copy.
func (s *DraftStore) Put(ctx context.Context, resultID int64, entry model.AnswerEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (result_id, question_id, answer, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (result_id, question_id) DO UPDATE
		SET answer = excluded.answer, updated_at = excluded.updated_at`,
		resultID, entry.QuestionID, string(raw), time.Now().UnixMilli())
	return err
}

// Get returns the draft of a result keyed by question id.
func (s *DraftStore) Get(ctx context.Context, resultID int64) (map[int64]model.AnswerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, answer FROM drafts WHERE result_id = ?`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]model.AnswerEntry)
	for rows.Next() {
		var questionID int64
		var raw string
		if err := rows.Scan(&questionID, &raw); err != nil {
			return nil, err
		}
		var entry model.AnswerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode draft %d/%d: %w", resultID, questionID, err)
		}
		entry.QuestionID = questionID
		out[questionID] = entry
	}
	return out, rows.Err()
}

// Clear drops the draft of a result.
func (s *DraftStore) Clear(ctx context.Context, resultID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE result_id = ?`, resultID)
	return err
}
