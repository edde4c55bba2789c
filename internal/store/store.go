package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_recommendations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recommendation_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		url TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		play_url TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		difficulty_level TEXT NOT NULL DEFAULT '',
		recommendation_reason TEXT NOT NULL DEFAULT '',
		estimated_duration INTEGER,
		language TEXT NOT NULL DEFAULT 'en',
		category TEXT NOT NULL DEFAULT '',
		video_id TEXT NOT NULL DEFAULT '',
		channel_name TEXT NOT NULL DEFAULT '',
		view_count INTEGER,
		published_at TEXT NOT NULL DEFAULT '',
		recommendation_type TEXT NOT NULL,
		session_id TEXT,
		prompt_used TEXT NOT NULL DEFAULT '',
		prompt_kind TEXT NOT NULL DEFAULT '',
		generated_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_media_recommendations_user
		ON media_recommendations (user_id, recommendation_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_media_recommendations_session
		ON media_recommendations (session_id);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct_answer TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		major_category TEXT NOT NULL DEFAULT '',
		minor_category TEXT NOT NULL DEFAULT '',
		difficulty_level INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS session_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		user_answer TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		time_spent INTEGER NOT NULL DEFAULT 0,
		attempt_count INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_session_questions_answer
		ON session_questions (session_id, question_id);

	CREATE TABLE IF NOT EXISTS category_performance_view (
		user_id TEXT NOT NULL,
		major_category TEXT NOT NULL,
		minor_category TEXT NOT NULL,
		questions_solved INTEGER NOT NULL DEFAULT 0,
		correct_answers INTEGER NOT NULL DEFAULT 0,
		category_proficiency REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, major_category, minor_category)
	);

	CREATE TABLE IF NOT EXISTS difficulty_achievement_view (
		user_id TEXT NOT NULL,
		difficulty_level INTEGER NOT NULL,
		questions_solved INTEGER NOT NULL DEFAULT 0,
		correct_answers INTEGER NOT NULL DEFAULT 0,
		difficulty_achievement_rate REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, difficulty_level)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
