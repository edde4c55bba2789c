package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/pavelanni/mediarec/internal/model"
)

// CategoryPerformance returns the user's rows of the category read model.
func (s *Store) CategoryPerformance(ctx context.Context, userID string) ([]model.CategoryPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, major_category, minor_category, questions_solved, correct_answers, category_proficiency
		 FROM category_performance_view WHERE user_id = ? ORDER BY major_category, minor_category`, userID)
	if err != nil {
		return nil, fmt.Errorf("query category performance: %w", err)
	}
	defer rows.Close()
	var out []model.CategoryPerformance
	for rows.Next() {
		var c model.CategoryPerformance
		if err := rows.Scan(&c.UserID, &c.MajorCategory, &c.MinorCategory, &c.QuestionsSolved, &c.CorrectAnswers, &c.CategoryProficiency); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DifficultyAchievement returns the user's rows of the difficulty read model.
func (s *Store) DifficultyAchievement(ctx context.Context, userID string) ([]model.DifficultyAchievement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, difficulty_level, questions_solved, correct_answers, difficulty_achievement_rate
		 FROM difficulty_achievement_view WHERE user_id = ? ORDER BY difficulty_level`, userID)
	if err != nil {
		return nil, fmt.Errorf("query difficulty achievement: %w", err)
	}
	defer rows.Close()
	var out []model.DifficultyAchievement
	for rows.Next() {
		var d model.DifficultyAchievement
		if err := rows.Scan(&d.UserID, &d.DifficultyLevel, &d.QuestionsSolved, &d.CorrectAnswers, &d.DifficultyAchievementRate); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SessionQuestionDetails joins a session's answers with the question bank, in answer order.
func (s *Store) SessionQuestionDetails(ctx context.Context, sessionID string) ([]model.QuestionDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.text, q.options, q.correct_answer, q.explanation, q.major_category, q.minor_category,
		        q.difficulty_level, sq.user_answer, sq.is_correct, sq.time_spent, sq.attempt_count
		 FROM session_questions sq JOIN questions q ON q.id = sq.question_id
		 WHERE sq.session_id = ? ORDER BY sq.id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session questions: %w", err)
	}
	defer rows.Close()
	var out []model.QuestionDetail
	for rows.Next() {
		var (
			d       model.QuestionDetail
			options string
		)
		if err := rows.Scan(&d.QuestionID, &d.QuestionText, &options, &d.CorrectAnswer, &d.Explanation,
			&d.MajorCategory, &d.MinorCategory, &d.DifficultyLevel, &d.UserAnswer, &d.IsCorrect,
			&d.TimeSpent, &d.AttemptCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &d.Options); err != nil {
			return nil, fmt.Errorf("decode options of question %s: %w", d.QuestionID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ImportFixtures loads a fixture set in one transaction. Existing rows with the
// same keys are replaced.
func (s *Store) ImportFixtures(ctx context.Context, f model.Fixtures) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range f.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options of question %s: %w", q.ID, err)
		}
		if q.Options == nil {
			options = []byte("[]")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO questions
			 (id, text, options, correct_answer, explanation, major_category, minor_category, difficulty_level)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.Text, string(options), q.CorrectAnswer, q.Explanation, q.MajorCategory, q.MinorCategory, q.DifficultyLevel)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}

	for _, a := range f.SessionAnswers {
		attempts := a.AttemptCount
		if attempts <= 0 {
			attempts = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_questions (session_id, user_id, question_id, user_answer, is_correct, time_spent, attempt_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_id, question_id) DO UPDATE SET
			   user_id = excluded.user_id,
			   user_answer = excluded.user_answer,
			   is_correct = excluded.is_correct,
			   time_spent = excluded.time_spent,
			   attempt_count = excluded.attempt_count`,
			a.SessionID, a.UserID, a.QuestionID, a.UserAnswer, a.IsCorrect, a.TimeSpent, attempts)
		if err != nil {
			return fmt.Errorf("insert answer for session %s: %w", a.SessionID, err)
		}
	}

	for _, c := range f.CategoryPerformance {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO category_performance_view
			 (user_id, major_category, minor_category, questions_solved, correct_answers, category_proficiency)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, major_category, minor_category) DO UPDATE SET
			   questions_solved = excluded.questions_solved,
			   correct_answers = excluded.correct_answers,
			   category_proficiency = excluded.category_proficiency`,
			c.UserID, c.MajorCategory, c.MinorCategory, c.QuestionsSolved, c.CorrectAnswers, c.CategoryProficiency)
		if err != nil {
			return fmt.Errorf("upsert category performance for %s: %w", c.UserID, err)
		}
	}

	for _, d := range f.DifficultyAchievement {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO difficulty_achievement_view
			 (user_id, difficulty_level, questions_solved, correct_answers, difficulty_achievement_rate)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, difficulty_level) DO UPDATE SET
			   questions_solved = excluded.questions_solved,
			   correct_answers = excluded.correct_answers,
			   difficulty_achievement_rate = excluded.difficulty_achievement_rate`,
			d.UserID, d.DifficultyLevel, d.QuestionsSolved, d.CorrectAnswers, d.DifficultyAchievementRate)
		if err != nil {
			return fmt.Errorf("upsert difficulty achievement for %s: %w", d.UserID, err)
		}
	}

	return tx.Commit()
}
