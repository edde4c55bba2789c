package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/mediarec/internal/model"
)

// ErrDuplicateRecommendation is returned when a batch reuses a stored recommendation id.
var ErrDuplicateRecommendation = errors.New("duplicate recommendation id")

const recommendationColumns = `recommendation_id, user_id, title, description, url, thumbnail_url, play_url,
	media_type, platform, difficulty_level, recommendation_reason, estimated_duration, language, category,
	video_id, channel_name, view_count, published_at, recommendation_type, session_id, prompt_used,
	prompt_kind, generated_at, created_at, updated_at`

// SaveRecommendations stores a batch in one transaction: either every record
// is written or none is.
func (s *Store) SaveRecommendations(ctx context.Context, recs []model.MediaRecommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO media_recommendations (`+recommendationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range recs {
		_, err := stmt.ExecContext(ctx,
			r.RecommendationID, r.UserID, r.Title, r.Description, r.URL, r.ThumbnailURL, r.PlayURL,
			r.MediaType, r.Platform, r.DifficultyLevel, r.Reason, nullInt(r.EstimatedDuration), r.Language, r.Category,
			r.VideoID, r.ChannelName, nullInt64(r.ViewCount), r.PublishedAt, r.Kind, nullString(r.SessionID), r.PromptUsed,
			r.PromptKind, r.GeneratedAt.UTC(), now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateRecommendation, r.RecommendationID)
			}
			return fmt.Errorf("insert %s: %w", r.RecommendationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("saved recommendations", "count", len(recs), "user_id", recs[0].UserID, "kind", recs[0].Kind)
	return nil
}

// ListRecommendations returns a user's records, newest first. An empty kind
// matches both kinds.
func (s *Store) ListRecommendations(ctx context.Context, userID string, kind model.RecommendationKind) ([]model.MediaRecommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM media_recommendations WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += ` AND recommendation_type = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return s.queryRecommendations(ctx, query, args...)
}

// ListSessionRecommendations returns the records produced for one session.
func (s *Store) ListSessionRecommendations(ctx context.Context, sessionID string) ([]model.MediaRecommendation, error) {
	return s.queryRecommendations(ctx,
		`SELECT `+recommendationColumns+` FROM media_recommendations WHERE session_id = ? ORDER BY id`, sessionID)
}

// GetRecommendation returns a record by its id, or nil if it does not exist.
func (s *Store) GetRecommendation(ctx context.Context, recommendationID string) (*model.MediaRecommendation, error) {
	recs, err := s.queryRecommendations(ctx,
		`SELECT `+recommendationColumns+` FROM media_recommendations WHERE recommendation_id = ?`, recommendationID)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// ListRecommendationUsers returns the distinct owners of stored records.
func (s *Store) ListRecommendationUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM media_recommendations ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// RecommendationCount returns the number of stored records.
func (s *Store) RecommendationCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_recommendations`).Scan(&count)
	return count, err
}

func (s *Store) queryRecommendations(ctx context.Context, query string, args ...any) ([]model.MediaRecommendation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []model.MediaRecommendation{}
	for rows.Next() {
		var (
			r         model.MediaRecommendation
			duration  sql.NullInt64
			viewCount sql.NullInt64
			session   sql.NullString
		)
		if err := rows.Scan(
			&r.RecommendationID, &r.UserID, &r.Title, &r.Description, &r.URL, &r.ThumbnailURL, &r.PlayURL,
			&r.MediaType, &r.Platform, &r.DifficultyLevel, &r.Reason, &duration, &r.Language, &r.Category,
			&r.VideoID, &r.ChannelName, &viewCount, &r.PublishedAt, &r.Kind, &session, &r.PromptUsed,
			&r.PromptKind, &r.GeneratedAt, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := int(duration.Int64)
			r.EstimatedDuration = &d
		}
		if viewCount.Valid {
			v := viewCount.Int64
			r.ViewCount = &v
		}
		if session.Valid {
			id := session.String
			r.SessionID = &id
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
