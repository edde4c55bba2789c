package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/mediarec/internal/model"
)

// ExportRecommendations groups stored records by user. An empty userID exports
// every user; an empty kind exports both kinds.
func (s *Store) ExportRecommendations(ctx context.Context, userID string, kind model.RecommendationKind) (model.RecommendationExport, error) {
	export := model.RecommendationExport{
		ExportedAt: time.Now().UTC(),
		UserID:     userID,
		Kind:       string(kind),
		Users:      []model.UserHistory{},
	}

	users := []string{userID}
	if userID == "" {
		var err error
		if users, err = s.ListRecommendationUsers(ctx); err != nil {
			return export, fmt.Errorf("list users: %w", err)
		}
	}

	for _, u := range users {
		recs, err := s.ListRecommendations(ctx, u, kind)
		if err != nil {
			return export, fmt.Errorf("list recommendations for %s: %w", u, err)
		}
		if len(recs) == 0 {
			continue
		}
		h := model.UserHistory{UserID: u, Recommendations: recs}
		for _, r := range recs {
			switch r.Kind {
			case model.KindRealTimeSession:
				h.RealTimeCount++
			case model.KindUserRequested:
				h.RequestedCount++
			}
		}
		export.Total += len(recs)
		export.Users = append(export.Users, h)
	}

	return export, nil
}
