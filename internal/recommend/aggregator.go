package recommend

import (
	"context"
	"log/slog"

	"github.com/pavelanni/mediarec/internal/model"
)

// PerformanceReader reads the historical performance read models.
type PerformanceReader interface {
	CategoryPerformance(ctx context.Context, userID string) ([]model.CategoryPerformance, error)
	DifficultyAchievement(ctx context.Context, userID string) ([]model.DifficultyAchievement, error)
}

// Aggregator reduces a user's stored statistics to a PerformanceSummary.
type Aggregator struct {
	reader PerformanceReader
}

// NewAggregator returns an Aggregator over reader.
func NewAggregator(reader PerformanceReader) *Aggregator {
	return &Aggregator{reader: reader}
}

// Summarize never fails: a source that cannot be read contributes an empty map.
// Rows sharing a key are averaged.
func (a *Aggregator) Summarize(ctx context.Context, userID string) model.PerformanceSummary {
	summary := model.NewPerformanceSummary()

	cats, err := a.reader.CategoryPerformance(ctx, userID)
	if err != nil {
		slog.Warn("category performance unavailable", "user_id", userID, "error", err)
	} else {
		summary.Categories = averageBy(cats, func(c model.CategoryPerformance) (string, float64) {
			return model.CategoryKey(c.MajorCategory, c.MinorCategory), c.CategoryProficiency
		})
	}

	diffs, err := a.reader.DifficultyAchievement(ctx, userID)
	if err != nil {
		slog.Warn("difficulty achievement unavailable", "user_id", userID, "error", err)
	} else {
		summary.Difficulties = averageBy(diffs, func(d model.DifficultyAchievement) (int, float64) {
			return d.DifficultyLevel, d.DifficultyAchievementRate
		})
	}

	return summary
}

func averageBy[T any, K comparable](rows []T, keyFn func(T) (K, float64)) map[K]float64 {
	sums := make(map[K]float64, len(rows))
	counts := make(map[K]int, len(rows))
	for _, r := range rows {
		k, v := keyFn(r)
		sums[k] += v
		counts[k]++
	}
	for k, n := range counts {
		sums[k] /= float64(n)
	}
	return sums
}
