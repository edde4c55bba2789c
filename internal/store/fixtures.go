package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"

	"github.com/pavelanni/mediarec/internal/model"
)

// ImportStatus reports what LoadFixtures did with a file.
type ImportStatus string

const (
	ImportApplied   ImportStatus = "applied"
	ImportUnchanged ImportStatus = "unchanged" // same content as the last import
	ImportSkipped   ImportStatus = "skipped"   // content changed since the last import
)

// LoadFixtures imports a fixture file identified by name unless its sha256
// matches the recorded one. A file whose content changed since the last
// import is skipped to keep recorded sessions stable, unless force is set.
func (s *Store) LoadFixtures(ctx context.Context, name string, data []byte, force bool) (ImportStatus, model.Fixtures, error) {
	var f model.Fixtures
	hash := sha256sum(data)
	storedHash, err := s.GetImportedFileHash(name)
	if err != nil {
		return "", f, fmt.Errorf("check import status for %s: %w", name, err)
	}

	if storedHash == hash {
		slog.Info("fixtures file unchanged, skipping", "name", name)
		return ImportUnchanged, f, nil
	}
	if storedHash != "" && !force {
		slog.Warn("fixtures file changed since last import, skipping", "name", name)
		return ImportSkipped, f, nil
	}

	if err := json.Unmarshal(data, &f); err != nil {
		return "", f, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := s.ImportFixtures(ctx, f); err != nil {
		return "", f, fmt.Errorf("import %s: %w", name, err)
	}
	if err := s.SetImportedFileHash(name, hash); err != nil {
		return "", f, fmt.Errorf("record import for %s: %w", name, err)
	}

	slog.Info("imported fixtures", "name", name,
		"questions", len(f.Questions),
		"answers", len(f.SessionAnswers),
		"category_rows", len(f.CategoryPerformance),
		"difficulty_rows", len(f.DifficultyAchievement))
	return ImportApplied, f, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
