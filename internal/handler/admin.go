package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/mediarec/internal/store"
)

type fixturesResponse struct {
	Status                string `json:"status"`
	Name                  string `json:"name"`
	Questions             int    `json:"questions"`
	SessionAnswers        int    `json:"sessionAnswers"`
	CategoryPerformance   int    `json:"categoryPerformance"`
	DifficultyAchievement int    `json:"difficultyAchievement"`
}

// handleUploadFixtures imports a fixtures file posted as the "fixtures_file"
// multipart field. Re-uploading identical content is a no-op.
func (h *Handler) handleUploadFixtures(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("fixtures_file")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "failed to read file")
		return
	}

	force := r.FormValue("force") == "true"
	status, f, err := h.store.LoadFixtures(r.Context(), header.Filename, data, force)
	if err != nil {
		slog.Error("fixture upload failed", "filename", header.Filename, "error", err)
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	code := http.StatusOK
	if status == store.ImportSkipped {
		code = http.StatusConflict
	}
	writeJSON(w, code, fixturesResponse{
		Status:                string(status),
		Name:                  header.Filename,
		Questions:             len(f.Questions),
		SessionAnswers:        len(f.SessionAnswers),
		CategoryPerformance:   len(f.CategoryPerformance),
		DifficultyAchievement: len(f.DifficultyAchievement),
	})
}
