package recommend

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mediarec/internal/model"
)

// Stamp carries the provenance applied to every record of one run.
type Stamp struct {
	UserID    string
	Kind      model.RecommendationKind
	SessionID string // required for real-time runs, ignored otherwise
	Prompt    model.Prompt
	Now       time.Time
}

// NewRecommendationID returns REC_<user>_<kind>_<8 random hex characters>.
func NewRecommendationID(userID string, kind model.RecommendationKind) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "REC_" + userID + "_" + string(kind) + "_" + suffix
}

// Assemble stamps candidates in order. The session reference is attached only
// for real-time runs.
func Assemble(cands []model.Candidate, s Stamp) []model.MediaRecommendation {
	recs := make([]model.MediaRecommendation, 0, len(cands))

	var session *string
	if s.Kind == model.KindRealTimeSession {
		id := s.SessionID
		session = &id
	}

	for _, c := range cands {
		recs = append(recs, model.MediaRecommendation{
			RecommendationID: NewRecommendationID(s.UserID, s.Kind),
			UserID:           s.UserID,
			Candidate:        c,
			Kind:             s.Kind,
			SessionID:        session,
			PromptUsed:       s.Prompt.Text,
			PromptKind:       s.Prompt.Kind,
			GeneratedAt:      s.Now,
		})
	}
	return recs
}
