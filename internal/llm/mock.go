package llm

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/pavelanni/mediarec/internal/model"
)

// MockSearchPhrase is returned by the mock backend for analysis prompts.
const MockSearchPhrase = "everyday English conversation practice for beginners"

// Mock is an offline Generator that answers with canned responses shaped like
// real endpoint output: a bare phrase for analysis prompts and a fenced JSON
// array for result prompts.
type Mock struct{}

// NewMock returns the offline backend.
func NewMock() *Mock { return &Mock{} }

// Generate implements Generator.
func (m *Mock) Generate(ctx context.Context, p model.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch p.Kind {
	case model.PromptSessionResult:
		return fenceJSON(mockItems([]model.MediaType{model.MediaYouTubeVideo, model.MediaYouTubeVideo}))
	case model.PromptRequestResult:
		return fenceJSON(mockItems([]model.MediaType{
			model.MediaYouTubeVideo, model.MediaYouTubeVideo,
			model.MediaMovie, model.MediaMovie,
			model.MediaDrama, model.MediaDrama,
			model.MediaAudiobook, model.MediaAudiobook,
		}))
	default:
		return MockSearchPhrase, nil
	}
}

type mockItem struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	URL               string `json:"url"`
	ThumbnailURL      string `json:"thumbnailUrl,omitempty"`
	PlayURL           string `json:"playUrl,omitempty"`
	MediaType         string `json:"mediaType"`
	Platform          string `json:"platform"`
	DifficultyLevel   string `json:"difficultyLevel"`
	Reason            string `json:"recommendationReason"`
	EstimatedDuration int    `json:"estimatedDuration"`
	Language          string `json:"language"`
	Category          string `json:"category"`
	VideoID           string `json:"videoId,omitempty"`
	ChannelName       string `json:"channelName,omitempty"`
}

func mockItems(types []model.MediaType) []mockItem {
	items := make([]mockItem, 0, len(types))
	for i, mt := range types {
		n := i + 1
		it := mockItem{
			Title:           fmt.Sprintf("Sample %s %d", strings.ToLower(strings.ReplaceAll(string(mt), "_", " ")), n),
			Description:     "Offline sample recommendation used when no AI endpoint is configured.",
			MediaType:       string(mt),
			DifficultyLevel: "beginner",
			Reason:          "Reinforces everyday expressions at an easy pace.",
			Language:        "en",
			Category:        "daily conversation",
		}
		switch mt {
		case model.MediaYouTubeVideo:
			id := fmt.Sprintf("mock%07d", n)
			it.URL = "https://www.youtube.com/watch?v=" + id
			it.PlayURL = "https://www.youtube.com/embed/" + id
			it.ThumbnailURL = "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
			it.VideoID = id
			it.ChannelName = "Mock English"
			it.Platform = "YouTube"
			it.EstimatedDuration = 3
		case model.MediaAudiobook:
			it.URL = fmt.Sprintf("https://www.audible.com/pd/mock-%d", n)
			it.Platform = "Audible"
			it.EstimatedDuration = 300
		default:
			it.URL = "N/A"
			it.Platform = "Netflix"
			it.EstimatedDuration = 110
		}
		items = append(items, it)
	}
	return items
}

func fenceJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal mock response: %w", err)
	}
	return "```json\n" + string(data) + "\n```", nil
}
