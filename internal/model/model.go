package model

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecommendationKind distinguishes session-triggered batches from user-initiated ones.
type RecommendationKind string

const (
	// KindRealTimeSession marks records produced after a completed learning session.
	KindRealTimeSession RecommendationKind = "REAL_TIME_SESSION"
	// KindUserRequested marks records produced for an explicit user request.
	KindUserRequested RecommendationKind = "USER_REQUESTED"
)

// Valid reports whether k is one of the known kinds.
func (k RecommendationKind) Valid() bool {
	return k == KindRealTimeSession || k == KindUserRequested
}

// MediaType is the closed set of media tags a recommendation may carry.
type MediaType string

const (
	MediaVideo        MediaType = "VIDEO"
	MediaYouTubeVideo MediaType = "YOUTUBE_VIDEO"
	MediaMovie        MediaType = "MOVIE"
	MediaDrama        MediaType = "DRAMA"
	MediaAudiobook    MediaType = "AUDIOBOOK"
	MediaPodcast      MediaType = "PODCAST"
	MediaArticle      MediaType = "ARTICLE"
	MediaBook         MediaType = "BOOK"
)

// DefaultMediaType is used for any tag outside the enumeration.
const DefaultMediaType = MediaVideo

var mediaTypes = map[string]MediaType{
	"VIDEO":         MediaVideo,
	"YOUTUBE_VIDEO": MediaYouTubeVideo,
	"YOUTUBE":       MediaYouTubeVideo,
	"MOVIE":         MediaMovie,
	"DRAMA":         MediaDrama,
	"AUDIOBOOK":     MediaAudiobook,
	"PODCAST":       MediaPodcast,
	"AUDIO":         MediaPodcast,
	"ARTICLE":       MediaArticle,
	"BOOK":          MediaBook,
}

// ParseMediaType maps an upstream tag onto the enumeration.
// The boolean is false when the tag was unknown and DefaultMediaType was returned.
func ParseMediaType(s string) (MediaType, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if mt, ok := mediaTypes[key]; ok {
		return mt, true
	}
	return DefaultMediaType, false
}

// MediaTypes returns the canonical tags in declaration order.
func MediaTypes() []MediaType {
	return []MediaType{
		MediaVideo, MediaYouTubeVideo, MediaMovie, MediaDrama,
		MediaAudiobook, MediaPodcast, MediaArticle, MediaBook,
	}
}

// PromptKind records which template produced a prompt.
type PromptKind string

const (
	PromptSessionAnalysis     PromptKind = "SESSION_ANALYSIS"
	PromptPerformanceAnalysis PromptKind = "PERFORMANCE_ANALYSIS"
	PromptSessionResult       PromptKind = "SESSION_RESULT"
	PromptRequestResult       PromptKind = "REQUEST_RESULT"
)

// Prompt is composed directive text plus the template that produced it.
type Prompt struct {
	Text string
	Kind PromptKind
}

// RawResponse is unparsed text from an AI endpoint.
type RawResponse string

// QuestionDetail is one answered question inside a learning session.
type QuestionDetail struct {
	QuestionID      ID       `json:"questionId"`
	QuestionText    string   `json:"questionText"`
	Options         []string `json:"options"`
	CorrectAnswer   string   `json:"correctAnswer"`
	Explanation     string   `json:"explanation"`
	MajorCategory   string   `json:"majorCategory"`
	MinorCategory   string   `json:"minorCategory"`
	DifficultyLevel int      `json:"difficultyLevel"`
	UserAnswer      string   `json:"userAnswer"`
	IsCorrect       bool     `json:"isCorrect"`
	TimeSpent       int      `json:"timeSpent"` // seconds
	AttemptCount    int      `json:"attemptCount"`
}

// LearningContext is the payload of a session-completed signal.
type LearningContext struct {
	SessionID          ID        `json:"sessionId" validate:"required"`
	UserID             ID        `json:"userId" validate:"required"`
	SessionCreatedAt   Timestamp `json:"sessionCreatedAt"`
	SessionStartedAt   Timestamp `json:"sessionStartedAt"`
	SessionCompletedAt Timestamp `json:"sessionCompletedAt"`
	SessionStatus      string    `json:"sessionStatus"`
	SessionType        string    `json:"sessionType"`

	TotalQuestions     int     `json:"totalQuestions" validate:"gte=0"`
	AnsweredQuestions  int     `json:"answeredQuestions" validate:"gte=0"`
	CorrectAnswers     int     `json:"correctAnswers" validate:"gte=0"`
	WrongAnswers       int     `json:"wrongAnswers" validate:"gte=0"`
	ProgressPercentage float64 `json:"progressPercentage"`

	AvgTimeSpent             float64 `json:"avgTimeSpent"`
	TotalLearningTimeMinutes int     `json:"totalLearningTimeMinutes"`

	MajorCategory      string `json:"majorCategory"`
	MinorCategory      string `json:"minorCategory"`
	QuestionType       string `json:"questionType"`
	AvgDifficultyLevel int    `json:"avgDifficultyLevel"`

	AccuracyRate float64 `json:"accuracyRate"`
	ErrorRate    float64 `json:"errorRate"`

	SessionQuestions []QuestionDetail `json:"sessionQuestions"`
}

// Incorrect returns the incorrectly answered questions in session order.
func (c LearningContext) Incorrect() []QuestionDetail {
	var out []QuestionDetail
	for _, q := range c.SessionQuestions {
		if !q.IsCorrect {
			out = append(out, q)
		}
	}
	return out
}

// PerformanceSummary holds per-category proficiency and per-difficulty achievement.
type PerformanceSummary struct {
	Categories   map[string]float64 // keyed by CategoryKey
	Difficulties map[int]float64
}

// NewPerformanceSummary returns a summary with empty, non-nil maps.
func NewPerformanceSummary() PerformanceSummary {
	return PerformanceSummary{
		Categories:   map[string]float64{},
		Difficulties: map[int]float64{},
	}
}

// CategoryKey joins a major and minor category into a summary key.
func CategoryKey(major, minor string) string {
	return major + "-" + minor
}

// CategoryPerformance is one row of the category read model.
type CategoryPerformance struct {
	UserID              string  `json:"user_id"`
	MajorCategory       string  `json:"major_category"`
	MinorCategory       string  `json:"minor_category"`
	QuestionsSolved     int     `json:"questions_solved"`
	CorrectAnswers      int     `json:"correct_answers"`
	CategoryProficiency float64 `json:"category_proficiency"`
}

// DifficultyAchievement is one row of the difficulty read model.
type DifficultyAchievement struct {
	UserID                    string  `json:"user_id"`
	DifficultyLevel           int     `json:"difficulty_level"`
	QuestionsSolved           int     `json:"questions_solved"`
	CorrectAnswers            int     `json:"correct_answers"`
	DifficultyAchievementRate float64 `json:"difficulty_achievement_rate"`
}

// Candidate is a parsed recommendation item that has not been stamped yet.
type Candidate struct {
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	URL               string    `json:"url"`
	ThumbnailURL      string    `json:"thumbnailUrl,omitempty"`
	PlayURL           string    `json:"playUrl,omitempty"`
	MediaType         MediaType `json:"mediaType"`
	Platform          string    `json:"platform,omitempty"`
	DifficultyLevel   string    `json:"difficultyLevel,omitempty"`
	Reason            string    `json:"recommendationReason,omitempty"`
	EstimatedDuration *int      `json:"estimatedDuration,omitempty"` // minutes
	Language          string    `json:"language"`
	Category          string    `json:"category,omitempty"`
	VideoID           string    `json:"videoId,omitempty"`
	ChannelName       string    `json:"channelName,omitempty"`
	ViewCount         *int64    `json:"viewCount,omitempty"`
	PublishedAt       string    `json:"publishedAt,omitempty"`
}

// MediaRecommendation is a stamped, persistable recommendation.
type MediaRecommendation struct {
	RecommendationID string `json:"recommendationId"`
	UserID           string `json:"userId"`
	Candidate
	Kind        RecommendationKind `json:"recommendationType"`
	SessionID   *string            `json:"sessionId,omitempty"`
	PromptUsed  string             `json:"promptUsed,omitempty"`
	PromptKind  PromptKind         `json:"promptKind,omitempty"`
	GeneratedAt time.Time          `json:"generatedAt"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ID is an identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON accepts quoted and bare numeric identifiers. Objects, arrays
// and booleans are rejected.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) == 0 {
		return fmt.Errorf("id: empty value")
	}
	switch c := data[0]; {
	case c == '"':
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(s)
	case c == '-' || (c >= '0' && c <= '9'):
		// The decoder has already checked number syntax.
		*id = ID(data)
	default:
		return fmt.Errorf("id: want string or number, got %s", data)
	}
	return nil
}

func (id ID) String() string { return string(id) }

// Timestamp is a time that also accepts zone-less ISO-8601 values.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON parses RFC 3339 and local date-time strings.
// Unparseable values leave the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Format(time.RFC3339))), nil
}
