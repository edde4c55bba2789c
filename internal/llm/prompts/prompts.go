package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/pavelanni/mediarec/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// MaxIncorrectDetails is the default number of incorrect answers rendered into a session prompt.
const MaxIncorrectDetails = 5

// Tier thresholds, in percent.
const (
	StrongThreshold   = 80.0
	ModerateThreshold = 60.0
)

const (
	tmplSessionAnalysis     = "session_analysis.tmpl"
	tmplPerformanceAnalysis = "performance_analysis.tmpl"
	tmplResult              = "result.tmpl"
)

// Tier classifies a percentage score.
func Tier(score float64) string {
	switch {
	case score >= StrongThreshold:
		return "strong"
	case score >= ModerateThreshold:
		return "moderate"
	default:
		return "needs work"
	}
}

// DifficultyLabel names a difficulty level.
func DifficultyLabel(level int) string {
	switch level {
	case 1:
		return "beginner"
	case 2:
		return "intermediate"
	case 3:
		return "advanced"
	default:
		return "unrated"
	}
}

var funcs = template.FuncMap{
	"tier":       Tier,
	"difficulty": DifficultyLabel,
	"pct":        func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"add":        func(a, b int) int { return a + b },
	"options":    formatOptions,
	"genre":      genreLine,
	"join":       strings.Join,
}

// Composer renders prompts from a fixed template set. It is safe for concurrent use.
type Composer struct {
	tmpl         *template.Template
	maxIncorrect int
}

// NewComposer parses the prompt templates found in fsys under templates/.
// A nil fsys selects the built-in templates.
func NewComposer(fsys fs.FS, maxIncorrect int) (*Composer, error) {
	if fsys == nil {
		fsys = templateFS
	}
	tmpl, err := template.New("prompts").Funcs(funcs).ParseFS(fsys, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	for _, name := range []string{tmplSessionAnalysis, tmplPerformanceAnalysis, tmplResult} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("prompt template %s not found", name)
		}
	}
	if maxIncorrect <= 0 {
		maxIncorrect = MaxIncorrectDetails
	}
	return &Composer{tmpl: tmpl, maxIncorrect: maxIncorrect}, nil
}

var defaultComposer = sync.OnceValue(func() *Composer {
	c, err := NewComposer(nil, MaxIncorrectDetails)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the composer backed by the built-in templates.
func Default() *Composer {
	return defaultComposer()
}

// ComposeAnalysisPrompt renders a session context with the built-in templates.
func ComposeAnalysisPrompt(lc model.LearningContext) model.Prompt {
	return Default().AnalysisPrompt(lc)
}

// ComposeSearchPrompt renders a performance summary and genres with the built-in templates.
func ComposeSearchPrompt(summary model.PerformanceSummary, genres []string) model.Prompt {
	return Default().SearchPrompt(summary, genres)
}

// ComposeResultPrompt renders a final recommendation request with the built-in templates.
func ComposeResultPrompt(req ResultRequest) model.Prompt {
	return Default().ResultPrompt(req)
}

type sessionData struct {
	model.LearningContext
	CompletedAt     string
	CategoryContext string
	Mistakes        []model.QuestionDetail
	Omitted         int
}

// AnalysisPrompt asks for a search phrase targeting the weak points of a finished session.
func (c *Composer) AnalysisPrompt(lc model.LearningContext) model.Prompt {
	incorrect := lc.Incorrect()
	omitted := 0
	if len(incorrect) > c.maxIncorrect {
		omitted = len(incorrect) - c.maxIncorrect
		incorrect = incorrect[:c.maxIncorrect]
	}
	completed := "unknown"
	if !lc.SessionCompletedAt.IsZero() {
		completed = lc.SessionCompletedAt.Format("2006-01-02 15:04:05")
	}
	data := sessionData{
		LearningContext: lc,
		CompletedAt:     completed,
		CategoryContext: CategoryContext(lc.MajorCategory, lc.MinorCategory),
		Mistakes:        incorrect,
		Omitted:         omitted,
	}
	return model.Prompt{Text: c.render(tmplSessionAnalysis, data), Kind: model.PromptSessionAnalysis}
}

type scoreRow struct {
	Key   string
	Level int
	Score float64
}

type performanceData struct {
	Categories   []scoreRow
	Difficulties []scoreRow
	Genres       []string
}

// genreLine renders a genre code with its display label, e.g. "DRAMA (드라마)".
func genreLine(code string) string {
	label := model.Genre(code).Label()
	if label == code {
		return code
	}
	return code + " (" + label + ")"
}

func newPerformanceData(summary model.PerformanceSummary, genres []string) performanceData {
	data := performanceData{Genres: genres}

	keys := make([]string, 0, len(summary.Categories))
	for k := range summary.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data.Categories = append(data.Categories, scoreRow{Key: k, Score: summary.Categories[k]})
	}

	levels := make([]int, 0, len(summary.Difficulties))
	for l := range summary.Difficulties {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	for _, l := range levels {
		data.Difficulties = append(data.Difficulties, scoreRow{Level: l, Score: summary.Difficulties[l]})
	}
	return data
}

// SearchPrompt asks for a search phrase from historical performance and genre preferences.
func (c *Composer) SearchPrompt(summary model.PerformanceSummary, genres []string) model.Prompt {
	data := newPerformanceData(summary, genres)
	return model.Prompt{Text: c.render(tmplPerformanceAnalysis, data), Kind: model.PromptPerformanceAnalysis}
}

// ResultRequest describes the final structured recommendation request.
type ResultRequest struct {
	Kind         model.RecommendationKind
	SearchPhrase string
	Count        int
	Context      *model.LearningContext    // real-time runs
	Summary      *model.PerformanceSummary // on-demand runs
	Genres       []string
}

type resultData struct {
	RealTime     bool
	SearchPhrase string
	Count        int
	PerType      int
	MixedTypes   []model.MediaType
	MediaTypes   string
	Context      *model.LearningContext
	Performance  *performanceData
	Genres       []string
}

var onDemandMix = []model.MediaType{
	model.MediaYouTubeVideo, model.MediaMovie, model.MediaDrama, model.MediaAudiobook,
}

// ResultPrompt asks the retrieval endpoint for a JSON array of recommendations.
func (c *Composer) ResultPrompt(req ResultRequest) model.Prompt {
	types := make([]string, 0, len(model.MediaTypes()))
	for _, mt := range model.MediaTypes() {
		types = append(types, string(mt))
	}
	data := resultData{
		RealTime:     req.Kind == model.KindRealTimeSession,
		SearchPhrase: req.SearchPhrase,
		Count:        req.Count,
		MediaTypes:   strings.Join(types, "|"),
		Context:      req.Context,
		Genres:       req.Genres,
	}
	if !data.RealTime {
		data.MixedTypes = onDemandMix
		if req.Count > 0 && req.Count%len(onDemandMix) == 0 {
			data.PerType = req.Count / len(onDemandMix)
		}
	}
	if req.Summary != nil {
		pd := newPerformanceData(*req.Summary, nil)
		data.Performance = &pd
	}

	kind := model.PromptRequestResult
	if data.RealTime {
		kind = model.PromptSessionResult
	}
	return model.Prompt{Text: c.render(tmplResult, data), Kind: kind}
}

func (c *Composer) render(name string, data any) string {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are validated at construction; a failure here is a template bug.
		panic(fmt.Sprintf("render %s: %v", name, err))
	}
	return strings.TrimSpace(buf.String()) + "\n"
}

func formatOptions(opts []string) string {
	parts := make([]string, 0, len(opts))
	for i, o := range opts {
		parts = append(parts, fmt.Sprintf("%c) %s", 'A'+rune(i%26), o))
	}
	return strings.Join(parts, ", ")
}
