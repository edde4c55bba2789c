// Package parser extracts recommendation candidates from loosely structured AI output.
package parser

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/text/language"

	"github.com/pavelanni/mediarec/internal/model"
)

// DefaultLanguage is assigned when an item carries no usable language tag.
const DefaultLanguage = "en"

const fence = "```"

// wrapperFields are the array fields searched when the payload is a single object.
var wrapperFields = []string{"recommendations", "items", "results", "data"}

// DropReason explains why an item was not turned into a candidate.
type DropReason string

const (
	DropNotObject    DropReason = "not_object"
	DropMissingField DropReason = "missing_field"
)

// Result is the outcome of parsing one response.
type Result struct {
	Candidates []model.Candidate
	Dropped    map[DropReason]int
	Coerced    int // items whose media type fell back to the default
}

// Parse returns the valid candidates in raw, in input order. It never fails:
// malformed input yields an empty slice.
func Parse(raw model.RawResponse) []model.Candidate {
	return ParseDetailed(raw).Candidates
}

// ParseDetailed is Parse with drop and coercion counts.
func ParseDetailed(raw model.RawResponse) Result {
	res := Result{Candidates: []model.Candidate{}, Dropped: map[DropReason]int{}}

	records, ok := decode(string(raw))
	if !ok {
		return res
	}

	for i, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			slog.Warn("dropping recommendation item", "index", i, "reason", DropNotObject)
			res.Dropped[DropNotObject]++
			continue
		}
		c, coerced, missing := toCandidate(obj)
		if missing != "" {
			slog.Warn("dropping recommendation item", "index", i, "reason", DropMissingField, "field", missing)
			res.Dropped[DropMissingField]++
			continue
		}
		if coerced {
			slog.Debug("unknown media type coerced", "index", i, "value", obj["mediaType"], "default", model.DefaultMediaType)
			res.Coerced++
		}
		res.Candidates = append(res.Candidates, c)
	}
	return res
}

// decode locates the structured payload in text and returns its items.
func decode(text string) ([]any, bool) {
	text = strings.TrimSpace(extractFenced(text))
	if text == "" {
		return nil, false
	}

	if slice, ok := sliceBetween(text, '[', ']'); ok {
		var items []any
		if err := json.Unmarshal([]byte(slice), &items); err == nil {
			return items, true
		}
	}

	// A single wrapping object such as {"recommendations": [...]}.
	if slice, ok := sliceBetween(text, '{', '}'); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(slice), &obj); err != nil {
			slog.Warn("recommendation payload is not valid JSON", "error", err)
			return nil, false
		}
		for _, field := range wrapperFields {
			if items, ok := obj[field].([]any); ok {
				return items, true
			}
		}
		slog.Warn("recommendation object has no item array", "fields", len(obj))
		return nil, false
	}

	slog.Warn("no structured payload found in response", "length", len(text))
	return nil, false
}

// extractFenced returns the content between the first and last fence markers,
// dropping a language tag after the opening fence. Text without a complete
// fence pair is returned unchanged.
func extractFenced(text string) string {
	first := strings.Index(text, fence)
	if first < 0 {
		return text
	}
	last := strings.LastIndex(text, fence)
	if last <= first {
		return text
	}
	inner := text[first+len(fence) : last]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		tag := strings.TrimSpace(inner[:nl])
		if tag != "" && !strings.ContainsAny(tag, "[{") {
			inner = inner[nl+1:]
		}
	}
	return inner
}

func sliceBetween(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

var requiredFields = []string{"title", "description", "url", "mediaType"}

func toCandidate(obj map[string]any) (model.Candidate, bool, string) {
	for _, f := range requiredFields {
		if stringField(obj, f) == "" {
			return model.Candidate{}, false, f
		}
	}

	mt, known := model.ParseMediaType(stringField(obj, "mediaType"))
	c := model.Candidate{
		Title:             stringField(obj, "title"),
		Description:       stringField(obj, "description"),
		URL:               stringField(obj, "url"),
		ThumbnailURL:      stringField(obj, "thumbnailUrl"),
		PlayURL:           stringField(obj, "playUrl"),
		MediaType:         mt,
		Platform:          stringField(obj, "platform"),
		DifficultyLevel:   stringField(obj, "difficultyLevel"),
		Reason:            firstString(obj, "recommendationReason", "reason"),
		EstimatedDuration: intField(obj, "estimatedDuration"),
		Language:          normalizeLanguage(stringField(obj, "language")),
		Category:          stringField(obj, "category"),
		VideoID:           stringField(obj, "videoId"),
		ChannelName:       stringField(obj, "channelName"),
		ViewCount:         int64Field(obj, "viewCount"),
		PublishedAt:       stringField(obj, "publishedAt"),
	}
	return c, !known, ""
}

// stringField returns a trimmed string form of obj[key]; numbers are formatted.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(obj, k); s != "" {
			return s
		}
	}
	return ""
}

func intField(obj map[string]any, key string) *int {
	n, ok := number(obj[key])
	if !ok || n > math.MaxInt32 {
		return nil
	}
	i := int(n)
	return &i
}

func int64Field(obj map[string]any, key string) *int64 {
	n, ok := number(obj[key])
	if !ok {
		return nil
	}
	return &n
}

// number accepts JSON numbers and numeric strings such as "1,234", "15 min" or "1.2M".
func number(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		if x < 0 || math.IsNaN(x) || x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		return parseCount(x)
	default:
		return 0, false
	}
}

func parseCount(s string) (int64, bool) {
	s = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	switch strings.TrimSpace(s[end:]) {
	case "K":
		f *= 1e3
	case "M":
		f *= 1e6
	case "B":
		f *= 1e9
	}
	if f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// normalizeLanguage canonicalizes a BCP 47 tag, falling back to DefaultLanguage.
func normalizeLanguage(s string) string {
	if s == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLanguage
	}
	return tag.String()
}
