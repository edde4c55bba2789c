package model

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		in    string
		want  MediaType
		known bool
	}{
		{"MOVIE", MediaMovie, true},
		{"youtube", MediaYouTubeVideo, true},
		{"youtube-video", MediaYouTubeVideo, true},
		{" audio book ", DefaultMediaType, false},
		{"audiobook", MediaAudiobook, true},
		{"HOLOGRAM", DefaultMediaType, false},
		{"", DefaultMediaType, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := ParseMediaType(tt.in)
			if got != tt.want || known != tt.known {
				t.Errorf("ParseMediaType(%q) = %q, %v; want %q, %v", tt.in, got, known, tt.want, tt.known)
			}
		})
	}
}

func TestParseGenre(t *testing.T) {
	tests := []struct {
		in   string
		want Genre
		ok   bool
	}{
		{"ACTION", GenreAction, true},
		{"sf", GenreSF, true},
		{"코미디", GenreComedy, true},
		{" 다큐멘터리 ", GenreDocumentary, true},
		{"POLKA", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseGenre(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseGenre(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
	if len(Genres()) != 14 {
		t.Errorf("vocabulary size = %d, want 14", len(Genres()))
	}
	if Genre("POLKA").Label() != "POLKA" {
		t.Error("unknown genre label should fall back to the code")
	}
}

func TestIDUnmarshal(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": "S-1", "b": 42, "c": null}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.A != "S-1" || v.B != "42" || v.C != "" {
		t.Errorf("ids = %q %q %q", v.A, v.B, v.C)
	}
}

func TestIDUnmarshalRejectsNonScalar(t *testing.T) {
	for _, in := range []string{`{"a": {}}`, `{"a": true}`, `{"a": []}`, `{"a": false}`} {
		var v struct {
			A ID `json:"a"`
		}
		if err := json.Unmarshal([]byte(in), &v); err == nil {
			t.Errorf("Unmarshal(%s) = %q, want error", in, v.A)
		}
	}
}

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2025-03-01T10:00:00Z"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"local date-time", `"2025-03-01T10:00:00"`, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"fractional", `"2025-03-01T10:00:00.123"`, time.Date(2025, 3, 1, 10, 0, 0, 123000000, time.UTC)},
		{"garbage", `"yesterday"`, time.Time{}},
		{"null", `null`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("got %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestNewRecommendationCreatedEvent(t *testing.T) {
	recs := []MediaRecommendation{
		{RecommendationID: "REC_1", UserID: "u1", Kind: KindUserRequested},
		{RecommendationID: "REC_2", UserID: "u1", Kind: KindUserRequested},
	}
	ev := NewRecommendationCreatedEvent(recs, []string{"ACTION"}, time.Unix(0, 0))
	if ev.EventType != EventRecommendationCreated || ev.UserID != "u1" || ev.RecommendationID != "REC_1" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.MediaCount != 2 || len(ev.RecommendationIDs) != 2 || ev.SessionID != "" {
		t.Errorf("unexpected batch fields %+v", ev)
	}
}
