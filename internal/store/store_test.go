package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pavelanni/mediarec/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecommendation(id, userID string, kind model.RecommendationKind, session *string) model.MediaRecommendation {
	duration := 3
	views := int64(1200)
	return model.MediaRecommendation{
		RecommendationID: id,
		UserID:           userID,
		Candidate: model.Candidate{
			Title:             "Title " + id,
			Description:       "Description " + id,
			URL:               "https://example.com/" + id,
			MediaType:         model.MediaYouTubeVideo,
			Platform:          "YouTube",
			Reason:            "practice",
			EstimatedDuration: &duration,
			Language:          "en",
			ViewCount:         &views,
		},
		Kind:        kind,
		SessionID:   session,
		PromptUsed:  "prompt",
		PromptKind:  model.PromptSessionResult,
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func saveTestRecommendations(t *testing.T, s *Store, recs ...model.MediaRecommendation) {
	t.Helper()
	if err := s.SaveRecommendations(context.Background(), recs); err != nil {
		t.Fatalf("SaveRecommendations: %v", err)
	}
}

func TestSaveAndListRecommendations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty DB.
	list, err := s.ListRecommendations(ctx, "u1", "")
	if err != nil {
		t.Fatalf("ListRecommendations: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	session := "S1"
	saveTestRecommendations(t, s,
		testRecommendation("REC_1", "u1", model.KindRealTimeSession, &session),
		testRecommendation("REC_2", "u1", model.KindRealTimeSession, &session),
	)
	saveTestRecommendations(t, s, testRecommendation("REC_3", "u1", model.KindUserRequested, nil))
	saveTestRecommendations(t, s, testRecommendation("REC_4", "u2", model.KindUserRequested, nil))

	tests := []struct {
		name string
		user string
		kind model.RecommendationKind
		want []string
	}{
		{"all kinds newest first", "u1", "", []string{"REC_3", "REC_2", "REC_1"}},
		{"user requested only", "u1", model.KindUserRequested, []string{"REC_3"}},
		{"real time only", "u1", model.KindRealTimeSession, []string{"REC_2", "REC_1"}},
		{"other user", "u2", "", []string{"REC_4"}},
		{"unknown user", "u9", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.ListRecommendations(ctx, tt.user, tt.kind)
			if err != nil {
				t.Fatalf("ListRecommendations: %v", err)
			}
			if len(recs) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(recs), len(tt.want))
			}
			for i, id := range tt.want {
				if recs[i].RecommendationID != id {
					t.Errorf("record %d = %s, want %s", i, recs[i].RecommendationID, id)
				}
			}
		})
	}
}

func TestRecommendationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := "S7"
	in := testRecommendation("REC_RT", "u1", model.KindRealTimeSession, &session)
	saveTestRecommendations(t, s, in)

	got, err := s.GetRecommendation(ctx, "REC_RT")
	if err != nil {
		t.Fatalf("GetRecommendation: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.Title != in.Title || got.URL != in.URL || got.MediaType != in.MediaType || got.Kind != in.Kind {
		t.Errorf("unexpected record %+v", got)
	}
	if got.SessionID == nil || *got.SessionID != "S7" {
		t.Errorf("session = %v, want S7", got.SessionID)
	}
	if got.EstimatedDuration == nil || *got.EstimatedDuration != 3 {
		t.Errorf("duration = %v, want 3", got.EstimatedDuration)
	}
	if got.ViewCount == nil || *got.ViewCount != 1200 {
		t.Errorf("view count = %v, want 1200", got.ViewCount)
	}
	if !got.GeneratedAt.Equal(in.GeneratedAt) {
		t.Errorf("generated at = %v, want %v", got.GeneratedAt, in.GeneratedAt)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("created and updated timestamps should be set")
	}

	// Missing record.
	missing, err := s.GetRecommendation(ctx, "REC_NONE")
	if err != nil || missing != nil {
		t.Errorf("GetRecommendation(missing) = %v, %v", missing, err)
	}

	// Nullable fields stay nil.
	bare := testRecommendation("REC_BARE", "u1", model.KindUserRequested, nil)
	bare.EstimatedDuration, bare.ViewCount = nil, nil
	saveTestRecommendations(t, s, bare)
	got, _ = s.GetRecommendation(ctx, "REC_BARE")
	if got.SessionID != nil || got.EstimatedDuration != nil || got.ViewCount != nil {
		t.Errorf("nullable fields should be nil: %+v", got)
	}
}

func TestSaveRecommendationsIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveTestRecommendations(t, s, testRecommendation("REC_A", "u1", model.KindUserRequested, nil))

	err := s.SaveRecommendations(ctx, []model.MediaRecommendation{
		testRecommendation("REC_B", "u1", model.KindUserRequested, nil),
		testRecommendation("REC_A", "u1", model.KindUserRequested, nil),
	})
	if !errors.Is(err, ErrDuplicateRecommendation) {
		t.Fatalf("error = %v, want ErrDuplicateRecommendation", err)
	}

	count, err := s.RecommendationCount(ctx)
	if err != nil {
		t.Fatalf("RecommendationCount: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (failed batch must not be partially stored)", count)
	}
	if rec, _ := s.GetRecommendation(ctx, "REC_B"); rec != nil {
		t.Error("REC_B should have been rolled back")
	}

	// Empty batch is a no-op.
	if err := s.SaveRecommendations(ctx, nil); err != nil {
		t.Errorf("SaveRecommendations(nil): %v", err)
	}
}

func TestListSessionRecommendations(t *testing.T) {
	s := newTestStore(t)
	s1, s2 := "S1", "S2"
	saveTestRecommendations(t, s,
		testRecommendation("REC_1", "u1", model.KindRealTimeSession, &s1),
		testRecommendation("REC_2", "u1", model.KindRealTimeSession, &s2),
		testRecommendation("REC_3", "u1", model.KindRealTimeSession, &s1),
	)
	recs, err := s.ListSessionRecommendations(context.Background(), "S1")
	if err != nil {
		t.Fatalf("ListSessionRecommendations: %v", err)
	}
	if len(recs) != 2 || recs[0].RecommendationID != "REC_1" || recs[1].RecommendationID != "REC_3" {
		t.Errorf("unexpected records %v", recs)
	}
}

func testFixtures() model.Fixtures {
	return model.Fixtures{
		Questions: []model.QuestionImport{
			{ID: "q1", Text: "Where is the gate?", Options: []string{"here", "there"}, CorrectAnswer: "there", MajorCategory: "여행", MinorCategory: "공항", DifficultyLevel: 1},
			{ID: "q2", Text: "Pick the polite request", Options: []string{"Give me", "Could I have"}, CorrectAnswer: "Could I have", Explanation: "modal verbs", MajorCategory: "여행", MinorCategory: "식당", DifficultyLevel: 2},
			{ID: "q3", Text: "Open question"},
		},
		SessionAnswers: []model.SessionAnswerImport{
			{SessionID: "S1", UserID: "u1", QuestionID: "q2", UserAnswer: "Give me", TimeSpent: 12},
			{SessionID: "S1", UserID: "u1", QuestionID: "q1", UserAnswer: "there", IsCorrect: true, TimeSpent: 5, AttemptCount: 2},
			{SessionID: "S2", UserID: "u1", QuestionID: "q3"},
		},
		CategoryPerformance: []model.CategoryPerformance{
			{UserID: "u1", MajorCategory: "여행", MinorCategory: "공항", QuestionsSolved: 10, CorrectAnswers: 9, CategoryProficiency: 90},
			{UserID: "u1", MajorCategory: "비즈니스", MinorCategory: "회의", QuestionsSolved: 10, CorrectAnswers: 4, CategoryProficiency: 40},
			{UserID: "u2", MajorCategory: "여행", MinorCategory: "공항", CategoryProficiency: 10},
		},
		DifficultyAchievement: []model.DifficultyAchievement{
			{UserID: "u1", DifficultyLevel: 3, DifficultyAchievementRate: 55},
			{UserID: "u1", DifficultyLevel: 1, DifficultyAchievementRate: 95},
		},
	}
}

func TestImportFixturesAndReadModels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.ImportFixtures(ctx, testFixtures()); err != nil {
		t.Fatalf("ImportFixtures: %v", err)
	}

	cats, err := s.CategoryPerformance(ctx, "u1")
	if err != nil {
		t.Fatalf("CategoryPerformance: %v", err)
	}
	if len(cats) != 2 || cats[0].MajorCategory != "비즈니스" || cats[1].CategoryProficiency != 90 {
		t.Errorf("unexpected categories %+v", cats)
	}

	diffs, err := s.DifficultyAchievement(ctx, "u1")
	if err != nil {
		t.Fatalf("DifficultyAchievement: %v", err)
	}
	if len(diffs) != 2 || diffs[0].DifficultyLevel != 1 || diffs[1].DifficultyAchievementRate != 55 {
		t.Errorf("unexpected difficulties %+v", diffs)
	}

	none, err := s.CategoryPerformance(ctx, "nobody")
	if err != nil || len(none) != 0 {
		t.Errorf("CategoryPerformance(nobody) = %v, %v", none, err)
	}

	// Re-importing updates read-model rows in place.
	update := model.Fixtures{CategoryPerformance: []model.CategoryPerformance{
		{UserID: "u1", MajorCategory: "여행", MinorCategory: "공항", CategoryProficiency: 70},
	}}
	if err := s.ImportFixtures(ctx, update); err != nil {
		t.Fatalf("ImportFixtures update: %v", err)
	}
	cats, _ = s.CategoryPerformance(ctx, "u1")
	if len(cats) != 2 || cats[1].CategoryProficiency != 70 {
		t.Errorf("expected updated proficiency 70, got %+v", cats)
	}
}

func TestSessionQuestionDetails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.ImportFixtures(ctx, testFixtures()); err != nil {
		t.Fatalf("ImportFixtures: %v", err)
	}

	details, err := s.SessionQuestionDetails(ctx, "S1")
	if err != nil {
		t.Fatalf("SessionQuestionDetails: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("got %d details, want 2", len(details))
	}
	first := details[0]
	if first.QuestionID != "q2" || first.IsCorrect || first.UserAnswer != "Give me" || first.Explanation != "modal verbs" {
		t.Errorf("unexpected first detail %+v", first)
	}
	if len(first.Options) != 2 || first.Options[1] != "Could I have" {
		t.Errorf("options = %v", first.Options)
	}
	if first.AttemptCount != 1 {
		t.Errorf("default attempt count = %d, want 1", first.AttemptCount)
	}
	if !details[1].IsCorrect || details[1].AttemptCount != 2 || details[1].DifficultyLevel != 1 {
		t.Errorf("unexpected second detail %+v", details[1])
	}

	empty, err := s.SessionQuestionDetails(ctx, "S2")
	if err != nil || len(empty) != 1 || len(empty[0].Options) != 0 {
		t.Errorf("SessionQuestionDetails(S2) = %+v, %v", empty, err)
	}

	none, err := s.SessionQuestionDetails(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("SessionQuestionDetails(missing) = %v, %v", none, err)
	}
}

func TestExportRecommendations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	session := "S1"
	for i := range 3 {
		saveTestRecommendations(t, s, testRecommendation(fmt.Sprintf("REC_U1_%d", i), "u1", model.KindRealTimeSession, &session))
	}
	saveTestRecommendations(t, s, testRecommendation("REC_U1_R", "u1", model.KindUserRequested, nil))
	saveTestRecommendations(t, s, testRecommendation("REC_U2_R", "u2", model.KindUserRequested, nil))

	tests := []struct {
		name      string
		user      string
		kind      model.RecommendationKind
		wantTotal int
		wantUsers int
	}{
		{"everything", "", "", 5, 2},
		{"one user", "u1", "", 4, 1},
		{"requested only", "", model.KindUserRequested, 2, 2},
		{"unknown user", "u9", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			export, err := s.ExportRecommendations(ctx, tt.user, tt.kind)
			if err != nil {
				t.Fatalf("ExportRecommendations: %v", err)
			}
			if export.Total != tt.wantTotal || len(export.Users) != tt.wantUsers {
				t.Errorf("total=%d users=%d, want %d and %d", export.Total, len(export.Users), tt.wantTotal, tt.wantUsers)
			}
		})
	}

	export, _ := s.ExportRecommendations(ctx, "u1", "")
	if h := export.Users[0]; h.RealTimeCount != 3 || h.RequestedCount != 1 {
		t.Errorf("counts = %d/%d, want 3/1", h.RealTimeCount, h.RequestedCount)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	// Set hash.
	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestLoadFixtures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	data := []byte(`{
		"questions": [{"id": "q1", "text": "Where is the gate?", "options": ["a", "b"], "correct_answer": "a"}],
		"session_answers": [{"session_id": "S1", "user_id": "u1", "question_id": "q1", "user_answer": "b"}],
		"category_performance": [{"user_id": "u1", "major_category": "여행", "minor_category": "공항", "category_proficiency": 72.5}]
	}`)

	tests := []struct {
		name  string
		data  []byte
		force bool
		want  ImportStatus
	}{
		{"first import", data, false, ImportApplied},
		{"same content", data, false, ImportUnchanged},
		{"changed content", append([]byte(" "), data...), false, ImportSkipped},
		{"changed content forced", append([]byte("  "), data...), true, ImportApplied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, err := s.LoadFixtures(ctx, "fixtures.json", tt.data, tt.force)
			if err != nil {
				t.Fatalf("LoadFixtures: %v", err)
			}
			if status != tt.want {
				t.Errorf("status = %s, want %s", status, tt.want)
			}
		})
	}

	cats, _ := s.CategoryPerformance(ctx, "u1")
	if len(cats) != 1 || cats[0].CategoryProficiency != 72.5 {
		t.Errorf("unexpected categories %+v", cats)
	}
	details, err := s.SessionQuestionDetails(ctx, "S1")
	if err != nil {
		t.Fatalf("SessionQuestionDetails: %v", err)
	}
	if len(details) != 1 {
		t.Errorf("session S1 has %d question details after a forced re-import, want 1", len(details))
	}

	if _, _, err := s.LoadFixtures(ctx, "broken.json", []byte("{"), false); err == nil {
		t.Error("malformed fixtures should fail")
	}
}

func TestImportFixturesReplacesAnswers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	fixtures := func(answer string, correct bool) model.Fixtures {
		return model.Fixtures{
			Questions: []model.QuestionImport{{ID: "q1", Text: "Where is the gate?", CorrectAnswer: "a"}},
			SessionAnswers: []model.SessionAnswerImport{
				{SessionID: "S1", UserID: "u1", QuestionID: "q1", UserAnswer: answer, IsCorrect: correct},
			},
		}
	}

	if err := s.ImportFixtures(ctx, fixtures("b", false)); err != nil {
		t.Fatalf("ImportFixtures: %v", err)
	}
	if err := s.ImportFixtures(ctx, fixtures("a", true)); err != nil {
		t.Fatalf("ImportFixtures again: %v", err)
	}

	details, err := s.SessionQuestionDetails(ctx, "S1")
	if err != nil {
		t.Fatalf("SessionQuestionDetails: %v", err)
	}
	if len(details) != 1 {
		t.Fatalf("details = %d, want 1", len(details))
	}
	if details[0].UserAnswer != "a" || !details[0].IsCorrect {
		t.Errorf("answer = %q correct=%v, want the re-imported answer", details[0].UserAnswer, details[0].IsCorrect)
	}
}
