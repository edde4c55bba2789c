package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "UserIDRequired")
	if got != "A user id is required." {
		t.Errorf("T(UserIDRequired) = %q", got)
	}
}

func TestTranslateKorean(t *testing.T) {
	ctx := initLang(t, "ko")

	got := T(ctx, "UserIDRequired")
	if got != "사용자 ID가 필요합니다." {
		t.Errorf("T(UserIDRequired) = %q", got)
	}

	got = Tp(ctx, "RecommendationsGenerated", 8)
	if got != "8개의 추천이 생성되었습니다." {
		t.Errorf("Tp(RecommendationsGenerated, 8) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "RecommendationsGenerated", 1)
	if got1 != "1 recommendation generated." {
		t.Errorf("Tp(RecommendationsGenerated, 1) = %q", got1)
	}

	got8 := Tp(ctx, "RecommendationsGenerated", 8)
	if got8 != "8 recommendations generated." {
		t.Errorf("Tp(RecommendationsGenerated, 8) = %q", got8)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "GenreCountInvalid", map[string]any{"Min": 1, "Max": 5})
	if got != "Select between 1 and 5 genres." {
		t.Errorf("Td(GenreCountInvalid) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewarePrefersAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"", "A user id is required."},
		{"ko-KR,ko;q=0.9", "사용자 ID가 필요합니다."},
		{"fr", "A user id is required."},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "UserIDRequired")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("translation = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFallbackToDefaultLanguage(t *testing.T) {
	if err := Init("ko"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got := T(context.Background(), "ServiceHealthy")
	if got != "미디어 추천 서비스가 정상 동작 중입니다." {
		t.Errorf("T without localizer = %q, want the Korean message", got)
	}
}
