package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	require.NoError(t, Init(lang))
	t.Cleanup(func() { _ = Init(DefaultLang) })
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	assert.Equal(t, "SmartHire", T(ctx, "AppTitle"))
	assert.Equal(t, "❌ Not Answered", T(ctx, "QuestionNotAnswered"))
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	assert.Equal(t, "❌ Нет ответа", T(ctx, "QuestionNotAnswered"))
	assert.Equal(t, "Отзыв недоступен.", T(ctx, "FeedbackNoFeedback"))
}

func TestDefaultWithoutInit(t *testing.T) {
	assert.Equal(t, "No feedback available.", T(context.Background(), "FeedbackNoFeedback"))
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	assert.Equal(t, "1 question selected.", Tp(ctx, "QuestionsSelected", 1))
	assert.Equal(t, "5 questions selected.", Tp(ctx, "QuestionsSelected", 5))
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "SummaryAnswered", map[string]any{"Answered": 3, "Total": 5})
	assert.Equal(t, "✅ You answered 3/5 questions.", got)
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	assert.Equal(t, "NonExistentKey", T(ctx, "NonExistentKey"))
}

func TestInitRejectsBadTag(t *testing.T) {
	assert.Error(t, Init("not a language!"))
}

func TestMiddlewareHonorsAcceptLanguage(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "QuestionNotAnswered")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "❌ Нет ответа", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "❌ Not Answered", got)
}
