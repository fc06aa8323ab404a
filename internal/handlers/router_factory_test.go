package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dailyquiz/internal/config"
	"dailyquiz/internal/middleware"
	"dailyquiz/internal/models"
	"dailyquiz/internal/observability"
	"dailyquiz/internal/services"
	contextutils "dailyquiz/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router      *gin.Engine
	quiz        *mockDailyQuizService
	submissions *mockSubmissionService
	questions   *mockQuestionService
	stats       *mockStatsRecorder
}

func newTestAPI(t *testing.T, mutate func(cfg *config.Config)) *testAPI {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			SessionSecret:        "test-secret",
			CORSOrigins:          []string{"http://localhost:3000"},
			TrustIdentityHeaders: true,
			AdminLabels:          []string{"root"},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	api := &testAPI{
		quiz:        &mockDailyQuizService{},
		submissions: &mockSubmissionService{},
		questions:   &mockQuestionService{},
		stats:       &mockStatsRecorder{},
	}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	api.router = NewRouter(cfg, api.quiz, api.submissions, api.questions, api.stats, nil,
		observability.NewHTTPMetrics("test"), logger)

	t.Cleanup(func() {
		api.quiz.AssertExpectations(t)
		api.submissions.AssertExpectations(t)
		api.questions.AssertExpectations(t)
		api.stats.AssertExpectations(t)
	})
	return api
}

var (
	asAmy   = map[string]string{middleware.HeaderUserLabel: "amy"}
	asAdmin = map[string]string{middleware.HeaderUserLabel: "root", middleware.HeaderUserAdmin: "true"}
)

func (a *testAPI) do(method, path, body string, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sampleQuestion(id, topic string) *models.Question {
	return &models.Question{
		ID:           id,
		Stem:         "Stem " + id,
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: 2,
		Explanation:  "because",
		Topic:        topic,
		Subject:      "biology",
		Difficulty:   models.DifficultyEasy,
		Active:       true,
	}
}

func sampleQuiz(version int, ids ...string) *models.DailyQuiz {
	generated := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	quiz := &models.DailyQuiz{
		Assignment: &models.DailyAssignment{
			Date:        "2025-03-14",
			Subject:     "biology",
			QuizVersion: version,
			GeneratedAt: &generated,
			QuestionIDs: ids,
		},
	}
	for _, id := range ids {
		quiz.Questions = append(quiz.Questions, sampleQuestion(id, "cells"))
	}
	return quiz
}

func TestRouter_HealthMetricsAndVersion(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = api.do(http.MethodGet, "/v1/version", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "version")

	w = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dailyquiz_test_requests_total")
}

func TestRouter_QuizRoutesRequireIdentity(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/v1/quiz/biology/today"},
		{http.MethodPost, "/v1/quiz/biology/retry"},
		{http.MethodPost, "/v1/quiz/biology/attempts"},
		{http.MethodGet, "/v1/quiz/biology/attempts"},
	} {
		w := api.do(r.method, r.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.path)
	}
}

func TestDailyQuizHandler_GetToday(t *testing.T) {
	api := newTestAPI(t, nil)
	api.quiz.On("GetTodayQuiz", mock.Anything, "biology").Return(sampleQuiz(1, "q1", "q2"), nil).Once()

	w := api.do(http.MethodGet, "/v1/quiz/Biology/today", "", asAmy)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "2025-03-14", body["date"])
	assert.Equal(t, "biology", body["subject"])
	assert.EqualValues(t, 1, body["quiz_version"])
	assert.NotContains(t, body, "message")

	questions := body["questions"].([]interface{})
	require.Len(t, questions, 2)
	first := questions[0].(map[string]interface{})
	assert.Equal(t, "q1", first["id"])
	assert.NotContains(t, first, "correct_index")
	assert.NotContains(t, first, "explanation")
}

func TestDailyQuizHandler_GetTodayEmptyQuiz(t *testing.T) {
	api := newTestAPI(t, nil)
	api.quiz.On("GetTodayQuiz", mock.Anything, "physics").Return(sampleQuiz(1), nil).Once()

	w := api.do(http.MethodGet, "/v1/quiz/physics/today", "", asAmy)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, services.NoQuizMessage, body["message"])
	assert.Empty(t, body["questions"])
}

func TestDailyQuizHandler_GetTodayErrors(t *testing.T) {
	api := newTestAPI(t, nil)
	api.quiz.On("GetTodayQuiz", mock.Anything, "alchemy").Return(nil, contextutils.ErrUnsupportedSubject).Once()
	api.quiz.On("GetTodayQuiz", mock.Anything, "biology").
		Return(nil, contextutils.StoreError(errors.New("connection refused"), "failed to load assignment")).Once()

	w := api.do(http.MethodGet, "/v1/quiz/alchemy/today", "", asAmy)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_SUBJECT", decode(t, w)["code"])

	w = api.do(http.MethodGet, "/v1/quiz/biology/today", "", asAmy)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, true, decode(t, w)["retryable"])
}

func TestDailyQuizHandler_Retry(t *testing.T) {
	api := newTestAPI(t, nil)
	v2 := sampleQuiz(2, "q7", "q8")
	api.quiz.On("Regenerate", mock.Anything, "biology").Return(v2.Assignment, nil).Once()
	api.quiz.On("ResolveAssignment", mock.Anything, v2.Assignment).Return(v2, nil).Once()

	w := api.do(http.MethodPost, "/v1/quiz/biology/retry", "", asAmy)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 2, body["quiz_version"])
	assert.Len(t, body["questions"], 2)
}

func TestDailyQuizHandler_SubmitAttempt(t *testing.T) {
	api := newTestAPI(t, nil)
	q1, q2 := sampleQuestion("q1", "cells"), sampleQuestion("q2", "genetics")
	answers := models.Answers{{QuestionID: "q1", SelectedIndex: 2}, {QuestionID: "q2", SelectedIndex: 0}}
	sub := &models.Submission{
		Attempt: &models.Attempt{
			ID:            "att-1",
			Date:          "2025-03-14",
			Subject:       "biology",
			UserLabel:     "amy",
			AttemptNumber: 1,
			QuizVersion:   1,
			QuestionIDs:   []string{"q1", "q2"},
			Answers:       answers,
			Score:         1,
			TopicBreakdown: models.TopicBreakdown{
				"cells":    {Correct: 1, Total: 1},
				"genetics": {Correct: 0, Total: 1},
			},
			IPHash: "secret-hash",
		},
		Questions: []*models.Question{q1, q2},
	}
	api.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req *services.SubmitRequest) bool {
		return req.UserLabel == "amy" && req.Subject == "biology" &&
			len(req.Answers) == 2 && req.DurationSeconds == 42 && req.IP != ""
	})).Return(sub, nil).Once()

	w := api.do(http.MethodPost, "/v1/quiz/biology/attempts",
		`{"answers":[{"question_id":"q1","selected_index":2},{"question_id":"q2","selected_index":0}],"duration_seconds":42}`, asAmy)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret-hash")

	body := decode(t, w)
	attempt := body["attempt"].(map[string]interface{})
	assert.EqualValues(t, 1, attempt["score"])
	assert.EqualValues(t, 1, attempt["attempt_number"])

	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "q1", first["question_id"])
	assert.Equal(t, true, first["is_correct"])
	assert.Equal(t, "because", first["explanation"])
	second := results[1].(map[string]interface{})
	assert.Equal(t, false, second["is_correct"])
	assert.EqualValues(t, 0, second["selected_index"])
}

func TestDailyQuizHandler_SubmitAttemptErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"wrong count", contextutils.NewValidationError("Must answer all %d questions", 6), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"empty quiz", &services.NoQuizAvailableError{Subject: "biology", Date: "2025-03-14"}, http.StatusConflict, "NO_QUIZ_AVAILABLE"},
		{"store down", contextutils.StoreError(errors.New("i/o timeout"), "failed to store attempt"), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)
			api.submissions.On("Submit", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := api.do(http.MethodPost, "/v1/quiz/biology/attempts", `{"answers":[]}`, asAmy)
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, false, body["retryable"])
		})
	}
}

func TestDailyQuizHandler_SubmitAttemptMalformedBody(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodPost, "/v1/quiz/biology/attempts", `{"answers": "nope"`, asAmy)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	api.submissions.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestDailyQuizHandler_ListAttempts(t *testing.T) {
	api := newTestAPI(t, nil)
	api.submissions.On("ListAttempts", mock.Anything, "amy", "biology").Return(nil, nil).Once()
	api.submissions.On("ListAttempts", mock.Anything, "amy", "chemistry").
		Return([]*models.Attempt{{ID: "a1", AttemptNumber: 1}, {ID: "a2", AttemptNumber: 2}}, nil).Once()

	w := api.do(http.MethodGet, "/v1/quiz/biology/attempts", "", asAmy)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"attempts":[]}`, w.Body.String())

	w = api.do(http.MethodGet, "/v1/quiz/chemistry/attempts", "", asAmy)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["attempts"], 2)
}

func TestRouter_AdminRoutesRequireAdmin(t *testing.T) {
	api := newTestAPI(t, nil)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/v1/admin/questions", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/v1/admin/questions", "", asAmy).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/v1/admin/quiz/biology/preview", "", asAmy).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, "/v1/admin/stats/amy", "", asAmy).Code)
}

func TestDailyQuizHandler_GetPreview(t *testing.T) {
	api := newTestAPI(t, nil)
	api.quiz.On("GenerateTomorrowPreview", mock.Anything, "biology").Return(&models.Preview{
		Date:      "2025-03-15",
		Subject:   "biology",
		Questions: []*models.Question{sampleQuestion("q9", "cells")},
	}, nil).Once()

	w := api.do(http.MethodGet, "/v1/admin/quiz/biology/preview", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "2025-03-15", body["date"])
	first := body["questions"].([]interface{})[0].(map[string]interface{})
	assert.EqualValues(t, 2, first["correct_index"], "admins see the answer key")
}

func TestAdminHandler_Questions(t *testing.T) {
	api := newTestAPI(t, nil)
	q := sampleQuestion("q1", "cells")

	api.questions.On("ListQuestions", mock.Anything, "biology", true).Return([]*models.Question{q}, nil).Once()
	w := api.do(http.MethodGet, "/v1/admin/questions?subject=Biology&include_inactive=true", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = api.do(http.MethodGet, "/v1/admin/questions?include_inactive=maybe", "", asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INVALID_FORMAT", body["code"])
	assert.Equal(t, `include_inactive must be a boolean, got "maybe"`, body["message"])

	api.questions.On("GetQuestionByID", mock.Anything, "q1").Return(q, nil).Once()
	api.questions.On("GetQuestionByID", mock.Anything, "nope").Return(nil, contextutils.ErrQuestionNotFound).Once()
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/admin/questions/q1", "", asAdmin).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/v1/admin/questions/nope", "", asAdmin).Code)

	payload := `{"stem":"Which organelle makes ATP?","options":["a","b","c","d"],"correct_index":1,"topic":"cells","subject":"biology","difficulty":1}`
	api.questions.On("CreateQuestion", mock.Anything, mock.MatchedBy(func(in *models.QuestionInput) bool {
		return in.Stem == "Which organelle makes ATP?" && in.CorrectIndex != nil && *in.CorrectIndex == 1
	})).Return(q, nil).Once()
	assert.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/v1/admin/questions", payload, asAdmin).Code)

	api.questions.On("UpdateQuestion", mock.Anything, "q1", mock.Anything).
		Return(nil, contextutils.NewValidationError("Options must have exactly 4 items")).Once()
	w = api.do(http.MethodPut, "/v1/admin/questions/q1", payload, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, w)["code"])

	api.questions.On("DeactivateQuestion", mock.Anything, "q1").Return(nil).Once()
	w = api.do(http.MethodDelete, "/v1/admin/questions/q1", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"q1","active":false}`, w.Body.String())
}

func TestAdminHandler_Stats(t *testing.T) {
	api := newTestAPI(t, nil)
	api.stats.On("ListForUser", mock.Anything, "amy").Return([]*models.QuestionStat{
		{QuestionID: "q1", UserLabel: "amy", Attempts: 3, Correct: 2},
	}, nil).Once()
	api.stats.On("DeleteForUser", mock.Anything, "amy").Return(int64(1), nil).Once()

	w := api.do(http.MethodGet, "/v1/admin/stats/amy", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)["stats"].([]interface{})
	require.Len(t, stats, 1)
	assert.EqualValues(t, 3, stats[0].(map[string]interface{})["attempts"])

	w = api.do(http.MethodDelete, "/v1/admin/stats/amy", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["deleted"])
}

func TestSessionHandler_SignInFlow(t *testing.T) {
	api := newTestAPI(t, func(cfg *config.Config) {
		cfg.Server.Debug = true
		cfg.Server.TrustIdentityHeaders = false
	})
	api.stats.On("ListForUser", mock.Anything, "amy").Return(nil, nil).Once()

	w := api.do(http.MethodPost, "/v1/session", `{"user_label":"amy"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_label":"amy","is_admin":false}`, w.Body.String())
	amy := w.Result().Cookies()

	w = api.do(http.MethodGet, "/v1/admin/stats/amy", "", nil, amy...)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/v1/session", `{"user_label":"root"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_label":"root","is_admin":true}`, w.Body.String())
	root := w.Result().Cookies()

	w = api.do(http.MethodGet, "/v1/admin/stats/amy", "", nil, root...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_label":"amy","stats":[]}`, w.Body.String())

	// trusted headers are ignored when the option is off
	w = api.do(http.MethodGet, "/v1/admin/stats/amy", "", asAdmin)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/v1/session", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_DisabledOutsideDebug(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(http.MethodPost, "/v1/session", `{"user_label":"amy"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
