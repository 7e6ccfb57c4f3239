package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/smarthire/internal/bank"
	"github.com/pavelanni/smarthire/internal/evaluator"
	"github.com/pavelanni/smarthire/internal/interview"
	"github.com/pavelanni/smarthire/internal/model"
	"github.com/pavelanni/smarthire/internal/selector"
	"github.com/pavelanni/smarthire/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var n int
	ids := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	sel := selector.New(bank.MustDefault(), nil, selector.WithRand(rand.New(rand.NewPCG(7, 7))))
	ev := evaluator.New(nil)
	svc := interview.NewService(db, sel, ev, model.AppConfig{}, interview.WithIDGenerator(ids))

	r := chi.NewRouter()
	New(svc, ev, nil).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createCandidate(t *testing.T, srv *httptest.Server, name, email string, skills []string) model.Candidate {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/api/candidates", map[string]any{
		"name": name, "email": email, "skills": skills,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Candidate](t, resp)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestCandidateEndpoints(t *testing.T) {
	srv := newTestServer(t)

	c := createCandidate(t, srv, "Ada", "ada@example.com", []string{"Python"})
	assert.Equal(t, "id-1", c.ID)
	assert.Equal(t, []string{"python"}, c.Skills)

	resp := do(t, srv, http.MethodPost, "/api/candidates", map[string]any{"name": "Ada 2", "email": "ADA@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/candidates", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "name is required")

	resp = do(t, srv, http.MethodPost, "/api/candidates", map[string]any{"name": "X", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/candidates/"+c.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", decode[model.Candidate](t, resp).Name)

	resp = do(t, srv, http.MethodGet, "/api/candidates/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/candidates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Candidate](t, resp), 1)

	resp = do(t, srv, http.MethodDelete, "/api/candidates/"+c.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, srv, http.MethodDelete, "/api/candidates/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/candidates", nil)
	assert.Empty(t, decode[[]model.Candidate](t, resp))
}

func TestInterviewFlow(t *testing.T) {
	srv := newTestServer(t)
	c := createCandidate(t, srv, "Ada", "", []string{"python"})

	resp := do(t, srv, http.MethodPost, "/api/interviews", map[string]any{
		"candidate_id": c.ID, "type": "technical", "count": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	iv := decode[model.Interview](t, resp)
	require.Len(t, iv.Questions, 5)
	assert.Equal(t, model.StatusPending, iv.Status)
	assert.Equal(t, 5*model.SecondsPerQuestion, iv.TimeLimitSeconds)

	resp = do(t, srv, http.MethodPut, "/api/interviews/"+iv.ID+"/answers/0", map[string]string{
		"answer": "A decorator wraps a function to extend its behavior without modifying it.",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/api/interviews/"+iv.ID+"/answers/9", map[string]string{"answer": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, srv, http.MethodPut, "/api/interviews/"+iv.ID+"/answers/first", map[string]string{"answer": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/interviews/"+iv.ID+"/submit", map[string]any{
		"answers": map[string]string{"1": "Lists are mutable while tuples are immutable."},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[model.Interview](t, resp)
	assert.Equal(t, model.StatusSubmitted, done.Status)
	assert.Equal(t, model.VerdictRejected, done.Result)
	assert.Len(t, done.Scores.PerQuestion, 5)
	assert.NotEmpty(t, done.Questions[0].Answer)
	assert.NotEmpty(t, done.Questions[1].Answer)
	assert.NotEmpty(t, done.Feedback)

	resp = do(t, srv, http.MethodPost, "/api/interviews/"+iv.ID+"/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/interviews/"+iv.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusSubmitted, decode[model.Interview](t, resp).Status)

	resp = do(t, srv, http.MethodGet, "/api/candidates/"+c.ID+"/interviews", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Interview](t, resp), 1)

	resp = do(t, srv, http.MethodGet, "/api/stats?candidate_id="+c.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[model.Stats](t, resp)
	assert.Equal(t, 1, st.Candidates)
	assert.Equal(t, 1, st.Interviews)
	assert.Equal(t, done.Scores.Overall, st.AverageOverall)
}

func TestStartErrors(t *testing.T) {
	srv := newTestServer(t)
	bare := createCandidate(t, srv, "Bare", "", nil)

	resp := do(t, srv, http.MethodPost, "/api/interviews", map[string]any{"candidate_id": bare.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/interviews", map[string]any{"candidate_id": bare.ID, "type": "behavioral"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/interviews", map[string]any{"type": "technical"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/interviews", map[string]any{"candidate_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/interviews/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadResume(t *testing.T) {
	srv := newTestServer(t)
	c := createCandidate(t, srv, "Ada", "", nil)

	upload := func(filename, content string) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/candidates/"+c.ID+"/resume", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := upload("cv.txt", "Backend developer: Python, SQL and Docker.")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Candidate](t, resp)
	assert.Subset(t, got.Skills, []string{"python", "sql", "docker"})

	resp = upload("cv.docx", "whatever")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = upload("cv.pdf", "%PDF-1.4")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = upload("empty.txt", "   ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvaluateEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/evaluate", []model.QA{
		{Question: "Explain Python decorators", Answer: "Decorators wrap python functions to add behavior."},
		{Question: "What is SQL?", Answer: ""},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[evaluateResponse](t, resp)
	assert.Len(t, out.Scores.PerQuestion, 2)
	assert.Greater(t, out.Scores.Overall, 0.0)
	assert.Contains(t, out.Feedback, "1/2")

	resp = do(t, srv, http.MethodPost, "/api/evaluate", []model.QA{{Question: " ", Answer: "x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := createCandidate(t, srv, "Ada", "ada@example.com", []string{"sql"})
	resp := do(t, srv, http.MethodPost, "/api/interviews", map[string]any{"candidate_id": c.ID, "count": 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "smarthire_results.csv")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Name,Email,Interview Date"))
	assert.True(t, strings.HasPrefix(lines[1], "Ada,ada@example.com,"))

	resp = do(t, srv, http.MethodGet, "/api/export?format=json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	export := decode[model.ResultsExport](t, resp)
	require.Len(t, export.Results, 1)
	assert.Equal(t, model.VerdictPending, export.Results[0].Result)

	resp = do(t, srv, http.MethodGet, "/api/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", model.ErrInvalidInput), http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{interview.ErrAlreadySubmitted, http.StatusConflict},
		{interview.ErrDuplicateEmail, http.StatusConflict},
		{interview.ErrNoSkills, http.StatusConflict},
		{interview.ErrNoQuestions, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
