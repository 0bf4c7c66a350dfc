package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-results-service/internal/app"
	"quiz-results-service/internal/domain"
	"quiz-results-service/internal/infra/memory"
	"quiz-results-service/internal/logger"
)

func TestSubmitAndReadBack(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	resp := doJSON(t, server, http.MethodPost, "/results", "u1", map[string]any{
		"quizId":    "quiz-1",
		"answers":   []any{0, 1, 2, 3, 0},
		"timeSpent": 30,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		Result domain.SubmitReport `json:"result"`
	}
	decode(t, resp, &created)
	if created.Result.Score != 5 || created.Result.Percentage != 100 || !created.Result.IsNewBest {
		t.Fatalf("unexpected report %+v", created.Result)
	}

	resp = doJSON(t, server, http.MethodPost, "/results", "u1", map[string]any{
		"quizId":    "quiz-1",
		"answers":   []any{0, 1, 9, 9, 0},
		"timeSpent": 10,
	})
	decode(t, resp, &created)
	if created.Result.IsNewBest || created.Result.CurrentAttempt != 2 || created.Result.Score != 3 {
		t.Fatalf("unexpected second report %+v", created.Result)
	}

	resp = doJSON(t, server, http.MethodGet, "/results/quiz/quiz-1", "u1", nil)
	var one struct {
		Result domain.ResultRecord `json:"result"`
	}
	decode(t, resp, &one)
	if one.Result.Score != 5 || one.Result.TimeSpent != 30 || one.Result.Attempts != 2 {
		t.Fatalf("unexpected stored result %+v", one.Result)
	}

	resp = doJSON(t, server, http.MethodGet, "/results/stats", "u1", nil)
	var stats struct {
		Stats domain.Stats `json:"stats"`
	}
	decode(t, resp, &stats)
	if stats.Stats.TotalAttempts != 2 || stats.Stats.PerfectScores != 1 || stats.Stats.AverageScore != 100 {
		t.Fatalf("unexpected stats %+v", stats.Stats)
	}

	resp = doJSON(t, server, http.MethodGet, "/results", "u1", nil)
	var list struct {
		Results []domain.ResultRecord `json:"results"`
	}
	decode(t, resp, &list)
	if len(list.Results) != 1 {
		t.Fatalf("expected one result, got %+v", list.Results)
	}
}

func TestSubmitRegistersDisplayName(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	body, _ := json.Marshal(map[string]any{"quizId": "quiz-1", "answers": []any{0, 1, 2, 3, 0}, "timeSpent": 12})
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/results", bytes.NewReader(body))
	req.Header.Set(headerUserID, "u7")
	req.Header.Set(headerUserName, "carol")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Later submissions without the header keep the stored name.
	resp = doJSON(t, server, http.MethodPost, "/results", "u8", map[string]any{"quizId": "quiz-1", "answers": []any{0}})
	resp.Body.Close()

	resp = doJSON(t, server, http.MethodGet, "/results/leaderboard/quiz-1", "", nil)
	var board struct {
		Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	}
	decode(t, resp, &board)
	if len(board.Leaderboard) != 2 {
		t.Fatalf("expected 2 entries, got %+v", board.Leaderboard)
	}
	if board.Leaderboard[0].UserID != "u7" || board.Leaderboard[0].Username != "carol" {
		t.Fatalf("expected carol first, got %+v", board.Leaderboard[0])
	}
	if board.Leaderboard[1].Username != "u8" {
		t.Fatalf("expected unnamed user to fall back to id, got %+v", board.Leaderboard[1])
	}
}

func TestQuizResultIncludesTitle(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	resp := doJSON(t, server, http.MethodPost, "/results", "u1", map[string]any{"quizId": "quiz-1", "answers": []any{0}})
	resp.Body.Close()

	resp = doJSON(t, server, http.MethodGet, "/results/quiz/quiz-1", "u1", nil)
	var one struct {
		Result domain.ResultView `json:"result"`
	}
	decode(t, resp, &one)
	if one.Result.QuizTitle != "Warm-up" || one.Result.QuizID != "quiz-1" {
		t.Fatalf("unexpected result view %+v", one.Result)
	}
}

func TestSubmitValidation(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	cases := []struct {
		name   string
		userID string
		body   map[string]any
		want   int
	}{
		{"missing user", "", map[string]any{"quizId": "quiz-1", "answers": []any{}}, http.StatusUnauthorized},
		{"missing answers", "u1", map[string]any{"quizId": "quiz-1"}, http.StatusBadRequest},
		{"missing quiz", "u1", map[string]any{"answers": []any{1}}, http.StatusBadRequest},
		{"negative time", "u1", map[string]any{"quizId": "quiz-1", "answers": []any{1}, "timeSpent": -1}, http.StatusBadRequest},
		{"unknown quiz", "u1", map[string]any{"quizId": "nope", "answers": []any{1}}, http.StatusNotFound},
	}
	for _, tc := range cases {
		resp := doJSON(t, server, http.MethodPost, "/results", tc.userID, tc.body)
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.StatusCode)
		}
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	submit := func(user string, answers []any, timeSpent int) {
		t.Helper()
		resp := doJSON(t, server, http.MethodPost, "/results", user, map[string]any{
			"quizId": "quiz-1", "answers": answers, "timeSpent": timeSpent,
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("submit %s: status %d", user, resp.StatusCode)
		}
	}
	submit("a", []any{0, 1, 2, 3, 0}, 50)
	submit("b", []any{0, 1, 2, 3, 0}, 30)

	for _, query := range []string{"", "?limit=10", "?limit=abc", "?limit=-2"} {
		resp := doJSON(t, server, http.MethodGet, "/results/leaderboard/quiz-1"+query, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("leaderboard%s: status %d", query, resp.StatusCode)
		}
		var body struct {
			Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
		}
		decode(t, resp, &body)
		if len(body.Leaderboard) != 2 || body.Leaderboard[0].Username != "bob" {
			t.Fatalf("leaderboard%s: expected bob first, got %+v", query, body.Leaderboard)
		}
	}

	resp := doJSON(t, server, http.MethodGet, "/results/leaderboard/quiz-2", "", nil)
	var empty struct {
		Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	}
	decode(t, resp, &empty)
	if empty.Leaderboard == nil || len(empty.Leaderboard) != 0 {
		t.Fatalf("expected empty array, got %#v", empty.Leaderboard)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	for _, user := range []string{"a", "b"} {
		resp := doJSON(t, server, http.MethodPost, "/results", user, map[string]any{"quizId": "quiz-1", "answers": []any{0}})
		resp.Body.Close()
	}

	resp := doJSON(t, server, http.MethodDelete, "/results/quiz/quiz-1", "a", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	resp = doJSON(t, server, http.MethodDelete, "/results/quiz/quiz-1", "a", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, server, http.MethodGet, "/results/quiz/quiz-1", "a", nil)
	var missing map[string]any
	decode(t, resp, &missing)
	if missing["result"] != nil || missing["message"] == nil {
		t.Fatalf("expected null result with message, got %v", missing)
	}

	resp = doJSON(t, server, http.MethodDelete, "/quizzes/quiz-1/results", "b", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("purge without admin: expected 403, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/quizzes/quiz-1/results", nil)
	req.Header.Set(headerUserID, "admin-1")
	req.Header.Set(headerUserRole, roleAdmin)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	var purged struct {
		Removed int `json:"removed"`
	}
	decode(t, resp, &purged)
	if purged.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", purged.Removed)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.InvalidArgument("x"), http.StatusBadRequest},
		{domain.ErrQuizNotFound, http.StatusNotFound},
		{domain.StorageError("op", bytes.ErrTooLarge), http.StatusServiceUnavailable},
		{bytes.ErrTooLarge, http.StatusInternalServerError},
		{fmt.Errorf("quiz q: %w", domain.ErrCorruptData), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	handler := RequestLogger(testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected generated request id")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerRequestID, "abc")
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(headerRequestID) != "abc" {
		t.Fatalf("expected inbound request id to be kept, got %q", rec.Header().Get(headerRequestID))
	}
}

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(newTestService(), testLogger()).Register(mux)
	return httptest.NewServer(mux)
}

func newTestService() *app.ResultService {
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	users := memory.NewUserDirectory(map[string]string{"a": "alice", "b": "bob"})
	return app.NewResultService(memory.NewResultStore(), quizzes, users)
}

func testLogger() *logger.Logger {
	return logger.Nop()
}

func doJSON(t *testing.T, server *httptest.Server, method, path, userID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func sampleQuizzes() map[string]domain.Quiz {
	options := []string{"a", "b", "c", "d"}
	question := func(id string, answer int) domain.Question {
		return domain.Question{ID: id, Prompt: "pick " + id, Options: options, AnswerIndex: answer}
	}
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				question("q1", 0), question("q2", 1), question("q3", 2), question("q4", 3), question("q5", 0),
			},
		},
		"quiz-2": {ID: "quiz-2", Title: "Untouched", Questions: []domain.Question{question("q1", 1)}},
	}
}
