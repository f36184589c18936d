package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-contest-service/internal/app"
	"quiz-contest-service/internal/auth"
	"quiz-contest-service/internal/domain"
	"quiz-contest-service/internal/infra/memory"
)

type testServer struct {
	server   *httptest.Server
	verifier *auth.TokenVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	loader := memory.NewStaticContestLoader(map[string]domain.Contest{"spring-quiz": sampleContest()})
	attempts := memory.NewAttemptRepository()
	results := app.NewResultsService(loader, attempts, attempts)
	feed := app.NewLeaderboardFeed()
	submissions := app.NewSubmissionService(loader, attempts, results).WithLiveFeed(feed)
	verifier := auth.NewTokenVerifier("test-secret", "")

	mux := http.NewServeMux()
	NewHandler(submissions, results, verifier).Register(mux)
	mux.HandleFunc("GET /contests/{slug}/live", NewWSHandler(results, feed).ServeLive)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testServer{server: server, verifier: verifier}
}

func (ts *testServer) submit(t *testing.T, userID, slug string, payload app.SubmissionPayload) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+"/contests/"+slug+"/submissions", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		token, err := ts.verifier.Issue(userID, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func submissionPayload() app.SubmissionPayload {
	return app.SubmissionPayload{
		StartedAt: time.Now().Add(-time.Minute).Format(time.RFC3339),
		Answers:   []app.SelectionPayload{{QuestionID: "q1", AnswerIDs: []string{"a2"}}},
	}
}

func TestSubmitEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, "u1", "spring-quiz", submissionPayload())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var eval domain.Evaluation
	if err := json.NewDecoder(resp.Body).Decode(&eval); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if eval.TotalScore != 10 || eval.CorrectCount != 1 || eval.TotalQuestions != 1 {
		t.Fatalf("unexpected evaluation: %+v", eval)
	}
}

func TestSubmitRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, "", "spring-quiz", submissionPayload())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSubmitConflictOnDuplicate(t *testing.T) {
	ts := newTestServer(t)

	first := ts.submit(t, "u1", "spring-quiz", submissionPayload())
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first submit: expected 201, got %d", first.StatusCode)
	}

	second := ts.submit(t, "u1", "spring-quiz", submissionPayload())
	defer second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", second.StatusCode)
	}
}

func TestSubmitBadRequestOnMalformedPayload(t *testing.T) {
	ts := newTestServer(t)

	payload := submissionPayload()
	payload.StartedAt = "not-a-time"
	resp := ts.submit(t, "u1", "spring-quiz", payload)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitUnknownContest(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, "u1", "missing", submissionPayload())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCatalogEndpointHidesScores(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.server.Client().Get(ts.server.URL + "/contests/spring-quiz")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var contest domain.Contest
	if err := json.NewDecoder(resp.Body).Decode(&contest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, q := range contest.Questions {
		for _, a := range q.Answers {
			if a.Score != 0 {
				t.Fatalf("catalog response leaked a score: %+v", a)
			}
		}
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.submit(t, "u1", "spring-quiz", submissionPayload())
	resp.Body.Close()

	lbResp, err := ts.server.Client().Get(ts.server.URL + "/contests/spring-quiz/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer lbResp.Body.Close()
	if lbResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", lbResp.StatusCode)
	}

	var lb domain.Leaderboard
	if err := json.NewDecoder(lbResp.Body).Decode(&lb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u1" || lb.Entries[0].Score != 10 {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}
}

func sampleContest() domain.Contest {
	return domain.Contest{
		ID:     "contest-1",
		Slug:   "spring-quiz",
		Name:   "Spring Quiz",
		Active: true,
		Questions: []domain.Question{
			{
				ID:       "q1",
				Title:    "What is 2 + 2?",
				Type:     domain.SingleChoice,
				Position: 1,
				Answers: []domain.Answer{
					{ID: "a1", Content: "3", Score: 0, Position: 1},
					{ID: "a2", Content: "4", Score: 10, Position: 2},
				},
			},
		},
	}
}
