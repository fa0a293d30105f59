package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"school_exam_client/internal/config"
	"school_exam_client/internal/mockapi"
	"school_exam_client/internal/util"
	"school_exam_client/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// newTestEnv 起一个内存假平台，登录拿令牌，返回指向它的客户端
func newTestEnv(t *testing.T) *AttemptClient {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.MockAPI.JWTSecret = "test-secret-0123456789abcdef-0123456789"
	srv := mockapi.NewServer(cfg)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	body, _ := json.Marshal(map[string]string{
		"email":    "student@dev.local",
		"password": "student123",
	})
	resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d; want 200", resp.StatusCode)
	}

	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if env.Data.Token == "" {
		t.Fatal("login returned empty token")
	}

	ccfg := &config.Config{}
	ccfg.API.BaseURL = ts.URL
	ccfg.API.Token = env.Data.Token
	ccfg.API.TimeoutSeconds = 5 * time.Second
	ccfg.Session.SaveRate = 100
	ccfg.Session.SaveBurst = 100
	return NewAttemptClient(ccfg)
}

func TestStartStripsCorrectAnswersForExams(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	attempt, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.ID == "" || attempt.QuestionSetID != "math-final" {
		t.Fatalf("attempt = %+v; want id and set filled", attempt)
	}
	if attempt.DurationSeconds != 1800 {
		t.Fatalf("DurationSeconds = %d; want 1800", attempt.DurationSeconds)
	}
	if len(attempt.Questions) != 3 {
		t.Fatalf("got %d questions; want 3", len(attempt.Questions))
	}
	for _, q := range attempt.Questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("question %s leaked correct answer in exam mode", q.ID)
		}
	}
}

func TestStartUnknownSet(t *testing.T) {
	c := newTestEnv(t)

	if _, err := c.Start(context.Background(), "no-such-set"); !errors.Is(err, util.ErrTestNotPublished) {
		t.Fatalf("Start err = %v; want ErrTestNotPublished", err)
	}
}

func TestStartResumesUnsubmittedAttempt(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	first, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second start created new attempt %s; want resumed %s", second.ID, first.ID)
	}
}

func TestSubmitAnswerBackgroundReturnsNoResult(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	attempt, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := c.SubmitAnswer(ctx, attempt.ID, "q1", "B", false)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res != nil {
		t.Fatalf("background save returned %+v; want nil", res)
	}
}

func TestRevealInPracticeMode(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	attempt, err := c.Start(ctx, "grammar-drill")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := c.SubmitAnswer(ctx, attempt.ID, "g1", "B", true)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if res == nil || !res.IsCorrect || res.CorrectAnswer != "B" {
		t.Fatalf("reveal result = %+v; want correct/B", res)
	}

	// 多选判定忽略顺序
	res, err = c.SubmitAnswer(ctx, attempt.ID, "g2", "C,A", true)
	if err != nil {
		t.Fatalf("reveal multi: %v", err)
	}
	if res == nil || !res.IsCorrect {
		t.Fatalf("multi-choice reveal = %+v; want correct", res)
	}
}

func TestRevealRejectedForExamSet(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	attempt, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.SubmitAnswer(ctx, attempt.ID, "q1", "B", true); !errors.Is(err, util.ErrServer) {
		t.Fatalf("reveal on exam set err = %v; want ErrServer", err)
	}
}

func TestFinalizeAndReview(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	attempt, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.SubmitAnswer(ctx, attempt.ID, "q1", "B", false); err != nil {
		t.Fatalf("save q1: %v", err)
	}
	if _, err := c.SubmitAnswer(ctx, attempt.ID, "q3", "180", false); err != nil {
		t.Fatalf("save q3: %v", err)
	}

	if err := c.Finalize(ctx, attempt.ID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	// 重复提交
	if err := c.Finalize(ctx, attempt.ID); !errors.Is(err, util.ErrTestAlreadySubmitted) {
		t.Fatalf("second Finalize err = %v; want ErrTestAlreadySubmitted", err)
	}

	completed, err := c.FetchCompleted(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("FetchCompleted: %v", err)
	}
	if !completed.Submitted() {
		t.Fatal("completed attempt missing submission timestamp")
	}
	if len(completed.Questions) != 3 || len(completed.Answers) != 3 {
		t.Fatalf("review payload has %d questions / %d answers; want 3/3",
			len(completed.Questions), len(completed.Answers))
	}

	byID := map[string]bool{}
	for _, a := range completed.Answers {
		if a.IsCorrect != nil && *a.IsCorrect {
			byID[a.QuestionID] = true
		}
	}
	if !byID["q1"] || !byID["q3"] || byID["q2"] {
		t.Fatalf("grading = %v; want q1,q3 correct and q2 not", byID)
	}
	// 回顾页必须带正确答案
	for _, q := range completed.Questions {
		if q.CorrectAnswer == "" {
			t.Fatalf("question %s missing correct answer in review payload", q.ID)
		}
	}
}

func TestFetchCompletedUnknownAttempt(t *testing.T) {
	c := newTestEnv(t)

	if _, err := c.FetchCompleted(context.Background(), "nope"); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("FetchCompleted err = %v; want ErrAttemptNotFound", err)
	}
}

func TestFetchCompletedRequiresSubmission(t *testing.T) {
	c := newTestEnv(t)
	ctx := context.Background()

	attempt, err := c.Start(ctx, "math-final")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.FetchCompleted(ctx, attempt.ID); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("FetchCompleted on live attempt err = %v; want ErrAttemptNotFound", err)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.MockAPI.JWTSecret = "test-secret-0123456789abcdef-0123456789"
	srv := mockapi.NewServer(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ccfg := &config.Config{}
	ccfg.API.BaseURL = ts.URL
	ccfg.Session.SaveRate = 100
	ccfg.Session.SaveBurst = 100
	c := NewAttemptClient(ccfg)

	if _, err := c.Start(context.Background(), "math-final"); !errors.Is(err, util.ErrServer) {
		t.Fatalf("unauthenticated Start err = %v; want ErrServer", err)
	}
}
