package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"school_exam_client/internal/config"
	"school_exam_client/internal/model"
	"school_exam_client/internal/util"
	"school_exam_client/pkg/monitoring"
	"school_exam_client/pkg/tracing"
)

// AttemptClient 作答生命周期的唯一远端通道。
// 后台保存（reveal=false）由限速器兜底，避免快速翻题时打爆服务端。
type AttemptClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewAttemptClient(cfg *config.Config) *AttemptClient {
	timeout := cfg.API.TimeoutSeconds
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	saveRate := cfg.Session.SaveRate
	if saveRate <= 0 {
		saveRate = 5
	}
	saveBurst := cfg.Session.SaveBurst
	if saveBurst <= 0 {
		saveBurst = 10
	}
	return &AttemptClient{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		token:   cfg.API.Token,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(saveRate), saveBurst),
	}
}

// SetToken 配置热更新后替换令牌
func (c *AttemptClient) SetToken(token string) {
	c.token = token
}

type startReq struct {
	QuestionSetID string `json:"questionSetId"`
}

type submitAnswerReq struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
	Reveal     bool   `json:"reveal"`
	RequestID  string `json:"requestId"`
}

// envelope 服务端统一响应信封
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Start 开始或恢复一次作答；题组不可见时返回 ErrTestNotPublished
func (c *AttemptClient) Start(ctx context.Context, questionSetID string) (*model.Attempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "attempt.start")
	defer span.End()
	span.SetAttributes(attribute.String("question_set_id", questionSetID))

	var attempt model.Attempt
	status, err := c.do(ctx, http.MethodPost, "/api/attempts", startReq{QuestionSetID: questionSetID}, &attempt)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusForbidden || status == http.StatusNotFound:
		return nil, util.ErrTestNotPublished
	case status >= 300:
		return nil, fmt.Errorf("%w: start attempt: status %d", util.ErrServer, status)
	}
	return &attempt, nil
}

// SubmitAnswer 保存单题答案。reveal=true 时服务端同步返回判定结果，
// reveal=false 时结果为 nil，调用方按后台保存处理。
func (c *AttemptClient) SubmitAnswer(ctx context.Context, attemptID, questionID, value string, reveal bool) (*model.RevealResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "attempt.submit_answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("attempt_id", attemptID),
		attribute.String("question_id", questionID),
		attribute.Bool("reveal", reveal),
	)

	if !reveal {
		// 后台保存按限速排队；上下文取消则放弃本次保存
		if err := c.limiter.Wait(ctx); err != nil {
			monitoring.AnswerSaveCounter.WithLabelValues("dropped").Inc()
			return nil, err
		}
	}

	req := submitAnswerReq{
		QuestionID: questionID,
		Value:      value,
		Reveal:     reveal,
		RequestID:  uuid.New().String(),
	}

	var result model.RevealResult
	path := fmt.Sprintf("/api/attempts/%s/answers", attemptID)
	status, err := c.do(ctx, http.MethodPost, path, req, &result)

	if reveal {
		if err != nil || status >= 300 {
			monitoring.RevealCounter.WithLabelValues("error").Inc()
		} else {
			monitoring.RevealCounter.WithLabelValues("ok").Inc()
		}
	} else {
		if err != nil || status >= 300 {
			monitoring.AnswerSaveCounter.WithLabelValues("error").Inc()
		} else {
			monitoring.AnswerSaveCounter.WithLabelValues("ok").Inc()
		}
	}

	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, util.ErrAttemptNotFound
	case status == http.StatusConflict:
		return nil, util.ErrTestAlreadySubmitted
	case status >= 300:
		return nil, fmt.Errorf("%w: submit answer: status %d", util.ErrServer, status)
	}

	if !reveal {
		return nil, nil
	}
	return &result, nil
}

// Finalize 提交整卷；已提交或已过期返回对应哨兵错误，调用方可重试
func (c *AttemptClient) Finalize(ctx context.Context, attemptID string) error {
	ctx, span := tracing.Tracer.Start(ctx, "attempt.finalize")
	defer span.End()
	span.SetAttributes(attribute.String("attempt_id", attemptID))

	path := fmt.Sprintf("/api/attempts/%s/submit", attemptID)
	status, err := c.do(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return util.ErrAttemptNotFound
	case status == http.StatusConflict:
		return util.ErrTestAlreadySubmitted
	case status == http.StatusGone:
		return util.ErrAttemptExpired
	case status >= 300:
		return fmt.Errorf("%w: finalize: status %d", util.ErrServer, status)
	}
	return nil
}

// FetchCompleted 回顾页数据：已提交作答 + 题目 + 逐题结果
func (c *AttemptClient) FetchCompleted(ctx context.Context, attemptID string) (*model.CompletedAttempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "attempt.fetch_completed")
	defer span.End()
	span.SetAttributes(attribute.String("attempt_id", attemptID))

	var completed model.CompletedAttempt
	path := fmt.Sprintf("/api/attempts/%s", attemptID)
	status, err := c.do(ctx, http.MethodGet, path, nil, &completed)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusForbidden:
		return nil, util.ErrAttemptNotFound
	case status >= 300:
		return nil, fmt.Errorf("%w: fetch attempt: status %d", util.ErrServer, status)
	}
	return &completed, nil
}

// do 发请求并解信封；out 为 nil 时丢弃 data。返回 HTTP 状态码供调用方归类。
func (c *AttemptClient) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	tracing.InjectHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrServer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode response: %v", util.ErrServer, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: decode payload: %v", util.ErrServer, err)
	}
	return resp.StatusCode, nil
}
