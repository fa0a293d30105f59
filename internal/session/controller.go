package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"school_exam_client/internal/model"
	"school_exam_client/internal/progress"
	"school_exam_client/internal/util"
	"school_exam_client/pkg/logger"
	"school_exam_client/pkg/monitoring"
)

// AttemptAPI 远端作答接口；生产实现是 client.AttemptClient
type AttemptAPI interface {
	Start(ctx context.Context, questionSetID string) (*model.Attempt, error)
	SubmitAnswer(ctx context.Context, attemptID, questionID, value string, reveal bool) (*model.RevealResult, error)
	Finalize(ctx context.Context, attemptID string) error
	FetchCompleted(ctx context.Context, attemptID string) (*model.CompletedAttempt, error)
}

// RecordStore 本地续答记录存取；生产实现是 repository.SessionRecordRepository
type RecordStore interface {
	Save(record *model.SessionRecord) error
	Find(namespace, questionSetID string) (*model.SessionRecord, error)
	LoadAll(namespace string) ([]model.SessionRecord, error)
	Delete(namespace, questionSetID string) error
}

type Phase int

const (
	PhaseLoading    Phase = iota // 尚未 Begin
	PhaseReady                   // 作答中，游标可移动
	PhaseSubmitting              // 整卷提交中
	PhaseDone                    // 已提交，只能去回顾页
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSubmitting:
		return "submitting"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Namespace 本地记录的命名空间：固定前缀 + 租户 + 学生
func Namespace(prefix, tenantID string, userID uint) string {
	if tenantID == "" {
		tenantID = "default"
	}
	return fmt.Sprintf("%s:%s:%d", prefix, tenantID, userID)
}

// Controller 驱动学生按序作答并编排保存/提交时机。
// 一次作答期间由唯一一个 Controller 实例独占 progress.Store。
type Controller struct {
	api       AttemptAPI
	records   RecordStore
	store     *progress.Store
	attempt   *model.Attempt
	namespace string
	setID     string
	practice  bool
	phase     Phase

	finalizeFailed bool
}

func NewController(api AttemptAPI, records RecordStore, namespace, questionSetID string, practice bool) *Controller {
	return &Controller{
		api:       api,
		records:   records,
		namespace: namespace,
		setID:     questionSetID,
		practice:  practice,
		phase:     PhaseLoading,
	}
}

// Begin 开始或恢复作答。本地记录只在这里读一次；
// 过期或畸形记录静默删除后重新开始，不打扰学生。
func (c *Controller) Begin(ctx context.Context) (resumed bool, err error) {
	if c.phase != PhaseLoading {
		return false, util.ErrSessionNotReady
	}

	now := time.Now()
	c.sweepExpired(now)

	if rec, err := c.records.Find(c.namespace, c.setID); err == nil {
		if rec.ExpiredAt(now) {
			if derr := c.records.Delete(c.namespace, c.setID); derr != nil {
				logger.Log.Warn("failed to delete expired session record", zap.Error(derr))
			}
		} else {
			resumed = true
		}
	}

	attempt, err := c.api.Start(ctx, c.setID)
	if err != nil {
		return false, err
	}
	if len(attempt.Questions) == 0 {
		return false, util.ErrNoQuestions
	}

	c.attempt = attempt
	c.store = progress.NewStore(attempt.Questions)
	c.phase = PhaseReady

	// 只有限时作答才落本地镜像；整条覆盖写入
	if attempt.Timed() {
		rec := &model.SessionRecord{
			Namespace:       c.namespace,
			QuestionSetID:   c.setID,
			AttemptID:       attempt.ID,
			StartedAtMs:     attempt.StartedAt.UnixMilli(),
			DurationSeconds: attempt.DurationSeconds,
		}
		if err := c.records.Save(rec); err != nil {
			logger.Log.Warn("failed to save session record", zap.Error(err))
		}
	}

	return resumed, nil
}

// sweepExpired 顺手清理命名空间下其他题组的过期记录
func (c *Controller) sweepExpired(now time.Time) {
	recs, err := c.records.LoadAll(c.namespace)
	if err != nil {
		logger.Log.Warn("failed to scan session records", zap.Error(err))
		return
	}
	for i := range recs {
		if recs[i].ExpiredAt(now) {
			if err := c.records.Delete(recs[i].Namespace, recs[i].QuestionSetID); err != nil {
				logger.Log.Warn("failed to delete expired session record",
					zap.String("questionSetId", recs[i].QuestionSetID), zap.Error(err))
			}
		}
	}
}

func (c *Controller) Phase() Phase { return c.phase }

func (c *Controller) Attempt() *model.Attempt { return c.attempt }

func (c *Controller) Store() *progress.Store { return c.store }

func (c *Controller) Practice() bool { return c.practice }

// Remaining 限时作答剩余时长；不限时返回 0, false
func (c *Controller) Remaining(now time.Time) (time.Duration, bool) {
	if c.attempt == nil || !c.attempt.Timed() {
		return 0, false
	}
	left := c.attempt.Deadline().Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Answer 记录当前题的答案（已看答案的题会被 Store 静默忽略）
func (c *Controller) Answer(value string) error {
	if c.phase != PhaseReady {
		return util.ErrSessionNotReady
	}
	q, ok := c.store.Current()
	if !ok {
		return util.ErrNoQuestions
	}
	c.store.SetAnswer(q.ID, value)
	return nil
}

// Next 翻到下一题；游标同步前进，保存在后台进行
func (c *Controller) Next() int { return c.Jump(c.store.Index() + 1) }

// Prev 翻到上一题
func (c *Controller) Prev() int { return c.Jump(c.store.Index() - 1) }

// Jump 跳到第 i 题。当前题若有未保存答案，先甩出一个不等待的后台保存，
// 随后立即移动游标——导航永远不等网络。
func (c *Controller) Jump(i int) int {
	if c.phase != PhaseReady {
		return c.index()
	}
	c.flushCurrentAsync()
	return c.store.SetIndex(i)
}

func (c *Controller) index() int {
	if c.store == nil {
		return 0
	}
	return c.store.Index()
}

// flushCurrentAsync 后台保存当前题答案。失败只记日志并把脏标记放回去，
// 下一次导航会隐式重试；错误绝不向上传播。
func (c *Controller) flushCurrentAsync() {
	q, ok := c.store.Current()
	if !ok {
		return
	}
	value, ok := c.store.TakeDirty(q.ID)
	if !ok {
		return
	}
	attemptID := c.attempt.ID
	store := c.store
	go func() {
		if _, err := c.api.SubmitAnswer(context.Background(), attemptID, q.ID, value, false); err != nil {
			logger.Log.Warn("background answer save failed",
				zap.String("attemptId", attemptID),
				zap.String("questionId", q.ID),
				zap.Error(err))
			store.RequeueDirty(q.ID, value)
		}
	}()
}

// Reveal 练习模式下请求当前题的即时判定；同步等待，失败返回错误供重试，
// 成功后该题不可再改答案。已判定过的题直接用本地结果，不再询问服务端。
func (c *Controller) Reveal(ctx context.Context) (*model.Answer, error) {
	if !c.practice {
		return nil, util.ErrRevealNotAllowed
	}
	if c.phase != PhaseReady {
		return nil, util.ErrSessionNotReady
	}
	q, ok := c.store.Current()
	if !ok {
		return nil, util.ErrNoQuestions
	}

	if a, ok := c.store.Get(q.ID); ok && a.Revealed {
		return &a, nil
	}

	value, _ := c.store.Answer(q.ID)
	res, err := c.api.SubmitAnswer(ctx, c.attempt.ID, q.ID, value, true)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: reveal returned no result", util.ErrServer)
	}

	c.store.MarkRevealed(q.ID, res.IsCorrect, res.CorrectAnswer)
	a, _ := c.store.Get(q.ID)
	return &a, nil
}

// Submit 提交整卷。残留的未保存答案先同步冲掉，再调 Finalize；
// 任一步失败都回到 Ready，学生可重试。成功后删除本地镜像。
func (c *Controller) Submit(ctx context.Context) error {
	if c.phase != PhaseReady {
		return util.ErrSessionNotReady
	}
	if c.finalizeFailed {
		monitoring.FinalizeRetryCounter.Inc()
	}
	c.phase = PhaseSubmitting

	if err := c.flushAllSync(ctx); err != nil {
		c.phase = PhaseReady
		return err
	}

	if err := c.api.Finalize(ctx, c.attempt.ID); err != nil {
		c.phase = PhaseReady
		c.finalizeFailed = true
		return err
	}

	now := time.Now()
	c.attempt.SubmittedAt = &now
	c.phase = PhaseDone

	if err := c.records.Delete(c.namespace, c.setID); err != nil {
		logger.Log.Warn("failed to delete session record after submit", zap.Error(err))
	}
	return nil
}

// flushAllSync 提交前把所有脏答案同步保存一遍
func (c *Controller) flushAllSync(ctx context.Context) error {
	for i := 0; i < c.store.Len(); i++ {
		q, _ := c.store.Question(i)
		value, ok := c.store.TakeDirty(q.ID)
		if !ok {
			continue
		}
		if _, err := c.api.SubmitAnswer(ctx, c.attempt.ID, q.ID, value, false); err != nil {
			c.store.RequeueDirty(q.ID, value)
			return fmt.Errorf("save answer for question %s: %w", q.ID, err)
		}
	}
	return nil
}

// Flush 退出前把残留的未保存答案同步冲掉；失败时由调用方决定怎么提示
func (c *Controller) Flush(ctx context.Context) error {
	if c.phase != PhaseReady {
		return nil
	}
	return c.flushAllSync(ctx)
}

// Review 拉取已提交作答用于回顾页
func (c *Controller) Review(ctx context.Context, attemptID string) (*model.CompletedAttempt, error) {
	return c.api.FetchCompleted(ctx, attemptID)
}
