package mockapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"school_exam_client/internal/config"
	"school_exam_client/internal/middleware"
	"school_exam_client/internal/model"
	"school_exam_client/internal/util"
	"school_exam_client/pkg/monitoring"
	"school_exam_client/pkg/security"
	"school_exam_client/pkg/tracing"
)

// Server 本地假考试平台：实现客户端依赖的四个作答接口和登录，
// 数据全在内存里。它只是离线开发/集成测试用的夹具，不是真实平台。
type Server struct {
	cfg    *config.Config
	engine *gin.Engine

	mu       sync.Mutex
	sets     map[string]*QuestionSet
	attempts map[string]*attemptState
	users    map[string]devUser // email -> user
}

// QuestionSet 内存里的题组；CorrectAnswer 仅在练习/回顾场景下发
type QuestionSet struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	DurationSeconds int              `json:"durationSeconds"`
	Practice        bool             `json:"practice"`
	Published       bool             `json:"published"`
	Questions       []model.Question `json:"questions"`
}

type attemptState struct {
	attempt model.Attempt
	setID   string
	userID  uint
	answers map[string]*model.Answer
}

type devUser struct {
	ID           uint
	Email        string
	PasswordHash []byte
	Role         model.UserRole
	TenantID     string
}

func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:      cfg,
		sets:     make(map[string]*QuestionSet),
		attempts: make(map[string]*attemptState),
		users:    make(map[string]devUser),
	}
	s.seed()

	if cfg.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.Default()
	engine.Use(security.CORS(cfg.CORS.AllowedOrigins))
	engine.Use(security.Headers())
	engine.Use(security.Throttle(100, 200))
	if cfg.Tracing.Enabled {
		engine.Use(tracing.GinMiddleware())
	}
	engine.Use(monitoring.MetricsMiddleware())

	engine.GET("/metrics", monitoring.PrometheusHandler())
	engine.POST("/api/login", s.login)

	api := engine.Group("/api")
	api.Use(middleware.AuthMiddleware(cfg.MockAPI.JWTSecret))
	{
		api.GET("/question-sets", s.listQuestionSets)

		// 作答接口只对学生开放
		attempts := api.Group("/attempts")
		attempts.Use(middleware.RoleMiddleware(model.Student))
		{
			attempts.POST("", s.startAttempt)
			attempts.POST("/:id/answers", s.submitAnswer)
			attempts.POST("/:id/submit", s.finalizeAttempt)
			attempts.GET("/:id", s.getAttempt)
		}
	}

	s.engine = engine
	return s
}

// Handler 供 httptest 集成测试挂载
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(port string) error {
	return s.engine.Run(":" + port)
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok {
		util.Unauthorized(c)
		return
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)); err != nil {
		util.Unauthorized(c)
		return
	}

	expire := s.cfg.MockAPI.ExpireTime
	if expire <= 0 {
		expire = 24 * time.Hour
	}
	token, err := util.GenerateJWT(u.ID, u.Role, u.TenantID, u.Email, s.cfg.MockAPI.JWTSecret, expire)
	if err != nil {
		util.LogInternalError(c, err)
		return
	}

	util.Success(c, gin.H{"token": token})
}

func (s *Server) listQuestionSets(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]gin.H, 0, len(s.sets))
	for _, set := range s.sets {
		if !set.Published {
			continue
		}
		items = append(items, gin.H{
			"id":              set.ID,
			"title":           set.Title,
			"durationSeconds": set.DurationSeconds,
			"practice":        set.Practice,
			"questionCount":   len(set.Questions),
		})
	}
	util.Success(c, gin.H{"items": items, "total": len(items)})
}

type startAttemptReq struct {
	QuestionSetID string `json:"questionSetId" binding:"required"`
}

func (s *Server) startAttempt(c *gin.Context) {
	user := util.GetUserFromContext(c)
	if user == nil {
		util.Unauthorized(c)
		return
	}
	var req startAttemptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[req.QuestionSetID]
	if !ok || !set.Published {
		util.NotFound(c)
		return
	}

	// 同一学生同一题组：未提交且未超时的作答直接续用
	now := time.Now()
	for _, st := range s.attempts {
		if st.userID == user.UserID && st.setID == set.ID && !st.attempt.Submitted() {
			if !st.expiredAt(now) {
				a := st.attempt
				a.Questions = set.clientQuestions()
				util.Success(c, a)
				return
			}
		}
	}

	attempt := model.Attempt{
		ID:              model.GenerateID(),
		QuestionSetID:   set.ID,
		StartedAt:       now,
		DurationSeconds: set.DurationSeconds,
	}
	s.attempts[attempt.ID] = &attemptState{
		attempt: attempt,
		setID:   set.ID,
		userID:  user.UserID,
		answers: make(map[string]*model.Answer),
	}

	attempt.Questions = set.clientQuestions()
	util.Created(c, attempt)
}

// clientQuestions 下发给作答端的题目：非练习题组剥掉正确答案
func (set *QuestionSet) clientQuestions() []model.Question {
	out := make([]model.Question, len(set.Questions))
	copy(out, set.Questions)
	if !set.Practice {
		for i := range out {
			out[i].CorrectAnswer = ""
		}
	}
	return out
}

func (st *attemptState) expiredAt(now time.Time) bool {
	if st.attempt.DurationSeconds <= 0 {
		return false
	}
	return now.After(st.attempt.Deadline())
}

type submitAnswerReq struct {
	QuestionID string `json:"questionId" binding:"required"`
	Value      string `json:"value"`
	Reveal     bool   `json:"reveal"`
	RequestID  string `json:"requestId"`
}

func (s *Server) submitAnswer(c *gin.Context) {
	user := util.GetUserFromContext(c)
	if user == nil {
		util.Unauthorized(c)
		return
	}

	var req submitAnswerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.attempts[c.Param("id")]
	if !ok || st.userID != user.UserID {
		util.NotFound(c)
		return
	}
	if st.attempt.Submitted() {
		util.Conflict(c, util.ErrTestAlreadySubmitted.Error())
		return
	}

	set := s.sets[st.setID]
	var question *model.Question
	for i := range set.Questions {
		if set.Questions[i].ID == req.QuestionID {
			question = &set.Questions[i]
			break
		}
	}
	if question == nil {
		util.BadRequest(c, "unknown question")
		return
	}

	// 每次提交都是独立 upsert，同题以最后一次写入为准；已判定的题不再改
	a, ok := st.answers[req.QuestionID]
	if !ok {
		a = &model.Answer{QuestionID: req.QuestionID}
		st.answers[req.QuestionID] = a
	}
	if !a.Revealed {
		a.Value = req.Value
	}

	if !req.Reveal {
		util.Success(c, nil)
		return
	}

	if !set.Practice {
		util.Forbidden(c)
		return
	}

	correct := grade(question, a.Value)
	a.Revealed = true
	a.IsCorrect = &correct
	a.CorrectAnswer = question.CorrectAnswer

	util.Success(c, model.RevealResult{
		IsCorrect:     correct,
		CorrectAnswer: question.CorrectAnswer,
	})
}

func (s *Server) finalizeAttempt(c *gin.Context) {
	user := util.GetUserFromContext(c)
	if user == nil {
		util.Unauthorized(c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.attempts[c.Param("id")]
	if !ok || st.userID != user.UserID {
		util.NotFound(c)
		return
	}
	if st.attempt.Submitted() {
		util.Conflict(c, util.ErrTestAlreadySubmitted.Error())
		return
	}
	now := time.Now()
	if st.expiredAt(now) {
		util.Error(c, http.StatusGone, util.ErrAttemptExpired.Error())
		return
	}

	set := s.sets[st.setID]
	for i := range set.Questions {
		q := &set.Questions[i]
		a, ok := st.answers[q.ID]
		if !ok {
			continue
		}
		if a.IsCorrect == nil {
			correct := grade(q, a.Value)
			a.IsCorrect = &correct
		}
		a.CorrectAnswer = q.CorrectAnswer
	}

	st.attempt.SubmittedAt = &now
	util.Success(c, nil)
}

func (s *Server) getAttempt(c *gin.Context) {
	user := util.GetUserFromContext(c)
	if user == nil {
		util.Unauthorized(c)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.attempts[c.Param("id")]
	if !ok || st.userID != user.UserID || !st.attempt.Submitted() {
		util.NotFound(c)
		return
	}

	set := s.sets[st.setID]
	completed := model.CompletedAttempt{Attempt: st.attempt}
	completed.Questions = make([]model.Question, len(set.Questions))
	copy(completed.Questions, set.Questions) // 回顾页带正确答案

	completed.Answers = make([]model.Answer, 0, len(set.Questions))
	for i := range set.Questions {
		q := &set.Questions[i]
		if a, ok := st.answers[q.ID]; ok {
			completed.Answers = append(completed.Answers, *a)
		} else {
			completed.Answers = append(completed.Answers, model.Answer{QuestionID: q.ID})
		}
	}

	util.Success(c, completed)
}

// grade 简单判定：多选按选项键排序比较，其余忽略大小写和空白
func grade(q *model.Question, value string) bool {
	if q.Type == model.QuestionMultiChoice {
		return normalizeMulti(value) == normalizeMulti(q.CorrectAnswer)
	}
	return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(q.CorrectAnswer))
}

func normalizeMulti(v string) string {
	parts := strings.Split(v, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			keys = append(keys, p)
		}
	}
	// 选项数量很小，插入排序够用
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return strings.Join(keys, ",")
}
