package progress

import (
	"sync"

	"school_exam_client/internal/model"
)

// Store 持有一次作答的客户端状态：每题答案、当前题号、已看答案标记。
// 不触网、不落盘，持久化和提交由上层负责。
type Store struct {
	mu        sync.Mutex
	questions []model.Question
	answers   map[string]*model.Answer
	dirty     map[string]bool // 已修改但尚未后台保存
	index     int
}

func NewStore(questions []model.Question) *Store {
	return &Store{
		questions: questions,
		answers:   make(map[string]*model.Answer, len(questions)),
		dirty:     make(map[string]bool),
	}
}

func (s *Store) Len() int {
	return len(s.questions)
}

// Question 返回第 i 题（越界返回 false）
func (s *Store) Question(i int) (model.Question, bool) {
	if i < 0 || i >= len(s.questions) {
		return model.Question{}, false
	}
	return s.questions[i], true
}

// Current 当前题目；题目列表为空时返回 false
func (s *Store) Current() (model.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return model.Question{}, false
	}
	return s.questions[s.index], true
}

func (s *Store) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// SetIndex 越界请求收敛到 [0, N-1] 而不是报错
func (s *Store) SetIndex(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if max := len(s.questions) - 1; i > max {
		i = max
	}
	if i < 0 {
		i = 0
	}
	s.index = i
	return s.index
}

// SetAnswer 覆盖该题此前的答案；已看过答案的题静默忽略。
// 客户端不校验答案形态，由服务端在提交时校验。
func (s *Store) SetAnswer(questionID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	if ok && a.Revealed {
		return
	}
	if !ok {
		a = &model.Answer{QuestionID: questionID}
		s.answers[questionID] = a
	}
	a.Value = value
	s.dirty[questionID] = true
}

// Answer 返回该题当前答案，未作答返回空串
func (s *Store) Answer(questionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	if !ok {
		return "", false
	}
	return a.Value, true
}

// Get 该题完整作答状态的副本
func (s *Store) Get(questionID string) (model.Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	if !ok {
		return model.Answer{}, false
	}
	return *a, true
}

// MarkRevealed 记录服务端判定结果；幂等，且此后该题不可再改答案
func (s *Store) MarkRevealed(questionID string, correct bool, correctAnswer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	if !ok {
		a = &model.Answer{QuestionID: questionID}
		s.answers[questionID] = a
	}
	if a.Revealed {
		return
	}
	a.Revealed = true
	a.IsCorrect = &correct
	a.CorrectAnswer = correctAnswer
	delete(s.dirty, questionID)
}

// Dirty 该题是否有未保存的修改
func (s *Store) Dirty(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[questionID]
}

// TakeDirty 取走脏标记并返回待保存的答案值；由调用方发起后台保存
func (s *Store) TakeDirty(questionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty[questionID] {
		return "", false
	}
	delete(s.dirty, questionID)
	a := s.answers[questionID]
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// RequeueDirty 后台保存失败时把脏标记放回去，等下次导航隐式重试；
// 答案已被改过或已判定则不动（改过的本来就是脏的）
func (s *Store) RequeueDirty(questionID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	if !ok || a.Revealed || a.Value != value {
		return
	}
	s.dirty[questionID] = true
}

// AnsweredCount 已作答题数
func (s *Store) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.answers {
		if a.Value != "" {
			n++
		}
	}
	return n
}
