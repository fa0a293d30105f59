package model

const (
	QuestionSingleChoice = "single_choice"
	QuestionMultiChoice  = "multi_choice"
	QuestionTrueFalse    = "true_false"
	QuestionShortAnswer  = "short_answer"
)

// Question 服务端下发的题目，客户端只读
type Question struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Content       string            `json:"content"`
	Options       map[string]string `json:"options,omitempty"`       // 选项 key -> 文案
	CorrectAnswer string            `json:"correctAnswer,omitempty"` // 仅练习/回顾场景下发
	Order         int               `json:"order"`
}

// HasOptions 选择类题型才有选项
func (q *Question) HasOptions() bool {
	return q.Type == QuestionSingleChoice || q.Type == QuestionMultiChoice || q.Type == QuestionTrueFalse
}
