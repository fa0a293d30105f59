package model

// Answer 客户端持有的单题作答状态；每题至多一条
type Answer struct {
	QuestionID    string `json:"questionId"`
	Value         string `json:"value"`
	Revealed      bool   `json:"revealed"`
	IsCorrect     *bool  `json:"isCorrect,omitempty"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
}

// RevealResult 请求即时判定（reveal=true）时服务端返回的结果
type RevealResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer string `json:"correctAnswer"`
}
