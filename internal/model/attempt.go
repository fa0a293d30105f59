package model

import "time"

// Attempt 一次作答（服务端下发，客户端只读元数据）
type Attempt struct {
	ID              string     `json:"id"`
	QuestionSetID   string     `json:"questionSetId"`
	StartedAt       time.Time  `json:"startedAt"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds"` // 0 表示不限时
	Questions       []Question `json:"questions"`
}

// Timed 是否限时作答
func (a *Attempt) Timed() bool {
	return a.DurationSeconds > 0
}

// Submitted 提交后不可再变更
func (a *Attempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// Deadline 限时作答的截止时间；不限时返回零值
func (a *Attempt) Deadline() time.Time {
	if !a.Timed() {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(a.DurationSeconds) * time.Second)
}

// CompletedAttempt 回顾页数据：已提交的作答及逐题结果
type CompletedAttempt struct {
	Attempt
	Answers []Answer `json:"answers"`
}
