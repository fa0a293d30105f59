package model

import "time"

// SessionRecord 本地续答记录：限时作答的持久化镜像，
// 以 (namespace, question_set_id) 为键，整条覆盖写入，提交或过期后删除。
type SessionRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Namespace       string    `gorm:"size:191;uniqueIndex:idx_ns_set" json:"namespace"`
	QuestionSetID   string    `gorm:"size:191;uniqueIndex:idx_ns_set" json:"questionSetId"`
	AttemptID       string    `gorm:"size:191" json:"attemptId"`
	StartedAtMs     int64     `json:"startedAtMs"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (SessionRecord) TableName() string {
	return "session_records"
}

// WellFormed 缺关键字段的记录按过期处理
func (r *SessionRecord) WellFormed() bool {
	return r.AttemptID != "" && r.StartedAtMs > 0 && r.DurationSeconds > 0
}

// ExpiredAt 判断 now 时刻是否已超出作答时限；畸形记录一律视为过期
func (r *SessionRecord) ExpiredAt(now time.Time) bool {
	if !r.WellFormed() {
		return true
	}
	elapsed := now.Sub(time.UnixMilli(r.StartedAtMs))
	return elapsed > time.Duration(r.DurationSeconds)*time.Second
}
