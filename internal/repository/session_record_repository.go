package repository

import (
	"errors"

	"gorm.io/gorm"

	"school_exam_client/internal/model"
)

type SessionRecordRepository struct {
	DB *gorm.DB
}

func NewSessionRecordRepository(db *gorm.DB) *SessionRecordRepository {
	return &SessionRecordRepository{DB: db}
}

// Save 覆盖写入 (namespace, questionSetID) 下的记录；同键旧记录整条替换，不做合并
func (r *SessionRecordRepository) Save(record *model.SessionRecord) error {
	var existing model.SessionRecord
	err := r.DB.Where("namespace = ? AND question_set_id = ?", record.Namespace, record.QuestionSetID).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing.ID == 0 {
		return r.DB.Create(record).Error
	}
	existing.AttemptID = record.AttemptID
	existing.StartedAtMs = record.StartedAtMs
	existing.DurationSeconds = record.DurationSeconds
	return r.DB.Save(&existing).Error
}

// Find 查单条；不存在返回 gorm.ErrRecordNotFound
func (r *SessionRecordRepository) Find(namespace, questionSetID string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	if err := r.DB.Where("namespace = ? AND question_set_id = ?", namespace, questionSetID).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadAll 每次调用重新扫库，返回该命名空间下的全部候选记录
func (r *SessionRecordRepository) LoadAll(namespace string) ([]model.SessionRecord, error) {
	var recs []model.SessionRecord
	err := r.DB.Where("namespace = ?", namespace).Find(&recs).Error
	return recs, err
}

// Delete 幂等：记录不存在时也不报错
func (r *SessionRecordRepository) Delete(namespace, questionSetID string) error {
	return r.DB.Where("namespace = ? AND question_set_id = ?", namespace, questionSetID).
		Delete(&model.SessionRecord{}).Error
}
