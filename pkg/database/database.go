package database

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"school_exam_client/internal/model"
)

// InitDB 打开本地续答记录库（纯 Go sqlite 驱动，客户端机器无需任何外部依赖）
func InitDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.SessionRecord{}); err != nil {
		return nil, err
	}

	return db, nil
}
