// Package database 负责创建 MySQL 与 Redis 客户端。
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"video-chat-go/internal/model"
	"video-chat-go/pkg/log"
)

// NewMySQL 创建 MySQL 数据库连接并配置连接池。
// TranslateError 打开后，唯一键冲突会被转换为 gorm.ErrDuplicatedKey。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	log.Info("MySQL database connected successfully")
	return db, nil
}

// AutoMigrate 创建或更新目录表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Tenant{}, &model.Video{})
}
