package db

import (
	"time"

	"ripplechat/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const MemoryDSN = ":memory:"

// Connect 负责建立到 Postgres 的连接，并带有简单的重试来等待容器就绪。
// DSN 为 ":memory:" 时使用内存 SQLite，便于本地开发。
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == MemoryDSN {
		return OpenMemory()
	}
	var gdb *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// OpenMemory opens a private in-memory SQLite database with the schema
// migrated. A single connection keeps every query on the same database.
func OpenMemory() (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Migrate 自动迁移用户、会话与消息表。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{})
}
