package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/wager-engine/internal/errors"
	"github.com/wfunc/wager-engine/internal/logger"
	"github.com/wfunc/wager-engine/internal/models"
)

// Models 需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		// 房间相关
		&models.Room{},
		&models.PlayerSession{},
		&models.ActionLogEntry{},

		// 账务相关
		&models.Wallet{},
		&models.Transaction{},
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New(errors.ErrDatabaseConnect, "数据库未初始化")
	}

	if dbPath := sqliteFilePath(db); dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return err
		}
		defer releaseMigrationLock(lockFile)
	}

	logger.Info("开始数据库迁移...")

	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return errors.Wrap(err, errors.ErrDatabaseQuery, "migrate")
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	createIndexes(db)

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建查询索引，失败只告警
func createIndexes(db *gorm.DB) {
	indexes := []string{
		// supervisor 扫描
		"CREATE INDEX IF NOT EXISTS idx_rooms_status_deadline ON rooms(status, turn_deadline)",
		"CREATE INDEX IF NOT EXISTS idx_rooms_status_payout ON rooms(status, payout_status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)",
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
		}
	}
}

// DropAllTables 删除所有表（仅用于测试环境）
func DropAllTables(db *gorm.DB) error {
	for _, model := range Models() {
		if err := db.Migrator().DropTable(model); err != nil {
			logger.Error("删除表失败", zap.String("model", fmt.Sprintf("%T", model)), zap.Error(err))
			return err
		}
	}

	logger.Info("所有表已删除")
	return nil
}
