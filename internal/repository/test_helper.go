package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/wager-engine/internal/database"
	"github.com/wfunc/wager-engine/internal/models"
)

// SetupTestDB 为测试套件设置内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		panic(err)
	}

	// 内存库每个连接各自独立，只保留一个连接
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database.Models()...); err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// TestDB 创建测试数据库，测试结束时自动关闭
func TestDB(t *testing.T) *gorm.DB {
	db := SetupTestDB()
	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// SeedWallet 创建带余额的测试钱包
func SeedWallet(t *testing.T, db *gorm.DB, accountID string, balance int64) *models.Wallet {
	wallet := &models.Wallet{AccountID: accountID, Balance: balance}
	require.NoError(t, NewWalletRepository(db).Create(context.Background(), wallet))
	return wallet
}

// WalletBalance 读取测试钱包余额
func WalletBalance(t *testing.T, db *gorm.DB, accountID string) int64 {
	wallet, err := NewWalletRepository(db).FindByAccount(context.Background(), accountID)
	require.NoError(t, err)
	return wallet.Balance
}
