/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供内存数据库与测试数据工厂
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具,确保测试环境的一致性
 * @dependencies gorm, sqlite, time
 * @refs service/models
 */

package testutil

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"governance-engine-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.ModelVersion{},
		&models.ABTest{},
		&models.FeedbackRecord{},
		&models.DriftCheckRecord{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		"model_versions",
		"ab_tests",
		"feedback_records",
		"drift_check_records",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// NewTestModelVersion 创建测试模型版本记录
func NewTestModelVersion(modelType, status string) *models.ModelVersion {
	now := time.Now()
	return &models.ModelVersion{
		ModelType:       modelType,
		Status:          status,
		Accuracy:        0.9,
		Precision:       0.88,
		Recall:          0.87,
		F1Score:         0.875,
		TrainingSamples: 1000,
		CreatedAt:       now,
		Metadata:        models.JSONB{"source": "test"},
	}
}
